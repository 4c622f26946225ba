package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var (
	ErrWebhookSecretMissing = errors.New("no webhook secret configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

// VerifyWebhook checks the X-Shopify-Hmac-Sha256 signature of a webhook body.
func (c *Client) VerifyWebhook(payload []byte, signature string) error {
	return VerifySignature(c.webhookSecret, payload, signature)
}

// VerifySignature computes base64(HMAC-SHA256(secret, payload)) and compares it in constant time.
func VerifySignature(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrWebhookSecretMissing
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expectedSignature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return ErrInvalidSignature
	}
	return nil
}
