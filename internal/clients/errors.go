package clients

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ConfigError reports missing remote-store configuration. It is raised before any call is made.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("shopify configuration missing: %s", e.Field)
}

// RemoteHTTPError is a non-2xx answer from the Admin API.
type RemoteHTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteHTTPError) Error() string {
	return fmt.Sprintf("Shopify API error (status %d) on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// TransientError marks a rate-limited call that the caller may retry.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("rate limited by remote: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NetworkError is a transport failure (DNS, connection reset, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// GraphQLError carries top-level GraphQL errors returned with an HTTP 200.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql error: " + strings.Join(e.Messages, "; ")
}

// UserError is a single mutation user error.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors is returned when a mutation reports user errors.
type UserErrors struct {
	Action string
	Errors []UserError
}

func (e *UserErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if len(ue.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		} else {
			parts = append(parts, ue.Message)
		}
	}
	return fmt.Sprintf("%s: %s", e.Action, strings.Join(parts, "; "))
}

// TransferRejectedError is a non-2xx answer from a staged upload target. Body is kept verbatim.
type TransferRejectedError struct {
	StatusCode int
	Body       string
}

func (e *TransferRejectedError) Error() string {
	return fmt.Sprintf("staged transfer rejected (status %d): %s", e.StatusCode, e.Body)
}

// UnsupportedMediaError is returned for files that are neither images nor videos.
type UnsupportedMediaError struct {
	ContentType string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media content type: %q", e.ContentType)
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var re *RemoteHTTPError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// StatusCode maps an error to the HTTP status used by the retry policy.
// Errors that must not be retried never map to 0, which the Retrier treats as a network failure.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsTransient(err) {
		return http.StatusTooManyRequests
	}
	var re *RemoteHTTPError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return http.StatusInternalServerError
}
