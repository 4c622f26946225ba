package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/metrics"
)

const maxPageSize = 250

// Client implements clients.CatalogClient against the Shopify Admin REST and GraphQL APIs.
type Client struct {
	httpClient     *http.Client
	transferClient *http.Client
	storeURL       string
	apiVersion     string
	accessToken    string
	webhookSecret  string
	rateLimiter    *rate.Limiter
	logger         *logrus.Entry
}

var _ clients.CatalogClient = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for Admin API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTransferClient replaces the HTTP client used for staged byte transfers.
func WithTransferClient(hc *http.Client) Option {
	return func(c *Client) { c.transferClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger.WithField("component", "shopify-client") }
}

// NewClient creates a Shopify Admin API client. Missing domain or token fails here, before any call.
func NewClient(cfg config.ShopifyConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		// Transfers are bounded by the caller's context; large videos outlive the API timeout.
		transferClient: &http.Client{},
		storeURL:       cfg.StoreURL(),
		apiVersion:     cfg.Version(),
		accessToken:    cfg.AccessToken,
		webhookSecret:  cfg.WebhookSecret,
		rateLimiter:    rate.NewLimiter(limit, 1),
		logger:         logrus.NewEntry(logrus.StandardLogger()).WithField("component", "shopify-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/api/%s%s", c.storeURL, c.apiVersion, path)
}

// doREST performs an authenticated REST request and returns the body and headers.
func (c *Client) doREST(ctx context.Context, op, method, path string, params url.Values, body interface{}) ([]byte, http.Header, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, nil, &clients.NetworkError{Op: method + " " + path, Err: err}
	}

	fullURL := c.adminURL(path)
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("rest", op, 0, time.Since(start))
		return nil, nil, &clients.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	metrics.RecordRemoteRequest("rest", op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, &clients.NetworkError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode >= 400 {
		httpErr := &clients.RemoteHTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
		c.logger.WithFields(logrus.Fields{
			"operation": op,
			"status":    resp.StatusCode,
		}).Warn("Shopify REST call failed")
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, nil, &clients.TransientError{Err: httpErr, RetryAfter: clients.ParseRetryAfter(resp.Header)}
		}
		return nil, nil, httpErr
	}

	return respBody, resp.Header, nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

// doGraphQL posts a document to the GraphQL endpoint and decodes data into out.
func (c *Client) doGraphQL(ctx context.Context, op, query string, variables map[string]interface{}, out interface{}) error {
	body, header, err := c.postGraphQL(ctx, op, query, variables)
	if err != nil {
		return err
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}

	if len(envelope.Errors) > 0 {
		gqlErr := &clients.GraphQLError{}
		throttled := false
		for _, e := range envelope.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
			if e.Extensions.Code == "THROTTLED" {
				throttled = true
			}
		}
		if throttled {
			retryAfter := clients.ParseRetryAfter(header)
			if retryAfter == 0 {
				retryAfter = time.Second
			}
			return &clients.TransientError{Err: gqlErr, RetryAfter: retryAfter}
		}
		return gqlErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", op, err)
	}
	return nil
}

func (c *Client) postGraphQL(ctx context.Context, op, query string, variables map[string]interface{}) ([]byte, http.Header, error) {
	return c.doREST(ctx, op, http.MethodPost, "/graphql.json", nil, graphQLRequest{Query: query, Variables: variables})
}

// parsePagination extracts the page_info cursor of the rel="next" link.
func parsePagination(linkHeader string) (string, bool) {
	// Format: <url>; rel="previous", <url>; rel="next"
	for _, part := range strings.Split(linkHeader, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		urlPart := strings.TrimSpace(strings.Split(part, ";")[0])
		urlPart = strings.Trim(urlPart, "<>")
		if parsedURL, err := url.Parse(urlPart); err == nil {
			if cursor := parsedURL.Query().Get("page_info"); cursor != "" {
				return cursor, true
			}
		}
	}
	return "", false
}

func pageParams(opts *clients.ListOptions, defaultLimit int) url.Values {
	params := url.Values{}
	limit := defaultLimit
	if opts != nil && opts.Limit > 0 {
		limit = opts.Limit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	params.Set("limit", fmt.Sprint(limit))
	if opts != nil && opts.Cursor != "" {
		// page_info cannot be combined with other filters.
		params.Set("page_info", opts.Cursor)
	}
	return params
}
