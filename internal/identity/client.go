// Package identity resolves opaque bearer tokens to stable subject
// identifiers by calling the external authorizer endpoint.
//
// The client is a thin, fail-fast layer: authentication failures are
// surfaced verbatim and never retried.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sentinel errors for token resolution. Check with errors.Is().
var (
	// ErrUnauthorized is returned when the authorizer rejects the token.
	ErrUnauthorized = errors.New("identity: token rejected")

	// ErrUnavailable is returned when the authorizer cannot be reached or
	// responds outside its contract.
	ErrUnavailable = errors.New("identity: authorizer unavailable")
)

// Config configures the authorizer client.
type Config struct {
	// EndpointURL is the full URL of the token-introspection endpoint.
	EndpointURL string

	// Timeout bounds a single resolution round trip. Defaults to 15s.
	Timeout time.Duration
}

// Client calls the authorizer endpoint over HTTP.
type Client struct {
	http     *resty.Client
	endpoint string
}

// NewClient constructs a Client for the given endpoint.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		http:     resty.New().SetTimeout(cfg.Timeout),
		endpoint: cfg.EndpointURL,
	}
}

// tokenData is the subset of the authorizer response gitdrop consumes.
type tokenData struct {
	Sub string `json:"sub"`
}

// Resolve exchanges a bearer token for the stable subject identifier
// carried in the authorizer's "sub" claim.
func (c *Client) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty bearer token", ErrUnauthorized)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		Get(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return "", fmt.Errorf("%w: authorizer returned %d", ErrUnauthorized, resp.StatusCode())
	case resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices:
		return "", fmt.Errorf("%w: authorizer returned %d", ErrUnavailable, resp.StatusCode())
	}

	var data tokenData
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return "", fmt.Errorf("%w: decoding authorizer response: %s", ErrUnavailable, err)
	}
	if data.Sub == "" {
		return "", fmt.Errorf("%w: authorizer response missing sub claim", ErrUnavailable)
	}

	return data.Sub, nil
}
