package autosend

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

	"github.com/go-logr/logr"

	"go.miloapis.com/email-provider-autosend/pkg/version"
)

const (
	// DefaultBaseURL is the production Autosend endpoint.
	DefaultBaseURL = "https://api.autosend.com/v1"

	defaultTimeout = 15 * time.Second
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds the settings every request is built from. It is copied
// into the Client at construction and never changes afterwards.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

// Client is the Autosend API client.
type Client struct {
	// Contacts manages contact records.
	Contacts *Contacts
	// Sending sends transactional email.
	Sending *Sending

	requester *requester
}

// ClientOption defines a functional option for configuring the Client.
type ClientOption func(*requester)

// WithBaseURL sets a custom base URL for the client.
func WithBaseURL(baseURL string) ClientOption {
	return func(r *requester) {
		r.config.BaseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(r *requester) {
		r.httpClient = client
	}
}

// WithLogger sets the logger used for request tracing. Requests are logged at
// verbosity 1.
func WithLogger(logger logr.Logger) ClientOption {
	return func(r *requester) {
		r.log = logger
	}
}

// NewSDK creates a new Autosend API client.
//
// An empty API key is rejected with an *AuthenticationError and a malformed
// base URL with a *ValidationError.
func NewSDK(apiKey string, opts ...ClientOption) (*Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, &AuthenticationError{Message: "API key cannot be empty"}
	}

	r := &requester{
		config: ClientConfig{
			APIKey:  key,
			BaseURL: DefaultBaseURL,
		},
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logr.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := validateBaseURL(r.config.BaseURL); err != nil {
		return nil, err
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		Contacts:  &Contacts{r: r},
		Sending:   &Sending{r: r},
		requester: r,
	}, nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() ClientConfig {
	return c.requester.config
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return newValidationError("base_url", nil, "base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newValidationError("base_url", raw, "base url must be an absolute http(s) URL")
	}
	return nil
}

// requester builds, sends and classifies requests. It holds no per-call
// state and is shared by every resource client.
type requester struct {
	config     ClientConfig
	httpClient HTTPDoer
	log        logr.Logger
}

// joinURL joins base and path with exactly one slash.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (r *requester) do(ctx context.Context, method, path string, payload any) (*Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, newValidationError("payload", nil, "payload is not JSON serializable: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	endpoint := joinURL(r.config.BaseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, &RequestError{Message: "failed to create request", Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := r.log.WithValues("method", method, "path", path)
	log.V(1).Info("Sending request")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.V(1).Info("Request failed", "error", err.Error())
		return nil, &RequestError{Message: "failed to execute request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// A failed read on an error status still classifies by status.
	respBody, readErr := io.ReadAll(resp.Body)

	log.V(1).Info("Received response", "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Message:    "invalid or unauthorized API key",
			Body:       string(respBody),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("api returned %d", resp.StatusCode),
			Body:       string(respBody),
		}
	}

	if readErr != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: "failed to read response body", Err: readErr}
	}

	out := &Response{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return out, nil
	}

	// The request succeeded either way; a plain-text body is kept as text.
	if !json.Valid(respBody) {
		log.V(1).Info("Response body is not JSON, keeping it as text")
		out.Text = string(respBody)
		return out, nil
	}
	out.Body = json.RawMessage(respBody)
	return out, nil
}
