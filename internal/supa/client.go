// Package supa is a small client for the Supabase-compatible REST API the
// site is backed by: GoTrue auth, PostgREST tables and object storage.
//
// # Authentication
//
// Every request carries the project's anon key in the apikey header. Calls
// made on behalf of a user pass that user's access token, which is sent as
// a bearer token; anonymous calls use the anon key as the bearer instead.
//
// # Usage
//
//	client := supa.NewClient(supa.Config{
//	    BaseURL: "https://project.supabase.co",
//	    AnonKey: "public-anon-key",
//	})
//
//	session, err := client.SignInWithPassword(ctx, "john@example.com", "secret")
//
// Requests are never retried.
package supa

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
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the project URL, e.g. https://project.supabase.co.
	BaseURL string

	// AnonKey is the public API key sent with every request.
	AnonKey string

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// Defaults to a client with 15s timeout.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string
}

// Client talks to the hosted backend.
type Client struct {
	config Config
	base   *url.URL
	http   *http.Client
}

// NewClient creates a new backend client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("supa: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supa: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("supa: base URL must be absolute: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{config: cfg, base: base, http: httpClient}, nil
}

// BaseURL returns the configured project URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        io.Reader
	contentType string
	headers     map[string]string
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// jsonBody encodes v for a request body.
func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("supa: marshal request: %w", err)
	}
	return bytes.NewReader(b), nil
}

// do sends a single request and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), r.body)
	if err != nil {
		return nil, fmt.Errorf("supa: create request: %w", err)
	}

	req.Header.Set("apikey", c.config.AnonKey)
	bearer := r.token
	if bearer == "" {
		bearer = c.config.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supa: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("supa: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, newResponseError(resp.StatusCode, r.path, body)
}

// doJSON sends r and decodes a JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("supa: invalid response JSON: %w", err)
	}
	return nil
}
