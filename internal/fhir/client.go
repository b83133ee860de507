package fhir

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

	"github.com/rs/zerolog/log"
)

const (
	contentTypeFHIR = "application/fhir+json"
	contentTypeForm = "application/x-www-form-urlencoded"

	// Transport-level failures are retried at most this many additional
	// times. Responses are never retried, whatever the status.
	maxRetries   = 2
	retryBackoff = 500 * time.Millisecond
)

// Config holds the per-connection settings the client needs. There is no
// process-wide settings object; each connection gets its own client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	FHIRVersion  string
	Timeout      time.Duration
}

// TokenResponse is the OAuth2 token endpoint payload
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Client speaks SMART on FHIR to a single remote base URL. It holds the
// access token in memory only for the duration of a logical operation;
// persistence belongs to the connection lifecycle manager.
type Client struct {
	cfg         Config
	http        *http.Client
	accessToken string
}

// NewClient creates a wire client for one FHIR base URL
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// SetAccessToken sets the bearer token used for resource operations
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// BaseURL returns the configured FHIR base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// BuildAuthorizationURL builds the SMART on FHIR authorization URL. Pure; no I/O.
func (c *Client) BuildAuthorizationURL(redirectURI string, scopes []string, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.cfg.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", strings.Join(scopes, " "))
	params.Set("aud", c.cfg.BaseURL)
	if state != "" {
		params.Set("state", state)
	}
	return c.cfg.BaseURL + "/authorize?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		data.Set("client_secret", c.cfg.ClientSecret)
	}

	token, status, body, err := c.postTokenEndpoint(ctx, data)
	if err != nil {
		return nil, &AuthExchangeError{Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &AuthExchangeError{Status: status, Body: body}
	}
	if token.AccessToken == "" {
		return nil, &AuthExchangeError{Status: status, Body: "token response missing access_token"}
	}
	return token, nil
}

// RefreshToken exchanges a refresh token for a fresh token payload
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		data.Set("client_secret", c.cfg.ClientSecret)
	}

	token, status, body, err := c.postTokenEndpoint(ctx, data)
	if err != nil {
		return nil, &TokenRefreshError{Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &TokenRefreshError{Status: status, Body: body}
	}
	if token.AccessToken == "" {
		return nil, &TokenRefreshError{Status: status, Body: "token response missing access_token"}
	}
	return token, nil
}

func (c *Client) postTokenEndpoint(ctx context.Context, data url.Values) (*TokenResponse, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, string(body), nil
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, 0, "", fmt.Errorf("failed to parse token response: %w", err)
	}
	return &token, resp.StatusCode, "", nil
}

// CreateResource POSTs a FHIR resource body and returns the parsed response
func (c *Client) CreateResource(ctx context.Context, resourceType string, body map[string]interface{}) (map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s body: %w", resourceType, err)
	}
	return c.doFHIR(ctx, http.MethodPost, c.cfg.BaseURL+"/"+resourceType, payload)
}

// SearchResource GETs a FHIR search and returns the parsed Bundle
func (c *Client) SearchResource(ctx context.Context, resourceType string, query url.Values) (map[string]interface{}, error) {
	searchURL := c.cfg.BaseURL + "/" + resourceType
	if len(query) > 0 {
		searchURL += "?" + query.Encode()
	}
	return c.doFHIR(ctx, http.MethodGet, searchURL, nil)
}

// CapabilityStatement fetches the server metadata. Unauthenticated; used for
// diagnostics only.
func (c *Client) CapabilityStatement(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/metadata", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", contentTypeFHIR)

	resp, err := c.doWithRetry(req, nil)
	if err != nil {
		return nil, fmt.Errorf("capability statement request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func (c *Client) doFHIR(ctx context.Context, method, rawURL string, payload []byte) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", contentTypeFHIR)
	req.Header.Set("Accept", contentTypeFHIR)

	resp, err := c.doWithRetry(req, payload)
	if err != nil {
		return nil, fmt.Errorf("FHIR request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// doWithRetry retries transport-level failures with exponential backoff.
// A POST that produced no response may still have reached the server, so a
// retried create can duplicate the resource; the window is accepted and the
// attempt is logged for operators.
func (c *Client) doWithRetry(req *http.Request, payload []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff << (attempt - 1)
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
			log.Warn().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Int("attempt", attempt).
				Msg("Retrying FHIR request after transport failure")
		}

		if payload != nil {
			req.Body = io.NopCloser(bytes.NewReader(payload))
			req.ContentLength = int64(len(payload))
		}

		resp, err := c.http.Do(req)
		if err == nil {
			return resp, nil
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeResponse(resp *http.Response) (map[string]interface{}, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteRequestError{Status: resp.StatusCode, Body: string(body)}
	}

	var result map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return result, nil
}
