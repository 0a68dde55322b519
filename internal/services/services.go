package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/festa/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// TokenProvider returns the current access token. [repositories.SessionRepository] implements it.
type TokenProvider interface {
	AccessToken() (string, error)
}

// SessionTokenSource adapts a [TokenProvider] to [oauth2.TokenSource].
type SessionTokenSource struct {
	Tokens TokenProvider
	Now    func() time.Time
}

// Token reads the stored token and rejects it locally once its exp claim has passed.
func (s SessionTokenSource) Token() (*oauth2.Token, error) {
	raw, err := s.Tokens.AccessToken()
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if claims, err := ParseClaims(raw); err == nil && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if !tok.Expiry.IsZero() && now().After(tok.Expiry) {
		return nil, fmt.Errorf("%w: expired at %s", shared.ErrTokenExpired, tok.Expiry.Format(time.RFC3339))
	}
	return tok, nil
}

// ParseClaims decodes a JWT access token without verifying its signature.
// The client never holds the signing key; it only reads exp and sub for display and expiry checks.
func ParseClaims(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// APIError is a non-2xx response from the platform API.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return shared.ErrInvalidReference
	case http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case http.StatusForbidden:
		return shared.ErrForbidden
	default:
		return shared.ErrAPIRequest
	}
}

// ServerMessage returns the message the server attached to err, or err's text.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

type envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message"`
}

type page[T any] struct {
	Content       []T  `json:"content"`
	TotalPages    int  `json:"totalPages"`
	TotalElements int  `json:"totalElements"`
	Number        int  `json:"number"`
	Last          bool `json:"last"`
}

// Client is the authenticated REST client for chat endpoints.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	plain      *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a [Client]. base is the transport used underneath the bearer
// transport and for unauthenticated calls; nil means a default client honouring cfg.Timeout.
func NewClient(cfg shared.APIConfig, tokens TokenProvider, base *http.Client) *Client {
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout.Duration}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, SessionTokenSource{Tokens: tokens}))
	authed.Timeout = base.Timeout

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix = "/" + prefix
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		prefix:     prefix,
		httpClient: authed,
		plain:      base,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// doRequest performs an authenticated request against prefix+endpoint and decodes the envelope's data into result.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	return c.do(ctx, c.httpClient, method, c.prefix+endpoint, query, body, result)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := c.baseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path}
		var env envelope[json.RawMessage]
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
