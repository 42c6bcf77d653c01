// Package gateway is the single HTTP client wrapper for the remote
// prediction/auth backend. Every outgoing request goes through one
// configured client: the bearer token is attached when a session exists,
// requests are never blocked for lack of one, and every failure is
// normalized into *APIError with a human-readable message.
//
// The gateway performs no retries. A failed call is surfaced to the
// caller, and the user re-triggers the operation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
	"github.com/dorsakh/Food-Log-FrontEnd/pkg/config"
)

// PlaceholderImage is returned by ResolveBackendImage for empty input.
const PlaceholderImage = "/img/home-decor-1.jpeg"

var absoluteURLPattern = regexp.MustCompile(`(?i)^https?:`)

// TokenSource supplies the current auth token for outgoing requests.
// An empty token means the request proceeds unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the configured HTTP client for the backend. Construct it once
// per application lifetime with New.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
}

// Credentials is the login request payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the signup request payload.
type SignUpRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the raw decoded response of the auth endpoints,
// expected to contain a token and a user object. Either may be absent;
// callers handle partial responses.
type AuthResponse struct {
	Token string           `json:"token"`
	User  *models.AuthUser `json:"user"`
}

// PredictOptions carries optional metadata for PredictMeal.
type PredictOptions struct {
	CapturedAt *time.Time
}

// New creates a gateway client with the configured base address, the
// fixed request timeout, and a politeness limiter on outgoing calls.
// The token source is consulted on every request.
func New(cfg config.APIConfig, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// BaseURL returns the configured backend base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes one backend call: rate limit, attach auth and request ID,
// send, and normalize any failure into *APIError. Returns the raw
// response body on 2xx.
func (c *Client) do(ctx context.Context, operation, method, path, contentType string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newTransportError(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, newTransportError(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	token, err := c.tokens.Token(ctx)
	if err != nil {
		// A broken session store must not block the request; it simply
		// goes out unauthenticated.
		log.Warn().Err(err).Str("operation", operation).Msg("Unable to read token, sending unauthenticated")
		token = ""
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	apiRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		log.Error().
			Err(err).
			Str("operation", operation).
			Str("request_id", req.Header.Get("X-Request-ID")).
			Msg("Backend request failed")
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newStatusError(resp.StatusCode, raw, resp.Status)
		log.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Str("request_id", req.Header.Get("X-Request-ID")).
			Msg("Backend returned error")
		return nil, apiErr
	}

	return raw, nil
}

// doJSON executes a call with a JSON request body.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, operation, method, path, "application/json", bytes.NewReader(body))
}

// PredictMeal uploads a meal photo for analysis and returns the raw
// decoded prediction. The photo is attached under both the "photo" and
// "image" field names (backend deployments have expected either) and the
// optional capture date travels as "meal_date".
//
// Fails with *APIError when the backend is unreachable or returns non-2xx.
func (c *Client) PredictMeal(ctx context.Context, photo []byte, filename string, opts PredictOptions) (*models.PredictResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, field := range []string{"photo", "image"} {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
		if _, err := part.Write(photo); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if opts.CapturedAt != nil {
		if err := writer.WriteField("meal_date", opts.CapturedAt.Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	raw, err := c.do(ctx, "predict", http.MethodPost, "/predict", writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	prediction := &models.PredictResponse{}
	if err := json.Unmarshal(raw, prediction); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return prediction, nil
}

// FetchMealHistory returns the items array of GET /history. A successful
// response whose shape is unexpected yields an empty list, never an
// error; the caller is not failed for a malformed-but-2xx body.
func (c *Client) FetchMealHistory(ctx context.Context) ([]models.MealRecord, error) {
	raw, err := c.do(ctx, "history", http.MethodGet, "/history", "", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []models.MealRecord `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Items == nil {
		log.Warn().Str("operation", "history").Msg("Unexpected history response shape, treating as empty")
		return []models.MealRecord{}, nil
	}
	return payload.Items, nil
}

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, credentials Credentials) (*AuthResponse, error) {
	raw, err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", credentials)
	if err != nil {
		return nil, err
	}

	auth := &AuthResponse{}
	if err := json.Unmarshal(raw, auth); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return auth, nil
}

// SignUp registers a new account and returns the raw auth response.
func (c *Client) SignUp(ctx context.Context, payload SignUpRequest) (*AuthResponse, error) {
	raw, err := c.doJSON(ctx, "signup", http.MethodPost, "/auth/signup", payload)
	if err != nil {
		return nil, err
	}

	auth := &AuthResponse{}
	if err := json.Unmarshal(raw, auth); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}
	return auth, nil
}

// FetchCurrentUser returns the user field of GET /auth/me, or nil when
// the response carries none.
func (c *Client) FetchCurrentUser(ctx context.Context) (*models.AuthUser, error) {
	raw, err := c.do(ctx, "me", http.MethodGet, "/auth/me", "", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		User *models.AuthUser `json:"user"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	return payload.User, nil
}

// PerformHealthCheck returns the raw decoded GET /health response.
func (c *Client) PerformHealthCheck(ctx context.Context) (map[string]interface{}, error) {
	raw, err := c.do(ctx, "health", http.MethodGet, "/health", "", nil)
	if err != nil {
		return nil, err
	}

	status := map[string]interface{}{}
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return status, nil
}

// ResolveBackendImage maps a backend image reference to a fetchable URL.
// Absolute URLs pass through unchanged; relative paths have backslashes
// normalized to forward slashes and leading slashes stripped before being
// joined to the base address; empty input yields the local placeholder.
func (c *Client) ResolveBackendImage(value string) string {
	if value == "" {
		return PlaceholderImage
	}
	if absoluteURLPattern.MatchString(value) {
		return value
	}

	normalized := strings.ReplaceAll(value, `\`, "/")
	normalized = strings.TrimLeft(normalized, "/")
	return c.baseURL + "/" + normalized
}
