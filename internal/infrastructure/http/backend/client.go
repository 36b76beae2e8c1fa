// Package backend implements the HTTP client for the recipe REST API. All
// requests flow through a single pipeline that injects the bearer token,
// retries exactly once after a 401 by exchanging the refresh token, and
// normalizes every failure into a tagged Error at this boundary.
package backend

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

	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/infrastructure/config"
	"github.com/sardegnaricette/v2/internal/infrastructure/monitoring"
)

// TokenSource supplies the bearer token for authenticated requests and
// receives the replacement access token after a successful refresh. The
// session manager is the only implementation; the client never touches
// session storage directly.
type TokenSource interface {
	// AccessToken returns the current access token, or "" when the
	// caller is unauthenticated.
	AccessToken(ctx context.Context) string
	// RefreshToken returns the stored refresh token, or "".
	RefreshToken(ctx context.Context) string
	// StoreAccessToken persists a refreshed access token.
	StoreAccessToken(ctx context.Context, access string) error
	// ClearSession wipes the session after an irrecoverable refresh
	// failure.
	ClearSession(ctx context.Context)
}

// Client talks to the recipe REST API.
type Client struct {
	baseURL      string
	mediaBaseURL string
	httpClient   *http.Client
	logger       *zap.Logger
	metrics      *monitoring.MetricsCollector
}

// NewClient creates a new API client from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.Backend.BaseURL, "/"),
		mediaBaseURL: strings.TrimRight(cfg.Backend.MediaBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Backend.Timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// ResolveImageURL turns a relative image path from the backend into an
// absolute URL on the media host. Absolute URLs pass through untouched.
func (c *Client) ResolveImageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.mediaBaseURL + "/" + strings.TrimLeft(path, "/")
}

// request describes one API call going through the pipeline.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	tokens      TokenSource // nil for anonymous endpoints
}

// getJSON performs an optionally authenticated GET and decodes the
// response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, tokens TokenSource, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, tokens: tokens}, out)
}

// postJSON performs an optionally authenticated POST with a JSON body and
// decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, tokens TokenSource, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        payload,
		contentType: "application/json",
		tokens:      tokens,
	}, out)
}

// do executes the request pipeline: build, authorize, send, refresh-replay
// on 401 (once), normalize errors, decode.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	start := time.Now()
	status, err := c.send(ctx, r, out, false)
	if c.metrics != nil {
		c.metrics.RecordBackendRequest(r.path, status, time.Since(start))
	}
	return err
}

func (c *Client) send(ctx context.Context, r request, out interface{}, retried bool) (int, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		bodyReader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	var token string
	if r.tokens != nil {
		token = r.tokens.AccessToken(ctx)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("API request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Bool("retry", retried),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, networkError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && r.tokens != nil && !retried {
		if replayErr := c.refreshAccess(ctx, r.tokens); replayErr != nil {
			// The original 401 is the error the caller cares about;
			// the failed refresh forces a logout upstream.
			original := normalizeError(resp.StatusCode, body)
			original.cause = ErrSessionExpired
			return resp.StatusCode, original
		}
		return c.send(ctx, r, out, true)
	}

	if resp.StatusCode >= 400 {
		apiErr := normalizeError(resp.StatusCode, body)
		c.logger.Warn("API error response",
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
		)
		return resp.StatusCode, apiErr
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// refreshAccess exchanges the stored refresh token for a new access token.
// Called at most once per request. A missing refresh token or a failed
// exchange clears the session.
func (c *Client) refreshAccess(ctx context.Context, tokens TokenSource) error {
	refresh := tokens.RefreshToken(ctx)
	if refresh == "" {
		tokens.ClearSession(ctx)
		if c.metrics != nil {
			c.metrics.RecordTokenRefresh("failure")
		}
		return ErrSessionExpired
	}

	payload, _ := json.Marshal(map[string]string{"refresh": refresh})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token/refresh/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tokens.ClearSession(ctx)
		if c.metrics != nil {
			c.metrics.RecordTokenRefresh("failure")
		}
		return networkError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		tokens.ClearSession(ctx)
		if c.metrics != nil {
			c.metrics.RecordTokenRefresh("failure")
		}
		c.logger.Info("Token refresh rejected", zap.Int("status", resp.StatusCode))
		return normalizeError(resp.StatusCode, body)
	}

	var refreshed struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &refreshed); err != nil || refreshed.Access == "" {
		tokens.ClearSession(ctx)
		if c.metrics != nil {
			c.metrics.RecordTokenRefresh("failure")
		}
		return fmt.Errorf("malformed refresh response")
	}

	if err := tokens.StoreAccessToken(ctx, refreshed.Access); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordTokenRefresh("success")
	}
	c.logger.Debug("Access token refreshed")
	return nil
}
