package erpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/shared"
	"github.com/erpsync/backend/internal/infrastructure/config"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB max response

	// sessionLifetime is how long a session cookie is trusted before a
	// fresh login. The server expires sessions after 30 minutes; logging
	// in a little early avoids racing the expiry.
	sessionLifetime = 25 * time.Minute

	sessionCookie = "B1SESSION"
)

// ServiceLayerClient implements erp.Client against the ERP's OData service
// layer. It manages the session cookie transparently: a request that comes
// back 401 triggers exactly one re-login and replay.
type ServiceLayerClient struct {
	cfg        config.ERPConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu           sync.Mutex
	sessionToken string
	sessionTime  time.Time
}

var _ erp.Client = (*ServiceLayerClient)(nil)

// NewServiceLayerClient creates a new ServiceLayerClient
func NewServiceLayerClient(cfg config.ERPConfig, logger *zap.Logger) *ServiceLayerClient {
	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &ServiceLayerClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		logger: logger,
	}
}

type loginRequest struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

// serviceError is the error envelope the service layer returns
type serviceError struct {
	Error struct {
		Code    json.Number `json:"code"`
		Message struct {
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

// login refreshes the session cookie. Callers hold no lock; login takes it.
func (c *ServiceLayerClient) login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{
		CompanyDB: c.cfg.CompanyDB,
		UserName:  c.cfg.Username,
		Password:  c.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("erpclient: failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/Login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("erpclient: failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("%w: %v", erp.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		c.logger.Error("login rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(payload)),
		)
		if resp.StatusCode >= 500 {
			return shared.Classify(shared.KindTransientIO, fmt.Errorf("%w: login HTTP %d", erp.ErrUnavailable, resp.StatusCode))
		}
		return shared.Classify(shared.KindValidation, fmt.Errorf("%w: login HTTP %d", erp.ErrRejected, resp.StatusCode))
	}

	var token string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			token = cookie.Value
			break
		}
	}
	if token == "" {
		return shared.Classify(shared.KindUnknown, fmt.Errorf("erpclient: login response carried no %s cookie", sessionCookie))
	}

	c.mu.Lock()
	c.sessionToken = token
	c.sessionTime = time.Now()
	c.mu.Unlock()

	c.logger.Debug("session established", zap.String("company", c.cfg.CompanyDB))
	return nil
}

// currentSession returns the cached token, or "" when it is missing or stale
func (c *ServiceLayerClient) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken == "" || time.Since(c.sessionTime) > sessionLifetime {
		return ""
	}
	return c.sessionToken
}

// do executes one service-layer request. When out is non-nil the response
// body is decoded into it. A 401 triggers one re-login and replay.
func (c *ServiceLayerClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token := c.currentSession()
	if token == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
		token = c.currentSession()
	}

	err := c.doOnce(ctx, method, path, query, body, out, token)
	if shared.KindOf(err) != shared.KindAuthExpired {
		return err
	}

	c.logger.Info("session expired, re-authenticating", zap.String("path", path))
	if err := c.login(ctx); err != nil {
		return err
	}
	return c.doOnce(ctx, method, path, query, body, out, c.currentSession())
}

func (c *ServiceLayerClient) doOnce(ctx context.Context, method, path string, query url.Values, body, out any, token string) error {
	target := c.cfg.BaseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erpclient: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("erpclient: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("%w: %v", erp.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("erpclient: failed to read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return c.classifyFailure(resp.StatusCode, payload, path)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("erpclient: failed to decode response: %w", err)
		}
	}
	return nil
}

// classifyFailure maps a service-layer error response onto the error
// taxonomy the workflow retries and markers are driven by.
func (c *ServiceLayerClient) classifyFailure(status int, payload []byte, path string) error {
	var envelope serviceError
	message := string(payload)
	if json.Unmarshal(payload, &envelope) == nil && envelope.Error.Message.Value != "" {
		message = envelope.Error.Message.Value
	}

	c.logger.Warn("request rejected",
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	base := fmt.Errorf("%w: HTTP %d: %s", erp.ErrRejected, status, message)
	switch {
	case status == http.StatusUnauthorized:
		return shared.Classify(shared.KindAuthExpired, fmt.Errorf("%w: %s", erp.ErrSessionExpired, message))
	case status == http.StatusTooManyRequests || status >= 500:
		return shared.Classify(shared.KindTransientIO, fmt.Errorf("%w: HTTP %d: %s", erp.ErrUnavailable, status, message))
	case isDuplicateMessage(message):
		return shared.Classify(shared.KindConflict, base)
	case status == http.StatusBadRequest:
		return shared.Classify(shared.KindValidation, base)
	default:
		return shared.Classify(shared.KindUnknown, base)
	}
}

// isDuplicateMessage recognizes the duplicate-key rejections the service
// layer raises when a document or partner with the same key already exists
func isDuplicateMessage(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "already exists") ||
		strings.Contains(lowered, "duplicate") ||
		strings.Contains(lowered, "-2035")
}

// escapeFilterValue doubles single quotes for OData string literals
func escapeFilterValue(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
