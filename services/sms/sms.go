package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender delivers one SMS message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

const (
	tokenCacheKey  = "eskiz:auth_token"
	tokenTTL       = 24 * time.Hour
	requestTimeout = 10 * time.Second
)

// TokenCache stores the provider auth token between sends.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Config holds Eskiz credentials.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	From     string
}

// EskizClient sends SMS through the Eskiz gateway.
type EskizClient struct {
	cfg        Config
	httpClient *http.Client
	cache      TokenCache
}

// NewEskizClient creates an Eskiz SMS client. cache may be nil.
func NewEskizClient(cfg Config, cache TokenCache) *EskizClient {
	return &EskizClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
	}
}

type eskizAuthResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (c *EskizClient) token(ctx context.Context) (string, error) {
	if c.cache != nil {
		if tok, err := c.cache.Get(ctx, tokenCacheKey); err == nil && tok != "" {
			return tok, nil
		}
	}

	body, err := json.Marshal(map[string]string{"email": c.cfg.Email, "password": c.cfg.Password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sms auth returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var auth eskizAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decode sms auth response: %w", err)
	}
	if auth.Data.Token == "" {
		return "", fmt.Errorf("sms auth returned empty token")
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, tokenCacheKey, auth.Data.Token, tokenTTL)
	}
	return auth.Data.Token, nil
}

// Send delivers one message. A 401 drops the cached token so the retry
// re-authenticates.
func (c *EskizClient) Send(ctx context.Context, phone, message string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"mobile_phone": phone,
		"message":      message,
		"from":         c.cfg.From,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/message/sms/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.cache != nil {
		_ = c.cache.Delete(ctx, tokenCacheKey)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms send returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// NoopSender discards messages; used when SMS credentials are not
// configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, string, string) error { return nil }
