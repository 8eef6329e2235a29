package multicard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/services"
)

const (
	tokenCacheKey  = "multicard:auth_token"
	tokenTTL       = 24 * time.Hour
	requestTimeout = 10 * time.Second
)

// TokenCache stores the short-lived gateway auth token between requests.
// utils/cache.RedisCache satisfies it.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Config holds the Multicard merchant credentials.
type Config struct {
	BaseURL       string
	ApplicationID string
	Secret        string
	StoreID       string
	CallbackURL   string
}

// Client talks to the Multicard payment API. It implements
// services.PaymentGateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      TokenCache
}

// NewClient creates a Multicard client. cache may be nil; tokens are then
// re-fetched on every request.
func NewClient(cfg Config, cache TokenCache) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
	}
}

type authRequest struct {
	ApplicationID string `json:"application_id"`
	Secret        string `json:"secret"`
}

type authResponse struct {
	Token string `json:"token"`
}

// token returns a cached auth token, fetching a fresh one from /auth when the
// cache misses.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.cache != nil {
		if tok, err := c.cache.Get(ctx, tokenCacheKey); err == nil && tok != "" {
			return tok, nil
		}
	}

	body, err := json.Marshal(authRequest{ApplicationID: c.cfg.ApplicationID, Secret: c.cfg.Secret})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	var auth authResponse
	if err := c.postJSON(ctx, "/auth", "", body, &auth); err != nil {
		return "", err
	}
	if auth.Token == "" {
		return "", fmt.Errorf("%w: empty auth token", services.ErrGatewayUnavailable)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, tokenCacheKey, auth.Token, tokenTTL); err != nil {
			// Cache failures must not block payments.
			log.Printf("multicard: failed to cache auth token: %v", err)
		}
	}
	return auth.Token, nil
}

// invalidateToken drops the cached token after a 401 so the retry
// re-authenticates.
func (c *Client) invalidateToken(ctx context.Context) {
	if c.cache != nil {
		_ = c.cache.Delete(ctx, tokenCacheKey)
	}
}

func (c *Client) postJSON(ctx context.Context, path, token string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken(ctx)
		return fmt.Errorf("%w: gateway rejected auth token", services.ErrGatewayUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: gateway returned status %d: %s", services.ErrGatewayUnavailable, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken(ctx)
		return fmt.Errorf("%w: gateway rejected auth token", services.ErrGatewayUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: gateway returned status %d: %s", services.ErrGatewayUnavailable, resp.StatusCode, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type invoiceRequest struct {
	StoreID     string            `json:"store_id"`
	InvoiceID   string            `json:"invoice_id"`
	Amount      int64             `json:"amount"` // tiyins
	ReturnURL   string            `json:"return_url,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Lang        string            `json:"lang,omitempty"`
	SMS         *invoiceSMSTarget `json:"sms,omitempty"`
}

type invoiceSMSTarget struct {
	Phone string `json:"phone"`
}

type invoiceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		UUID        string `json:"uuid"`
		CheckoutURL string `json:"checkout_url"`
		ShortLink   string `json:"short_link"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckout registers an invoice with the gateway and returns the hosted
// checkout session.
func (c *Client) CreateCheckout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload := invoiceRequest{
		StoreID:     c.cfg.StoreID,
		InvoiceID:   req.InvoiceID,
		Amount:      req.AmountTiyin,
		ReturnURL:   req.ReturnURL,
		CallbackURL: c.cfg.CallbackURL,
		Lang:        req.Lang,
	}
	if req.SMSPhone != "" {
		payload.SMS = &invoiceSMSTarget{Phone: req.SMSPhone}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice request: %w", err)
	}

	var resp invoiceResponse
	if err := c.postJSON(ctx, "/payment/invoice", token, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := "unknown error"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, fmt.Errorf("%w: invoice creation failed: %s", services.ErrGatewayUnavailable, msg)
	}

	return &services.CheckoutSession{
		UUID:        resp.Data.UUID,
		CheckoutURL: resp.Data.CheckoutURL,
		ShortLink:   resp.Data.ShortLink,
	}, nil
}

type statusResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Status     string `json:"status"`
		ReceiptURL string `json:"receipt_url"`
	} `json:"data"`
}

// CheckStatus pulls the gateway's current view of an invoice.
func (c *Client) CheckStatus(ctx context.Context, gatewayInvoiceID string) (*services.GatewayStatus, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	path := fmt.Sprintf("/payment/invoice/%s?store_id=%s", gatewayInvoiceID, c.cfg.StoreID)
	if err := c.getJSON(ctx, path, token, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: status check failed", services.ErrGatewayUnavailable)
	}

	return &services.GatewayStatus{
		Status:     c.MapStatus(resp.Data.Status),
		ReceiptURL: resp.Data.ReceiptURL,
	}, nil
}

// VerifyCallbackSignature checks the md5 signature carried by payment
// confirmation callbacks.
func (c *Client) VerifyCallbackSignature(invoiceID string, amountTiyin int64, sign string) bool {
	want := callbackSignature(c.cfg.StoreID, invoiceID, amountTiyin, c.cfg.Secret)
	return signaturesEqual(want, strings.ToLower(sign))
}

// VerifyWebhookSignature checks the sha1 signature carried by status
// webhooks.
func (c *Client) VerifyWebhookSignature(uuid, invoiceID string, amountTiyin int64, sign string) bool {
	want := webhookSignature(uuid, invoiceID, amountTiyin, c.cfg.Secret)
	return signaturesEqual(want, strings.ToLower(sign))
}

// MapStatus translates Multicard's status vocabulary into the internal
// invoice states. Unknown statuses map to PENDING so reconciliation never
// invents a terminal state.
func (c *Client) MapStatus(external string) model.InvoiceStatus {
	switch strings.ToLower(external) {
	case "draft":
		return model.InvoiceCreated
	case "progress":
		return model.InvoicePending
	case "success":
		return model.InvoicePaid
	case "error":
		return model.InvoiceCancelled
	case "revert":
		return model.InvoiceRefunded
	default:
		return model.InvoicePending
	}
}
