package paynow

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction statuses reported by the gateway.
const (
	StatusPaid             = "Paid"
	StatusAwaitingDelivery = "Awaiting Delivery"
	StatusDelivered        = "Delivered"
	StatusCreated          = "Created"
	StatusSent             = "Sent"
	StatusCancelled        = "Cancelled"
	StatusFailed           = "Failed"
	StatusExpired          = "Expired"
)

var (
	ErrGatewayRejected    = errors.New("gateway rejected the transaction")
	ErrGatewayUnavailable = errors.New("gateway request failed")
	ErrBadResponseHash    = errors.New("gateway response hash mismatch")
)

type Config struct {
	BaseURL        string
	IntegrationID  string
	IntegrationKey string
	ReturnURL      string
	ResultURL      string
}

// Client wraps the gateway's redirect-initiation, mobile-push-initiation and
// status-poll calls plus inbound webhook verification. It holds no business
// state.
type Client struct {
	cfg  Config
	http *http.Client
}

type RedirectResponse struct {
	RedirectURL string
	PollURL     string
}

type PushResponse struct {
	PollURL      string
	Instructions string
}

type PollResult struct {
	Reference  string
	GatewayRef string
	Amount     decimal.Decimal
	Status     string
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if strings.TrimSpace(cfg.IntegrationID) == "" || strings.TrimSpace(cfg.IntegrationKey) == "" {
		return nil, fmt.Errorf("gateway integration credentials are required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{cfg: cfg, http: httpClient}, nil
}

func (c *Client) InitiateRedirect(ctx context.Context, reference string, amount decimal.Decimal, email string) (RedirectResponse, error) {
	fields := []field{
		{"resulturl", c.cfg.ResultURL},
		{"returnurl", c.cfg.ReturnURL},
		{"reference", reference},
		{"amount", amount.StringFixed(2)},
		{"id", c.cfg.IntegrationID},
		{"additionalinfo", ""},
		{"authemail", email},
		{"status", "Message"},
	}

	values, err := c.post(ctx, "/interface/initiatetransaction", fields)
	if err != nil {
		return RedirectResponse{}, err
	}

	return RedirectResponse{
		RedirectURL: values.Get("browserurl"),
		PollURL:     values.Get("pollurl"),
	}, nil
}

func (c *Client) InitiateMobilePush(ctx context.Context, reference string, amount decimal.Decimal, phone, email string) (PushResponse, error) {
	fields := []field{
		{"resulturl", c.cfg.ResultURL},
		{"returnurl", c.cfg.ReturnURL},
		{"reference", reference},
		{"amount", amount.StringFixed(2)},
		{"id", c.cfg.IntegrationID},
		{"additionalinfo", ""},
		{"authemail", email},
		{"phone", phone},
		{"method", "ecocash"},
		{"status", "Message"},
	}

	values, err := c.post(ctx, "/interface/remotetransaction", fields)
	if err != nil {
		return PushResponse{}, err
	}

	return PushResponse{
		PollURL:      values.Get("pollurl"),
		Instructions: values.Get("instructions"),
	}, nil
}

// Poll fetches the current transaction state from the poll URL handed out at
// initiation time.
func (c *Client) Poll(ctx context.Context, pollURL string) (PollResult, error) {
	if strings.TrimSpace(pollURL) == "" {
		return PollResult{}, fmt.Errorf("poll url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pollURL, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return PollResult{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PollResult{}, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return PollResult{}, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	values, ok := c.verifySignedBody(string(body))
	if !ok {
		return PollResult{}, ErrBadResponseHash
	}

	amount := decimal.Zero
	if raw := values.Get("amount"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return PollResult{}, fmt.Errorf("parse poll amount %q: %w", raw, err)
		}
		amount = parsed
	}

	return PollResult{
		Reference:  values.Get("reference"),
		GatewayRef: values.Get("paynowreference"),
		Amount:     amount,
		Status:     values.Get("status"),
	}, nil
}

// VerifyWebhook checks the SHA-512 signature of a raw status callback body.
// It returns the parsed values and whether the signature is authentic. Field
// order in the raw body is significant for the hash.
func (c *Client) VerifyWebhook(rawBody string) (url.Values, bool) {
	return c.verifySignedBody(rawBody)
}

type field struct {
	key   string
	value string
}

func (c *Client) post(ctx context.Context, path string, fields []field) (url.Values, error) {
	form := url.Values{}
	var concat strings.Builder
	for _, f := range fields {
		form.Set(f.key, f.value)
		concat.WriteString(f.value)
	}
	form.Set("hash", c.hash(concat.String()))

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse gateway response: %w", err)
	}

	if !strings.EqualFold(values.Get("status"), "ok") {
		reason := values.Get("error")
		if reason == "" {
			reason = values.Get("status")
		}
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, reason)
	}

	return values, nil
}

// verifySignedBody recomputes the hash over the values in the order they
// appear in the raw body, excluding the hash field itself.
func (c *Client) verifySignedBody(rawBody string) (url.Values, bool) {
	values, err := url.ParseQuery(rawBody)
	if err != nil {
		return nil, false
	}

	provided := values.Get("hash")
	if provided == "" {
		return nil, false
	}

	var concat strings.Builder
	for _, pair := range strings.Split(rawBody, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if strings.EqualFold(key, "hash") {
			continue
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return nil, false
		}
		concat.WriteString(decoded)
	}

	expected := c.hash(concat.String())
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(provided))) != 1 {
		return nil, false
	}

	return values, true
}

func (c *Client) hash(concatenated string) string {
	sum := sha512.Sum512([]byte(concatenated + c.cfg.IntegrationKey))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
