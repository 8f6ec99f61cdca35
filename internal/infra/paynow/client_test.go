package paynow

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const testIntegrationKey = "secret-integration-key"

func TestVerifyWebhookAcceptsAuthenticBody(t *testing.T) {
	client := newTestClient(t, "http://gateway.local")

	body := signedBody(t, []string{
		"reference=ref-123",
		"paynowreference=889900",
		"amount=50.00",
		"status=Paid",
	})

	values, ok := client.VerifyWebhook(body)
	if !ok {
		t.Fatalf("expected authentic webhook to verify")
	}
	if values.Get("reference") != "ref-123" {
		t.Fatalf("unexpected reference: %s", values.Get("reference"))
	}
	if values.Get("status") != "Paid" {
		t.Fatalf("unexpected status: %s", values.Get("status"))
	}
}

func TestVerifyWebhookRejectsTamperedBody(t *testing.T) {
	client := newTestClient(t, "http://gateway.local")

	body := signedBody(t, []string{
		"reference=ref-123",
		"amount=50.00",
		"status=Paid",
	})
	tampered := strings.Replace(body, "amount=50.00", "amount=500.00", 1)

	if _, ok := client.VerifyWebhook(tampered); ok {
		t.Fatalf("expected tampered webhook to be rejected")
	}
}

func TestVerifyWebhookRejectsMissingHash(t *testing.T) {
	client := newTestClient(t, "http://gateway.local")

	if _, ok := client.VerifyWebhook("reference=ref-123&status=Paid"); ok {
		t.Fatalf("expected body without hash to be rejected")
	}
}

func TestInitiateRedirectParsesPollHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interface/initiatetransaction" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("amount") != "120.00" {
			t.Errorf("unexpected amount: %s", r.PostForm.Get("amount"))
		}
		if r.PostForm.Get("hash") == "" {
			t.Errorf("expected request hash")
		}

		resp := url.Values{}
		resp.Set("status", "Ok")
		resp.Set("browserurl", "https://gateway.local/pay/abc")
		resp.Set("pollurl", "https://gateway.local/poll/abc")
		_, _ = fmt.Fprint(w, resp.Encode())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	res, err := client.InitiateRedirect(context.Background(), "ref-1", decimal.RequireFromString("120.00"), "member@example.com")
	if err != nil {
		t.Fatalf("initiate redirect: %v", err)
	}
	if res.RedirectURL != "https://gateway.local/pay/abc" {
		t.Fatalf("unexpected redirect url: %s", res.RedirectURL)
	}
	if res.PollURL != "https://gateway.local/poll/abc" {
		t.Fatalf("unexpected poll url: %s", res.PollURL)
	}
}

func TestInitiateRedirectSurfacesGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := url.Values{}
		resp.Set("status", "Error")
		resp.Set("error", "invalid integration id")
		_, _ = fmt.Fprint(w, resp.Encode())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.InitiateRedirect(context.Background(), "ref-1", decimal.RequireFromString("10.00"), "")
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("expected gateway rejection, got %v", err)
	}
}

func TestPollParsesSignedStatus(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	body = signedBody(t, []string{
		"reference=ref-9",
		"paynowreference=112233",
		"amount=75.50",
		"status=Awaiting Delivery",
	})

	res, err := client.Poll(context.Background(), server.URL+"/poll/xyz")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.Status != StatusAwaitingDelivery {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if !res.Amount.Equal(decimal.RequireFromString("75.50")) {
		t.Fatalf("unexpected amount: %s", res.Amount)
	}
}

func TestPollRejectsBadHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "reference=ref-9&status=Paid&hash=DEADBEEF")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.Poll(context.Background(), server.URL+"/poll/xyz"); !errors.Is(err, ErrBadResponseHash) {
		t.Fatalf("expected bad hash error, got %v", err)
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL:        baseURL,
		IntegrationID:  "1234",
		IntegrationKey: testIntegrationKey,
		ReturnURL:      "https://shop.local/return",
		ResultURL:      "https://shop.local/webhook",
	}, http.DefaultClient)
	if err != nil {
		t.Fatalf("create gateway client: %v", err)
	}
	return client
}

// signedBody builds a raw url-encoded body with a valid trailing hash, the
// way the gateway signs its callbacks.
func signedBody(t *testing.T, pairs []string) string {
	t.Helper()

	var concat strings.Builder
	var encoded []string
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		concat.WriteString(value)
		encoded = append(encoded, key+"="+url.QueryEscape(value))
	}

	sum := sha512.Sum512([]byte(concat.String() + testIntegrationKey))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	return strings.Join(encoded, "&") + "&hash=" + hash
}
