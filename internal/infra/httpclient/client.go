package httpclient

import (
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// New returns an HTTP client for outbound gateway calls. A zero timeout
// falls back to a bounded default so a hung gateway can never pin a request
// goroutine forever.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
