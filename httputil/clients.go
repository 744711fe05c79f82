package httputil

import (
	"net/http"
	"time"
)

// DesktopUserAgent is sent on every outbound request; the portal serves
// reduced pages to unknown agents.
const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewScrapingClient returns the client used against the portal. One
// keep-alive connection per worker; redirects are not followed so that
// delisted pages (301/302) surface as statuses, not as the landing page.
func NewScrapingClient(timeout time.Duration, workers int) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: workers,
		MaxConnsPerHost:     workers,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   false,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
