package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"krisha_radar/httputil"
	"krisha_radar/models"
)

// Hosts are the two upstream origins: the mobile host serves the
// analytics endpoint, the main host serves rendered pages and search.
type Hosts struct {
	Main   string // e.g. https://krisha.kz
	Mobile string // e.g. https://m.krisha.kz
}

// Fetcher obtains one Listing per flat id. It tries the analytics
// endpoint first and falls back to the rendered page on any failure;
// callers see exactly one typed error.
type Fetcher struct {
	client *http.Client
	hosts  Hosts
}

func NewFetcher(client *http.Client, hosts Hosts) *Fetcher {
	return &Fetcher{client: client, hosts: hosts}
}

// Fetch returns the parsed Listing for flatID or a *FetchError. It
// never returns a partially-filled Listing.
func (f *Fetcher) Fetch(ctx context.Context, flatID string, kind models.AdKind) (*models.Listing, error) {
	listing, analyticsErr := f.fetchAnalytics(ctx, flatID, kind)
	if analyticsErr == nil {
		log.Debug().Str("flat_id", flatID).Str("method", "analytics").Msg("listing fetched")
		return listing, nil
	}
	if ctx.Err() != nil {
		return nil, AsFetchError(analyticsErr)
	}

	listing, pageErr := f.fetchPage(ctx, flatID, kind)
	if pageErr == nil {
		log.Debug().Str("flat_id", flatID).Str("method", "page").Msg("listing fetched via fallback")
		return listing, nil
	}

	log.Debug().Str("flat_id", flatID).
		AnErr("analytics_err", analyticsErr).
		AnErr("page_err", pageErr).
		Msg("both sources failed")
	return nil, AsFetchError(pageErr)
}

func (f *Fetcher) fetchAnalytics(ctx context.Context, flatID string, kind models.AdKind) (*models.Listing, error) {
	url := fmt.Sprintf("%s/analytics/aPriceAnalysis/?id=%s", f.hosts.Mobile, flatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrOther, Cause: err}
	}
	req.Header.Set("User-Agent", httputil.DesktopUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", f.hosts.Mobile+"/")
	req.Header.Set("Origin", f.hosts.Mobile)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: ErrHTTP, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return ParseAnalyticsPayload(flatID, body, kind == models.AdKindRental)
}

func (f *Fetcher) fetchPage(ctx context.Context, flatID string, kind models.AdKind) (*models.Listing, error) {
	url := fmt.Sprintf("%s/a/show/%s", f.hosts.Main, flatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrOther, Cause: err}
	}
	req.Header.Set("User-Agent", httputil.DesktopUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: ErrHTTP, Status: resp.StatusCode}
	}

	return ParseListingPage(flatID, resp.Body, kind == models.AdKindRental)
}

// ListingURL is the canonical public URL for a flat id.
func (f *Fetcher) ListingURL(flatID string) string {
	return fmt.Sprintf("%s/a/show/%s", f.hosts.Main, flatID)
}
