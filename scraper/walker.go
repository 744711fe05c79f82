package scraper

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"krisha_radar/httputil"
	"krisha_radar/models"
)

var reListingHref = regexp.MustCompile(`/a/show/(\d+)`)

// pacer is the slice of AdaptiveLimiter the walker needs: search pages
// draw tokens from the same bucket as listing fetches, and a 429 on a
// search page slows that bucket too.
type pacer interface {
	Wait(ctx context.Context) error
	ObserveRateLimited()
}

// Walker enumerates listing ids for one (complex, kind) pair,
// page-by-page, until a page yields nothing or the page cap is hit.
type Walker struct {
	client  *http.Client
	hosts   Hosts
	limiter pacer // set by the orchestrator; nil means unpaced
}

func NewWalker(client *http.Client, hosts Hosts) *Walker {
	return &Walker{client: client, hosts: hosts}
}

// Walk returns a lazy, single-use sequence of flat ids. Ids repeated by
// the portal across pages are yielded once. An HTTP failure on a page
// ends the walk; retries belong to the orchestrator.
func (w *Walker) Walk(ctx context.Context, city, complexID string, kind models.AdKind, maxPages int) iter.Seq[string] {
	if maxPages <= 0 {
		maxPages = 10
	}
	return func(yield func(string) bool) {
		seen := make(map[string]bool)
		for page := 1; page <= maxPages; page++ {
			ids, err := w.fetchSearchPage(ctx, city, complexID, kind, page)
			if err != nil {
				log.Warn().Err(err).
					Str("complex_id", complexID).
					Str("kind", string(kind)).
					Int("page", page).
					Msg("search page failed, ending walk")
				return
			}
			if len(ids) == 0 {
				return
			}
			for _, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				if !yield(id) {
					return
				}
			}
		}
	}
}

func (w *Walker) fetchSearchPage(ctx context.Context, city, complexID string, kind models.AdKind, page int) ([]string, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("das[map.complex]", complexID)
	q.Set("page", strconv.Itoa(page))

	section := "arenda"
	if kind == models.AdKindSale {
		section = "prodazha"
	}
	searchURL := fmt.Sprintf("%s/%s/kvartiry/%s/?%s", w.hosts.Main, section, city, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httputil.DesktopUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests && w.limiter != nil {
			w.limiter.ObserveRateLimited()
		}
		return nil, fmt.Errorf("search page %d: http %d", page, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	return extractListingIDs(doc), nil
}

// extractListingIDs pulls flat ids from the main results container
// only; sidebar and ad anchors never qualify. The container is the
// first element carrying both the list and search-list classes (the
// favorites variant adds a third class and still matches).
func extractListingIDs(doc *goquery.Document) []string {
	container := doc.Find(".a-list.a-search-list").First()
	if container.Length() == 0 {
		return nil
	}

	var ids []string
	container.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if m := reListingHref.FindStringSubmatch(href); m != nil {
			ids = append(ids, m[1])
		}
	})
	return ids
}
