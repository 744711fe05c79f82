package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"krisha_radar/models"
)

func searchPage(ids ...string) string {
	page := `<html><body>
		<div class="offer__sidebar"><a href="/a/show/777777">Реклама</a></div>
		<div class="a-list a-search-list">`
	for _, id := range ids {
		page += fmt.Sprintf(`<div class="a-card"><a href="/a/show/%s">Квартира</a></div>`, id)
	}
	page += `</div></body></html>`
	return page
}

func testWalker(t *testing.T, handler http.HandlerFunc) *Walker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := &http.Client{Timeout: 5 * time.Second}
	return NewWalker(client, Hosts{Main: srv.URL})
}

func collect(seq func(func(string) bool)) []string {
	var ids []string
	seq(func(id string) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func TestWalkStopsOnEmptyPage(t *testing.T) {
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if r.URL.Query().Get("das[map.complex]") != "42" {
			t.Errorf("complex id missing: %s", r.URL.RawQuery)
		}
		switch page {
		case 1:
			fmt.Fprint(rw, searchPage("100", "200", "300"))
		default:
			fmt.Fprint(rw, searchPage())
		}
	})

	ids := collect(w.Walk(context.Background(), "almaty", "42", models.AdKindRental, 10))
	want := []string{"100", "200", "300"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestWalkDeduplicatesAcrossPages(t *testing.T) {
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch page {
		case 1:
			// duplicate inside the page too
			fmt.Fprint(rw, searchPage("100", "100", "200"))
		case 2:
			fmt.Fprint(rw, searchPage("200", "300"))
		default:
			fmt.Fprint(rw, searchPage())
		}
	})

	ids := collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 10))
	if len(ids) != 3 {
		t.Fatalf("want 3 unique ids, got %v", ids)
	}
}

func TestWalkRespectsMaxPages(t *testing.T) {
	var pagesServed int
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		pagesServed++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		fmt.Fprint(rw, searchPage(strconv.Itoa(1000+page)))
	})

	ids := collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 2))
	if pagesServed != 2 {
		t.Errorf("pages fetched = %d, want 2", pagesServed)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}
}

func TestWalkIgnoresSidebarAnchors(t *testing.T) {
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(rw, searchPage("100"))
			return
		}
		fmt.Fprint(rw, searchPage())
	})

	ids := collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 10))
	for _, id := range ids {
		if id == "777777" {
			t.Error("sidebar ad anchor leaked into the walk")
		}
	}
}

func TestWalkEndsOnHTTPFailure(t *testing.T) {
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(rw, searchPage("100"))
			return
		}
		rw.WriteHeader(http.StatusServiceUnavailable)
	})

	ids := collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 10))
	if len(ids) != 1 {
		t.Errorf("walk must end at the failing page, got %v", ids)
	}
}

type countingPacer struct {
	waits   int
	limited int
}

func (p *countingPacer) Wait(context.Context) error { p.waits++; return nil }
func (p *countingPacer) ObserveRateLimited()        { p.limited++ }

func TestWalkDrawsSearchTokens(t *testing.T) {
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page <= 3 {
			fmt.Fprint(rw, searchPage(strconv.Itoa(1000+page)))
			return
		}
		fmt.Fprint(rw, searchPage())
	})
	p := &countingPacer{}
	w.limiter = p

	collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 10))
	if p.waits != 4 {
		t.Errorf("every page fetch must draw a token, got %d waits for 4 fetches", p.waits)
	}
}

func TestWalkReports429ToLimiter(t *testing.T) {
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTooManyRequests)
	})
	p := &countingPacer{}
	w.limiter = p

	ids := collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 10))
	if len(ids) != 0 {
		t.Errorf("ids = %v", ids)
	}
	if p.limited != 1 {
		t.Errorf("a 429 search page must slow the bucket, got %d observations", p.limited)
	}
}

func TestWalkSectionByKind(t *testing.T) {
	var paths []string
	w := testWalker(t, func(rw http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(rw, searchPage())
	})

	collect(w.Walk(context.Background(), "almaty", "42", models.AdKindRental, 1))
	collect(w.Walk(context.Background(), "almaty", "42", models.AdKindSale, 1))

	if len(paths) != 2 || paths[0] != "/arenda/kvartiry/almaty/" || paths[1] != "/prodazha/kvartiry/almaty/" {
		t.Errorf("paths = %v", paths)
	}
}
