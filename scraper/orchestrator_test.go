package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"krisha_radar/models"
)

type memStore struct {
	mu        sync.Mutex
	complexes []models.ResidentialComplex
	rentals   map[string]*models.Listing
	sales     map[string]*models.Listing
	active    map[string]map[string]bool // kind -> flat_id -> active
	runs      []models.PipelineRun
}

func newMemStore(complexes ...models.ResidentialComplex) *memStore {
	return &memStore{
		complexes: complexes,
		rentals:   make(map[string]*models.Listing),
		sales:     make(map[string]*models.Listing),
		active: map[string]map[string]bool{
			"rental": {},
			"sale":   {},
		},
	}
}

func (m *memStore) ComplexesForCity(context.Context, string) ([]models.ResidentialComplex, error) {
	return m.complexes, nil
}

func (m *memStore) UpsertRental(_ context.Context, l *models.Listing, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rentals[l.FlatID] = l
	m.active["rental"][l.FlatID] = true
	return nil
}

func (m *memStore) UpsertSale(_ context.Context, l *models.Listing, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[l.FlatID] = l
	m.active["sale"][l.FlatID] = true
	return nil
}

func (m *memStore) ArchiveMissing(_ context.Context, _ string, kind models.AdKind, seen map[string]bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	archived := 0
	for id, active := range m.active[string(kind)] {
		if active && !seen[id] {
			m.active[string(kind)][id] = false
			archived++
		}
	}
	return archived, nil
}

func (m *memStore) InsertPipelineRun(_ context.Context, run *models.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

// portalServer simulates both hosts: search pages, analytics payloads
// and listing pages keyed by flat id.
func portalServer(t *testing.T, searchIDs map[string][]string, failIDs map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/analytics/"):
			id := r.URL.Query().Get("id")
			if status, ok := failIDs[id]; ok {
				w.WriteHeader(status)
				return
			}
			fmt.Fprintf(w, `{"advert": {"title": "2-комнатная квартира, 52 м², 2/12 этаж", "price": "500&nbsp;000&nbsp;₸"}}`)
		case strings.HasPrefix(r.URL.Path, "/a/show/"):
			id := strings.TrimPrefix(r.URL.Path, "/a/show/")
			if status, ok := failIDs[id]; ok {
				w.WriteHeader(status)
				return
			}
			fmt.Fprint(w, pageBody)
		default: // search page
			kind := "sale"
			if strings.HasPrefix(r.URL.Path, "/arenda/") {
				kind = "rental"
			}
			if r.URL.Query().Get("page") != "1" {
				fmt.Fprint(w, searchPage())
				return
			}
			fmt.Fprint(w, searchPage(searchIDs[kind]...))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOrchestrator(t *testing.T, store Store, srv *httptest.Server) *Orchestrator {
	t.Helper()
	hosts := Hosts{Main: srv.URL, Mobile: srv.URL}
	client := &http.Client{Timeout: 5 * time.Second}
	return NewOrchestrator(store, NewFetcher(client, hosts), NewWalker(client, hosts), Options{
		Workers:  2,
		MaxPages: 3,
		Delay:    time.Millisecond,
	})
}

func TestRunPersistsAndArchives(t *testing.T) {
	store := newMemStore(models.ResidentialComplex{ComplexID: "42", Name: "Meridian", City: "almaty"})
	// "900" was active from an earlier day but is gone from the walk
	store.active["sale"]["900"] = true
	store.sales["900"] = &models.Listing{FlatID: "900"}

	srv := portalServer(t, map[string][]string{
		"rental": {"100", "101"},
		"sale":   {"200"},
	}, nil)

	run, err := testOrchestrator(t, store, srv).Run(context.Background(), "almaty")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if run.ListingsScraped != 3 {
		t.Errorf("scraped = %d, want 3", run.ListingsScraped)
	}
	if run.JKsSuccessful != 1 || run.JKsFailed != 0 {
		t.Errorf("jks: %d ok, %d failed", run.JKsSuccessful, run.JKsFailed)
	}
	if len(store.rentals) != 2 || len(store.sales) != 2 {
		t.Errorf("stored: %d rentals, %d sales", len(store.rentals), len(store.sales))
	}
	if store.active["sale"]["900"] {
		t.Error("flat 900 disappeared from the walk and must be archived")
	}
	if !store.active["sale"]["200"] {
		t.Error("walked flat must stay active")
	}
	if len(store.runs) != 1 {
		t.Fatalf("want exactly one pipeline run row, got %d", len(store.runs))
	}
	if store.runs[0].Cancelled {
		t.Error("run must not be marked cancelled")
	}
}

func TestRunCountsErrorsAndContinues(t *testing.T) {
	store := newMemStore(models.ResidentialComplex{ComplexID: "42", Name: "Meridian", City: "almaty"})
	srv := portalServer(t, map[string][]string{
		"sale": {"200", "404404"},
	}, map[string]int{"404404": http.StatusNotFound})

	run, err := testOrchestrator(t, store, srv).Run(context.Background(), "almaty")
	if err != nil {
		t.Fatalf("a single listing failure must not abort the run: %v", err)
	}

	if run.ListingsScraped != 1 {
		t.Errorf("scraped = %d, want 1", run.ListingsScraped)
	}
	if run.ErrorHistogram["http_404"] != 1 {
		t.Errorf("histogram = %v, want http_404: 1", run.ErrorHistogram)
	}
	if run.JKsSuccessful != 1 {
		t.Errorf("complex must still count as successful, got %+v", run)
	}
}

func TestRunCancelledStillWritesRunRow(t *testing.T) {
	store := newMemStore(models.ResidentialComplex{ComplexID: "42", Name: "Meridian", City: "almaty"})
	srv := portalServer(t, map[string][]string{"sale": {"200"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := testOrchestrator(t, store, srv).Run(ctx, "almaty")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
	if run == nil || !run.Cancelled {
		t.Error("cancelled run must be flagged")
	}
	if len(store.runs) != 1 {
		t.Errorf("cancelled run must still write its pipeline row, got %d", len(store.runs))
	}
}

func TestRunSharesBucketWithWalker(t *testing.T) {
	store := newMemStore()
	srv := portalServer(t, nil, nil)

	o := testOrchestrator(t, store, srv)
	if o.walker.limiter != o.limiter {
		t.Error("search pages must draw from the same bucket as listing fetches")
	}
}

func TestBurstIndependentOfWorkers(t *testing.T) {
	store := newMemStore()
	srv := portalServer(t, nil, nil)
	hosts := Hosts{Main: srv.URL, Mobile: srv.URL}
	client := &http.Client{Timeout: 5 * time.Second}

	o := NewOrchestrator(store, NewFetcher(client, hosts), NewWalker(client, hosts), Options{
		Workers: 8,
		Delay:   time.Millisecond,
	})
	if got := o.limiter.limiter.Burst(); got != 4 {
		t.Errorf("bucket burst = %d, want 4 regardless of worker count", got)
	}
}

func TestRunGroupsUnderDirectoryName(t *testing.T) {
	store := newMemStore(models.ResidentialComplex{ComplexID: "42", Name: "Meridian", City: "almaty"})
	// the advertisement text names a different complex than the
	// directory entry whose search query produced it
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/analytics/"):
			fmt.Fprint(w, `{"advert": {"title": "2-комнатная квартира, 52 м², 2/12 этаж", "description": "жил. комплекс Другой", "price": "500&nbsp;000&nbsp;₸"}}`)
		case strings.HasPrefix(r.URL.Path, "/arenda/") && r.URL.Query().Get("page") == "1":
			fmt.Fprint(w, searchPage("100"))
		default:
			fmt.Fprint(w, searchPage())
		}
	}))
	t.Cleanup(srv.Close)

	if _, err := testOrchestrator(t, store, srv).Run(context.Background(), "almaty"); err != nil {
		t.Fatal(err)
	}
	l := store.rentals["100"]
	if l == nil {
		t.Fatal("listing 100 must be stored")
	}
	if l.ResidentialComplex != "Meridian" {
		t.Errorf("complex = %q; rows must group under the directory name the archival sweep keys on", l.ResidentialComplex)
	}
}

func TestRunDrainsInFlightOnCancel(t *testing.T) {
	store := newMemStore(models.ResidentialComplex{ComplexID: "42", Name: "Meridian", City: "almaty"})

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/analytics/"):
			once.Do(func() { close(started) })
			<-release
			fmt.Fprint(w, `{"advert": {"title": "2-комнатная квартира, 52 м², 2/12 этаж", "price": "500&nbsp;000&nbsp;₸"}}`)
		case strings.HasPrefix(r.URL.Path, "/arenda/") && r.URL.Query().Get("page") == "1":
			fmt.Fprint(w, searchPage("100"))
		default:
			fmt.Fprint(w, searchPage())
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
		close(release)
	}()

	run, err := testOrchestrator(t, store, srv).Run(ctx, "almaty")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
	if store.rentals["100"] == nil {
		t.Error("a listing already handed to a worker must finish, not abort mid-request")
	}
	if run.ListingsScraped != 1 {
		t.Errorf("scraped = %d, want 1", run.ListingsScraped)
	}
}

func TestRunEmptyCity(t *testing.T) {
	store := newMemStore()
	srv := portalServer(t, nil, nil)

	run, err := testOrchestrator(t, store, srv).Run(context.Background(), "almaty")
	if err != nil {
		t.Fatal(err)
	}
	if run.JKsTotal != 0 || run.ListingsScraped != 0 {
		t.Errorf("run: %+v", run)
	}
}
