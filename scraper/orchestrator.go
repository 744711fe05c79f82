package scraper

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"krisha_radar/models"
)

// Store is the persistence surface the ingestion pipeline needs.
type Store interface {
	ComplexesForCity(ctx context.Context, city string) ([]models.ResidentialComplex, error)
	UpsertRental(ctx context.Context, l *models.Listing, url, queryDate string) error
	UpsertSale(ctx context.Context, l *models.Listing, url, queryDate string) error
	ArchiveMissing(ctx context.Context, complex string, kind models.AdKind, seen map[string]bool) (int, error)
	InsertPipelineRun(ctx context.Context, run *models.PipelineRun) error
}

// Options tune one ingestion run.
type Options struct {
	Workers    int           // concurrent listing fetches
	MaxPages   int           // search pagination cap per (complex, kind)
	MaxRetries int           // attempts per listing, transient errors only
	Delay      time.Duration // base inter-request delay
}

// limiterBurst is the token bucket's burst. It stays fixed no matter
// the worker count; concurrency bounds in-flight work, not request
// rate.
const limiterBurst = 4

// cancelGrace bounds how long already-dispatched listing work may keep
// running after the run context is cancelled.
const cancelGrace = 10 * time.Second

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
}

// Orchestrator runs the full ingestion pipeline for one city: walk the
// search pages of every known complex for both ad kinds, fetch each
// listing through the failover fetcher, persist day snapshots, and
// archive listings that disappeared.
type Orchestrator struct {
	store   Store
	fetcher *Fetcher
	walker  *Walker
	limiter *AdaptiveLimiter
	opts    Options

	mu        sync.Mutex
	histogram map[string]int
	scraped   int
}

func NewOrchestrator(store Store, fetcher *Fetcher, walker *Walker, opts Options) *Orchestrator {
	opts.defaults()
	limiter := NewAdaptiveLimiter(opts.Delay, limiterBurst)
	// search pages go out through the same bucket as listing fetches
	walker.limiter = limiter
	return &Orchestrator{
		store:   store,
		fetcher: fetcher,
		walker:  walker,
		limiter: limiter,
		opts:    opts,
	}
}

// ErrCancelled reports an interrupted run. The partial results and the
// pipeline_runs row are already persisted when it is returned.
var ErrCancelled = errors.New("ingestion cancelled")

// Run executes one ingestion pass and always records a pipeline_runs
// row, cancelled or not. Returns ErrCancelled when ctx ended the run
// early.
func (o *Orchestrator) Run(ctx context.Context, city string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		RunID:     uuid.NewString(),
		City:      city,
		StartedAt: time.Now().UTC(),
	}
	o.mu.Lock()
	o.histogram = make(map[string]int)
	o.scraped = 0
	o.mu.Unlock()

	complexes, err := o.store.ComplexesForCity(ctx, city)
	if err != nil {
		return nil, err
	}
	run.JKsTotal = len(complexes)
	queryDate := models.QueryDateOf(time.Now())

	log.Info().
		Str("run_id", run.RunID).
		Str("city", city).
		Int("jks", len(complexes)).
		Int("workers", o.opts.Workers).
		Msg("ingestion run started")

	cancelled := false
	for _, c := range complexes {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := o.ingestComplex(ctx, city, &c, queryDate); err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			run.JKsFailed++
			log.Error().Err(err).Str("complex", c.Name).Msg("complex ingestion failed")
			continue
		}
		run.JKsSuccessful++
	}

	o.mu.Lock()
	run.ErrorHistogram = o.histogram
	run.ListingsScraped = o.scraped
	o.mu.Unlock()

	run.FinishedAt = time.Now().UTC()
	run.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	run.Cancelled = cancelled

	// Record the run even when ctx is gone; bookkeeping writes get a
	// short grace window of their own.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.store.InsertPipelineRun(recordCtx, run); err != nil {
		log.Error().Err(err).Msg("failed to record pipeline run")
	}

	log.Info().
		Str("run_id", run.RunID).
		Int("scraped", run.ListingsScraped).
		Int("jks_ok", run.JKsSuccessful).
		Int("jks_failed", run.JKsFailed).
		Bool("cancelled", cancelled).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("ingestion run finished")

	if cancelled {
		return run, ErrCancelled
	}
	return run, nil
}

// ingestComplex walks and fetches both ad kinds of one complex. The
// archival sweep only runs after every fetch of the (complex, kind)
// pair has finished, so an in-flight listing is never marked missing.
func (o *Orchestrator) ingestComplex(ctx context.Context, city string, c *models.ResidentialComplex, queryDate string) error {
	for _, kind := range []models.AdKind{models.AdKindRental, models.AdKindSale} {
		seen, stored, err := o.ingestKind(ctx, city, c, kind, queryDate)
		if err != nil {
			return err
		}
		if stored == 0 && len(seen) > 0 {
			// every listing of the pair failed; skip archival so a bad
			// upstream day cannot wipe the active set
			log.Warn().Str("complex", c.Name).Str("kind", string(kind)).
				Int("walked", len(seen)).Msg("no listings stored, skipping archival sweep")
			continue
		}
		archived, err := o.store.ArchiveMissing(ctx, c.Name, kind, seen)
		if err != nil {
			return err
		}
		if archived > 0 {
			log.Info().Str("complex", c.Name).Str("kind", string(kind)).
				Int("archived", archived).Msg("archived disappeared listings")
		}
	}
	return nil
}

func (o *Orchestrator) ingestKind(ctx context.Context, city string, c *models.ResidentialComplex, kind models.AdKind, queryDate string) (map[string]bool, int, error) {
	seen := make(map[string]bool)
	var seenMu sync.Mutex
	stored := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	// cancellation stops dispatch immediately; listings already handed
	// to a worker finish under a detached, grace-bounded context
	fetchCtx, finish := graceContext(ctx)
	defer finish()

	for flatID := range o.walker.Walk(ctx, city, c.ComplexID, kind, o.opts.MaxPages) {
		if gctx.Err() != nil {
			break
		}
		seenMu.Lock()
		seen[flatID] = true
		seenMu.Unlock()

		g.Go(func() error {
			ok := o.processListing(fetchCtx, flatID, c, kind, queryDate)
			if ok {
				seenMu.Lock()
				stored++
				seenMu.Unlock()
			}
			// listing failures go to the histogram, not the group
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return seen, stored, err
	}
	return seen, stored, ctx.Err()
}

// processListing fetches, validates and persists one listing. Returns
// whether a snapshot row was written.
func (o *Orchestrator) processListing(ctx context.Context, flatID string, c *models.ResidentialComplex, kind models.AdKind, queryDate string) bool {
	listing, err := o.fetchWithRetry(ctx, flatID, kind)
	if err != nil {
		o.countError(err)
		return false
	}

	// group under the directory name: the archival sweep and the
	// per-complex analytics both key on it, and the search query was
	// already filtered to this complex
	listing.ResidentialComplex = c.Name
	if listing.City == "" {
		listing.City = c.City
	}

	url := o.fetcher.ListingURL(flatID)
	if kind == models.AdKindRental {
		err = o.store.UpsertRental(ctx, listing, url, queryDate)
	} else {
		err = o.store.UpsertSale(ctx, listing, url, queryDate)
	}
	if err != nil {
		log.Error().Err(err).Str("flat_id", flatID).Msg("snapshot upsert failed")
		o.countBucket("other_error")
		return false
	}

	o.mu.Lock()
	o.scraped++
	o.mu.Unlock()
	return true
}

// fetchWithRetry retries transient failures with exponential backoff
// (2s doubling, 30s cap). Permanent failures return immediately.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, flatID string, kind models.AdKind) (*models.Listing, error) {
	backoff := 2 * time.Second
	var lastErr error

	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, AsFetchError(err)
		}

		listing, err := o.fetcher.Fetch(ctx, flatID, kind)
		if err == nil {
			return listing, nil
		}
		lastErr = err

		fe := AsFetchError(err)
		if fe.Kind == ErrHTTP && fe.Status == http.StatusTooManyRequests {
			o.limiter.ObserveRateLimited()
		}
		if !fe.Transient() || attempt == o.opts.MaxRetries {
			return nil, err
		}

		log.Debug().Str("flat_id", flatID).Int("attempt", attempt).
			Dur("backoff", backoff).Str("error", fe.Bucket()).Msg("retrying listing")
		select {
		case <-ctx.Done():
			return nil, AsFetchError(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
	return nil, lastErr
}

// graceContext derives a context that survives ctx's cancellation by
// up to cancelGrace, so in-flight work drains instead of aborting
// mid-request. The returned stop func releases everything early.
func graceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached, cancel := context.WithCancel(context.WithoutCancel(ctx))
	unregister := context.AfterFunc(ctx, func() {
		timer := time.AfterFunc(cancelGrace, cancel)
		context.AfterFunc(detached, func() { timer.Stop() })
	})
	return detached, func() {
		unregister()
		cancel()
	}
}

func (o *Orchestrator) countError(err error) {
	o.countBucket(AsFetchError(err).Bucket())
}

func (o *Orchestrator) countBucket(bucket string) {
	o.mu.Lock()
	o.histogram[bucket]++
	o.mu.Unlock()
}
