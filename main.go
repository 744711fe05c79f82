package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"krisha_radar/config"
	"krisha_radar/httputil"
	"krisha_radar/logging"
	"krisha_radar/models"
	"krisha_radar/scraper"
	"krisha_radar/services"
	"krisha_radar/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, scraper.ErrCancelled) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired components every command needs.
type app struct {
	cfg   *config.Config
	store *storage.Store
	logs  *logging.RotatingWriter
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logs != nil {
		a.logs.Close()
	}
}

var dbFlag string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "krisha_radar",
		Short:         "Residential listing scraper and market analyzer for krisha.kz",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbFlag, "db", "", "database path (overrides config)")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newOpportunitiesCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newMarketCmd())
	root.AddCommand(newFavoritesCmd())
	root.AddCommand(newBlacklistCmd())
	root.AddCommand(newCreateDBCmd())
	root.AddCommand(newDaemonCmd())
	return root
}

// openApp loads config, configures logging and opens the store.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logs, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	if dbFlag != "" {
		cfg.Database.Path = dbFlag
	}
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		if logs != nil {
			logs.Close()
		}
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return &app{cfg: cfg, store: store, logs: logs}, nil
}

// ingestionStore narrows the orchestrator's complex listing to the
// non-blacklisted working set.
type ingestionStore struct {
	*storage.Store
	dir *services.Directory
}

func (s ingestionStore) ComplexesForCity(ctx context.Context, city string) ([]models.ResidentialComplex, error) {
	return s.dir.ListExcludingBlacklists(ctx, city)
}

func newOrchestrator(a *app, workers, maxPages int) *scraper.Orchestrator {
	hosts := scraper.Hosts{Main: a.cfg.Hosts.Main, Mobile: a.cfg.Hosts.Mobile}
	if workers <= 0 {
		workers = a.cfg.Scraping.Concurrency
	}
	if maxPages <= 0 {
		maxPages = a.cfg.Scraping.MaxPagesDefault
	}
	client := httputil.NewScrapingClient(a.cfg.Scraping.Timeout(), workers)

	return scraper.NewOrchestrator(
		ingestionStore{Store: a.store, dir: services.NewDirectory(a.store)},
		scraper.NewFetcher(client, hosts),
		scraper.NewWalker(client, hosts),
		scraper.Options{
			Workers:    workers,
			MaxPages:   maxPages,
			MaxRetries: a.cfg.Scraping.MaxRetries,
			Delay:      a.cfg.Scraping.Delay(),
		})
}
