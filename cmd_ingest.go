package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"krisha_radar/models"
)

func newIngestCmd() *cobra.Command {
	var (
		city        string
		maxPages    int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "run-ingest",
		Short: "Scrape every non-blacklisted complex of a city and store today's snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			orch := newOrchestrator(a, concurrency, maxPages)
			run, err := orch.Run(cmd.Context(), city)
			if run != nil {
				printRunSummary(run)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&city, "city", "almaty", "city slug as used in portal URLs")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "search pages per complex and kind (0 = config default)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent listing fetches (0 = config default)")
	return cmd
}

func printRunSummary(run *models.PipelineRun) {
	fmt.Printf("Run %s (%s)\n", run.RunID, run.City)
	fmt.Printf("  Duration:          %.1fs\n", run.DurationSeconds)
	fmt.Printf("  Complexes:         %d total, %d ok, %d failed\n", run.JKsTotal, run.JKsSuccessful, run.JKsFailed)
	fmt.Printf("  Listings scraped:  %d\n", run.ListingsScraped)
	if run.Cancelled {
		fmt.Println("  Status:            CANCELLED")
	}
	if len(run.ErrorHistogram) == 0 {
		return
	}

	fmt.Println("  Errors:")
	kinds := make([]string, 0, len(run.ErrorHistogram))
	for k := range run.ErrorHistogram {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("    %-20s %d\n", k, run.ErrorHistogram[k])
	}
}
