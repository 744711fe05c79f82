package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"krisha_radar/analytics"
	"krisha_radar/services"
)

func newMarketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Cross-snapshot market reports: movers, turnover, rankings",
	}
	cmd.AddCommand(newMoversCmd(), newTurnoverCmd(), newRankingsCmd())
	return cmd
}

func newMoversCmd() *cobra.Command {
	var (
		city  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "movers",
		Short: "Complexes with the largest per-m² price change between the two latest scrapes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := services.NewMarketAnalyzer(a.store).PriceMovers(cmd.Context(), city, limit)
			if err != nil {
				return err
			}

			fmt.Printf("Price movers %s → %s\n", report.OldDate, report.NewDate)
			printMovers("Risers", report.Risers)
			printMovers("Fallers", report.Fallers)
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "almaty", "city slug as used in portal URLs")
	cmd.Flags().IntVar(&limit, "limit", 10, "entries per direction")
	return cmd
}

func printMovers(label string, movers []analytics.PriceMover) {
	fmt.Printf("%s:\n", label)
	if len(movers) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, m := range movers {
		fmt.Printf("  %-30s %+.1f%%  (%.0f → %.0f ₸/m², n=%d/%d)\n",
			m.Complex, m.DeltaPct, m.OldAvgM2, m.NewAvgM2, m.OldSample, m.NewSample)
	}
}

func newTurnoverCmd() *cobra.Command {
	var (
		city    string
		complex string
		days    int
	)
	cmd := &cobra.Command{
		Use:   "turnover",
		Short: "Listing turnover between snapshots (city-wide or one complex over a window)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m := services.NewMarketAnalyzer(a.store)
			var report *services.TurnoverReport
			if complex != "" {
				report, err = m.ComplexTurnover(cmd.Context(), complex, days)
			} else {
				report, err = m.MarketTurnover(cmd.Context(), city)
			}
			if err != nil {
				return err
			}

			t := report.Turnover
			fmt.Printf("Turnover %s → %s\n", report.OldDate, report.NewDate)
			fmt.Printf("  Removed:  %d\n", t.Removed)
			fmt.Printf("  New:      %d\n", t.New)
			fmt.Printf("  Stable:   %d\n", t.Stable)
			fmt.Printf("  Turnover: %.1f%% of %d\n", t.TurnoverPct, t.TotalOld)
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "almaty", "city slug as used in portal URLs")
	cmd.Flags().StringVar(&complex, "complex", "", "restrict to one complex")
	cmd.Flags().IntVar(&days, "days", 30, "window for --complex mode")
	return cmd
}

func newRankingsCmd() *cobra.Command {
	var (
		city string
		by   string
	)
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Rank complexes by gross rental yield or price per m²",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m := services.NewMarketAnalyzer(a.store)
			switch by {
			case "yield":
				rankings, err := m.YieldRankings(cmd.Context(), city)
				if err != nil {
					return err
				}
				for i, r := range rankings {
					fmt.Printf("  %2d. %-30s %.2f%% (rent %.0f, sale %.0f)  [%s]\n",
						i+1, r.Complex, r.YieldPct, r.MeanRent, r.MeanSale,
						a.cfg.Recommendations.YieldVerdict(r.YieldPct/100))
				}
			case "sqm":
				rankings, err := m.SqmRankings(cmd.Context(), city)
				if err != nil {
					return err
				}
				for i, r := range rankings {
					fmt.Printf("  %2d. %-30s mean %.0f ₸/m² (min %.0f, max %.0f, n=%d)\n",
						i+1, r.Complex, r.Mean, r.Min, r.Max, r.Count)
				}
			default:
				return fmt.Errorf("unknown ranking %q (yield or sqm)", by)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "almaty", "city slug as used in portal URLs")
	cmd.Flags().StringVar(&by, "by", "yield", "ranking: yield or sqm")
	return cmd
}
