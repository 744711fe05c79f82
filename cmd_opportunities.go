package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"krisha_radar/services"
)

func newOpportunitiesCmd() *cobra.Command {
	var (
		city        string
		discount    float64
		topN        int
		maxDiscount float64
		output      string
	)
	cmd := &cobra.Command{
		Use:   "find-opportunities",
		Short: "Rank under-market sale listings across all complexes and export them as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			runner := services.NewOpportunityRunner(a.store, services.NewDirectory(a.store))
			run, err := runner.Run(cmd.Context(), services.OpportunityParams{
				City:        city,
				Discount:    discount,
				TopN:        topN,
				MaxDiscount: maxDiscount,
			})
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			if err := services.WriteCSV(f, run.Opportunities); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}

			fmt.Printf("Run timestamp:       %s\n", run.Timestamp)
			fmt.Printf("Complexes analyzed:  %d\n", run.JKsAnalyzed)
			fmt.Printf("Total opportunities: %d\n", len(run.Opportunities))
			fmt.Printf("CSV written to:      %s\n", output)

			for _, o := range run.Opportunities {
				line := fmt.Sprintf("  #%-3d %s  %s  %.1f m²  %d ₸  -%.1f%% vs median  [%s]",
					o.Rank, o.FlatID, o.ResidentialComplex, o.Area, o.Price,
					o.DiscountVsMedian, a.cfg.Recommendations.DealVerdict(o.DiscountVsMedian))
				if usd, ok := runner.PriceInUSD(cmd.Context(), o.Price); ok {
					line += fmt.Sprintf("  (~$%.0f)", usd)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "almaty", "city slug as used in portal URLs")
	cmd.Flags().Float64Var(&discount, "discount", 0.15, "opportunity rule: price <= bucket mean × (1 − discount)")
	cmd.Flags().IntVar(&topN, "top-n", 50, "keep the N deepest discounts")
	cmd.Flags().Float64Var(&maxDiscount, "max-discount", 50, "drop discounts above this percent as likely fraud")
	cmd.Flags().StringVar(&output, "output", "opportunities.csv", "CSV output path")
	return cmd
}
