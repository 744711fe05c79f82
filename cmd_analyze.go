package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"krisha_radar/analytics"
	"krisha_radar/models"
	"krisha_radar/services"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		complexName string
		minYield    float64
		discount    float64
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Rental-yield and sales-price analysis for one complex",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := services.NewDirectory(a.store)
			c, err := dir.FindByName(cmd.Context(), complexName)
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("no complex matches %q", complexName)
			}

			rentals, err := a.store.LatestRentalsForComplex(cmd.Context(), c.Name)
			if err != nil {
				return err
			}
			sales, err := a.store.LatestSalesForComplex(cmd.Context(), c.Name, c.City)
			if err != nil {
				return err
			}

			fmt.Printf("%s (%s) — %d rentals, %d sales\n\n", c.Name, c.City, len(rentals), len(sales))

			tolerance := a.cfg.Analysis.DefaultAreaTolerance
			rentalMarket := analytics.AnalyzeRentalMarket(rentals, sales, minYield, tolerance)
			printRentalMarket(&rentalMarket, a.cfg.Recommendations.YieldVerdict)

			salesMarket := analytics.AnalyzeSalesMarket(sales, discount)
			printSalesMarket(&salesMarket, a.cfg.Recommendations.DealVerdict)
			return nil
		},
	}
	cmd.Flags().StringVar(&complexName, "complex", "", "complex display name")
	cmd.Flags().Float64Var(&minYield, "min-yield", 0.07, "yield fraction flagging a rental opportunity")
	cmd.Flags().Float64Var(&discount, "discount", 0.15, "discount fraction flagging a sale opportunity")
	cmd.MarkFlagRequired("complex")
	return cmd
}

func sortedTypes[V any](m map[models.FlatType]V) []models.FlatType {
	types := make([]models.FlatType, 0, len(m))
	for ft := range m {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func printRentalMarket(m *analytics.RentalMarket, verdict func(float64) string) {
	fmt.Println("Rental yields:")
	if m.Overall.Count == 0 {
		fmt.Println("  no rentals with comparable sales")
	} else {
		fmt.Printf("  overall: median %.2f%%, mean %.2f%% (n=%d)\n",
			m.Overall.Median*100, m.Overall.Mean*100, m.Overall.Count)
		for _, ft := range sortedTypes(m.ByType) {
			s := m.ByType[ft]
			fmt.Printf("  %-6s median %.2f%%, range %.2f–%.2f%% (n=%d)\n",
				ft, s.Median*100, s.Min*100, s.Max*100, s.Count)
		}
	}

	for _, ft := range sortedTypes(m.Opportunities) {
		for _, o := range m.Opportunities[ft] {
			fmt.Printf("  * %s: %.2f%% yield at %d ₸/mo  [%s]\n",
				o.Snapshot.FlatID, o.Yield*100, o.Snapshot.Price, verdict(o.Yield))
		}
	}
	fmt.Println()
}

func printSalesMarket(m *analytics.SalesMarket, verdict func(float64) string) {
	fmt.Println("Sales prices:")
	if len(m.ByType) == 0 {
		fmt.Println("  no active sales")
		return
	}
	for _, ft := range sortedTypes(m.ByType) {
		s := m.ByType[ft]
		fmt.Printf("  %-6s median %.0f, mean %.0f, range %.0f–%.0f (n=%d)\n",
			ft, s.Median, s.Mean, s.Min, s.Max, s.Count)
	}
	for _, o := range m.Opportunities {
		fmt.Printf("  * %s: %d ₸, -%.1f%% vs median  [%s]\n",
			o.FlatID, o.Price, o.DiscountVsMedian, verdict(o.DiscountVsMedian))
	}
}
