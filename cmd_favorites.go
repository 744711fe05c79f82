package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"krisha_radar/models"
)

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Track individual flats across scrapes",
	}
	cmd.AddCommand(newFavoritesAddCmd(), newFavoritesRemoveCmd(), newFavoritesListCmd())
	return cmd
}

func adKindFlag(kind string) (models.AdKind, error) {
	k := models.AdKind(kind)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q (rental or sale)", kind)
	}
	return k, nil
}

func newFavoritesAddCmd() *cobra.Command {
	var (
		kind  string
		notes string
	)
	cmd := &cobra.Command{
		Use:   "add <flat-id>",
		Short: "Start tracking a flat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := adKindFlag(kind)
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f := models.Favorite{FlatID: args[0], Kind: k, Notes: notes}
			if err := a.store.AddFavorite(cmd.Context(), &f); err != nil {
				return err
			}
			fmt.Printf("Tracking %s %s\n", kind, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "sale", "listing kind: rental or sale")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form note")
	return cmd
}

func newFavoritesRemoveCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "remove <flat-id>",
		Short: "Stop tracking a flat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := adKindFlag(kind)
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.store.RemoveFavorite(cmd.Context(), args[0], k)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "sale", "listing kind: rental or sale")
	return cmd
}

func newFavoritesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Tracked flats with their latest snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			listings, err := a.store.FavoriteListings(cmd.Context())
			if err != nil {
				return err
			}
			if len(listings) == 0 {
				fmt.Println("No favorites yet.")
				return nil
			}
			for _, l := range listings {
				f := l.Favorite
				if l.Snapshot == nil {
					fmt.Printf("  %-12s %-6s (never scraped)", f.FlatID, f.Kind)
				} else {
					s := l.Snapshot
					status := "active"
					if s.Archived {
						status = "archived"
					}
					fmt.Printf("  %-12s %-6s %d ₸  %s %.0f m²  %s  as of %s [%s]",
						f.FlatID, f.Kind, s.Price, s.FlatType, s.Area,
						s.ResidentialComplex, s.QueryDate, status)
				}
				if f.Notes != "" {
					fmt.Printf("  (%s)", f.Notes)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
