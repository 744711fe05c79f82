package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"krisha_radar/services"
)

func newBlacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage complexes excluded from ingestion and analytics",
	}
	cmd.AddCommand(newBlacklistListCmd(), newBlacklistAddCmd(), newBlacklistRemoveCmd())
	return cmd
}

func newBlacklistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show blacklisted complexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.store.BlacklistedComplexes(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("Blacklist is empty")
				return nil
			}
			for _, b := range list {
				line := fmt.Sprintf("  %-10s %s", b.ComplexID, b.Name)
				if b.Notes != "" {
					line += "  (" + b.Notes + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newBlacklistAddCmd() *cobra.Command {
	var (
		name      string
		complexID string
		notes     string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Blacklist a complex by name or id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && complexID == "" {
				return fmt.Errorf("one of --name or --complex-id is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := services.NewDirectory(a.store)
			target, err := resolveComplex(cmd, dir, name, complexID)
			if err != nil {
				return err
			}

			if err := a.store.BlacklistComplex(cmd.Context(), target.ComplexID, target.Name, notes); err != nil {
				return err
			}
			fmt.Printf("Blacklisted %s (%s)\n", target.Name, target.ComplexID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "complex display name")
	cmd.Flags().StringVar(&complexID, "complex-id", "", "upstream complex id")
	cmd.Flags().StringVar(&complexID, "jk-id", "", "alias of --complex-id")
	cmd.Flags().StringVar(&notes, "notes", "", "why this complex is excluded")
	return cmd
}

func newBlacklistRemoveCmd() *cobra.Command {
	var (
		name      string
		complexID string
	)
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a complex from the blacklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && complexID == "" {
				return fmt.Errorf("one of --name or --complex-id is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := services.NewDirectory(a.store)
			target, err := resolveComplex(cmd, dir, name, complexID)
			if err != nil {
				return err
			}

			if err := a.store.UnblacklistComplex(cmd.Context(), target.ComplexID); err != nil {
				return err
			}
			fmt.Printf("Removed %s (%s) from blacklist\n", target.Name, target.ComplexID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "complex display name")
	cmd.Flags().StringVar(&complexID, "complex-id", "", "upstream complex id")
	cmd.Flags().StringVar(&complexID, "jk-id", "", "alias of --complex-id")
	return cmd
}

type namedComplex struct {
	ComplexID string
	Name      string
}

func resolveComplex(cmd *cobra.Command, dir *services.Directory, name, complexID string) (*namedComplex, error) {
	if complexID != "" {
		c, err := dir.GetByComplexID(cmd.Context(), complexID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			// allow blacklisting ids the catalog has not seen yet
			return &namedComplex{ComplexID: complexID, Name: name}, nil
		}
		return &namedComplex{ComplexID: c.ComplexID, Name: c.Name}, nil
	}

	c, err := dir.FindByName(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("no complex matches %q", name)
	}
	return &namedComplex{ComplexID: c.ComplexID, Name: c.Name}, nil
}
