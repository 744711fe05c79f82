package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"krisha_radar/config"
	"krisha_radar/logging"
	"krisha_radar/storage"
)

func newCreateDBCmd() *cobra.Command {
	var (
		force      bool
		sampleData bool
	)
	cmd := &cobra.Command{
		Use:   "create-db",
		Short: "Initialize the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logs, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
			if err != nil {
				return err
			}
			if logs != nil {
				defer logs.Close()
			}
			if dbFlag != "" {
				cfg.Database.Path = dbFlag
			}

			store, err := storage.CreateDatabase(cfg.Database.Path, force)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Printf("Database created at %s\n", cfg.Database.Path)

			if sampleData {
				if err := store.SeedSampleData(cmd.Context()); err != nil {
					return fmt.Errorf("seed sample data: %w", err)
				}
				fmt.Println("Sample data loaded")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing database file")
	cmd.Flags().BoolVar(&sampleData, "sample-data", false, "load a small demo dataset")
	return cmd
}
