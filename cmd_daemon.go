package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"krisha_radar/scheduler"
)

func newDaemonCmd() *cobra.Command {
	var (
		cronSpec   string
		city       string
		runOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run ingestion on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if cronSpec == "" {
				cronSpec = a.cfg.Scheduler.Cron
			}
			if city == "" {
				city = a.cfg.Scheduler.City
			}

			orch := newOrchestrator(a, 0, 0)
			sched := scheduler.New(orch, city)
			if err := sched.Start(cmd.Context(), cronSpec); err != nil {
				return err
			}
			defer sched.Stop()

			if runOnStart {
				go sched.TriggerNow(cmd.Context())
			}

			<-cmd.Context().Done()
			log.Info().Msg("shutting down daemon")
			return nil
		},
	}
	cmd.Flags().StringVar(&cronSpec, "cron", "", "cron expression (default from config)")
	cmd.Flags().StringVar(&city, "city", "", "city slug (default from config)")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "trigger one ingestion immediately")
	return cmd
}
