package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/studio-adp-api/internal/repository"
	"github.com/noah-isme/studio-adp-api/internal/service"
)

func purgeTokensCmd() *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete attendance codes whose window closed before the retention period",
		Long: `Delete stale attendance codes.

The API runs the same purge periodically. Use this to clean up on demand,
for example after changing ATTENDANCE_PURGE_RETENTION.

Examples:
  studioctl purge-tokens
  studioctl purge-tokens --retention 48h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync() //nolint:errcheck

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			attendanceCfg := e.cfg.Attendance
			if retention > 0 {
				attendanceCfg.PurgeRetention = retention
			}
			svc := service.NewAttendanceService(service.AttendanceServiceParams{
				Tokens:  repository.NewAttendanceTokenRepository(db),
				Metrics: service.NewMetricsService(),
				Logger:  e.logger,
				Config:  attendanceCfg,
			})

			n, err := svc.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d attendance codes\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 0, "override the configured retention period")
	return cmd
}
