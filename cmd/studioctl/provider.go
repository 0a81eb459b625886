package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/payment"
	"github.com/noah-isme/studio-adp-api/internal/repository"
)

func providerCheckCmd() *cobra.Command {
	var (
		tenantID string
		charge   bool
	)

	cmd := &cobra.Command{
		Use:   "provider-check",
		Short: "Show which payment provider a tenant resolves to",
		Long: `Resolve a tenant's payment provider the same way the API does.

With --charge a test charge of 1.00 is created against the resolved provider.
Do not use --charge for tenants on PRODUCTION unless you mean to bill.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
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

			p := e.cfg.Payments
			factory := payment.NewFactory(repository.NewTenantSettingsRepository(db), nil, payment.FactoryConfig{
				DefaultProvider: models.PaymentProviderKind(p.DefaultProvider),
				Simulator:       payment.SimulatorConfig{Latency: p.SimulatedLatency, Jitter: p.SimulatedJitter},
				SandboxBaseURL:  p.SandboxBaseURL,
				GatewayBaseURL:  p.GatewayBaseURL,
				GatewayAPIKey:   p.GatewayAPIKey,
				HTTPTimeout:     p.HTTPTimeout,
				Logger:          e.logger,
			})

			kind, err := factory.KindFor(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant %s uses %s\n", tenantID, kind)

			provider, err := factory.Build(kind)
			if err != nil {
				return fmt.Errorf("build %s provider: %w", kind, err)
			}
			if !charge {
				return nil
			}

			created, err := provider.CreateCharge(cmd.Context(), payment.ChargeRequest{
				CustomerReference: "studioctl",
				Value:             1,
				DueDate:           time.Now().UTC().AddDate(0, 0, 7),
				Description:       "studioctl provider check",
				ExternalReference: uuid.NewString(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "charge %s status=%s invoice=%s\n", created.ID, created.Status, created.InvoiceURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().BoolVar(&charge, "charge", false, "create a test charge")
	return cmd
}
