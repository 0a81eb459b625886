package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/studio-adp-api/internal/models"
	"github.com/noah-isme/studio-adp-api/internal/service"
	"github.com/noah-isme/studio-adp-api/pkg/config"
)

func issueDevTokenCmd() *cobra.Command {
	var (
		userID   string
		tenantID string
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-dev-token",
		Short: "Sign a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.logger.Sync() //nolint:errcheck

			if e.cfg.Env == config.EnvProduction {
				return errors.New("refusing to issue tokens in production")
			}

			auth := service.NewAuthService(e.logger, service.AuthConfig{
				AccessTokenSecret: e.cfg.JWT.Secret,
				AccessTokenExpiry: e.cfg.JWT.Expiration,
			})
			token, expiresAt, err := auth.IssueToken(service.IssueTokenInput{
				UserID:   userID,
				TenantID: tenantID,
				Role:     models.UserRole(strings.ToUpper(role)),
				TTL:      ttl,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "ADMIN, TEACHER, GUARDIAN or STUDENT")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to JWT_EXPIRATION")
	return cmd
}
