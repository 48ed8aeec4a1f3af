package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/envkeep/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var principal, email, secret string
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("JWT secret required: use --secret or set JWT_SECRET")
			}
			if len(secret) < 32 {
				return fmt.Errorf("JWT secret must be at least 32 characters")
			}

			svc := auth.NewService(&auth.Config{
				JWTSecret:   []byte(secret),
				TokenExpiry: expiry,
			}, cmdLogger(cmd).Logger)
			token, err := svc.GenerateToken(principal, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "admin", "principal ID (sub claim)")
	cmd.Flags().StringVar(&email, "email", "admin@localhost", "email claim")
	cmd.Flags().StringVar(&secret, "secret", "", "JWT secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "token lifetime")
	return cmd
}
