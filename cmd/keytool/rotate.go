package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/envkeep/internal/secrets"
	"github.com/narvanalabs/envkeep/internal/service"
	"github.com/narvanalabs/envkeep/internal/store"
	pgstore "github.com/narvanalabs/envkeep/internal/store/postgres"
)

// openStore is replaced in tests.
var openStore = func(dsn string, logger *slog.Logger) (store.Store, error) {
	cfg := pgstore.DefaultConfig(dsn)
	cfg.AutoMigrate = false
	return pgstore.NewPostgresStore(cfg, logger)
}

func newRotateKeyCmd() *cobra.Command {
	var oldKey, newKey, dsn string

	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Re-encrypt every stored secret under a new key",
		Long: `Decrypts every secret with --old-key and re-encrypts it with --new-key in a
single transaction. Any secret that fails to decrypt aborts the rotation and
nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cmdLogger(cmd)

			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or DATABASE_URL is required")
			}

			from, err := secrets.LoadCodec(secrets.KeySource{Key: oldKey})
			if err != nil {
				return fmt.Errorf("old key: %w", err)
			}
			to, err := secrets.LoadCodec(secrets.KeySource{Key: newKey})
			if err != nil {
				return fmt.Errorf("new key: %w", err)
			}

			st, err := openStore(dsn, log.WithComponent("store").Logger)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := service.RotateKey(cmd.Context(), st, from, to, log.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "re-encrypted %d secrets\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&oldKey, "old-key", "", "current key material")
	cmd.Flags().StringVar(&newKey, "new-key", "", "replacement key material")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (default $DATABASE_URL)")
	cmd.MarkFlagRequired("old-key")
	cmd.MarkFlagRequired("new-key")
	return cmd
}
