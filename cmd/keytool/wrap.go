package main

import (
	"fmt"
	"os"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"github.com/narvanalabs/envkeep/internal/secrets"
)

func newWrapKeyCmd() *cobra.Command {
	var key, recipient, out string

	cmd := &cobra.Command{
		Use:   "wrap-key",
		Short: "Age-encrypt existing key material into a key file",
		Long: `Wraps key material (hex or passphrase, default $ENCRYPTION_KEY) for an age
recipient and writes it to --out. Without --recipient a new age identity is
generated; its secret half is printed once on stdout and must be stored as
ENCRYPTION_KEY_AGE_IDENTITY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv("ENCRYPTION_KEY")
			}
			if _, err := secrets.ParseKey(key); err != nil {
				return err
			}

			if recipient == "" {
				id, err := age.GenerateX25519Identity()
				if err != nil {
					return fmt.Errorf("generating age identity: %w", err)
				}
				recipient = id.Recipient().String()
				fmt.Fprintln(cmd.OutOrStdout(), id.String())
			}

			wrapped, err := secrets.WrapKey(key, recipient)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, wrapped, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			cmdLogger(cmd).Info("wrote wrapped key", "path", out, "recipient", recipient)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "key material to wrap (default $ENCRYPTION_KEY)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "age recipient (age1...); generated when empty")
	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write the wrapped key to")
	cmd.MarkFlagRequired("out")
	return cmd
}
