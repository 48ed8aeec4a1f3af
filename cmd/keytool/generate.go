package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/envkeep/internal/secrets"
)

func newGenerateKeyCmd() *cobra.Command {
	var recipient, out string

	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate a new 32-byte encryption key",
		Long: `Prints a new hex-encoded key suitable for ENCRYPTION_KEY.
With --recipient the key is age-encrypted instead and written to --out, for use
as ENCRYPTION_KEY_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			if recipient == "" {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}
			if out == "" {
				return fmt.Errorf("--out is required with --recipient")
			}
			wrapped, err := secrets.WrapKey(key, recipient)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, wrapped, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			cmdLogger(cmd).Info("wrote wrapped key", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "age recipient (age1...) to wrap the key for")
	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write the wrapped key to")
	return cmd
}
