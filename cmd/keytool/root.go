package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/envkeep/pkg/logger"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "keytool",
		Short:         "Manage envkeep encryption keys and development tokens",
		Long:          `Generates and wraps the secret encryption key, re-encrypts stored secrets under a new key, and issues bearer tokens for local use.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newGenerateKeyCmd())
	root.AddCommand(newWrapKeyCmd())
	root.AddCommand(newRotateKeyCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// cmdLogger logs to the command's error stream so stdout stays machine readable.
func cmdLogger(cmd *cobra.Command) *logger.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), level, logger.FormatText)
}
