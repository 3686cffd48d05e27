// Command mailtxn extracts bank transactions from alert emails.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/mailtxn/internal/plugins"
	"github.com/ArionMiles/mailtxn/pkg/config"
	"github.com/ArionMiles/mailtxn/pkg/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
	registry   *plugins.Registry
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{registry: plugins.Builtin()}

	root := &cobra.Command{
		Use:           "mailtxn",
		Short:         "Extract bank transactions from alert emails",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = logging.Setup(logging.DefaultConfig())

			cfg, err := config.Load(a.configPath)
			if err != nil {
				a.logger.Error("failed to load config", "error", err)
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.ConfigFile, "optional JSON config file")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newSetupCmd(a),
		newStatusCmd(a),
	)
	return root
}

// fail logs err and returns it so cobra exits non-zero.
func (a *app) fail(msg string, err error) error {
	a.logger.Error(msg, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}
