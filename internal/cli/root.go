// Package cli implements the persona-vault CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/persona-vault/internal/config"
	"github.com/rcliao/persona-vault/internal/store"
)

var (
	dataDirFlag    string
	passphraseFlag string
	verboseFlag    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "persona-vault",
	Short: "Integrity-gated persistent state for AI personas",
	Long: "persona-vault keeps a persona's layered state on disk — plain identity,\n" +
		"compressed memory, passphrase-protected behavioral vector — and refuses to\n" +
		"expose any of it until the full bootstrap sequence validates.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verboseFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDirFlag, "data", "d", "", "Data directory (default: persona.yaml data_dir, or ./data)")
	RootCmd.PersistentFlags().StringVarP(&passphraseFlag, "passphrase", "p", "", "Protected-layer passphrase (default: $PERSONA_PASSPHRASE)")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		exitErr("load config", err)
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg
}

func openStore(cfg *config.Config) *store.Store {
	s, err := store.Open(cfg.DataDir, slog.Default())
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

// getPassphrase resolves the passphrase: flag first, then configuration
// (which reads $PERSONA_PASSPHRASE).
func getPassphrase(cfg *config.Config) string {
	if passphraseFlag != "" {
		return passphraseFlag
	}
	return cfg.Passphrase
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
