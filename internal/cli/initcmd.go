package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/persona-vault/internal/model"
	"github.com/rcliao/persona-vault/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a fresh persona data directory",
		Long: "Create the data directory with a new identity, an empty memory ledger,\n" +
			"and a default behavioral vector sealed under the given passphrase.\n" +
			"Refuses to overwrite an existing persona.",
		Run: runInit,
	}

	cmd.Flags().String("name", "", "Persona name (required)")
	cmd.Flags().String("creator", "", "Creator name (required)")
	cmd.Flags().String("relationship", "Collaborative companion", "Relationship label")
	cmd.Flags().String("mission", "Learn and grow together", "Mission statement")
	cmd.Flags().String("heritage", "Be helpful, honest, and harmless", "Moral heritage")

	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("creator")

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	pass := getPassphrase(cfg)
	if pass == "" {
		exitErr("init", fmt.Errorf("passphrase is required (--passphrase or $PERSONA_PASSPHRASE)"))
	}

	if _, err := os.Stat(filepath.Join(cfg.DataDir, store.IdentityFile)); err == nil {
		exitErr("init", fmt.Errorf("%s already exists in %s", store.IdentityFile, cfg.DataDir))
	}

	name, _ := cmd.Flags().GetString("name")
	creator, _ := cmd.Flags().GetString("creator")
	relationship, _ := cmd.Flags().GetString("relationship")
	mission, _ := cmd.Flags().GetString("mission")
	heritage, _ := cmd.Flags().GetString("heritage")

	s := openStore(cfg)
	defer s.Close()
	ctx := cmd.Context()

	rec := model.NewIdentityRecord(name, creator, relationship, mission, heritage)
	if _, err := s.SaveIdentity(ctx, rec); err != nil {
		exitErr("write identity", err)
	}

	ledger := model.NewMemoryLedger(name)
	ledger.Append("history", "first initialization")
	if _, err := s.SaveMemory(ctx, ledger); err != nil {
		exitErr("write memory ledger", err)
	}

	vec := model.DefaultVector(cfg.BehaviorCodes)
	if _, err := s.SaveProtected(ctx, vec, pass); err != nil {
		exitErr("write protected vector", err)
	}

	out := map[string]interface{}{
		"data_dir":       cfg.DataDir,
		"name":           name,
		"creator":        creator,
		"behavior_codes": len(cfg.BehaviorCodes),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
