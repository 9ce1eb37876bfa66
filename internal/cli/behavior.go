package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/persona-vault/internal/model"
)

func init() {
	behCmd := &cobra.Command{
		Use:   "behavior",
		Short: "Protected behavioral vector operations (passphrase required)",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Unseal and print the vector with its hint tags",
		Run:   runBehaviorShow,
	}

	setCmd := &cobra.Command{
		Use:   "set CODE INTENSITY",
		Short: "Set one code's intensity in [0, 1]",
		Args:  cobra.ExactArgs(2),
		Run:   runBehaviorSet,
	}

	behCmd.AddCommand(showCmd, setCmd)
	RootCmd.AddCommand(behCmd)
}

func runBehaviorShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	vec, err := s.LoadProtected(cmd.Context(), getPassphrase(cfg))
	if err != nil {
		exitErr("unseal behavior", err)
	}

	out := map[string]interface{}{
		"intensities": vec.Intensities,
		"hints":       model.SelectHints(vec),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func runBehaviorSet(cmd *cobra.Command, args []string) {
	intensity, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		exitErr("behavior set", fmt.Errorf("intensity %q is not a number", args[1]))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	ctx := cmd.Context()

	pass := getPassphrase(cfg)
	vec, err := s.LoadProtected(ctx, pass)
	if err != nil {
		exitErr("unseal behavior", err)
	}

	if err := vec.Set(args[0], intensity); err != nil {
		exitErr("behavior set", err)
	}

	gen, err := s.SaveProtected(ctx, vec, pass)
	if err != nil {
		exitErr("save behavior", err)
	}

	out := map[string]interface{}{
		"code":              args[0],
		"intensity":         intensity,
		"backup_generation": gen,
		"hints":             model.SelectHints(vec),
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
