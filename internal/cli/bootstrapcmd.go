package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/persona-vault/internal/bootstrap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Run the 8-stage initialization sequence",
		Long: "Run all eight bootstrap stages in order. On success prints the validated\n" +
			"snapshot summary; on any failure names the halting stage and error kind\n" +
			"and exits non-zero. Partial progress is never usable.",
		Run: runBootstrap,
	}
	RootCmd.AddCommand(cmd)
}

func runBootstrap(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	seq := bootstrap.NewSequencer(s, cfg.BehaviorCodes, slog.Default())
	snap, run, err := seq.Run(cmd.Context(), getPassphrase(cfg))
	if err != nil {
		var se *bootstrap.StageError
		if errors.As(err, &se) {
			fmt.Fprintf(os.Stderr, "bootstrap halted at stage %d/%d (%s): %v\n",
				int(se.Stage), bootstrap.StageCount, se.Stage, se.Kind)
			fmt.Fprintf(os.Stderr, "cause: %v\n", se.Cause)
			fmt.Fprintf(os.Stderr, "completed stages: %d\n", len(run.Completed))
			os.Exit(1)
		}
		exitErr("bootstrap", err)
	}

	out := map[string]interface{}{
		"run":          run,
		"name":         snap.Identity.Name(),
		"creator":      snap.Context.Creator,
		"relationship": snap.Context.Relationship,
		"mission":      snap.Identity.Mission(),
		"memories":     len(snap.Memory.Entries),
		"hints":        snap.Hints(),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
