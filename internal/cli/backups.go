package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	bkCmd := &cobra.Command{
		Use:   "backups",
		Short: "Backup generation management",
	}

	listCmd := &cobra.Command{
		Use:   "list [ARTIFACT]",
		Short: "List backup generations (identity, memory, protected)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runBackupsList,
	}

	restoreCmd := &cobra.Command{
		Use:   "restore ARTIFACT",
		Short: "Overwrite the live artifact with its newest valid backup",
		Long: "Overwrite the live artifact with its newest valid backup generation.\n" +
			"The current live bytes are backed up first. This is the manual remedy\n" +
			"for a halted bootstrap; nothing restores the protected layer silently.",
		Args: cobra.ExactArgs(1),
		Run:  runBackupsRestore,
	}

	bkCmd.AddCommand(listCmd, restoreCmd)
	RootCmd.AddCommand(bkCmd)
}

func runBackupsList(cmd *cobra.Command, args []string) {
	artifact := ""
	if len(args) > 0 {
		artifact = args[0]
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	entries, err := s.Backups(cmd.Context(), artifact)
	if err != nil {
		exitErr("list backups", err)
	}

	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}

func runBackupsRestore(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	gen, err := s.RestoreFromBackup(cmd.Context(), args[0])
	if err != nil {
		exitErr("restore", err)
	}

	b, _ := json.Marshal(map[string]interface{}{"artifact": args[0], "restored_generation": gen})
	fmt.Println(string(b))
}
