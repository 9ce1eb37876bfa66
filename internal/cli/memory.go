package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/persona-vault/internal/model"
	"github.com/rcliao/persona-vault/internal/sections"
)

func init() {
	memCmd := &cobra.Command{
		Use:   "memory",
		Short: "Memory ledger operations",
	}

	addCmd := &cobra.Command{
		Use:   "add [summary]",
		Short: "Append a memory entry",
		Long:  "Append a memory entry. Summary can be a positional arg or piped via stdin.",
		Run:   runMemoryAdd,
	}
	addCmd.Flags().StringP("category", "c", "general", "Category tag")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries",
		Run:   runMemoryList,
	}
	listCmd.Flags().StringP("category", "c", "", "Filter by category")
	listCmd.Flags().IntP("limit", "l", 20, "Max entries (newest)")

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a markdown master memory file",
		Long:  "Split a markdown master memory file on headings and append one ledger entry per section.",
		Args:  cobra.ExactArgs(1),
		Run:   runMemoryImport,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the full ledger as JSON",
		Run:   runMemoryExport,
	}

	memCmd.AddCommand(addCmd, listCmd, importCmd, exportCmd)
	RootCmd.AddCommand(memCmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")

	var summary string
	if len(args) > 0 {
		summary = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			summary = string(b)
		}
	}
	if strings.TrimSpace(summary) == "" {
		exitErr("memory add", fmt.Errorf("summary is required (positional arg or stdin)"))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	ctx := cmd.Context()

	ledger, _, err := s.LoadMemory(ctx)
	if err != nil {
		exitErr("load memory", err)
	}

	entry := ledger.Append(category, strings.TrimSpace(summary))
	if _, err := s.SaveMemory(ctx, ledger); err != nil {
		exitErr("save memory", err)
	}

	b, _ := json.Marshal(entry)
	fmt.Println(string(b))
}

func runMemoryList(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	ledger, _, err := s.LoadMemory(cmd.Context())
	if err != nil {
		exitErr("load memory", err)
	}

	entries := ledger.Entries
	if category != "" {
		entries = ledger.ByCategory(category)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}

func runMemoryImport(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitErr("read import file", err)
	}

	secs := sections.Split(string(data))
	if len(secs) == 0 {
		exitErr("memory import", fmt.Errorf("%s contains no sections", args[0]))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	ctx := cmd.Context()

	ledger, _, err := s.LoadMemory(ctx)
	if err != nil {
		exitErr("load memory", err)
	}

	var added []model.MemoryEntry
	for _, sec := range secs {
		added = append(added, ledger.Append(sections.Category(sec.Heading), sec.Body))
	}
	if _, err := s.SaveMemory(ctx, ledger); err != nil {
		exitErr("save memory", err)
	}

	out := map[string]interface{}{"imported": len(added), "entries": added}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func runMemoryExport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	ledger, _, err := s.LoadMemory(cmd.Context())
	if err != nil {
		exitErr("load memory", err)
	}

	b, _ := json.MarshalIndent(ledger, "", "  ")
	fmt.Println(string(b))
}
