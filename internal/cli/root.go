// Package cli implements the rulebook-memory CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/rulebook-dev/rulebook-memory/internal/memory"
	"github.com/spf13/cobra"
)

var (
	dbPath   string
	rootDir  string
	maxBytes int64
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "rulebook-memory",
	Short: "Persistent memory for AI coding agents",
	Long:  "Stores agent knowledge (bugfixes, decisions, observations) across sessions and retrieves it by hybrid lexical + vector search. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $RULEBOOK_MEMORY_DB or .rulebook-memory/memory.db under the project root)")
	RootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Project root (default: current directory)")
	RootCmd.PersistentFlags().Int64Var(&maxBytes, "max-bytes", 0, "Eviction byte budget (default 500 MiB)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return os.Getenv("RULEBOOK_MEMORY_DB")
}

func openManager() *memory.Manager {
	root := rootDir
	if root == "" {
		root, _ = os.Getwd()
	}
	return memory.New(root, memory.Config{
		Enabled:      true,
		DBPath:       getDBPath(),
		MaxSizeBytes: maxBytes,
	})
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
