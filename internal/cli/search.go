package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rulebook-dev/rulebook-memory/internal/memory"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by hybrid relevance",
		Long:  "Rank memories by fused BM25 keyword relevance and vector similarity.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().IntP("limit", "l", 10, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	m := openManager()
	defer m.Close()

	results, err := m.SearchMemories(cmd.Context(), memory.SearchQuery{
		Query: query,
		Type:  typ,
		Limit: limit,
	})
	if err != nil {
		exitErr("search", err)
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
