package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rulebook-dev/rulebook-memory/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Run:   runList,
	}

	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")

	m := openManager()
	defer m.Close()

	memories, err := m.ListMemories(cmd.Context(), store.ListFilter{Type: typ, Limit: limit})
	if err != nil {
		exitErr("list", err)
	}
	if len(memories) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
