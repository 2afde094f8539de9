package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict old memories to stay under the byte budget",
		Long:  "Without --force, evicts only when over budget. With --force, removes a batch of the least recently accessed memories regardless of usage. Decisions are never evicted.",
		Run:   runCleanup,
	}

	cmd.Flags().BoolP("force", "f", false, "Evict regardless of current usage")

	RootCmd.AddCommand(cmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	m := openManager()
	defer m.Close()

	res, err := m.Cleanup(cmd.Context(), force)
	if err != nil {
		exitErr("cleanup", err)
	}

	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}
