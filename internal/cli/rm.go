package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory",
		Long:  "Delete a memory and purge its vector from the search index. Deleting an unknown id is a no-op.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	m := openManager()
	defer m.Close()

	if err := m.DeleteMemory(cmd.Context(), args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf("deleted %s\n", args[0])
}
