package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Fetch a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	m := openManager()
	defer m.Close()

	mem, err := m.GetMemory(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	if mem == nil {
		fmt.Println("null")
		return
	}

	b, _ := json.MarshalIndent(mem, "", "  ")
	fmt.Println(string(b))
}
