package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "timeline [id]",
		Short: "Show memories created around an anchor",
		Args:  cobra.ExactArgs(1),
		Run:   runTimeline,
	}

	cmd.Flags().Int("radius", 5, "Entries to include on each side")

	RootCmd.AddCommand(cmd)
}

func runTimeline(cmd *cobra.Command, args []string) {
	radius, _ := cmd.Flags().GetInt("radius")

	m := openManager()
	defer m.Close()

	timeline, err := m.Timeline(cmd.Context(), args[0], radius)
	if err != nil {
		exitErr("timeline", err)
	}
	if len(timeline) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(timeline, "", "  ")
	fmt.Println(string(b))
}
