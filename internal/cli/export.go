package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all memories",
		Run:   runExport,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format: json or csv")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")

	m := openManager()
	defer m.Close()

	out, err := m.ExportMemories(cmd.Context(), format)
	if err != nil {
		exitErr("export", err)
	}
	fmt.Println(out)
}
