package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rulebook-dev/rulebook-memory/internal/memory"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [content]",
		Short: "Save a memory",
		Long:  "Save a memory. Content can be a positional arg or piped via stdin. Spans wrapped in <private>...</private> are redacted before persistence.",
		Run:   runSave,
	}

	cmd.Flags().String("id", "", "Replace an existing memory in place")
	cmd.Flags().String("type", "observation", "Type: observation, bugfix, feature, decision, learning")
	cmd.Flags().String("title", "", "Title (required)")
	cmd.Flags().StringP("project", "p", "", "Project name")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")

	cmd.MarkFlagRequired("title")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("id")
	typ, _ := cmd.Flags().GetString("type")
	title, _ := cmd.Flags().GetString("title")
	project, _ := cmd.Flags().GetString("project")
	tagsStr, _ := cmd.Flags().GetString("tags")

	// Content: positional arg first, then stdin.
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("save", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var tags []string
	if tagsStr != "" {
		for _, t := range strings.Split(tagsStr, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
	}

	m := openManager()
	defer m.Close()

	saved, err := m.SaveMemory(cmd.Context(), memory.SaveInput{
		ID:      id,
		Type:    typ,
		Title:   title,
		Content: strings.TrimSpace(content),
		Project: project,
		Tags:    tags,
	})
	if err != nil {
		exitErr("save", err)
	}

	b, _ := json.Marshal(saved)
	fmt.Println(string(b))
}
