package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage work sessions",
	}

	startCmd := &cobra.Command{
		Use:   "start [project]",
		Short: "Start a new session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionStart,
	}

	endCmd := &cobra.Command{
		Use:   "end [id]",
		Short: "End a session with a summary",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionEnd,
	}
	endCmd.Flags().StringP("summary", "s", "", "What happened during the session")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active session",
		Run:   runSessionShow,
	}

	sessionCmd.AddCommand(startCmd, endCmd, showCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) {
	m := openManager()
	defer m.Close()

	sess, err := m.StartSession(cmd.Context(), args[0])
	if err != nil {
		exitErr("session start", err)
	}

	b, _ := json.Marshal(sess)
	fmt.Println(string(b))
}

func runSessionEnd(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetString("summary")

	m := openManager()
	defer m.Close()

	if err := m.EndSession(cmd.Context(), args[0], summary); err != nil {
		exitErr("session end", err)
	}
	fmt.Printf("ended %s\n", args[0])
}

func runSessionShow(cmd *cobra.Command, args []string) {
	m := openManager()
	defer m.Close()

	sess, err := m.ActiveSession(cmd.Context())
	if err != nil {
		exitErr("session show", err)
	}
	if sess == nil {
		fmt.Println("null")
		return
	}

	b, _ := json.MarshalIndent(sess, "", "  ")
	fmt.Println(string(b))
}
