package main

import (
	"fmt"
	"strings"

	"randomizer/internal/datafile"

	"github.com/spf13/cobra"
)

// sessionsCmd inspects recorded sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded sessions",
	Long: `List and inspect sessions stored in the SQLite database.

Subcommands:
  list   - List all recorded sessions
  show   - Show one session and its trials`,
	RunE: runSessionsList,
}

// sessionsListCmd lists recorded sessions
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded sessions",
	RunE:  runSessionsList,
}

// sessionsShowCmd shows one session
var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its trials",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Read the debug session database")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func openSessionStore(cmd *cobra.Command) (*datafile.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return datafile.OpenStore(cfg.DatabaseFile())
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No recorded sessions found.")
		return nil
	}

	fmt.Fprintln(out, "Recorded Sessions")
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for _, s := range sessions {
		fmt.Fprintf(out, "  %s  %-8s  PID %-6s  %-18s  %s  %s\n",
			s.ID, s.Status, s.Participant, s.Kind, s.Date,
			s.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(out, strings.Repeat("─", 50))
	fmt.Fprintf(out, "Total: %d sessions\n", len(sessions))
	fmt.Fprintln(out, "\nUse: randomizer sessions show <session-id>")
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := store.Session(args[0])
	if err != nil {
		return err
	}
	trials, err := store.Trials(s.ID)
	if err != nil {
		return fmt.Errorf("failed to load trials: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:     %s\n", s.ID)
	fmt.Fprintf(out, "Experiment:  %s\n", s.Experiment)
	fmt.Fprintf(out, "Participant: %s\n", s.Participant)
	fmt.Fprintf(out, "Kind:        %s\n", s.Kind)
	fmt.Fprintf(out, "Date:        %s\n", s.Date)
	fmt.Fprintf(out, "Data file:   %s\n", s.FileName)
	fmt.Fprintf(out, "Status:      %s\n", s.Status)
	fmt.Fprintf(out, "Trials:      %d\n", len(trials))

	if len(trials) == 0 {
		return nil
	}
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for _, t := range trials {
		fmt.Fprintf(out, "  %3d  R%d #%-2d  %-36s  %-20s  %8.3fs  %s\n",
			t.Trial, t.Round, t.Object, t.Identifier, t.ObjectInfo, t.Duration, t.Violation)
	}
	return nil
}
