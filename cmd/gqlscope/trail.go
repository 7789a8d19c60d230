package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gqlscope/internal/audit"
)

type trailOptions struct {
	dbPath    string
	session   string
	eventType string
	limit     int
}

func newTrailCommand() *cobra.Command {
	opts := &trailOptions{}

	cmd := &cobra.Command{
		Use:           "trail",
		Short:         "Show the recorded inspector-session trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrail(opts)
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "", "path to the trail database (required)")
	cmd.Flags().StringVar(&opts.session, "session", "", "filter by session id")
	cmd.Flags().StringVar(&opts.eventType, "type", "", "filter by event type")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "maximum events to show")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrail(opts *trailOptions) error {
	if _, err := os.Stat(opts.dbPath); err != nil {
		return fmt.Errorf("trail database: %w", err)
	}

	trail, err := audit.NewTrail(opts.dbPath)
	if err != nil {
		return err
	}
	defer trail.Close()

	events, err := trail.Query(audit.QueryOptions{
		Session:   opts.session,
		EventType: opts.eventType,
		Limit:     opts.limit,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION\tEVENT\tDETAIL\tCLIENT\tOK")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			shortSession(ev.Session),
			ev.EventType,
			ev.Detail,
			ev.ClientAddr,
			ev.Success,
		)
	}
	return w.Flush()
}

func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
