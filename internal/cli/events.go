package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeterchen1226/fastapi-trello/internal/observability"
)

var (
	eventsType  string
	eventsLevel string
	eventsSince string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded feedback, reorder and action events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventLog == nil {
			return fmt.Errorf("event log not initialized")
		}

		filter := observability.EventFilter{Type: eventsType, Level: eventsLevel, Limit: eventsLimit}
		if eventsSince != "" {
			since, err := parseSinceDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			filter.Since = &since
		}

		events, err := EventLog.Read(filter)
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No events recorded.")
			return nil
		}
		for _, e := range events {
			fmt.Fprintf(out, "%s  %-5s  %-18s %s\n", e.Time.Local().Format(time.DateTime), e.Level, e.Type, e.Message)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Only events of this type (e.g. reorder.failed)")
	eventsCmd.Flags().StringVar(&eventsLevel, "level", "", "Only events of this level (INFO, WARN, ERROR)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Only events newer than this (e.g. 24h, 7d)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Show at most this many of the newest events (0 = all)")
	rootCmd.AddCommand(eventsCmd)
}
