package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var (
	statsJSON  bool
	statsSince string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display feedback and reorder statistics",
	Long: `Display statistics derived from the event log: messages shown per channel
and severity, messages suppressed by the arbiter policy, reorder outcomes and
confirmed or cancelled actions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
		}

		sinceTime, err := parseSinceDuration(statsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if statsJSON {
			data, err := sonic.ConfigStd.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		// Table format.
		fmt.Fprintf(out, "Statistics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Messages shown:", metrics.FeedbackShown)
		fmt.Fprintf(out, "  %-24s %d\n", "Messages suppressed:", metrics.FeedbackDropped)
		fmt.Fprintf(out, "  %-24s %d\n", "Reorders committed:", metrics.ReorderCommitted)
		fmt.Fprintf(out, "  %-24s %d\n", "Reorders failed:", metrics.ReorderFailed)
		fmt.Fprintf(out, "  %-24s %.0f%%\n", "Reorder success rate:", metrics.ReorderSuccessRate()*100)
		fmt.Fprintf(out, "  %-24s %d\n", "Actions confirmed:", metrics.ActionsConfirmed)
		fmt.Fprintf(out, "  %-24s %d\n", "Actions cancelled:", metrics.ActionsCancelled)

		printCounts(out, "Shown by channel:", metrics.ShownByChannel)
		printCounts(out, "Shown by severity:", metrics.ShownBySeverity)
		printCounts(out, "Failures by source:", metrics.FailuresBySource)

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "\n  %s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "    %-20s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	statsCmd.Flags().StringVar(&statsSince, "since", "7d", "Time window (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(statsCmd)
}
