package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

var (
	movePage    string
	moveToLane  string
	moveProject string
	moveIndex   int
)

var moveTaskCmd = &cobra.Command{
	Use:   "move-task <task-id>",
	Short: "Move a task within or across lanes",
	Long: `Move a task to a 0-based position inside a lane, exactly as a drag would,
and persist the new position on the server. Leaving --to-lane empty keeps the
task in its current lane.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openPage(cmd.Context(), cmd.OutOrStdout(), movePage); err != nil {
			return err
		}
		target := moveToLane
		if target == "" {
			target = laneOf(Page.Board(), args[0])
		}
		if target == "" {
			return fmt.Errorf("task %s is not on the page", args[0])
		}
		return runMove(cmd, models.KindTask, args[0], target)
	},
}

var moveLaneCmd = &cobra.Command{
	Use:   "move-lane <lane-id>",
	Short: "Move a lane to a new position in its project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openPage(cmd.Context(), cmd.OutOrStdout(), movePage); err != nil {
			return err
		}
		project := moveProject
		if project == "" {
			project = Page.Board().ProjectID
		}
		if project == "" {
			return fmt.Errorf("the page shows no project; pass --project")
		}
		return runMove(cmd, models.KindLane, args[0], project)
	},
}

func runMove(cmd *cobra.Command, kind models.ItemKind, itemID, targetID string) error {
	if Pipeline == nil {
		return fmt.Errorf("reorder pipeline not initialized")
	}
	if moveIndex < 0 {
		return fmt.Errorf("--index must be 0 or greater")
	}
	sig, err := Pipeline.Move(cmd.Context(), kind, itemID, targetID, moveIndex)
	if err != nil {
		return err
	}
	printSignals(cmd.OutOrStdout(), []models.FeedbackSignal{sig})
	if err := persist(); err != nil {
		return err
	}
	if sig.Severity == models.SeverityError {
		return fmt.Errorf("%s", sig.Message)
	}
	return nil
}

func laneOf(b models.Board, taskID string) string {
	for _, l := range b.Lanes {
		for _, t := range l.Tasks {
			if t.ID == taskID {
				return l.ID
			}
		}
	}
	return ""
}

func init() {
	for _, c := range []*cobra.Command{moveTaskCmd, moveLaneCmd} {
		c.Flags().StringVar(&movePage, "page", "", "Page to load first (default: the saved page)")
		c.Flags().IntVar(&moveIndex, "index", 0, "0-based target position")
	}
	moveTaskCmd.Flags().StringVar(&moveToLane, "to-lane", "", "Target lane id (default: the task's lane)")
	moveLaneCmd.Flags().StringVar(&moveProject, "project", "", "Project id (default: the page's project)")
	rootCmd.AddCommand(moveTaskCmd)
	rootCmd.AddCommand(moveLaneCmd)
}
