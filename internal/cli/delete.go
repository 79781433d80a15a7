package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeterchen1226/fastapi-trello/internal/actions"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

var (
	deleteYes  bool
	deletePage string
	memberName string
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a task, lane, project or project member",
	Long: `Destructive board actions. Each asks for confirmation first unless --yes
is given; a declined confirmation sends nothing to the server.`,
}

var deleteTaskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, func(ctx context.Context, svc *actions.Service) ([]models.FeedbackSignal, error) {
			name := nameOf(Page.Board(), models.KindTask, args[0])
			return svc.DeleteTask(ctx, args[0], name)
		})
	},
}

var deleteLaneCmd = &cobra.Command{
	Use:   "lane <lane-id>",
	Short: "Delete a lane and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, func(ctx context.Context, svc *actions.Service) ([]models.FeedbackSignal, error) {
			name := nameOf(Page.Board(), models.KindLane, args[0])
			return svc.DeleteLane(ctx, args[0], name)
		})
	},
}

var deleteProjectCmd = &cobra.Command{
	Use:   "project <name>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, func(ctx context.Context, svc *actions.Service) ([]models.FeedbackSignal, error) {
			return svc.DeleteProject(ctx, args[0])
		})
	},
}

var deleteMemberCmd = &cobra.Command{
	Use:   "member <project> <user-id>",
	Short: "Remove a member from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, func(ctx context.Context, svc *actions.Service) ([]models.FeedbackSignal, error) {
			name := memberName
			if name == "" {
				name = args[1]
			}
			return svc.RemoveMember(ctx, args[0], args[1], name)
		})
	},
}

func runDelete(cmd *cobra.Command, do func(context.Context, *actions.Service) ([]models.FeedbackSignal, error)) error {
	if NewActions == nil {
		return fmt.Errorf("action service not initialized")
	}
	if err := openPage(cmd.Context(), cmd.OutOrStdout(), deletePage); err != nil {
		return err
	}

	var confirm actions.Confirmer = actions.PromptConfirmer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	if deleteYes {
		confirm = actions.StaticConfirmer(true)
	}

	signals, err := do(cmd.Context(), NewActions(confirm))
	if errors.Is(err, actions.ErrCancelled) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	printSignals(cmd.OutOrStdout(), signals)
	return persist()
}

// nameOf returns the display name of a task or lane, falling back to its id.
func nameOf(b models.Board, kind models.ItemKind, id string) string {
	for _, l := range b.Lanes {
		if kind == models.KindLane && l.ID == id && l.Name != "" {
			return l.Name
		}
		if kind != models.KindTask {
			continue
		}
		for _, t := range l.Tasks {
			if t.ID == id && t.Name != "" {
				return t.Name
			}
		}
	}
	return id
}

func init() {
	deleteCmd.PersistentFlags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	deleteCmd.PersistentFlags().StringVar(&deletePage, "page", "", "Page to load first (default: the saved page)")
	deleteMemberCmd.Flags().StringVar(&memberName, "name", "", "Member display name for the prompt")
	deleteCmd.AddCommand(deleteTaskCmd, deleteLaneCmd, deleteProjectCmd, deleteMemberCmd)
	rootCmd.AddCommand(deleteCmd)
}
