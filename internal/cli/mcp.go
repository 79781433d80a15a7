package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jeterchen1226/fastapi-trello/internal/actions"
	boardmcp "github.com/jeterchen1226/fastapi-trello/internal/mcp"
)

var mcpPage string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the board MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the board MCP server on stdio",
	Long: `Start the board MCP server on stdio transport.

The server opens the saved page (or --page) and exposes it as MCP tools that
AI coding assistants can call: list_board, move_task, move_lane, delete_task,
delete_lane, get_metrics, get_alerts. Deletions run without a prompt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Page == nil || Pipeline == nil || NewActions == nil {
			return fmt.Errorf("board services not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		// stdout carries the protocol, so page feedback goes to stderr.
		if err := openPage(ctx, cmd.ErrOrStderr(), mcpPage); err != nil {
			return err
		}

		srv := boardmcp.NewServer(Page, Pipeline, NewActions(actions.StaticConfirmer(true)), MetricsCalc, AlertEngine, appVersion)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return persist()
	},
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpPage, "page", "", "Page to serve (default: the saved page)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
