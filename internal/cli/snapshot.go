package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [path]",
	Short: "Print the parsed board of a page as YAML",
	Long: `Load a project page and print its lanes and tasks in visual order as YAML.
Without a path the saved page is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		if err := openPage(cmd.Context(), cmd.ErrOrStderr(), path); err != nil {
			return err
		}
		data, err := yaml.Marshal(Page.Board())
		if err != nil {
			return fmt.Errorf("formatting board as YAML: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return persist()
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
