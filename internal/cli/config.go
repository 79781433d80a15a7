package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the client configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the .boardconfig file and the
BOARD_SERVER_URL override have been applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("configuration not loaded")
		}
		data, err := yaml.Marshal(Config)
		if err != nil {
			return fmt.Errorf("formatting config as YAML: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# base: %s\n%s", BasePath, data)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
