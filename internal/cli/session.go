package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in to the board server",
	Long: `Log in with a username and password. The password is read from --password
or the BOARD_PASSWORD environment variable. The session is saved so later
commands reuse it until 'board logout'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Page == nil {
			return fmt.Errorf("page not initialized")
		}
		password := loginPassword
		if password == "" {
			password = os.Getenv("BOARD_PASSWORD")
		}
		if password == "" {
			return fmt.Errorf("password required: use --password or BOARD_PASSWORD")
		}

		signals, err := Page.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		printSignals(cmd.OutOrStdout(), signals)
		if failed(signals) {
			return fmt.Errorf("login failed")
		}
		return persist()
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Page == nil {
			return fmt.Errorf("page not initialized")
		}
		signals, err := Page.Logout(cmd.Context())
		if err != nil {
			return err
		}
		printSignals(cmd.OutOrStdout(), signals)
		if Sessions != nil {
			Sessions.Clear()
			if err := Sessions.Save(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Load a page and show the messages it carries",
	Long: `Load a page of the board server (for example /projects/1) and print every
message delivered with it. The page becomes the default for later commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openPage(cmd.Context(), cmd.OutOrStdout(), args[0]); err != nil {
			return err
		}
		return persist()
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (default $BOARD_PASSWORD)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(openCmd)
}
