package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with the admin password and print a bearer token",
	Long: `Exchange the admin password for a bearer token.

Example:
  shortctl login --password "s3cret"
  export SHORTFORGE_TOKEN=$(shortctl login --password "s3cret" --quiet)`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		password, _ := flags.GetString("password")
		quiet, _ := flags.GetBool("quiet")

		if password == "" {
			password = viper.GetString("password")
		}
		if password == "" {
			cmd.Println("Error: --password is required")
			return
		}

		client := NewShortClient(viper.GetString("url"), "")
		token, err := client.Login(password)
		if err != nil {
			printError(cmd, err)
			return
		}

		if quiet {
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return
		}
		cmd.Printf("✓ Logged in!\nToken: %s\n\nexport SHORTFORGE_TOKEN=%s\n", token, token)
	},
}

func init() {
	flags := loginCmd.Flags()
	flags.StringP("password", "p", "", "Admin password (or SHORTFORGE_PASSWORD)")
	flags.BoolP("quiet", "q", false, "Print only the token")

	rootCmd.AddCommand(loginCmd)
}
