package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shortctl",
	Short: "Shortctl is a command line tool for the shortforge video service",
	Long: `shortctl is the command-line interface for shortforge, a service that turns
a topic into a narrated, subtitled vertical short video.

A job runs through script generation, voice narration, scene images, subtitles
and video rendering in the background. Poll it with status or logs and fetch
the result with download once it has completed.

Common workflows:

  Log in and keep the token:
    export SHORTFORGE_TOKEN=$(shortctl login --password "$ADMIN_PASSWORD" --quiet)

  Create a job and wait for it:
    shortctl create --topic "Why octopuses have three hearts" --duration 30 --wait

  Check a job:
    shortctl status <job-id> -o yaml

  Stream logs:
    shortctl logs <job-id> --follow

  Save the video:
    shortctl download <job-id> --out octopus.mp4

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    SHORTFORGE_URL      API endpoint (default: http://localhost:5000)
    SHORTFORGE_TOKEN    Bearer token from shortctl login`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".shortctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".shortctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "SHORTFORGE_VARNAME"
	viper.SetEnvPrefix("SHORTFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient returns an API client, or nil after printing a hint when no
// token is configured.
func newClient(cmd *cobra.Command) *ShortClient {
	token := viper.GetString("token")
	if token == "" {
		cmd.Println("API token not found. Please set it using the --token flag or the SHORTFORGE_TOKEN environment variable")
		return nil
	}
	return NewShortClient(viper.GetString("url"), token)
}

// printError reports err, with the status code for API errors.
func printError(cmd *cobra.Command, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("Error: %v\n", err)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shortctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:5000", "Shortforge server URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Bearer token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
