package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download [job_id]",
	Short: "Download the finished video of a job",
	Long: `Save the rendered video of a completed job.

Example:
  shortctl download <job-id>
  shortctl download <job-id> --out coffee.mp4`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("short-%s.mp4", jobID)
		}

		client := newClient(cmd)
		if client == nil {
			return
		}
		// Videos can be large
		client.HTTPClient.Timeout = 10 * time.Minute

		tmp := out + ".part"
		f, err := os.Create(tmp)
		if err != nil {
			cmd.Printf("Error: failed to create %s: %v\n", tmp, err)
			return
		}

		n, err := client.Download(jobID, f)
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(tmp)
			printError(cmd, err)
			return
		}

		if err := os.Rename(tmp, out); err != nil {
			os.Remove(tmp)
			cmd.Printf("Error: failed to save %s: %v\n", out, err)
			return
		}
		cmd.Printf("✓ Saved %s (%d bytes)\n", out, n)
	},
}

func init() {
	downloadCmd.Flags().String("out", "", "Output file (default short-<id>.mp4)")
	rootCmd.AddCommand(downloadCmd)
}
