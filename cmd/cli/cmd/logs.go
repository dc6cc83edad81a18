package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var follow bool

var logsCmd = &cobra.Command{
	Use:   "logs [job_id]",
	Short: "Show or follow the logs of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		client := newClient(cmd)
		if client == nil {
			return
		}

		// Trap Ctrl+C to exit gracefully
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		after := 0
		for {
			resp, err := client.GetLogs(jobID, after)
			if err != nil {
				cmd.Printf("Error fetching logs: %v\n", err)
				// A deleted job will never come back
				if !follow || isNotFound(err) {
					return
				}
			} else {
				for _, entry := range resp.Logs {
					cmd.Println(entry.Content)
					if entry.Seq > after {
						after = entry.Seq
					}
				}

				// Nothing more will be written once the job is finished
				if !follow || isTerminal(resp.Status) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output until the job finishes")
}
