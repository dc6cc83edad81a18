package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortforge/pkg/api"

	"github.com/spf13/cobra"
)

// pollInterval is the delay between status polls for --wait and --follow.
var pollInterval = 2 * time.Second

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new video job",
	Long: `Create a video job for a topic. The server answers immediately with a
pending job; generation runs in the background.

Example:
  shortctl create --topic "The history of coffee" --duration 30
  shortctl create --topic "Black holes explained" --duration 45 --wait`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		topic, _ := flags.GetString("topic")
		duration, _ := flags.GetInt("duration")
		wait, _ := flags.GetBool("wait")

		client := newClient(cmd)
		if client == nil {
			return
		}

		if topic == "" {
			cmd.Println("Error: --topic is required")
			return
		}

		if duration <= 0 {
			cmd.Println("Error: --duration must be positive")
			return
		}

		job, err := client.CreateJob(api.CreateJobRequest{Topic: topic, Duration: duration})
		if err != nil {
			printError(cmd, err)
			return
		}

		cmd.Printf("✓ Job created!\nID: %s\nTopic: %s\n", job.ID, job.Topic)
		if !wait {
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		final, err := waitForJob(ctx, cmd, client, job.ID)
		if err != nil {
			printError(cmd, err)
			return
		}
		printStatus(cmd, *final)
	},
}

// waitForJob polls until the job reaches a terminal status, printing each
// progress change.
func waitForJob(ctx context.Context, cmd *cobra.Command, client *ShortClient, id string) (*api.JobResponse, error) {
	lastProgress := -1
	for {
		job, err := client.GetJob(id)
		if err != nil {
			return nil, err
		}

		if job.Progress != lastProgress {
			cmd.Printf("%s %3d%% %s\n", statusIcon(job.Status), job.Progress, job.Status)
			lastProgress = job.Progress
		}

		if isTerminal(job.Status) {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func isTerminal(status string) bool {
	return status == "completed" || status == "failed"
}

func init() {
	flags := createCmd.Flags()
	flags.String("topic", "", "Topic of the video (required)")
	flags.IntP("duration", "d", 30, "Target length in seconds")
	flags.BoolP("wait", "w", false, "Wait for the job to finish")

	rootCmd.AddCommand(createCmd)
}
