package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")

		client := newClient(cmd)
		if client == nil {
			return
		}

		jobs, err := client.ListJobs()
		if err != nil {
			printError(cmd, err)
			return
		}

		handled, err := printStructured(cmd, output, jobs)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			return
		}
		if handled {
			return
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs yet.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tCREATED\tTOPIC")
		for _, job := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s ago\t%s\n", job.ID, job.Status, job.Progress, relativeTime(job.CreatedAt), job.Topic)
		}
		w.Flush()
	},
}

func init() {
	listCmd.Flags().StringP("output", "o", outputText, "Output format: text, json or yaml")
	rootCmd.AddCommand(listCmd)
}
