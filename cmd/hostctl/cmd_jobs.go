package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and run the periodic jobs",
	}
	jobsCmd.AddCommand(newJobsListCmd(opts), newJobsRunCmd(opts))
	return jobsCmd
}

func newJobsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List the registered jobs",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := opts.client().api(ctx, http.MethodGet, "/jobs", nil)
			if err != nil {
				return err
			}
			data := resp.Get("data")
			if opts.json {
				return printJSON(cmd.OutOrStdout(), data)
			}
			var rows [][]string
			for _, job := range data.Array() {
				rows = append(rows, []string{job.Get("name").String(), orDash(job.Get("schedule").String())})
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "SCHEDULE"}, rows)
		},
	}
}

func newJobsRunCmd(opts *rootOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run a job now",
		Long: `Queues a run of the job on the server. With --wait the server runs the job
within the request and the command reports the outcome.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			name := args[0]
			query := url.Values{}
			if wait {
				query.Set("wait", "true")
			}
			resp, err := opts.client().api(ctx, http.MethodPost, "/jobs/"+url.PathEscape(name)+"/run", query)
			if err != nil {
				if isStatus(err, http.StatusConflict) {
					return fmt.Errorf("job %s is already running: %w", name, err)
				}
				return err
			}
			data := resp.Get("data")
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, data)
			}
			if !wait {
				fmt.Fprintf(out, "Job %s queued\n", name)
				return nil
			}
			return reportRun(cmd, data)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the run to finish")
	return cmd
}

func reportRun(cmd *cobra.Command, run gjson.Result) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s run %s: %s (retries %d)\n",
		run.Get("job").String(),
		run.Get("id").String(),
		run.Get("status").String(),
		run.Get("retry_count").Int(),
	)
	if run.Get("status").String() == "FAILED" {
		return fmt.Errorf("job %s failed: %s", run.Get("job").String(), run.Get("error").String())
	}
	return nil
}
