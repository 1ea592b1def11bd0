package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newTasksCmd(opts *rootOptions) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and retry side effect tasks",
	}
	tasksCmd.AddCommand(
		newTasksDeadCmd(opts),
		newTasksGetCmd(opts),
		newTasksRetryCmd(opts),
		newTasksStatsCmd(opts),
	)
	return tasksCmd
}

func newTasksDeadCmd(opts *rootOptions) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List tasks that will not be retried automatically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			query := url.Values{}
			query.Set("page", strconv.Itoa(page))
			query.Set("page_size", strconv.Itoa(pageSize))
			resp, err := opts.client().api(ctx, http.MethodGet, "/tasks/dead", query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, resp.Get("data"))
			}
			var rows [][]string
			for _, task := range resp.Get("data").Array() {
				rows = append(rows, []string{
					task.Get("id").String(),
					task.Get("effect_type").String(),
					task.Get("entity_id").String(),
					fmt.Sprintf("%d/%d", task.Get("retry_count").Int(), task.Get("max_retries").Int()),
					orDash(truncate(task.Get("last_error").String(), 60)),
				})
			}
			if err := printTable(out, []string{"ID", "TYPE", "ENTITY", "RETRIES", "LAST ERROR"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "Page %d of %d, %d dead tasks\n",
				resp.Get("meta.page").Int(), resp.Get("meta.total_pages").Int(), resp.Get("meta.total").Int())
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "tasks per page")
	return cmd
}

func newTasksGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task",
		Args:  taskIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := opts.client().api(ctx, http.MethodGet, "/tasks/"+args[0], nil)
			if err != nil {
				return err
			}
			task := resp.Get("data")
			if opts.json {
				return printJSON(cmd.OutOrStdout(), task)
			}
			return printTask(cmd, task)
		},
	}
}

func newTasksRetryCmd(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [task-id]",
		Short: "Send dead tasks back to the queue",
		Example: `  hostctl tasks retry 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  hostctl tasks retry --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return taskIDArg(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			client := opts.client()
			if all {
				resp, err := client.api(ctx, http.MethodPost, "/tasks/dead/retry", nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Requeued %d dead tasks\n", resp.Get("data.count").Int())
				return nil
			}

			resp, err := client.api(ctx, http.MethodPost, "/tasks/"+args[0]+"/retry", nil)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(out, resp.Get("data"))
			}
			fmt.Fprintf(out, "Task %s is %s\n", args[0], resp.Get("data.status").String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "retry every dead task")
	return cmd
}

func newTasksStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count tasks per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := opts.client().api(ctx, http.MethodGet, "/tasks/stats", nil)
			if err != nil {
				return err
			}
			stats := resp.Get("data")
			if opts.json {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			var rows [][]string
			for _, status := range []string{"pending", "processing", "done", "failed", "dead", "total"} {
				rows = append(rows, []string{status, strconv.FormatInt(stats.Get(status).Int(), 10)})
			}
			return printTable(cmd.OutOrStdout(), []string{"STATUS", "COUNT"}, rows)
		},
	}
}

func printTask(cmd *cobra.Command, task gjson.Result) error {
	rows := [][]string{
		{"ID", task.Get("id").String()},
		{"Type", task.Get("effect_type").String()},
		{"Entity", task.Get("entity_id").String()},
		{"Status", task.Get("status").String()},
		{"Generation", task.Get("generation").String()},
		{"Retries", fmt.Sprintf("%d/%d", task.Get("retry_count").Int(), task.Get("max_retries").Int())},
		{"Next retry", orDash(task.Get("next_retry_at").String())},
		{"Last error", orDash(task.Get("last_error").String())},
		{"Created", task.Get("created_at").String()},
	}
	return printTable(cmd.OutOrStdout(), []string{"FIELD", "VALUE"}, rows)
}

// taskIDArg rejects anything but a single task UUID before calling the server
func taskIDArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if _, err := uuid.Parse(args[0]); err != nil {
		return errors.New("task id must be a UUID")
	}
	return nil
}
