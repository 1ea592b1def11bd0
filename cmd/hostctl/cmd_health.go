package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the server health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			client := opts.client()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+"/health", nil)
			if err != nil {
				return err
			}
			resp, err := client.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("GET /health: %w", err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			health := gjson.ParseBytes(body)
			out := cmd.OutOrStdout()
			if opts.json {
				if err := printJSON(out, health); err != nil {
					return err
				}
			} else {
				var rows [][]string
				health.Get("checks").ForEach(func(k, v gjson.Result) bool {
					rows = append(rows, []string{k.String(), v.String()})
					return true
				})
				sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
				fmt.Fprintf(out, "Status: %s\n", orDash(health.Get("status").String()))
				if len(rows) > 0 {
					if err := printTable(out, []string{"CHECK", "RESULT"}, rows); err != nil {
						return err
					}
				}
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server is %s", orDash(health.Get("status").String()))
			}
			return nil
		},
	}
}
