package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	url            string
	username       string
	roles          string
	usernameHeader string
	rolesHeader    string
	timeout        time.Duration
	json           bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "hostctl",
		Short:         "Operate the node hosting backend",
		Long:          `hostctl runs periodic jobs and inspects the side effect task queue of a running server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.url, "url", envOr("HOSTCTL_URL", "http://localhost:8080"), "server base URL")
	flags.StringVar(&opts.username, "user", envOr("HOSTCTL_USER", "hostctl"), "username sent to the server")
	flags.StringVar(&opts.roles, "roles", envOr("HOSTCTL_ROLES", "admin"), "comma separated roles sent to the server")
	flags.StringVar(&opts.usernameHeader, "username-header", "X-Auth-Username", "header carrying the username")
	flags.StringVar(&opts.rolesHeader, "roles-header", "X-Auth-Roles", "header carrying the roles")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	flags.BoolVar(&opts.json, "json", false, "print raw JSON data")

	rootCmd.AddCommand(
		newHealthCmd(opts),
		newJobsCmd(opts),
		newTasksCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.url, o.username, o.roles,
		withHeaders(o.usernameHeader, o.rolesHeader),
		withTimeout(o.timeout),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
