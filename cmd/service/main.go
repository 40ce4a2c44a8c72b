// Package main is the entry point for the quotes service and its CLI client.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

// defaultProfile is used when neither --profile nor APP_ENVIRONMENT is set.
const defaultProfile = "local"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	profile   string
	configDir string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "service",
		Short: "Quotes API: a small CRUD service for quotations",
		Long: "Runs the quotes HTTP API. With no subcommand the server starts with the\n" +
			"selected configuration profile and runs until SIGINT or SIGTERM.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.profile, "profile", "p", profileFromEnv(),
		"configuration profile (configs/{profile}.yaml); defaults to $APP_ENVIRONMENT or local")
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "configs",
		"directory holding base.yaml and the profile files")

	root.AddCommand(
		newServeCmd(opts),
		newClientCmd(opts),
		newVersionCmd(),
	)

	return root
}

func profileFromEnv() string {
	if p := os.Getenv("APP_ENVIRONMENT"); p != "" {
		return p
	}

	return defaultProfile
}
