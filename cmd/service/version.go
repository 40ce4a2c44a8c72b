package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := handlers.NewBuildInfo(Version, Commit, BuildTime)

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "version %s\ncommit %s\nbuilt %s\ngo %s\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion)

			return err
		},
	}
}
