package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gqlscope",
		Short: "GraphQL client runtime inspector",
		Long: `gqlscope attaches to a GraphQL client, tracks its operation
lifecycle and cache, and serves the inspection event channel to remote
UIs over a websocket bridge.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newTrailCommand())

	return cmd
}
