package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "cpplive",
		Short:         "Rebuild and rerun C++ sources as you edit them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Configure(os.Stderr, verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log state transitions and process events")

	root.AddCommand(newWatchCmd())
	root.AddCommand(newFindCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())

	return root
}
