package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/config"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/filesystem"
)

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <file>",
		Short: "Print the command that would run for a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := findTarget(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	return cmd
}

func findTarget(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	target, ok := filesystem.FindNear(abs, config.ProcessName())
	if !ok {
		return "", fmt.Errorf("%s not found next to %s or in any parent directory", config.ProcessName(), abs)
	}
	return target, nil
}
