package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/status"
)

func newStatusCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Ask a running watch whether a process is live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			e, err := status.EndpointFromEnv(address)
			if err != nil {
				return err
			}
			conn, err := status.Dial(e)
			if err != nil {
				return err
			}
			defer conn.Close()

			running, err := status.Running(ctx, conn)
			if err != nil {
				return err
			}
			printStatusTable(cmd.OutOrStdout(), e.Address, running)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "status endpoint (default $"+status.EnvAddress+" or "+status.DefaultAddress+")")
	return cmd
}
