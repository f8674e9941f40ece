package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/config"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/coordinator"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/output_storage"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/runner"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/status"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/workspace"
)

var logger = logging.For("cli")

type watchOptions struct {
	settings      string
	statusAddress string
	errorMarker   string
	clear         bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rerun the nearest c++live script whenever a source file is saved",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, dir, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.settings, "settings", "", "settings file (default <dir>/"+config.DefaultSettingsFile+")")
	cmd.Flags().StringVar(&opts.statusAddress, "status-address", "", "serve run status over gRPC health checks at this address")
	cmd.Flags().StringVar(&opts.errorMarker, "error-marker", "", "prefix for standard error output")
	cmd.Flags().BoolVar(&opts.clear, "clear", false, "clear the terminal before each run")
	return cmd
}

func watch(ctx context.Context, dir string, opts watchOptions, out io.Writer) error {
	settings := opts.settings
	if settings == "" {
		settings = filepath.Join(dir, config.DefaultSettingsFile)
	}

	storage := output_storage.RunNewOutputStorage()
	defer storage.Stop()

	sup := runner.NewSupervisor(storage)
	sup.SetErrorMarker(opts.errorMarker)

	var coordOpts []coordinator.Option
	var srv *status.Server
	if opts.statusAddress != "" {
		e, err := status.EndpointFromEnv(opts.statusAddress)
		if err != nil {
			return err
		}
		srv, err = status.NewServer(e)
		if err != nil {
			return err
		}
		coordOpts = append(coordOpts, coordinator.WithStateListener(srv.Report))
		logger.Infof("status at %s", srv.Addr())
	}

	coord := coordinator.New(sup, config.Default(), coordOpts...)
	host, err := workspace.NewHost(dir, settings, coord)
	if err != nil {
		coord.Close()
		if srv != nil {
			srv.Stop()
		}
		return err
	}
	logger.Infof("watching %s", host.Root())

	clearSeq := ""
	if opts.clear {
		clearSeq = clearScreen
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := host.Run(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, workspace.ErrClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return printOutput(gctx, storage.Follow(gctx, 64), out, clearSeq)
	})
	if srv != nil {
		g.Go(srv.Serve)
	}
	g.Go(func() error {
		<-gctx.Done()
		if srv != nil {
			srv.Stop()
		}
		return host.Close()
	})

	return g.Wait()
}
