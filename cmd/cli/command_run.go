package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/config"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/coordinator"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/output_storage"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/runner"
)

func newRunCmd() *cobra.Command {
	var settings, errorMarker string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run the c++live script for a source file once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if settings == "" {
				settings = filepath.Join(".", config.DefaultSettingsFile)
			}
			cfg, err := config.Load(settings)
			if err != nil {
				return err
			}

			sig, err := runOnce(ctx, args[0], cfg, errorMarker, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			switch {
			case sig.ExitCode != nil && *sig.ExitCode != 0:
				return &exitCodeError{code: *sig.ExitCode}
			case sig.ExitCode == nil:
				return fmt.Errorf("terminated by %s", sig.Signal)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&settings, "settings", "", "settings file (default ./"+config.DefaultSettingsFile+")")
	cmd.Flags().StringVar(&errorMarker, "error-marker", "", "prefix for standard error output")
	return cmd
}

// runOnce runs the target for file to completion, or kills it when ctx is
// done, and copies its shaped output to out.
func runOnce(ctx context.Context, file string, cfg config.Config, errorMarker string, out io.Writer) (lib.ExitSignal, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return lib.ExitSignal{}, err
	}
	target, err := findTarget(abs)
	if err != nil {
		return lib.ExitSignal{}, err
	}

	storage := output_storage.RunNewOutputStorage()
	printed := make(chan error, 1)
	// One run, cleared once before it starts: plain data is all there is.
	chunks := storage.Subscribe(context.Background(), 64)
	go func() { printed <- copyOutput(chunks, out) }()

	sup := runner.NewSupervisor(storage)
	sup.SetMaxLines(cfg.MaxLines)
	sup.SetPrintTimestamp(cfg.PrintTimestamp)
	sup.SetErrorMarker(errorMarker)

	command, args, dir := coordinator.LaunchCommand(target, abs, cfg, config.IsWindows())
	if err := sup.Start(command, args, true, dir); err != nil {
		storage.Stop()
		<-printed
		return lib.ExitSignal{}, err
	}

	var sig lib.ExitSignal
	select {
	case sig = <-sup.WaitForEnd():
	case <-ctx.Done():
		if err := sup.Stop(context.Background()); err != nil {
			logger.WithError(err).Warn("stop failed")
		}
		sig = <-sup.WaitForEnd()
	}
	if sig.IsAlreadyEnded() {
		if last, ok := sup.LastExit(); ok {
			sig = last
		}
	}

	storage.Stop()
	if err := <-printed; err != nil {
		return sig, err
	}
	return sig, nil
}
