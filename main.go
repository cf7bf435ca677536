package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/llehouerou/cadence/internal/app"
	"github.com/llehouerou/cadence/internal/config"
	"github.com/llehouerou/cadence/internal/errmsg"
	"github.com/llehouerou/cadence/internal/mpris"
	"github.com/llehouerou/cadence/internal/notify"
	"github.com/llehouerou/cadence/internal/playback"
	"github.com/llehouerou/cadence/internal/sink"
	"github.com/llehouerou/cadence/internal/state"
	"github.com/llehouerou/cadence/internal/stderr"
	"github.com/llehouerou/cadence/internal/stream"
	"github.com/llehouerou/cadence/internal/tags"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		stderr.WriteOriginal(err.Error() + "\n")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, backend string
	cmd := &cobra.Command{
		Use:           "cadence [files or directories...]",
		Short:         "Terminal music player",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, backend, args)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file, read after the default locations")
	cmd.Flags().StringVar(&backend, "backend", "", "audio backend: speaker, oto or headless")
	return cmd
}

func run(ctx context.Context, configPath, backend string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpConfig, err))
	}
	if backend != "" {
		cfg.Output.Backend = backend
	}

	logger, closeLog, err := openLog(cfg)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := stderr.Start(logger); err != nil {
		logger.Warn("stderr capture unavailable", "err", err)
	}
	defer stderr.Stop()

	dev, err := sink.NewDevice(cfg.Output.Backend)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	buf := stream.New(cfg.BufferCapacity(), cfg.Buffer.BlockFrames)
	out := sink.New(dev, cfg.SinkConfig(), buf, logger)
	ctrl := playback.New(playback.Deps{
		Sink:   out,
		Buffer: buf,
		Open:   playback.DecoderOpener(cfg.DecoderOptions()),
		Logger: logger,
	}, cfg.ControllerConfig())

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	if cfg.MPRISEnabled() {
		bridge, err := mpris.New(ctrl.Commands(), ctrl.Events(), mpris.Options{
			Identity: cfg.MPRIS.Identity,
			Resolve:  resolver(logger),
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("mpris unavailable", "err", err)
		} else {
			defer bridge.Close()
		}
	}

	if cfg.Notify.Enabled {
		bus, err := notify.Dial(cfg.MPRIS.Identity)
		if err != nil {
			logger.Warn("notifications unavailable", "err", err)
		} else {
			defer bus.Close()
			go notify.NewWatcher(bus, logger).Run(ctx, ctrl.Events().Subscribe())
		}
	}

	// Subscribe before the first command so no event is missed.
	model := app.New(ctrl.Commands(), ctrl.Events(), logger)

	var session *state.Session
	if cfg.SessionEnabled() {
		store, err := state.Open(cfg.Session.File)
		if err != nil {
			logger.Warn(errmsg.Format(errmsg.OpSession, err))
		} else {
			defer store.Close()
			store.OnError(func(err error) {
				logger.Warn(errmsg.Format(errmsg.OpSession, err))
			})
			if session, err = store.Load(); err != nil {
				logger.Warn(errmsg.Format(errmsg.OpSession, err))
			}
			sub := ctrl.Events().Subscribe()
			go store.Record(ctx, sub, state.FromSnapshot(ctrl.Events().Snapshot()))
		}
	}

	if err := restore(ctx, ctrl.Commands(), session, len(args) == 0); err != nil {
		cancel()
		<-done
		return err
	}
	if len(args) > 0 {
		if err := enqueue(ctx, ctrl.Commands(), args, logger); err != nil {
			cancel()
			<-done
			return err
		}
	}

	_, uiErr := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()

	_ = ctrl.Commands().TrySubmit(playback.Quit{})
	cancel()
	runErr := <-done

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return runErr
}

// enqueue resolves the command line paths, queues them and starts playback.
func enqueue(ctx context.Context, commands *playback.CommandBus, args []string, logger *slog.Logger) error {
	paths, err := tags.Collect(args)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpResolve, err))
	}
	if len(paths) == 0 {
		return fmt.Errorf("no music files in %v", args)
	}

	resolve := resolver(logger)
	tracks := lo.Map(paths, func(p string, _ int) playback.Track { return resolve(p) })

	if err := commands.Submit(ctx, playback.Enqueue{Tracks: tracks}); err != nil {
		return err
	}
	return commands.Submit(ctx, playback.Play{})
}

// restore applies the saved volume and queue modes and, when withQueue is
// set, queues the tracks from the saved current entry onwards without
// starting playback.
func restore(ctx context.Context, commands *playback.CommandBus, s *state.Session, withQueue bool) error {
	if s == nil {
		return nil
	}
	for _, cmd := range []playback.Command{
		playback.SetVolume{Volume: s.Volume},
		playback.SetRepeat{Mode: s.Repeat},
		playback.SetShuffle{Enabled: s.Shuffle},
	} {
		if err := commands.Submit(ctx, cmd); err != nil {
			return err
		}
	}
	if tracks := s.Remaining(); withQueue && len(tracks) > 0 {
		return commands.Submit(ctx, playback.Enqueue{Tracks: tracks})
	}
	return nil
}

// resolver reads track details, keeping what could be read on failure so
// the controller reports the error when the track is played.
func resolver(logger *slog.Logger) func(string) playback.Track {
	return func(path string) playback.Track {
		t, err := tags.Resolve(path)
		if err != nil {
			logger.Warn(errmsg.FormatWith(errmsg.OpResolve, path, err))
		}
		return t
	}
}

func openLog(cfg *config.Config) (*slog.Logger, func(), error) {
	path, err := cfg.LogFile()
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel()})
	return slog.New(h), func() { _ = f.Close() }, nil
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}
