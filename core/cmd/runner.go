// Package cmd is the shared entry point of bot binaries: flags, config
// loading, bootstrap and the Telegram run loop bound to SIGINT/SIGTERM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/m3rciful/memebot/core/buildinfo"
	coreconfig "github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/logger"
	coretelegram "github.com/m3rciful/memebot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app and run the bot.
type Options struct {
	// Name is the program name used in usage output and the version line.
	Name string
	// Args are the command line arguments without the program name.
	Args []string
	// Output receives usage and version output. Defaults to stderr.
	Output io.Writer

	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o *Options) defaults() {
	if o.Name == "" {
		o.Name = filepath.Base(os.Args[0])
	}
	if o.Output == nil {
		o.Output = os.Stderr
	}
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = "CONFIG_PATH"
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
	if o.RunTelegram == nil {
		o.RunTelegram = coretelegram.RunTelegram
	}
}

// Run parses flags, loads configuration, bootstraps the app and serves
// updates until the process is interrupted.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	opts.defaults()

	flags := pflag.NewFlagSet(opts.Name, pflag.ContinueOnError)
	flags.SetOutput(opts.Output)
	configFlag := flags.StringP("config", "c", "", "path to the YAML config (overrides $"+opts.ConfigEnvVar+")")
	version := flags.BoolP("version", "v", false, "print version and exit")
	if err := flags.Parse(opts.Args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("cmd: %w", err)
	}
	if *version {
		_, err := fmt.Fprintln(opts.Output, buildinfo.UserAgent(opts.Name))
		return err
	}

	path := firstNonEmpty(*configFlag, os.Getenv(opts.ConfigEnvVar), opts.DefaultConfigPath)
	if path == "" {
		return fmt.Errorf("cmd: no config path: use --config, $%s or DefaultConfigPath", opts.ConfigEnvVar)
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	withLifecycleLogs(&runOpts, started)
	return opts.RunTelegram(ctx, runOpts)
}

// withLifecycleLogs logs app.ready after a successful OnStart and app.shutdown
// before OnStop.
func withLifecycleLogs(o *coretelegram.RunOptions, started time.Time) {
	start, stop := o.OnStart, o.OnStop
	o.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if start != nil {
			if err := start(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(started))),
		)
		return nil
	}
	o.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if stop == nil {
			return nil
		}
		return stop(ctx, rt)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
