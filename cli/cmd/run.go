// Package cmd provides CLI commands for the reporter binary.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/probelab/reporter/broker"
	"github.com/probelab/reporter/channel"
	"github.com/probelab/reporter/cli/config"
	"github.com/probelab/reporter/cli/tui"
	"github.com/probelab/reporter/iox"
	rlog "github.com/probelab/reporter/log"
	"github.com/probelab/reporter/metrics"
	"github.com/probelab/reporter/runtime"
	"github.com/probelab/reporter/sink"
	"github.com/probelab/reporter/sut"
)

// Exit codes of the acquisition binary.
const (
	exitSuccess   = 0
	exitSUTError  = -1
	exitConfigErr = -2
	exitReporter  = -3
)

// RunCommand returns the run command, the only execution entrypoint.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Acquire runtime events from an instrumented SUT binary",
		ArgsUsage: "<sut>",
		UsageText: `reporter run <sut> [options]

EXAMPLES:
  # Publish events to the broker configured in ./rabbitmq_config.toml
  reporter run ./my-sut

  # Write per-component CSV logs next to the SUT binary instead
  reporter run ./my-sut --sink files

  # Bounded acquisition with a live status view
  reporter run ./my-sut --timeout 30 --status`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file (project-level defaults for reporter run)",
			},
			&cli.StringFlag{
				Name:  "rabbitmq_config_file",
				Usage: "Path to the TOML broker configuration",
				Value: "./rabbitmq_config.toml",
			},
			&cli.StringFlag{
				Name:  "log_level",
				Usage: "Log level: debug, info, warnings, errors, critical",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log_file",
				Usage: "Log destination file (default: console)",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Acquisition timeout in seconds (0 = no timeout)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "sink",
				Usage: "Sink variant: broker or files",
				Value: "broker",
			},
			&cli.StringFlag{
				Name:  "files_path",
				Usage: "Output directory for the files sink (default: the SUT's directory)",
			},
			&cli.StringFlag{
				Name:  "codec",
				Usage: "Broker message body codec: csv, json, or msgpack",
				Value: "csv",
			},
			&cli.StringFlag{
				Name:  "packet_layout",
				Usage: "SUT packet layout: canonical or legacy",
				Value: "canonical",
			},
			&cli.DurationFlag{
				Name:  "pacing",
				Usage: "Sleep between routed events (0 disables)",
				Value: runtime.DefaultPacing,
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show a live status view of the acquisition counters",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("exactly one SUT binary path is required", exitSUTError)
	}
	sutPath := c.Args().First()

	// Load config file if --config is provided
	var cfg *config.Config
	if configPath := c.String("config"); configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitConfigErr)
		}
		cfg = loaded
	}

	// Resolve values with precedence: CLI flag > config file > flag default
	sinkName := resolveString(c, "sink", configVal(cfg, func(c *config.Config) string { return c.Sink }))
	filesPath := resolveString(c, "files_path", configVal(cfg, func(c *config.Config) string { return c.FilesPath }))
	codecName := resolveString(c, "codec", configVal(cfg, func(c *config.Config) string { return c.Codec }))
	layoutName := resolveString(c, "packet_layout", configVal(cfg, func(c *config.Config) string { return c.PacketLayout }))
	brokerPath := resolveString(c, "rabbitmq_config_file", configVal(cfg, func(c *config.Config) string { return c.RabbitMQConfigFile }))
	levelName := resolveString(c, "log_level", configVal(cfg, func(c *config.Config) string { return c.LogLevel }))
	logFile := resolveString(c, "log_file", configVal(cfg, func(c *config.Config) string { return c.LogFile }))

	timeout := c.Int("timeout")
	if !c.IsSet("timeout") && cfg != nil && cfg.Timeout != 0 {
		timeout = cfg.Timeout
	}
	if timeout < 0 {
		timeout = 0
	}

	pacing := c.Duration("pacing")
	if !c.IsSet("pacing") && cfg != nil && cfg.Pacing.Duration != 0 {
		pacing = cfg.Pacing.Duration
	}
	if pacing == 0 {
		// Zero selects the default inside the pipeline; negative disables.
		pacing = -1
	}

	if err := sut.ValidatePath(sutPath); err != nil {
		return cli.Exit(fmt.Sprintf("SUT binary error: %v", err), exitSUTError)
	}

	level, err := rlog.ParseLevel(levelName)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigErr)
	}
	logWriter := os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot open log file: %v", err), exitConfigErr)
		}
		defer iox.DiscardClose(f)
		logWriter = f
	}
	logger := rlog.NewLogger(level, logWriter)
	defer iox.DiscardErr(logger.Sync)

	var layout channel.Conf
	switch layoutName {
	case "canonical", "":
		layout = channel.Canonical()
	case "legacy":
		layout = channel.Legacy()
	default:
		return cli.Exit(fmt.Sprintf("unknown packet layout %q (use canonical or legacy)", layoutName), exitConfigErr)
	}

	counters := metrics.NewCounters()
	control := runtime.NewControlState()

	signals := runtime.NewSignalSource()
	signals.Start(control)
	defer signals.Stop()

	manual := runtime.NewManualSource()
	manual.Start(control)

	ctx := context.Background()

	router, err := buildRouter(ctx, sinkName, sutPath, filesPath, codecName, brokerPath, counters, logger)
	if err != nil {
		return err
	}

	reporter, err := runtime.NewReporter(&runtime.Config{
		Source:  sut.NewProcess(sutPath),
		Conf:    layout,
		Router:  router,
		Control: control,
		Timeout: time.Duration(timeout) * time.Second,
		Pacing:  pacing,
		Logger:  logger,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("reporter setup failed: %v", err), exitReporter)
	}

	start := time.Now()
	var result *runtime.Result
	var runErr error

	if c.Bool("status") {
		done := make(chan struct{})
		go func() {
			result, runErr = reporter.Run(ctx)
			close(done)
		}()
		if tuiErr := tui.RunStatusTUI(counters, manual, control.Paused, done, start); tuiErr != nil {
			logger.Warn("status view failed", map[string]any{"error": tuiErr.Error()})
		}
		<-done
	} else {
		result, runErr = reporter.Run(ctx)
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("acquisition failed: %v", runErr), exitReporter)
	}

	fmt.Printf("events=%d, duration=%s, reason=%q\n",
		result.Events,
		result.Duration.Round(time.Millisecond),
		result.Reason,
	)
	return cli.Exit("", exitSuccess)
}

// buildRouter constructs the configured sink variant. Broker configuration
// and connection failures are config errors; file sink failures are
// reporter errors.
func buildRouter(ctx context.Context, sinkName, sutPath, filesPath, codecName, brokerPath string, counters *metrics.Counters, logger *rlog.Logger) (sink.Router, error) {
	switch sinkName {
	case "files":
		dir := filesPath
		if dir == "" {
			dir = filepath.Dir(sutPath)
		}
		router, err := sink.NewFileRouter(dir, counters, logger)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("cannot open event logs: %v", err), exitReporter)
		}
		return router, nil

	case "broker":
		codec, err := broker.NewCodec(codecName)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitConfigErr)
		}
		data, err := os.ReadFile(brokerPath)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("broker config error: %v", err), exitConfigErr)
		}
		serverCfg, err := broker.ParseServerConfig([]byte(config.ExpandEnv(string(data))))
		if err != nil {
			return nil, cli.Exit(err.Error(), exitConfigErr)
		}
		client, err := broker.Connect(ctx, serverCfg, logger)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("broker error: %v", err), exitConfigErr)
		}
		return sink.NewBrokerRouter(client, codec, counters, logger), nil

	default:
		return nil, cli.Exit(fmt.Sprintf("unknown sink %q (use broker or files)", sinkName), exitConfigErr)
	}
}

// resolveString returns the CLI flag value if explicitly set, else the config
// value if non-empty, else the urfave default.
func resolveString(c *cli.Context, flag string, configVal string) string {
	if c.IsSet(flag) {
		return c.String(flag)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(flag)
}

// configVal safely extracts a string value from an optional config.
func configVal(cfg *config.Config, fn func(*config.Config) string) string {
	if cfg == nil {
		return ""
	}
	return fn(cfg)
}
