package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	internalcli "github.com/flatmapit/printscp/internal/cli"
	"github.com/flatmapit/printscp/internal/config"
)

var (
	Version   = "0.0.1-beta"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	app := &cli.App{
		Name:    "printscp",
		Usage:   "A DICOM Print SCP: accepts associations, renders Film Box layouts, and writes them to disk",
		Version: fmt.Sprintf("%s (built: %s, commit: %s)", Version, BuildDate, GitCommit),
		Authors: []*cli.Author{
			{Name: "flatmapit.com", Email: "contact@flatmapit.com"},
		},
		Copyright: "© 2025 flatmapit.com - Licensed under the MIT License",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				EnvVars: []string{"PRINTSCP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"PRINTSCP_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			configPath := c.String("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				if configPath != "" {
					return cli.Exit(fmt.Errorf("config error: %w", err), 64)
				}
				cfg = config.DefaultConfig()
			}
			if c.String("log-level") != "" {
				cfg.Logging.Level = c.String("log-level")
			}
			if err := initLogging(cfg.Logging); err != nil {
				return cli.Exit(fmt.Errorf("failed to initialize logging: %w", err), 64)
			}
			c.Context = context.WithValue(c.Context, internalcli.CtxConfigKey, cfg)
			return nil
		},
		Commands: []*cli.Command{
			internalcli.ServeCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logrus.Errorf("application error: %v", err)
		cli.HandleExitCoder(err)
		os.Exit(1)
	}
}

func initLogging(cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		logrus.SetOutput(file)
	}

	return nil
}
