package cli

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/flatmapit/printscp/internal/config"
	"github.com/flatmapit/printscp/internal/server"
	"github.com/flatmapit/printscp/internal/sink"
)

// ServeCommand returns the "serve" command, the sole subcommand: this
// service has no SCU-side commands, only a Print SCP to run (§6).
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the DICOM Print SCP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "TCP port to listen on",
				Value: 4242,
			},
			&cli.StringFlag{
				Name:  "ae-title",
				Usage: "Called AE title this service accepts",
			},
			&cli.IntFlag{
				Name:  "max-assoc",
				Usage: "Maximum concurrent associations",
			},
			&cli.IntFlag{
				Name:  "pdu-size",
				Usage: "Maximum PDU length offered during negotiation",
			},
			&cli.IntFlag{
				Name:  "idle-timeout",
				Usage: "Idle association timeout in seconds",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory rendered pages and PDFs are written to",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, _ := c.Context.Value(ctxConfigKey).(*config.Config)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if c.IsSet("ae-title") {
		cfg.Network.AETitle = c.String("ae-title")
	}
	if c.IsSet("max-assoc") {
		cfg.Network.MaxAssociations = c.Int("max-assoc")
	}
	if c.IsSet("pdu-size") {
		cfg.Network.MaxPDULength = c.Int("pdu-size")
	}
	if c.IsSet("idle-timeout") {
		cfg.Network.IdleTimeoutSec = c.Int("idle-timeout")
	}
	if c.IsSet("output-dir") {
		cfg.Storage.OutputDir = c.String("output-dir")
	}
	port := c.Int("port")
	if !c.IsSet("port") && cfg.Network.Port != 0 {
		port = cfg.Network.Port
	}
	if port == 0 {
		port = 4242
	}

	log := logrus.WithField("component", "printscp")

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		return fmt.Errorf("serve: creating output dir: %w", err)
	}
	jobSink := sink.NewFilesystemSink(cfg.Storage.OutputDir, log)

	srvCfg := server.Config{
		AETitle:         cfg.Network.AETitle,
		MaxAssociations: cfg.Network.MaxAssociations,
		MaxPDULength:    uint32(cfg.Network.MaxPDULength),
		IdleTimeout:     cfg.IdleTimeout(),
		RequestTimeout:  cfg.RequestTimeout(),
		PrintTimeout:    cfg.PrintTimeout(),
		MaxPixelBytes:   cfg.Network.MaxPixelBytes,
		SwapRowsColumns: cfg.Network.SwapRowsColumns,
		OutputDir:       cfg.Storage.OutputDir,
	}
	srv := server.New(srvCfg, jobSink, log)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return cli.Exit(fmt.Errorf("serve: listen: %w", err), 70)
	}
	defer listener.Close()

	if err := srv.Serve(context.Background(), listener); err != nil {
		return cli.Exit(err, 70)
	}
	return nil
}
