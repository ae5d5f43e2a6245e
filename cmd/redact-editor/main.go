// Package main runs the redaction editor as an MCP server over stdio.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/redact-editor/internal/collab"
	"github.com/ironsheep/redact-editor/internal/config"
	"github.com/ironsheep/redact-editor/internal/download"
	"github.com/ironsheep/redact-editor/internal/logging"
	"github.com/ironsheep/redact-editor/internal/overlay"
	"github.com/ironsheep/redact-editor/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagServiceURL     = "service-url"
	flagUploadURL      = "upload-url"
	flagProcessURL     = "process-url"
	flagTimeout        = "timeout"
	flagOutputDir      = "output-dir"
	flagViewportWidth  = "viewport-width"
	flagViewportHeight = "viewport-height"
	flagResizeDebounce = "resize-debounce"
	flagNoLabels       = "no-labels"
	flagLogLevel       = "log-level"
	flagDebug          = "debug"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "redact-editor: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:            "redact-editor",
		Usage:           "MCP server for reviewing detected text regions and exporting redacted images",
		HideHelpCommand: true,
		Writer:          out,
		Description: "Communicates via MCP protocol over stdin/stdout. Every flag can also be set\n" +
			"with a " + config.Prefix + "* environment variable; flags win.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagServiceURL, Usage: "base `URL` of the detection and redaction service"},
			&cli.StringFlag{Name: flagUploadURL, Usage: "override the upload endpoint `URL`"},
			&cli.StringFlag{Name: flagProcessURL, Usage: "override the redaction endpoint `URL`"},
			&cli.DurationFlag{Name: flagTimeout, Usage: "per-request timeout for the service"},
			&cli.PathFlag{Name: flagOutputDir, Aliases: []string{"o"}, Usage: "`DIR` redacted images are saved to"},
			&cli.Float64Flag{Name: flagViewportWidth, Usage: "initial viewport width (0 = unbounded)"},
			&cli.Float64Flag{Name: flagViewportHeight, Usage: "initial viewport height (0 = unbounded)"},
			&cli.DurationFlag{Name: flagResizeDebounce, Usage: "coalesce resize redraws within this window"},
			&cli.BoolFlag{Name: flagNoLabels, Usage: "do not number boxes in previews"},
			&cli.StringFlag{Name: flagLogLevel, Usage: "log `LEVEL` (debug, info, warn, error)"},
			&cli.BoolFlag{Name: flagDebug, Aliases: []string{"vvv"}, Usage: "enable debug logging"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(c *cli.Context) error {
					w := c.App.Writer
					fmt.Fprintf(w, "redact-editor %s\n", Version)
					fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
					fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
					return nil
				},
			},
		},
	}
}

// loadConfig reads the environment and applies any flags set on c.
func loadConfig(c *cli.Context, lookup config.Lookup) (*config.Config, error) {
	cfg, err := config.Load(lookup)
	if err != nil && cfg == nil {
		return nil, err
	}
	// conversion errors already fell back to defaults; flags may still fix the rest

	if c.IsSet(flagServiceURL) {
		cfg.ServiceURL = c.String(flagServiceURL)
		if !c.IsSet(flagUploadURL) {
			cfg.UploadURL = ""
		}
		if !c.IsSet(flagProcessURL) {
			cfg.ProcessURL = ""
		}
	}
	if c.IsSet(flagUploadURL) {
		cfg.UploadURL = c.String(flagUploadURL)
	}
	if c.IsSet(flagProcessURL) {
		cfg.ProcessURL = c.String(flagProcessURL)
	}
	if c.IsSet(flagTimeout) {
		cfg.Timeout = c.Duration(flagTimeout)
	}
	if c.IsSet(flagOutputDir) {
		cfg.OutputDir = c.Path(flagOutputDir)
	}
	if c.IsSet(flagViewportWidth) {
		cfg.ViewportWidth = c.Float64(flagViewportWidth)
	}
	if c.IsSet(flagViewportHeight) {
		cfg.ViewportHeight = c.Float64(flagViewportHeight)
	}
	if c.IsSet(flagResizeDebounce) {
		cfg.ResizeDebounce = c.Duration(flagResizeDebounce)
	}
	if c.IsSet(flagNoLabels) {
		cfg.Labels = !c.Bool(flagNoLabels)
	}
	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
	if c.Bool(flagDebug) {
		cfg.LogLevel = "debug"
	}

	if verr := cfg.Validate(); verr != nil {
		return nil, errors.Wrap(verr, "invalid configuration")
	}
	return cfg, err
}

func serve(c *cli.Context) error {
	cfg, cfgErr := loadConfig(c, os.LookupEnv)
	if cfg == nil {
		return cfgErr
	}

	logger, err := logging.New("redact-editor", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Warnw("ignoring invalid environment settings", "error", cfgErr)
	}
	logger.Debugw("starting", "version", Version, "build_time", BuildTime, "commit", GitCommit,
		"upload_url", cfg.UploadURL, "process_url", cfg.ProcessURL, "output_dir", cfg.OutputDir)

	client, err := collab.New(collab.Config{
		UploadURL:  cfg.UploadURL,
		ProcessURL: cfg.ProcessURL,
		Timeout:    cfg.Timeout,
	}, logger.Named("collab"))
	if err != nil {
		return err
	}
	saver, err := download.NewDirSaver(cfg.OutputDir, logger.Named("download"))
	if err != nil {
		return err
	}
	logger.Infow("saving results", "dir", saver.Dir())
	theme, err := overlay.ParseTheme(cfg.Theme)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Uploader:       client,
		Redactor:       client,
		Saver:          saver,
		Theme:          theme,
		Labels:         cfg.Labels,
		Viewport:       cfg.Viewport(),
		ResizeDebounce: cfg.ResizeDebounce,
		Version:        Version,
		Logger:         logger.Named("server"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "server error")
	}
	return nil
}
