package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"roomcal/internal/config"
	"roomcal/internal/export"
	appLog "roomcal/internal/log"
	"roomcal/internal/source"
	"roomcal/internal/web"
	"roomcal/internal/worker"
)

var exportCmd = cli.Command{
	Name:  "export",
	Usage: "Writes one calendar per room of a term",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "term",
			Usage: "Term to export",
		},
		&cli.StringSliceFlag{
			Name:  "room",
			Usage: "Room to export, repeatable. Defaults to every room of the term",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "Output directory (overrides config output_dir)",
		},
		&cli.BoolFlag{
			Name:  "bundle",
			Usage: "Also write every document into a single zip archive",
		},
	},
	Action: runExport,
}

var serveCmd = cli.Command{
	Name:  "serve",
	Usage: "Serves calendars over HTTP and regenerates them on schedule",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:   "listen",
			Usage:  "HTTP listen address (overrides config)",
			EnvVar: "ROOMCAL_LISTEN",
		},
	},
	Action: runServe,
}

// setup loads the config, applies global overrides and builds the shared
// components.
func setup(c *cli.Context) (*config.Config, *source.Fetcher, *export.Exporter, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if v := c.GlobalString("source"); v != "" {
		cfg.Source = v
	}
	if v := c.GlobalString("timezone"); v != "" {
		cfg.Timezone = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if c.GlobalBool("debug") {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, nil, err
	}
	exp, err := export.New(export.Options{
		Location:  loc,
		ProductID: cfg.ProductID,
		UIDDomain: cfg.UIDDomain,
		Workers:   cfg.Workers,
		Verify:    cfg.VerifyOutput,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	appLog.Info("effective config",
		"source", cfg.Source,
		"timezone", cfg.Timezone,
		"output_dir", cfg.OutputDir,
		"refresh", cfg.RefreshCron,
		"workers", cfg.Workers,
		"verify_output", cfg.VerifyOutput,
	)
	return cfg, source.NewFetcher(cfg.CacheDir), exp, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runExport(c *cli.Context) error {
	term := c.String("term")
	if term == "" {
		return errors.New("--term is required")
	}
	cfg, fetcher, exp, err := setup(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	ds, err := fetcher.Load(ctx, cfg.Source)
	if err != nil {
		return err
	}
	req, err := ds.Request(term, c.StringSlice("room"))
	if err != nil {
		return err
	}
	res, err := exp.Export(ctx, req)
	if err != nil {
		return err
	}

	for _, o := range res.Omitted {
		appLog.Info("room omitted", "room", o.Room, "skips", len(o.Skips))
	}
	out := cfg.OutputDir
	if v := c.String("out"); v != "" {
		out = v
	}
	paths, err := export.WriteFiles(out, res)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	if c.Bool("bundle") && len(res.Documents) > 0 {
		p, err := export.WriteBundleFile(out, res)
		if err != nil {
			return err
		}
		fmt.Println(p)
	}
	fmt.Fprintln(os.Stderr, res.Summary())
	return nil
}

func runServe(c *cli.Context) error {
	cfg, fetcher, exp, err := setup(c)
	if err != nil {
		return err
	}
	if v := c.String("listen"); v != "" {
		cfg.Listen = v
	}
	ctx, cancel := signalContext()
	defer cancel()

	srv := web.NewServer(cfg, fetcher, exp)
	wk := worker.New(worker.Config{
		Source:    cfg.Source,
		OutputDir: cfg.OutputDir,
		Terms:     cfg.Terms,
		Spec:      cfg.RefreshCron,
	}, fetcher, exp)
	wk.OnRun = srv.Invalidate

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := wk.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		wk.Stop()
		return nil
	})
	g.Go(func() error {
		return srv.Run(ctx)
	})
	err = g.Wait()
	appLog.Info("roomcal exiting")
	return err
}
