// Command myi2cd is the driver daemon for BMP280-class I2C sensors. It
// binds the sensor described by the platform, publishes the myi2cdev
// interface socket and serves commands until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/ardnew/softi2c/config"
	"github.com/ardnew/softi2c/pkg"
	"github.com/ardnew/softi2c/pkg/prof"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()

	app.Name = "myi2cd"
	app.Version = version
	app.Usage = "I2C pressure sensor driver daemon"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "load configuration from `FILE`",
			EnvVar: "SOFTI2C_CONFIG",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override logging.level (debug, info, warn, error)",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "log as JSON",
		},
		cli.StringFlag{
			Name:  "cpuprofile",
			Usage: "write a CPU profile to `FILE` (profile builds)",
		},
		cli.StringFlag{
			Name:  "memprofile",
			Usage: "write a heap profile to `FILE` at exit (profile builds)",
		},
		cli.StringFlag{
			Name:  "pprof",
			Usage: "serve /debug/pprof on `ADDR` (profile builds)",
		},
	}

	app.Action = serve

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "myi2cd: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if c.Bool("json") {
		cfg.Logging.Format = "json"
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}

	popts := prof.Options{
		CPUProfile:  c.String("cpuprofile"),
		HeapProfile: c.String("memprofile"),
		HTTPAddr:    c.String("pprof"),
	}
	if popts.Requested() && !prof.Enabled {
		pkg.LogWarn(pkg.ComponentDaemon, "profiling flags ignored; rebuild with -tags profile")
	}
	session, err := prof.Start(popts)
	if err != nil {
		return fmt.Errorf("start profiling: %w", err)
	}
	defer session.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pkg.LogInfo(pkg.ComponentDaemon, "started",
		"version", version,
		"device", cfg.Device.Name,
		"compatible", cfg.Device.Compatible,
		"bus", cfg.Bus.Kind)

	return newDaemon(cfg).run(ctx)
}

func setupLogging(lc config.LoggingConfig) error {
	level, err := pkg.ParseLogLevel(lc.Level)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(lc.Format)
	if err != nil {
		return err
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)
	return nil
}
