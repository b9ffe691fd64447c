package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	appLog "roomcal/internal/log"
)

const (
	appName    = "roomcal"
	appVersion = "0.1.0"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	app := cli.App{
		Name:    appName,
		Usage:   "Export recurring room schedules as iCalendar files",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:   "config",
				Usage:  "Path to config file",
				Value:  "./roomcal.yaml",
				EnvVar: "ROOMCAL_CONFIG",
			},
			&cli.StringFlag{
				Name:   "source",
				Usage:  "Schedule dataset path or URL (overrides config)",
				EnvVar: "ROOMCAL_SOURCE",
			},
			&cli.StringFlag{
				Name:   "timezone",
				Usage:  "IANA timezone of the rooms (overrides config)",
				EnvVar: "ROOMCAL_TIMEZONE",
			},
			&cli.BoolFlag{
				Name:   "debug",
				Usage:  "Output debug messages",
				EnvVar: "ROOMCAL_DEBUG",
			},
		},
		Commands: []cli.Command{
			exportCmd,
			serveCmd,
		},
	}

	err := app.Run(os.Args)
	appLog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
