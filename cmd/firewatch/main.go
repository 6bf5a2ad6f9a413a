package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	app := &cli.App{
		Name:    "firewatch",
		Usage:   "Watch a video source for fire or smoke and email an alert",
		Version: fmt.Sprintf("%s (%s)", Version, Commit),
		Flags:   flags(),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "firewatch: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
			EnvVars: []string{"FIREWATCH_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "video",
			Usage: "Video file, stream URL or camera index",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Capture backend: gocv or ffmpeg",
		},
		&cli.IntFlag{
			Name:  "interval",
			Usage: "Seconds between analysis samples",
		},
		&cli.StringFlag{
			Name:  "locality",
			Usage: "Where emergency contacts should come from",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a preview window",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address, e.g. :9090",
		},
	}
}
