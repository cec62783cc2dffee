package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"nostr-torrent/internal/config"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "nostr-torrent",
		Usage: "Search nostr relays for torrent announcements and fetch them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a config file (default: nostr-torrent.* in . or ./config)",
				EnvVars: []string{"NOSTR_TORRENT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (default from config)",
			},
		},
		Before: func(cctx *cli.Context) error {
			// Log to stderr until the config is known, so config errors are visible
			InitLogger(os.Stderr, cctx.String("log-level"))
			if err := config.Init(cctx.String("config")); err != nil {
				return err
			}
			level := cctx.String("log-level")
			if level == "" {
				level = config.Get().Log.Level
			}
			InitLogger(os.Stderr, level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd,
			searchCmd,
			fetchCmd,
			filesCmd,
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
