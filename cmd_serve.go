package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"nostr-torrent/internal/cache"
	"nostr-torrent/internal/config"
	"nostr-torrent/internal/transfer"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Run the web interface",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Usage:   "listen port (default from config)",
			EnvVars: []string{"PORT"},
		},
		&cli.BoolFlag{
			Name:  "no-transfer",
			Usage: "do not start the torrent client",
		},
	},
	Action: func(cctx *cli.Context) error {
		// Servers log JSON to stdout
		InitLogger(os.Stdout, firstNonEmpty(cctx.String("log-level"), config.Get().Log.Level))

		cfg := *config.Get()
		if port := cctx.String("port"); port != "" {
			cfg.Server.Port = port
		}

		backend, backendName := cache.Open(cctx.Context, cache.Options{
			Backend:    cfg.Cache.Backend,
			RedisURL:   cfg.Cache.RedisURL,
			MaxEntries: cfg.Cache.MaxEntries,
		})
		defer backend.Close()

		s := &server{
			announcements: cache.NewAnnouncements(backend, cfg.Cache.AnnouncementTTL),
			cacheBackend:  backendName,
		}

		if !cctx.Bool("no-transfer") {
			tc, err := transfer.NewClient(transferConfig(&cfg))
			if err != nil {
				slog.Warn("torrent client unavailable", "error", err)
			} else {
				s.transfer = tc
				defer tc.Close()
			}
		}

		initTemplates()

		ctx, stop := signalContext(cctx.Context)
		defer stop()
		return serve(ctx, &cfg, s)
	},
}

func transferConfig(cfg *config.Config) transfer.Config {
	return transfer.Config{
		DataDir:  cfg.Transfer.DataDir,
		Trackers: cfg.Transfer.Trackers,
		NoUpload: cfg.Transfer.NoUpload,
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
