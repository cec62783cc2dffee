package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"nostr-torrent/internal/config"
	"nostr-torrent/internal/transfer"
)

var transferFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "trackers",
		Usage: "extra trackers, comma separated",
	},
	&cli.StringFlag{
		Name:  "data-dir",
		Usage: "download directory (default from config)",
	},
}

func openTransfer(cctx *cli.Context) (*transfer.Client, error) {
	tcfg := transferConfig(config.Get())
	if dir := cctx.String("data-dir"); dir != "" {
		tcfg.DataDir = dir
	}
	return transfer.NewClient(tcfg)
}

func sourceArg(cctx *cli.Context) (string, error) {
	source := strings.TrimSpace(cctx.Args().First())
	if source == "" {
		return "", fmt.Errorf("missing magnet URI, info hash or .torrent path")
	}
	return source, nil
}

var fetchCmd = &cli.Command{
	Name:      "fetch",
	Usage:     "Download a torrent, printing progress",
	ArgsUsage: "<magnet|infohash|file.torrent>",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "progress print interval",
			Value: time.Second,
		},
	}, transferFlags...),
	Action: func(cctx *cli.Context) error {
		source, err := sourceArg(cctx)
		if err != nil {
			return err
		}
		tc, err := openTransfer(cctx)
		if err != nil {
			return err
		}
		defer tc.Close()

		ctx, stop := signalContext(cctx.Context)
		defer stop()

		h, err := tc.AddTorrent(ctx, source, transfer.AddOptions{ExtraTrackers: cctx.String("trackers"), AllowFiles: true})
		if err != nil {
			return err
		}
		statusColor.Fprintf(cctx.App.Writer, "loaded %s with %d trackers\n", h.InfoHash(), len(h.Trackers()))

		return watchProgress(ctx, cctx.App.Writer, h, cctx.Duration("interval"))
	},
}

// watchProgress prints stats until the torrent completes or ctx ends
func watchProgress(ctx context.Context, w io.Writer, h *transfer.Handle, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return nil
		case <-ticker.C:
			st := h.Stats()
			fmt.Fprintf(w, "\r%s", progressLine(h.Name(), st))
			if st.Done {
				fmt.Fprintln(w)
				doneColor.Fprintf(w, "done: %s\n", h.Name())
				return nil
			}
		}
	}
}

func progressLine(name string, st transfer.Stats) string {
	if !st.HasInfo {
		return fmt.Sprintf("fetching metadata… %d peers", st.Peers)
	}
	return fmt.Sprintf("%s  %5.1f%%  %s / %s  ↓ %s/s  ↑ %s/s  %d peers",
		name,
		st.Progress*100,
		humanize.IBytes(uint64(st.Downloaded)),
		humanize.IBytes(uint64(st.Length)),
		humanize.IBytes(uint64(st.DownloadRate)),
		humanize.IBytes(uint64(st.UploadRate)),
		st.Peers)
}

var filesCmd = &cli.Command{
	Name:      "files",
	Usage:     "List the files of a torrent once its metadata arrives",
	ArgsUsage: "<magnet|infohash|file.torrent>",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to wait for metadata",
			Value: time.Minute,
		},
	}, transferFlags...),
	Action: func(cctx *cli.Context) error {
		source, err := sourceArg(cctx)
		if err != nil {
			return err
		}
		tc, err := openTransfer(cctx)
		if err != nil {
			return err
		}
		defer tc.Close()

		ctx, stop := signalContext(cctx.Context)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
		defer cancel()

		h, err := tc.AddTorrent(ctx, source, transfer.AddOptions{ExtraTrackers: cctx.String("trackers"), WaitInfo: true, AllowFiles: true})
		if errors.Is(err, transfer.ErrNoInfo) {
			return fmt.Errorf("no metadata within %s", cctx.Duration("timeout"))
		}
		if err != nil {
			return err
		}

		files, err := h.Files()
		if err != nil {
			return err
		}
		writeFiles(cctx.App.Writer, h.Name(), files)
		return nil
	},
}

// writeFiles prints a file table; the default preview is starred
func writeFiles(w io.Writer, name string, files []transfer.File) {
	titleColor.Fprintln(w, name)
	preview := transfer.DefaultPreview(files)
	for _, f := range files {
		mark := " "
		if f.Index == preview {
			mark = "*"
		}
		kind := string(f.Preview)
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(w, "%s %3d  %10s  %-5s  %s\n", mark, f.Index, humanize.IBytes(uint64(f.Length)), kind, f.Name)
	}
}
