package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"nostr-torrent/internal/aggregator"
	"nostr-torrent/internal/config"
	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
)

var searchCmd = &cli.Command{
	Name:      "search",
	Usage:     "Search relays for torrent announcements",
	ArgsUsage: "<query>",
	Description: `A query with commas is a list of topic tags ("ubuntu, linux").
A query with spaces is a list of keywords that must all appear.
A single word must match as both.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "relays",
			Usage: "comma separated relay URLs (default from config)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "per-relay result limit, 1-200 (default from config)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print one JSON announcement per line",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "hide status lines",
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg := config.Get()
		req := searchRequest{
			Query:  strings.Join(cctx.Args().Slice(), " "),
			Relays: cctx.String("relays"),
			Limit:  cctx.Int("limit"),
		}
		relays, limit := req.resolve(cfg)

		ctx, stop := signalContext(cctx.Context)
		defer stop()

		out := cctx.App.Writer
		p := &resultPrinter{w: out, json: cctx.Bool("json"), quiet: cctx.Bool("quiet")}
		final := runSearch(ctx, newAggregator(cfg), relays, req.Query, limit, searchHandlers{
			OnStatus: p.status,
			OnResult: p.result,
		})

		if final.Kind == aggregator.StatusConfigError {
			return fmt.Errorf("%s", final.String())
		}
		return nil
	},
}

var (
	statusColor = color.New(color.Faint)
	errorColor  = color.New(color.FgRed)
	doneColor   = color.New(color.FgGreen)
	titleColor  = color.New(color.Bold)
	chipColor   = color.New(color.FgCyan)
)

// resultPrinter writes search output for terminals
type resultPrinter struct {
	w     io.Writer
	json  bool
	quiet bool
	n     int
}

func (p *resultPrinter) status(st aggregator.Status) {
	if p.quiet || p.json {
		return
	}
	switch st.Kind {
	case aggregator.StatusResult:
		// results are printed as they arrive
	case aggregator.StatusRelayError, aggregator.StatusConfigError:
		errorColor.Fprintln(p.w, st.String())
	case aggregator.StatusComplete:
		doneColor.Fprintln(p.w, st.String())
	default:
		statusColor.Fprintln(p.w, st.String())
	}
}

func (p *resultPrinter) result(ann types.Announcement) {
	p.n++
	if p.json {
		line, err := json.Marshal(ann)
		if err == nil {
			fmt.Fprintln(p.w, string(line))
		}
		return
	}
	writeAnnouncement(p.w, p.n, &ann)
}

// writeAnnouncement prints one result the way the web list shows it
func writeAnnouncement(w io.Writer, n int, ann *types.Announcement) {
	meta := []string{ann.ShortInfoHash()}
	if ann.TotalSize > 0 {
		meta = append(meta, util.FormatBytes(ann.TotalSize))
	}
	if len(ann.Files) > 0 {
		meta = append(meta, humanize.Comma(int64(len(ann.Files)))+" files")
	}
	if ann.CreatedAt > 0 {
		meta = append(meta, humanize.Time(time.Unix(ann.CreatedAt, 0)))
	}

	fmt.Fprintf(w, "%3d. %s  [%s]\n", n, titleColor.Sprint(ann.Title), strings.Join(meta, " · "))

	var chips []string
	for _, t := range ann.Topics {
		chips = append(chips, "t:"+t)
	}
	for _, i := range ann.Refs {
		chips = append(chips, "i:"+i)
	}
	if len(chips) > 0 {
		fmt.Fprintf(w, "     %s\n", chipColor.Sprint(strings.Join(chips, " ")))
	}
	for _, f := range util.LimitSlice(ann.Files, resultFileSummary) {
		fmt.Fprintf(w, "     %s (%s)\n", f.Name, util.FormatBytes(f.Size))
	}
	if ann.Relay != "" {
		fmt.Fprintf(w, "     via %s\n", ann.Relay)
	}
	fmt.Fprintf(w, "     %s\n", ann.MagnetURI)
}
