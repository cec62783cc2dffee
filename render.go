package main

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/skip2/go-qrcode"
	"github.com/yuin/goldmark"

	"nostr-torrent/internal/nostr"
	"nostr-torrent/internal/query"
	"nostr-torrent/internal/transfer"
	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
	"nostr-torrent/templates"
)

// resultFileSummary is how many files a result lists before "… N files"
const resultFileSummary = 5

var templateFuncs = template.FuncMap{
	"fmtBytes": util.FormatBytes,
	"fmtRate": func(bps float64) string {
		return humanize.IBytes(uint64(bps)) + "/s"
	},
	"formatTime": func(ts int64) string {
		return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
	},
	"humanTime": func(ts int64) string {
		return humanize.Time(time.Unix(ts, 0))
	},
	"percent": func(p float64) string {
		return strconv.Itoa(int(p * 100))
	},
	"firstFiles": func(files []types.FileEntry) []types.FileEntry {
		return util.LimitSlice(files, resultFileSummary)
	},
	"shortID": nostr.ShortID,
	"join":    strings.Join,
}

var (
	searchTmpl       *template.Template
	announcementTmpl *template.Template
	torrentTmpl      *template.Template
)

// initTemplates compiles every page once at startup
func initTemplates() {
	base := templates.GetBaseTemplates()
	searchTmpl = util.MustCompileTemplate("search", templateFuncs, base+templates.GetSearchTemplate())
	announcementTmpl = util.MustCompileTemplate("announcement", templateFuncs, base+templates.GetAnnouncementTemplate())
	torrentTmpl = util.MustCompileTemplate("torrent", templateFuncs, base+templates.GetTorrentTemplate())
	slog.Debug("templates compiled")
}

type pageData struct {
	Title string
	Error string
}

type searchPageData struct {
	pageData
	Query    string
	Limit    int
	Relays   []string
	Searched bool
	Status   string
	Plan     query.Plan
	Results  []types.Announcement
}

type announcementPageData struct {
	pageData
	Announcement *types.Announcement
	ContentHTML  template.HTML
	QRCode       template.URL
}

type torrentPageData struct {
	pageData
	Source        string
	ExtraTrackers string
	InfoHash      string
	Name          string
	Trackers      []string
	Stats         *transfer.Stats
	Files         []transfer.File
	Preview       *transfer.File
}

func renderPage(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		LoggerFromContext(r.Context()).Error("template render failed", "template", tmpl.Name(), "error", err)
		util.RespondError(w, http.StatusInternalServerError, "render failed", err)
		return
	}
	util.SetHTMLHeaders(w, 0)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

var contentPolicy = bluemonday.UGCPolicy()

// renderMarkdown converts announcement content to sanitized HTML
func renderMarkdown(content string) template.HTML {
	if content == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(contentPolicy.SanitizeBytes(buf.Bytes()))
}

// generateQRCodeDataURL encodes content as a PNG data URL
func generateQRCodeDataURL(content string) template.URL {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		slog.Error("failed to generate QR code", "error", err)
		return ""
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}
