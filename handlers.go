package main

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"nostr-torrent/internal/aggregator"
	"nostr-torrent/internal/config"
	"nostr-torrent/internal/query"
	"nostr-torrent/internal/transfer"
	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
)

const (
	defaultSearchTimeout = 20 * time.Second
	healthPingTimeout    = 2 * time.Second
)

func parseSearchRequest(r *http.Request) searchRequest {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	return searchRequest{
		Query:  q.Get("q"),
		Relays: q.Get("relays"),
		Limit:  limit,
	}
}

// searchOutcome is a finished, non-streaming search
type searchOutcome struct {
	Query   string               `json:"query"`
	Plan    query.Plan           `json:"plan"`
	Relays  []string             `json:"relays"`
	Limit   int                  `json:"limit"`
	Status  string               `json:"status"`
	Final   aggregator.Status    `json:"final"`
	Results []types.Announcement `json:"results"`
}

// collectSearch runs a search to completion and caches the results
func (s *server) collectSearch(ctx context.Context, req searchRequest) searchOutcome {
	cfg := config.Get()
	relays, limit := req.resolve(cfg)

	timeout := s.searchTimeout
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := searchOutcome{
		Query:   req.Query,
		Plan:    query.Parse(req.Query),
		Relays:  relays,
		Limit:   limit,
		Results: []types.Announcement{},
	}
	out.Final = runSearch(ctx, newAggregator(cfg), relays, req.Query, limit, searchHandlers{
		OnResult: func(ann types.Announcement) {
			out.Results = append(out.Results, ann)
		},
	})
	out.Status = out.Final.String()

	if s.announcements != nil && len(out.Results) > 0 {
		if err := s.announcements.PutMultiple(context.WithoutCancel(ctx), out.Results); err != nil {
			LoggerFromContext(ctx).Warn("cache put failed", "results", len(out.Results), "error", err)
		}
	}
	return out
}

// remember caches an announcement for its detail page
func (s *server) remember(ctx context.Context, ann *types.Announcement) {
	if s.announcements == nil {
		return
	}
	if err := s.announcements.Put(ctx, ann); err != nil {
		LoggerFromContext(ctx).Debug("cache put failed", "event_id", ann.EventID, "error", err)
	}
}

func (s *server) searchPageHandler(w http.ResponseWriter, r *http.Request) {
	req := parseSearchRequest(r)
	cfg := config.Get()
	relays, limit := req.resolve(cfg)

	data := searchPageData{
		pageData: pageData{Title: "Search"},
		Query:    req.Query,
		Limit:    limit,
		Relays:   relays,
	}

	if r.URL.Query().Has("q") {
		out := s.collectSearch(r.Context(), req)
		data.Searched = true
		data.Status = out.Status
		data.Plan = out.Plan
		data.Results = out.Results
		if strings.TrimSpace(req.Query) != "" {
			data.Title = "Search: " + req.Query
		}
		if out.Final.Kind == aggregator.StatusConfigError {
			data.Error = out.Status
		}
	}

	renderPage(w, r, searchTmpl, http.StatusOK, data)
}

func (s *server) searchAPIHandler(w http.ResponseWriter, r *http.Request) {
	out := s.collectSearch(r.Context(), parseSearchRequest(r))
	status := http.StatusOK
	if out.Final.Kind == aggregator.StatusConfigError {
		status = http.StatusBadRequest
	}
	util.WriteJSON(w, status, out)
}

func (s *server) announcementHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ann := s.lookupAnnouncement(r.Context(), id)
	if ann == nil {
		renderPage(w, r, announcementTmpl, http.StatusNotFound, announcementPageData{
			pageData: pageData{Title: "Not found", Error: "announcement not seen recently; search for it first"},
		})
		return
	}

	renderPage(w, r, announcementTmpl, http.StatusOK, announcementPageData{
		pageData:     pageData{Title: ann.Title},
		Announcement: ann,
		ContentHTML:  renderMarkdown(ann.Content),
		QRCode:       generateQRCodeDataURL(ann.MagnetURI),
	})
}

func (s *server) lookupAnnouncement(ctx context.Context, id string) *types.Announcement {
	if s.announcements == nil || id == "" {
		return nil
	}
	ann, found, err := s.announcements.Get(ctx, id)
	if err != nil {
		LoggerFromContext(ctx).Warn("cache get failed", "event_id", id, "error", err)
	}
	if !found {
		cacheMissesTotal.Add(1)
		return nil
	}
	cacheHitsTotal.Add(1)
	return ann
}

// addTorrent loads a magnet or info hash, folding in the trackers of
// announcement id if cached. Local .torrent paths are refused.
func (s *server) addTorrent(ctx context.Context, source, extraTrackers, id string) (*transfer.Handle, error) {
	return s.loadTorrent(ctx, extraTrackers, id, func(opts transfer.AddOptions) (*transfer.Handle, error) {
		return s.transfer.AddTorrent(ctx, source, opts)
	})
}

// addTorrentUpload loads an uploaded .torrent file
func (s *server) addTorrentUpload(ctx context.Context, r io.Reader, extraTrackers, id string) (*transfer.Handle, error) {
	return s.loadTorrent(ctx, extraTrackers, id, func(opts transfer.AddOptions) (*transfer.Handle, error) {
		return s.transfer.AddMetaInfo(ctx, r, opts)
	})
}

func (s *server) loadTorrent(ctx context.Context, extraTrackers, id string, load func(transfer.AddOptions) (*transfer.Handle, error)) (*transfer.Handle, error) {
	if s.transfer == nil {
		return nil, errTransferDisabled
	}
	opts := transfer.AddOptions{ExtraTrackers: extraTrackers}
	if ann := s.lookupAnnouncement(ctx, id); ann != nil {
		opts.Trackers = ann.Trackers
	}
	h, err := load(opts)
	if err != nil {
		return nil, err
	}
	torrentsAdded.Add(1)
	return h, nil
}

var errTransferDisabled = errors.New("torrent client is not running")

func (s *server) torrentPageHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := torrentPageData{pageData: pageData{Title: "Torrent"}}

	if source := strings.TrimSpace(q.Get("magnet")); source != "" {
		data.Source = source
		data.ExtraTrackers = q.Get("trackers")
		if _, err := s.addTorrent(r.Context(), source, data.ExtraTrackers, q.Get("id")); err != nil {
			data.Error = err.Error()
			renderPage(w, r, torrentTmpl, transferErrorStatus(err), data)
			return
		}
	}

	if s.transfer != nil {
		if h, err := s.transfer.Current(); err == nil {
			fillTorrentPage(&data, h)
		}
	} else {
		data.Error = errTransferDisabled.Error()
	}
	renderPage(w, r, torrentTmpl, http.StatusOK, data)
}

func fillTorrentPage(data *torrentPageData, h *transfer.Handle) {
	stats := h.Stats()
	data.InfoHash = h.InfoHash()
	data.Name = h.Name()
	data.Trackers = h.Trackers()
	data.Stats = &stats

	files, err := h.Files()
	if err != nil {
		return
	}
	data.Files = files
	if i := transfer.DefaultPreview(files); i >= 0 {
		data.Preview = &files[i]
	}
}

// torrentAddHandler accepts a magnet or info hash in "source", or a
// multipart upload in "torrent"
func (s *server) torrentAddHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		util.RespondBadRequest(w, "invalid form")
		return
	}
	extra, id := r.PostFormValue("trackers"), r.PostFormValue("id")
	source := strings.TrimSpace(r.PostFormValue("source"))

	var err error
	if f, hdr, ferr := r.FormFile("torrent"); ferr == nil {
		defer f.Close()
		LoggerFromContext(r.Context()).Debug("torrent upload", "filename", hdr.Filename, "size", hdr.Size)
		_, err = s.addTorrentUpload(r.Context(), f, extra, id)
	} else if source != "" {
		_, err = s.addTorrent(r.Context(), source, extra, id)
	} else {
		util.RespondBadRequest(w, "source or torrent file is required")
		return
	}

	if err != nil {
		data := torrentPageData{pageData: pageData{Title: "Torrent", Error: err.Error()}, Source: source, ExtraTrackers: extra}
		renderPage(w, r, torrentTmpl, transferErrorStatus(err), data)
		return
	}
	http.Redirect(w, r, "/torrent", http.StatusSeeOther)
}

// transferErrorStatus maps transfer errors to HTTP status codes
func transferErrorStatus(err error) int {
	switch {
	case errors.Is(err, transfer.ErrUnknownSource), errors.Is(err, transfer.ErrFileSource),
		errors.Is(err, transfer.ErrBadMetaInfo):
		return http.StatusBadRequest
	case errors.Is(err, transfer.ErrNoTorrent), errors.Is(err, transfer.ErrFileIndex):
		return http.StatusNotFound
	case errors.Is(err, transfer.ErrNoInfo), errors.Is(err, errTransferDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *server) currentTorrent(w http.ResponseWriter, r *http.Request) *transfer.Handle {
	if s.transfer == nil {
		util.RespondError(w, http.StatusServiceUnavailable, errTransferDisabled.Error(), errTransferDisabled)
		return nil
	}
	h, err := s.transfer.Lookup(r.URL.Query().Get("infohash"))
	if err != nil {
		util.RespondError(w, transferErrorStatus(err), err.Error(), err)
		return nil
	}
	return h
}

func (s *server) torrentStatsHandler(w http.ResponseWriter, r *http.Request) {
	h := s.currentTorrent(w, r)
	if h == nil {
		return
	}
	util.WriteJSON(w, http.StatusOK, struct {
		InfoHash string `json:"infoHash"`
		Name     string `json:"name"`
		transfer.Stats
	}{h.InfoHash(), h.Name(), h.Stats()})
}

func (s *server) torrentFilesHandler(w http.ResponseWriter, r *http.Request) {
	h := s.currentTorrent(w, r)
	if h == nil {
		return
	}
	files, err := h.Files()
	if err != nil {
		w.Header().Set("Retry-After", "2")
		util.RespondError(w, transferErrorStatus(err), err.Error(), err)
		return
	}
	util.WriteJSON(w, http.StatusOK, files)
}

// torrentFileHandler streams one file with range support
func (s *server) torrentFileHandler(w http.ResponseWriter, r *http.Request) {
	h := s.currentTorrent(w, r)
	if h == nil {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		util.RespondBadRequest(w, "invalid file index")
		return
	}

	fr, err := h.OpenFile(r.Context(), index)
	if err != nil {
		util.RespondError(w, transferErrorStatus(err), err.Error(), err)
		return
	}
	defer fr.Close()

	name := path.Base(fr.File.Name)
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		_, ctype = transfer.PreviewByContent(name, fr)
		if _, err := fr.Seek(0, io.SeekStart); err != nil {
			util.RespondError(w, http.StatusInternalServerError, "seek failed", err)
			return
		}
	}
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	// Only media renders inline; everything else downloads, sandboxed
	disposition := "attachment"
	if inlineMedia(ctype) {
		disposition = "inline"
	} else {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'")

	http.ServeContent(w, r, name, h.AddedAt(), fr)
}

// inlineMedia reports whether ctype is audio, video or a raster image
func inlineMedia(ctype string) bool {
	mt, _, err := mime.ParseMediaType(ctype)
	if err != nil {
		return false
	}
	switch {
	case mt == "image/svg+xml":
		return false
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "video/"), strings.HasPrefix(mt, "audio/"):
		return true
	}
	return false
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	loaded := false
	if s.transfer != nil {
		_, err := s.transfer.Current()
		loaded = err == nil
	}
	status, code := "ok", http.StatusOK
	if s.announcements != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.announcements.Ping(ctx); err != nil {
			LoggerFromContext(r.Context()).Warn("cache ping failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	util.WriteJSON(w, code, map[string]interface{}{
		"status":         status,
		"cache":          s.cacheBackend,
		"transfer":       s.transfer != nil,
		"torrent_loaded": loaded,
	})
}
