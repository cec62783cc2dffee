package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/anacrolix/torrent"
)

// File describes one file of a loaded torrent
type File struct {
	Index     int         `json:"index"`
	Name      string      `json:"name"`
	Length    int64       `json:"length"`
	Completed int64       `json:"completed"`
	Preview   PreviewKind `json:"preview,omitempty"`
}

// Stats is a point-in-time view of transfer progress
type Stats struct {
	Peers        int     `json:"peers"`
	Downloaded   int64   `json:"downloaded"`
	Length       int64   `json:"length"`
	DownloadRate float64 `json:"downloadRate"`
	UploadRate   float64 `json:"uploadRate"`
	Progress     float64 `json:"progress"`
	Done         bool    `json:"done"`
	HasInfo      bool    `json:"hasInfo"`
}

// Handle is a torrent loaded into a Client
type Handle struct {
	t        *torrent.Torrent
	trackers []string
	added    time.Time
	rates    rateSampler
}

func (h *Handle) InfoHash() string {
	return h.t.InfoHash().HexString()
}

// Name is the torrent's display name; empty until known
func (h *Handle) Name() string {
	return h.t.Name()
}

func (h *Handle) Trackers() []string {
	return h.trackers
}

func (h *Handle) AddedAt() time.Time {
	return h.added
}

// WaitInfo blocks until metadata has arrived or ctx ends
func (h *Handle) WaitInfo(ctx context.Context) error {
	select {
	case <-h.t.GotInfo():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNoInfo, ctx.Err())
	}
}

// Files lists the torrent's files in metadata order
func (h *Handle) Files() ([]File, error) {
	if h.t.Info() == nil {
		return nil, ErrNoInfo
	}
	tfs := h.t.Files()
	files := make([]File, 0, len(tfs))
	for i, f := range tfs {
		name := f.DisplayPath()
		files = append(files, File{
			Index:     i,
			Name:      name,
			Length:    f.Length(),
			Completed: f.BytesCompleted(),
			Preview:   PreviewByName(name),
		})
	}
	return files, nil
}

func (h *Handle) Stats() Stats {
	ts := h.t.Stats()
	down, up := h.rates.sample(time.Now(), ts.BytesReadUsefulData.Int64(), ts.BytesWrittenData.Int64())

	st := Stats{
		Peers:        ts.ActivePeers,
		Downloaded:   h.t.BytesCompleted(),
		DownloadRate: down,
		UploadRate:   up,
	}
	if h.t.Info() != nil {
		st.HasInfo = true
		st.Length = h.t.Length()
		st.Progress = progress(st.Downloaded, st.Length)
		st.Done = st.Length > 0 && st.Downloaded >= st.Length
	}
	return st
}

func progress(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// FileReader streams one file, fetching pieces on demand
type FileReader struct {
	torrent.Reader
	ctx  context.Context
	File File
}

// Read honors the context the reader was opened with
func (r *FileReader) Read(p []byte) (int, error) {
	return r.Reader.ReadContext(r.ctx, p)
}

var _ io.ReadSeekCloser = (*FileReader)(nil)

// OpenFile returns a seekable reader for file index
func (h *Handle) OpenFile(ctx context.Context, index int) (*FileReader, error) {
	files, err := h.Files()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(files) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFileIndex, index, len(files))
	}

	r := h.t.Files()[index].NewReader()
	r.SetResponsive()
	r.SetReadahead(readahead)
	return &FileReader{Reader: r, ctx: ctx, File: files[index]}, nil
}

// readahead keeps streaming playback a few pieces ahead of the reader
const readahead = 4 << 20

// Preview classifies file index, sniffing its first bytes when they are
// already available.
func (h *Handle) Preview(ctx context.Context, index int) (PreviewKind, string, error) {
	fr, err := h.OpenFile(ctx, index)
	if err != nil {
		return PreviewNone, "", err
	}
	defer fr.Close()

	var head io.Reader
	if fr.File.Completed > 0 {
		head = fr
	}
	kind, ctype := PreviewByContent(fr.File.Name, head)
	return kind, ctype, nil
}

// Drop stops the transfer and releases its storage handles
func (h *Handle) Drop() {
	h.t.Drop()
}
