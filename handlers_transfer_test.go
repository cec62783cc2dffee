package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostr-torrent/internal/transfer"
)

var pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// bundleTorrent writes a three-file torrent's data under dataDir/bundle and
// returns its bencoded metainfo
func bundleTorrent(t *testing.T, dataDir string) []byte {
	t.Helper()
	root := filepath.Join(dataDir, "bundle")
	require.NoError(t, os.MkdirAll(root, 0o755))

	files := map[string][]byte{
		"clip.png":   append(append([]byte{}, pngHead...), bytes.Repeat([]byte("pixels "), 2048)...),
		"index.html": []byte("<html><script>alert(document.cookie)</script></html>"),
		"logo.svg":   []byte(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"/>`),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), content, 0o644))
	}

	info := metainfo.Info{PieceLength: 16 << 10}
	require.NoError(t, info.BuildFromFilePath(root))
	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, (&metainfo.MetaInfo{InfoBytes: infoBytes}).Write(&buf))
	return buf.Bytes()
}

func newTransferServer(t *testing.T, dataDir string) *server {
	t.Helper()
	tc, err := transfer.NewClient(transfer.Config{DataDir: dataDir, NoUpload: true, Offline: true})
	require.NoError(t, err)
	t.Cleanup(func() { tc.Close() })

	s := newTestServer(t)
	s.transfer = tc
	return s
}

func uploadTorrent(t *testing.T, h http.Handler, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("torrent", "bundle.torrent")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("trackers", "wss://extra.example"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/torrent", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// loadedBundle uploads the bundle and waits for its metadata
func loadedBundle(t *testing.T) (*server, http.Handler, map[string]transfer.File) {
	t.Helper()
	useTestConfig(t)
	dir := t.TempDir()
	data := bundleTorrent(t, dir)
	s := newTransferServer(t, dir)
	h := s.routes()

	rec := uploadTorrent(t, h, data)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/torrent", rec.Header().Get("Location"))

	cur, err := s.transfer.Current()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, cur.WaitInfo(ctx))
	assert.Contains(t, cur.Trackers(), "wss://extra.example")

	rec = get(t, h, "/torrent/files")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []transfer.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 3)

	byName := map[string]transfer.File{}
	for _, f := range files {
		byName[filepath.Base(f.Name)] = f
	}
	return s, h, byName
}

func fileURL(f transfer.File) string {
	return "/torrent/file/" + strconv.Itoa(f.Index)
}

func TestTorrentStatsAndFiles(t *testing.T) {
	_, h, files := loadedBundle(t)

	assert.Equal(t, transfer.PreviewImage, files["clip.png"].Preview)
	assert.Equal(t, transfer.PreviewNone, files["index.html"].Preview)

	rec := get(t, h, "/torrent/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Name    string `json:"name"`
		HasInfo bool   `json:"hasInfo"`
		Length  int64  `json:"length"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "bundle", stats.Name)
	assert.True(t, stats.HasInfo)
	assert.Equal(t, files["clip.png"].Length+files["index.html"].Length+files["logo.svg"].Length, stats.Length)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/torrent/stats?infohash=0123456789abcdef0123456789abcdef01234567").Code)

	rec = get(t, h, "/torrent")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<img src="/torrent/file/`+strconv.Itoa(files["clip.png"].Index)+`"`)
}

func TestTorrentFileServesMediaInline(t *testing.T) {
	_, h, files := loadedBundle(t)
	clip := files["clip.png"]

	req := httptest.NewRequest(http.MethodGet, fileURL(clip), nil)
	req.Header.Set("Range", "bytes=0-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, pngHead[:8], rec.Body.Bytes())
	assert.Equal(t, "bytes 0-7/"+strconv.Itoa(int(clip.Length)), rec.Header().Get("Content-Range"))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename=clip.png`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")

	rec = get(t, h, fileURL(clip))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, clip.Length, int64(rec.Body.Len()))
}

func TestTorrentFileNeverRendersActiveContent(t *testing.T) {
	_, h, files := loadedBundle(t)

	for _, name := range []string{"index.html", "logo.svg"} {
		rec := get(t, h, fileURL(files[name]))
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"), name)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"), name)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), name)
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox", name)
	}
}

func TestTorrentFileBadIndex(t *testing.T) {
	_, h, _ := loadedBundle(t)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/torrent/file/9").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/torrent/file/-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/torrent/file/abc").Code)
}

func TestTorrentRefusesServerPaths(t *testing.T) {
	useTestConfig(t)
	dir := t.TempDir()
	torrentPath := filepath.Join(dir, "local.torrent")
	require.NoError(t, os.WriteFile(torrentPath, bundleTorrent(t, dir), 0o644))

	s := newTransferServer(t, dir)
	h := s.routes()

	rec := get(t, h, "/torrent?magnet="+url.QueryEscape(torrentPath))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "no such file")

	rec = get(t, h, "/torrent?magnet="+url.QueryEscape("/etc/missing.torrent"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "no such file")

	form := url.Values{"source": {torrentPath}}
	req := httptest.NewRequest(http.MethodPost, "/torrent", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	post := httptest.NewRecorder()
	h.ServeHTTP(post, req)
	assert.Equal(t, http.StatusBadRequest, post.Code)

	_, err := s.transfer.Current()
	assert.ErrorIs(t, err, transfer.ErrNoTorrent)
}

func TestTorrentUploadRejectsGarbage(t *testing.T) {
	useTestConfig(t)
	s := newTransferServer(t, t.TempDir())
	rec := uploadTorrent(t, s.routes(), []byte("definitely not bencode"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInlineMedia(t *testing.T) {
	for ctype, want := range map[string]bool{
		"image/png":                true,
		"video/mp4":                true,
		"audio/ogg":                true,
		"image/svg+xml":            false,
		"text/html; charset=utf-8": false,
		"application/octet-stream": false,
		"":                         false,
	} {
		assert.Equal(t, want, inlineMedia(ctype), ctype)
	}
}
