// Package transfer loads torrents into an anacrolix/torrent client and
// exposes progress, file listings and byte streams.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoInfo    = errors.New("transfer: torrent metadata not available")
	ErrFileIndex = errors.New("transfer: file index out of range")
	ErrNoTorrent = errors.New("transfer: no torrent loaded")
)

// Config configures the underlying torrent client
type Config struct {
	DataDir  string
	Trackers []string
	NoUpload bool
	// ListenPort 0 picks a free port
	ListenPort int
	// Offline disables DHT and port forwarding
	Offline bool
}

// AddOptions tune a single AddTorrent call
type AddOptions struct {
	// ExtraTrackers is a comma or newline separated tracker list
	ExtraTrackers string
	// Trackers from the announcement the source came from
	Trackers []string
	// WaitInfo waits for metadata before returning
	WaitInfo bool
	// AllowFiles lets a source name a .torrent file on the local filesystem
	AllowFiles bool
}

// Client owns the torrent client and the currently loaded torrent.
// Loading a new torrent drops the previous one.
type Client struct {
	cl       *torrent.Client
	defaults []string

	group singleflight.Group

	mu      sync.Mutex
	current *Handle
}

func NewClient(cfg Config) (*Client, error) {
	tc := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		tc.DataDir = cfg.DataDir
	}
	tc.NoUpload = cfg.NoUpload
	tc.Seed = !cfg.NoUpload
	tc.ListenPort = cfg.ListenPort
	if cfg.Offline {
		tc.NoDHT = true
		tc.NoDefaultPortForwarding = true
	}

	cl, err := torrent.NewClient(tc)
	if err != nil {
		return nil, fmt.Errorf("start torrent client: %w", err)
	}
	return &Client{cl: cl, defaults: cfg.Trackers}, nil
}

// AddTorrent loads a magnet URI, hex info hash or (with AllowFiles) a
// .torrent path and starts downloading all of it. Concurrent calls for the
// same source share one load.
func (c *Client) AddTorrent(ctx context.Context, source string, opts AddOptions) (*Handle, error) {
	return c.load(ctx, source+"\x00"+opts.ExtraTrackers, opts, func() (*torrent.TorrentSpec, error) {
		return loadSpec(source, opts.AllowFiles)
	})
}

// AddMetaInfo loads a torrent from bencoded metainfo, such as an upload
func (c *Client) AddMetaInfo(ctx context.Context, r io.Reader, opts AddOptions) (*Handle, error) {
	spec, err := specFromReader(r)
	if err != nil {
		return nil, err
	}
	return c.load(ctx, spec.InfoHash.HexString()+"\x00"+opts.ExtraTrackers, opts, func() (*torrent.TorrentSpec, error) {
		return spec, nil
	})
}

func (c *Client) load(ctx context.Context, key string, opts AddOptions, spec func() (*torrent.TorrentSpec, error)) (*Handle, error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		ts, err := spec()
		if err != nil {
			return nil, err
		}
		return c.add(ts, opts)
	})
	if shared {
		slog.Debug("transfer: shared torrent load", "key", key)
	}
	if err != nil {
		return nil, err
	}

	h := v.(*Handle)
	if opts.WaitInfo {
		if err := h.WaitInfo(ctx); err != nil {
			return h, err
		}
	}
	return h, nil
}

func (c *Client) add(spec *torrent.TorrentSpec, opts AddOptions) (*Handle, error) {
	fromSource := append(sourceTrackers(spec), opts.Trackers...)
	trackers := AnnounceList(c.defaults, opts.ExtraTrackers, fromSource)
	spec.Trackers = tiers(trackers)

	t, isNew, err := c.cl.AddTorrentSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}

	c.mu.Lock()
	prev := c.current
	if !isNew && prev != nil && prev.t == t {
		c.mu.Unlock()
		return prev, nil
	}
	h := &Handle{t: t, trackers: trackers, added: time.Now()}
	c.current = h
	c.mu.Unlock()

	if prev != nil && prev.t != t {
		slog.Info("transfer: dropping previous torrent", "info_hash", prev.InfoHash())
		prev.Drop()
	}

	go func() {
		select {
		case <-t.GotInfo():
		case <-t.Closed():
			return
		}
		t.DownloadAll()
		slog.Info("transfer: metadata received", "info_hash", h.InfoHash(), "name", t.Name(), "files", len(t.Files()))
	}()

	slog.Info("transfer: torrent added", "info_hash", h.InfoHash(), "trackers", len(trackers))
	return h, nil
}

// Current returns the loaded torrent
func (c *Client) Current() (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoTorrent
	}
	return c.current, nil
}

// Lookup returns the loaded torrent when its info hash matches
func (c *Client) Lookup(infoHash string) (*Handle, error) {
	h, err := c.Current()
	if err != nil {
		return nil, err
	}
	if infoHash != "" && h.InfoHash() != infoHash {
		return nil, ErrNoTorrent
	}
	return h, nil
}

func (c *Client) Close() error {
	return errors.Join(c.cl.Close()...)
}
