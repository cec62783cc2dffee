package cache

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"

	"nostr-torrent/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const announcementPrefix = "ann:"

// Announcements keeps recently seen announcements by event id so detail
// pages can be rendered without another relay round trip.
type Announcements struct {
	backend Backend
	ttl     time.Duration
}

func NewAnnouncements(backend Backend, ttl time.Duration) *Announcements {
	return &Announcements{backend: backend, ttl: ttl}
}

func (a *Announcements) Put(ctx context.Context, ann *types.Announcement) error {
	data, err := json.Marshal(types.CachedAnnouncement{Announcement: ann, CachedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	return a.backend.Set(ctx, announcementPrefix+ann.EventID, data, a.ttl)
}

// Get returns (announcement, found, error)
func (a *Announcements) Get(ctx context.Context, eventID string) (*types.Announcement, bool, error) {
	data, found, err := a.backend.Get(ctx, announcementPrefix+eventID)
	if err != nil || !found {
		return nil, false, err
	}

	var cached types.CachedAnnouncement
	if err := json.Unmarshal(data, &cached); err != nil || cached.Announcement == nil {
		// Unreadable entries behave as misses
		return nil, false, nil
	}
	return cached.Announcement, true, nil
}

// PutMultiple stores a batch of announcements in one backend call
func (a *Announcements) PutMultiple(ctx context.Context, anns []types.Announcement) error {
	items := make(map[string][]byte, len(anns))
	now := time.Now().Unix()
	for i := range anns {
		data, err := json.Marshal(types.CachedAnnouncement{Announcement: &anns[i], CachedAt: now})
		if err != nil {
			return err
		}
		items[announcementPrefix+anns[i].EventID] = data
	}
	return a.backend.SetMultiple(ctx, items, a.ttl)
}

// Ping checks the backing store
func (a *Announcements) Ping(ctx context.Context) error {
	return a.backend.Ping(ctx)
}
