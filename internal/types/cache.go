package types

// CachedAnnouncement wraps an announcement for cache serialization
type CachedAnnouncement struct {
	Announcement *Announcement `json:"announcement"`
	CachedAt     int64         `json:"cached_at"`
}
