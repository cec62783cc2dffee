package types

// FileEntry is one file listed in a torrent announcement
type FileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Announcement is a parsed kind 2003 event.
// An Announcement always carries an InfoHash.
type Announcement struct {
	EventID   string      `json:"id"`
	Title     string      `json:"title"`
	InfoHash  string      `json:"info_hash"`
	MagnetURI string      `json:"magnet"`
	Trackers  []string    `json:"trackers"` // wss:// only, source order
	Files     []FileEntry `json:"files"`
	TotalSize int64       `json:"total_size"`
	Topics    []string    `json:"topics"` // "t" tags
	Refs      []string    `json:"refs"`   // "i" tags
	Author    string      `json:"author"`
	CreatedAt int64       `json:"created_at"`
	Content   string      `json:"content"`
	Relay     string      `json:"relay"`
}

// ShortInfoHash returns the first 8 characters of the info hash
func (a *Announcement) ShortInfoHash() string {
	if len(a.InfoHash) > 8 {
		return a.InfoHash[:8]
	}
	return a.InfoHash
}
