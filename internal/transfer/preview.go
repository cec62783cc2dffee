package transfer

import (
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// PreviewKind is how a file can be shown inline
type PreviewKind string

const (
	PreviewNone  PreviewKind = ""
	PreviewVideo PreviewKind = "video"
	PreviewAudio PreviewKind = "audio"
	PreviewImage PreviewKind = "image"
)

var previewByExt = map[string]PreviewKind{
	".mp4":  PreviewVideo,
	".webm": PreviewVideo,
	".mp3":  PreviewAudio,
	".m4a":  PreviewAudio,
	".wav":  PreviewAudio,
	".ogg":  PreviewAudio,
	".png":  PreviewImage,
	".jpg":  PreviewImage,
	".jpeg": PreviewImage,
	".gif":  PreviewImage,
	".webp": PreviewImage,
	".bmp":  PreviewImage,
}

// PreviewByName classifies a file from its extension alone
func PreviewByName(name string) PreviewKind {
	return previewByExt[strings.ToLower(path.Ext(name))]
}

// PreviewByContent sniffs the leading bytes of head. A media type wins over
// the extension; anything else leaves the extension's answer in place.
func PreviewByContent(name string, head io.Reader) (PreviewKind, string) {
	byName := PreviewByName(name)
	if head == nil {
		return byName, ""
	}

	mtype, err := mimetype.DetectReader(head)
	if err != nil {
		return byName, ""
	}
	ctype := mtype.String()
	switch {
	case strings.HasPrefix(ctype, "video/"):
		return PreviewVideo, ctype
	case strings.HasPrefix(ctype, "audio/"):
		return PreviewAudio, ctype
	case strings.HasPrefix(ctype, "image/"):
		return PreviewImage, ctype
	}
	return byName, ctype
}

// DefaultPreview returns the index of the first previewable file, or -1
func DefaultPreview(files []File) int {
	for i, f := range files {
		if PreviewByName(f.Name) != PreviewNone {
			return i
		}
	}
	return -1
}
