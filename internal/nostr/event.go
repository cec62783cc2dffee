package nostr

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	gonostr "github.com/nbd-wtf/go-nostr"

	"nostr-torrent/internal/types"
)

var (
	ErrMissingID    = errors.New("event has no id")
	ErrBadSignature = errors.New("event signature does not verify")
)

// wireEvent is the event object as relays send it. Tags is a pointer so an
// absent array can be told apart from an empty one, and its elements are
// decoded loosely because some relays put numbers inside tags.
type wireEvent struct {
	ID        string         `json:"id"`
	PubKey    string         `json:"pubkey"`
	CreatedAt int64          `json:"created_at"`
	Kind      int            `json:"kind"`
	Tags      *[]interface{} `json:"tags"`
	Content   string         `json:"content"`
	Sig       string         `json:"sig"`
}

// DecodeEvent parses an event object. Signed events must verify; unsigned
// ones pass through so callers decide what to trust.
func DecodeEvent(data []byte) (types.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return types.Event{}, err
	}
	if w.ID == "" {
		return types.Event{}, ErrMissingID
	}

	evt := types.Event{
		ID:        w.ID,
		PubKey:    w.PubKey,
		CreatedAt: w.CreatedAt,
		Kind:      w.Kind,
		Content:   w.Content,
		Sig:       w.Sig,
	}
	if w.Tags != nil {
		evt.Tags = stringTags(*w.Tags)
	}

	if evt.Sig != "" && !ValidateEventSignature(&evt) {
		return types.Event{}, ErrBadSignature
	}
	return evt, nil
}

// stringTags keeps the string elements of each tag and drops tags that
// end up empty.
func stringTags(raw []interface{}) [][]string {
	tags := make([][]string, 0, len(raw))
	for _, t := range raw {
		elems, ok := t.([]interface{})
		if !ok {
			continue
		}
		tag := make([]string, 0, len(elems))
		for _, e := range elems {
			if s, ok := e.(string); ok {
				tag = append(tag, s)
			}
		}
		if len(tag) > 0 {
			tags = append(tags, tag)
		}
	}
	return tags
}

// EventID computes the NIP-01 id of evt, the sha256 of
// [0,pubkey,created_at,kind,tags,content].
func EventID(evt *types.Event) string {
	tags := make(gonostr.Tags, 0, len(evt.Tags))
	for _, t := range evt.Tags {
		tags = append(tags, gonostr.Tag(t))
	}
	ne := gonostr.Event{
		PubKey:    evt.PubKey,
		CreatedAt: gonostr.Timestamp(evt.CreatedAt),
		Kind:      evt.Kind,
		Tags:      tags,
		Content:   evt.Content,
	}
	return ne.GetID()
}

// ValidateEventSignature checks that evt's id matches its contents and that
// the BIP-340 signature over that id verifies.
func ValidateEventSignature(evt *types.Event) bool {
	if len(evt.Sig) != 128 || len(evt.PubKey) != 64 || len(evt.ID) != 64 {
		return false
	}
	if !strings.EqualFold(EventID(evt), evt.ID) {
		return false
	}
	raw, err := hex.DecodeString(evt.Sig + evt.PubKey + evt.ID)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(raw[:64])
	if err != nil {
		return false
	}
	pub, err := schnorr.ParsePubKey(raw[64:96])
	if err != nil {
		return false
	}
	return sig.Verify(raw[96:], pub)
}

// ShortID truncates ids and pubkeys for log attributes
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
