package nostr

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"nostr-torrent/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Relay-to-client message discriminators
const (
	FrameEvent  = "EVENT"
	FrameEOSE   = "EOSE"
	FrameNotice = "NOTICE"
	FrameClosed = "CLOSED"
)

// ErrMalformedFrame is returned for frames that are not a JSON array
// starting with a string discriminator.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded relay message.
// SubID is empty for NOTICE frames; Event is only set for EVENT frames.
type Frame struct {
	Type    string
	SubID   string
	Event   types.Event
	Message string
}

// DecodeFrame parses one websocket text message from a relay.
// Unknown discriminators decode successfully and are left for the caller to ignore.
func DecodeFrame(data []byte) (Frame, error) {
	var msg []jsoniter.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil || len(msg) < 2 {
		return Frame{}, ErrMalformedFrame
	}

	var f Frame
	if err := json.Unmarshal(msg[0], &f.Type); err != nil {
		return Frame{}, ErrMalformedFrame
	}

	switch f.Type {
	case FrameEvent:
		if len(msg) < 3 || json.Unmarshal(msg[1], &f.SubID) != nil {
			return Frame{}, ErrMalformedFrame
		}
		evt, err := DecodeEvent(msg[2])
		if err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		f.Event = evt

	case FrameEOSE, FrameClosed:
		if json.Unmarshal(msg[1], &f.SubID) != nil {
			return Frame{}, ErrMalformedFrame
		}
		if f.Type == FrameClosed && len(msg) >= 3 {
			_ = json.Unmarshal(msg[2], &f.Message)
		}

	case FrameNotice:
		_ = json.Unmarshal(msg[1], &f.Message)
	}

	return f, nil
}

// EncodeReq builds the ["REQ", subID, filter] frame
func EncodeReq(subID string, filter types.SubscriptionFilter) ([]byte, error) {
	return json.Marshal([]interface{}{"REQ", subID, filter.Wire()})
}
