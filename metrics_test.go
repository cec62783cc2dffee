package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostr-torrent/internal/relay"
)

func TestRelayStatsSnapshot(t *testing.T) {
	s := newRelayStats()
	s.RelayMessage(relay.Message{Kind: relay.MessageOpened, Relay: "wss://b.example"})
	s.RelayMessage(relay.Message{Kind: relay.MessageEvent, Relay: "wss://b.example"})
	s.RelayMessage(relay.Message{Kind: relay.MessageEvent, Relay: "wss://b.example"})
	s.RelayMessage(relay.Message{Kind: relay.MessageEOSE, Relay: "wss://b.example"})
	s.RelayMessage(relay.Message{Kind: relay.MessageClosed, Relay: "wss://b.example"})
	s.RelayMessage(relay.Message{Kind: relay.MessageClosed, Relay: "wss://a.example", Err: errors.New("refused")})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, relaySnapshot{URL: "wss://a.example", Errors: 1}, snap[0])
	assert.Equal(t, relaySnapshot{URL: "wss://b.example", Opened: 1, Events: 2, EOSE: 1, Closed: 1}, snap[1])
}

func TestRelayStatsEmpty(t *testing.T) {
	assert.Empty(t, newRelayStats().Snapshot())
}
