// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"testing"

	"github.com/palaver-foundation/palaver/lib/clock"
	"github.com/palaver-foundation/palaver/lib/ref"
	"github.com/palaver-foundation/palaver/wire"
)

func newPeer(t *testing.T) ref.PeerID {
	t.Helper()
	peer, err := ref.NewPeerID()
	if err != nil {
		t.Fatalf("NewPeerID: %v", err)
	}
	return peer
}

func newMessage(t *testing.T, sender ref.PeerID, body wire.Body) wire.Message {
	t.Helper()
	message, err := wire.New(sender, body)
	if err != nil {
		t.Fatalf("wire.New: %v", err)
	}
	return message
}

func newState(t *testing.T) (*State, ref.PeerID) {
	t.Helper()
	self := newPeer(t)
	return NewState(self, "alice", clock.NewFake()), self
}

func TestApplyIncomingDeduplicatesByID(t *testing.T) {
	state, _ := newState(t)
	sender := newPeer(t)
	message := newMessage(t, sender, wire.Chat{Text: "hello"})

	first := state.ApplyIncoming(message)
	if !first.Changed {
		t.Fatal("first delivery did not change state")
	}
	second := state.ApplyIncoming(message)
	if second.Changed || second.ReplyAboutMe {
		t.Fatalf("duplicate delivery had effect: %+v", second)
	}
	if got := len(state.Entries()); got != 1 {
		t.Fatalf("log has %d entries, want 1", got)
	}
}

func TestApplyIncomingFiltersSelf(t *testing.T) {
	state, self := newState(t)

	// A relayed copy of the local peer's own discovery request must
	// not trigger a self-reply.
	applied := state.ApplyIncoming(newMessage(t, self, wire.WhoIsThere{}))
	if applied.Changed || applied.ReplyAboutMe {
		t.Fatalf("own message had effect: %+v", applied)
	}

	applied = state.ApplyIncoming(newMessage(t, self, wire.Chat{Text: "echo"}))
	if applied.Changed {
		t.Fatal("own chat message appended to log")
	}
	if got := len(state.Entries()); got != 0 {
		t.Fatalf("log has %d entries, want 0", got)
	}
}

func TestWhoIsThereRequestsReply(t *testing.T) {
	state, _ := newState(t)
	applied := state.ApplyIncoming(newMessage(t, newPeer(t), wire.WhoIsThere{}))
	if !applied.ReplyAboutMe {
		t.Fatal("discovery request did not ask for a reply")
	}
	if got := len(state.Entries()); got != 0 {
		t.Fatalf("discovery request appended %d log entries", got)
	}
}

func TestAboutMeAnnouncesEachPeerOnce(t *testing.T) {
	state, _ := newState(t)
	sender := newPeer(t)

	state.ApplyIncoming(newMessage(t, sender, wire.AboutMe{Name: "bob"}))
	entries := state.Entries()
	if len(entries) != 1 || !entries[0].System {
		t.Fatalf("expected one join notice, got %+v", entries)
	}
	if state.Name(sender) != "bob" {
		t.Fatalf("directory has %q, want bob", state.Name(sender))
	}

	// A repeat announcement (fresh ID, new name) updates the directory
	// silently.
	state.ApplyIncoming(newMessage(t, sender, wire.AboutMe{Name: "robert"}))
	if got := len(state.Entries()); got != 1 {
		t.Fatalf("log has %d entries after repeat announcement, want 1", got)
	}
	if state.Name(sender) != "robert" {
		t.Fatalf("directory has %q, want robert", state.Name(sender))
	}
	if state.Participants() != 2 {
		t.Fatalf("participants = %d, want 2", state.Participants())
	}
}

func TestChatFromUnannouncedSenderUsesPlaceholderName(t *testing.T) {
	state, _ := newState(t)
	sender := newPeer(t)

	state.ApplyIncoming(newMessage(t, sender, wire.Chat{Text: "first"}))
	entries := state.Entries()
	if len(entries) != 1 {
		t.Fatalf("log has %d entries, want 1", len(entries))
	}
	if entries[0].Name != "unknown" {
		t.Fatalf("entry name %q, want unknown", entries[0].Name)
	}

	// Once the sender announces, later messages pick up the real name;
	// the already-appended entry keeps its snapshot.
	state.ApplyIncoming(newMessage(t, sender, wire.AboutMe{Name: "carol"}))
	state.ApplyIncoming(newMessage(t, sender, wire.Chat{Text: "second"}))
	entries = state.Entries()
	if entries[len(entries)-1].Name != "carol" {
		t.Fatalf("entry name %q, want carol", entries[len(entries)-1].Name)
	}
	if entries[0].Name != "unknown" {
		t.Fatalf("historical entry renamed to %q", entries[0].Name)
	}
}

func TestDiscoveryCompletesAcrossManyPeers(t *testing.T) {
	state, _ := newState(t)

	const peerCount = 8
	for i := 0; i < peerCount; i++ {
		peer := newPeer(t)
		state.ApplyIncoming(newMessage(t, peer, wire.AboutMe{Name: fmt.Sprintf("peer-%d", i)}))
		state.ApplyIncoming(newMessage(t, peer, wire.Chat{Text: "hi"}))
	}

	if state.Participants() != peerCount+1 {
		t.Fatalf("participants = %d, want %d", state.Participants(), peerCount+1)
	}
	// One join notice plus one chat line per peer.
	if got := len(state.Entries()); got != 2*peerCount {
		t.Fatalf("log has %d entries, want %d", got, 2*peerCount)
	}
}

func TestLocalEchoBurnsMessageID(t *testing.T) {
	state, self := newState(t)
	message := newMessage(t, self, wire.Chat{Text: "mine"})

	state.ApplyLocalEcho(message)
	if got := len(state.Entries()); got != 1 {
		t.Fatalf("log has %d entries after echo, want 1", got)
	}

	// The mesh relays the same frame back; it must not append twice.
	applied := state.ApplyIncoming(message)
	if applied.Changed {
		t.Fatal("relayed copy of own message changed state")
	}
	if got := len(state.Entries()); got != 1 {
		t.Fatalf("log has %d entries after relay, want 1", got)
	}
}

func TestLocalEchoIgnoresDiscoveryBodies(t *testing.T) {
	state, self := newState(t)
	state.ApplyLocalEcho(newMessage(t, self, wire.WhoIsThere{}))
	state.ApplyLocalEcho(newMessage(t, self, wire.AboutMe{Name: "alice"}))
	if got := len(state.Entries()); got != 0 {
		t.Fatalf("discovery echoes appended %d entries", got)
	}
}
