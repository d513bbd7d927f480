// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"time"

	"github.com/palaver-foundation/palaver/lib/clock"
	"github.com/palaver-foundation/palaver/lib/ref"
	"github.com/palaver-foundation/palaver/wire"
)

// unknownSenderName labels chat messages from peers that have not yet
// announced a display name.
const unknownSenderName = "unknown"

// Entry is one line of the session log.
type Entry struct {
	// At is the local arrival time. Peers do not exchange clocks;
	// timestamps are for the local screen only.
	At time.Time

	// System marks notices authored by the client itself (joins,
	// connection events) rather than received chat.
	System bool

	// Sender is the authoring peer for chat entries; zero for system
	// entries.
	Sender ref.PeerID

	// Name is the sender's display name as known at append time.
	Name string

	// Text is the entry body.
	Text string
}

// Applied reports the consequences of feeding one inbound message to
// the state: whether anything visible changed and whether protocol
// etiquette calls for a reply broadcast.
type Applied struct {
	// Changed is true when the log or the participant directory was
	// modified. Duplicates, self-echoes, and silent name refreshes
	// leave it false.
	Changed bool

	// ReplyAboutMe is true when the message was a discovery request
	// the local peer should answer with its own announcement.
	ReplyAboutMe bool
}

// State is the session record: log, participant directory, and dedup
// bookkeeping. It has exactly one owner (the Model) and is never
// accessed concurrently, so it carries no lock.
type State struct {
	self     ref.PeerID
	selfName string
	clock    clock.Clock

	entries []Entry

	// names maps peers to their latest announced display name.
	names map[ref.PeerID]string

	// seen records every message ID ever applied, including local
	// echoes. A repeat of any kind is a silent no-op.
	seen map[wire.MessageID]struct{}

	// announced records peers a join notice was already printed for,
	// so repeated announcements fold silently into the directory.
	announced map[ref.PeerID]bool
}

// NewState creates an empty session for the given local identity.
func NewState(self ref.PeerID, selfName string, clk clock.Clock) *State {
	return &State{
		self:      self,
		selfName:  selfName,
		clock:     clk,
		names:     map[ref.PeerID]string{},
		seen:      map[wire.MessageID]struct{}{},
		announced: map[ref.PeerID]bool{},
	}
}

// ApplyIncoming feeds one decoded network message to the session.
// Duplicate IDs and the local peer's own relayed messages are absorbed
// without effect; the self check runs after dedup so a reflected echo
// still burns its ID.
func (s *State) ApplyIncoming(message wire.Message) Applied {
	if _, duplicate := s.seen[message.ID]; duplicate {
		return Applied{}
	}
	s.seen[message.ID] = struct{}{}

	if message.Sender == s.self {
		return Applied{}
	}

	switch body := message.Body.(type) {
	case wire.WhoIsThere:
		return Applied{ReplyAboutMe: true}

	case wire.AboutMe:
		s.names[message.Sender] = body.Name
		if s.announced[message.Sender] {
			// Name refresh from a peer already in the room: update
			// the directory without a second join notice.
			return Applied{Changed: true}
		}
		s.announced[message.Sender] = true
		s.appendSystem(body.Name + " joined the session")
		return Applied{Changed: true}

	case wire.Chat:
		s.entries = append(s.entries, Entry{
			At:     s.clock.Now(),
			Sender: message.Sender,
			Name:   s.Name(message.Sender),
			Text:   body.Text,
		})
		return Applied{Changed: true}
	}
	return Applied{}
}

// ApplyLocalEcho appends the local peer's own chat message to the log
// and records its ID, so the copy relayed back by neighbors is ignored.
// Non-chat bodies (discovery traffic) burn their ID without a log
// entry.
func (s *State) ApplyLocalEcho(message wire.Message) {
	s.seen[message.ID] = struct{}{}
	body, isChat := message.Body.(wire.Chat)
	if !isChat {
		return
	}
	s.entries = append(s.entries, Entry{
		At:     s.clock.Now(),
		Sender: s.self,
		Name:   s.selfName,
		Text:   body.Text,
	})
}

// AppendSystem adds a client-authored notice to the log.
func (s *State) AppendSystem(text string) {
	s.appendSystem(text)
}

func (s *State) appendSystem(text string) {
	s.entries = append(s.entries, Entry{
		At:     s.clock.Now(),
		System: true,
		Text:   text,
	})
}

// Entries returns a copy of the session log in append order.
func (s *State) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Name returns the display name for a peer: the local name for self,
// the announced name for known peers, and a fixed placeholder for
// peers that spoke before announcing.
func (s *State) Name(peer ref.PeerID) string {
	if peer == s.self {
		return s.selfName
	}
	if name, known := s.names[peer]; known {
		return name
	}
	return unknownSenderName
}

// Self returns the local peer identity.
func (s *State) Self() ref.PeerID { return s.self }

// SelfName returns the local display name.
func (s *State) SelfName() string { return s.selfName }

// Participants counts the local peer plus every peer with an announced
// name.
func (s *State) Participants() int {
	return 1 + len(s.names)
}
