// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/palaver-foundation/palaver/lib/ref"
)

// MessageIDSize is the width of a message nonce in bytes. 16 random
// bytes make collisions improbable for any realistic session length.
const MessageIDSize = 16

// MessageID is the random nonce identifying one broadcast. Receivers
// record applied IDs and treat a repeat as a silent no-op, so a frame
// that reaches a peer along two mesh paths has exactly one visible
// effect.
type MessageID [MessageIDSize]byte

// NewMessageID generates a random message ID from crypto/rand.
func NewMessageID() (MessageID, error) {
	var id MessageID
	if _, err := rand.Read(id[:]); err != nil {
		return MessageID{}, fmt.Errorf("generating message ID: %w", err)
	}
	return id, nil
}

// String returns the lowercase hex form, for log output.
func (id MessageID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the MessageID is the zero value.
func (id MessageID) IsZero() bool { return id == MessageID{} }

// Kind discriminates message bodies on the wire.
type Kind string

// Wire kind tags. String tags rather than integers so a captured frame
// is self-describing in CBOR diagnostic output.
const (
	KindWhoIsThere Kind = "who-is-there"
	KindAboutMe    Kind = "about-me"
	KindChat       Kind = "chat"
)

// Body is the tagged payload of a Message. It is a sealed sum type:
// the three variants below are the whole protocol, and Decode fails
// closed on any kind it does not recognize.
type Body interface {
	kind() Kind
}

// WhoIsThere is the discovery request a peer broadcasts exactly once
// when it joins a topic. Every other participant answers with one
// AboutMe; the requester never re-broadcasts on receipt, so discovery
// traffic stays O(peers) per join.
type WhoIsThere struct{}

func (WhoIsThere) kind() Kind { return KindWhoIsThere }

// AboutMe announces the sender's display name. Broadcast once
// unprompted when the sender joins, and again in reply to each
// WhoIsThere; receivers fold repeats into the participant directory
// without duplicate join notices.
type AboutMe struct {
	// Name is the sender's self-chosen display name. Unauthenticated.
	Name string
}

func (AboutMe) kind() Kind { return KindAboutMe }

// Chat is an ordinary text message.
type Chat struct {
	Text string
}

func (Chat) kind() Kind { return KindChat }

// Message is one protocol broadcast. Immutable after creation.
type Message struct {
	ID     MessageID
	Sender ref.PeerID
	Body   Body
}

// New constructs a Message with a fresh random ID.
func New(sender ref.PeerID, body Body) (Message, error) {
	if sender.IsZero() {
		return Message{}, fmt.Errorf("wire: message sender must not be zero")
	}
	if body == nil {
		return Message{}, fmt.Errorf("wire: message body must not be nil")
	}
	id, err := NewMessageID()
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, Sender: sender, Body: body}, nil
}
