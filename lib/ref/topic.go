// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TopicIDSize is the width of a topic identifier in bytes.
const TopicIDSize = 32

// TopicID scopes a chat room. It is chosen at random when a room is
// opened, travels to other peers inside the ticket, and is immutable
// for the session. Two peers exchange broadcasts only when subscribed
// to the same topic.
//
// TopicID is an immutable, comparable value type. The zero value is
// not valid; use IsZero to check.
type TopicID [TopicIDSize]byte

// NewTopicID generates a random topic ID from crypto/rand.
func NewTopicID() (TopicID, error) {
	var id TopicID
	if _, err := rand.Read(id[:]); err != nil {
		return TopicID{}, fmt.Errorf("generating topic ID: %w", err)
	}
	return id, nil
}

// ParseTopicID validates and parses the 64-character hex text form.
func ParseTopicID(raw string) (TopicID, error) {
	var id TopicID
	if err := parseHex32(id[:], raw, "topic ID"); err != nil {
		return TopicID{}, err
	}
	return id, nil
}

// TopicIDFromBytes wraps a raw 32-byte identifier. Returns an error if
// the slice has the wrong length.
func TopicIDFromBytes(raw []byte) (TopicID, error) {
	var id TopicID
	if len(raw) != TopicIDSize {
		return TopicID{}, fmt.Errorf("topic ID must be %d bytes, got %d", TopicIDSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the full lowercase hex form.
func (id TopicID) String() string { return hex.EncodeToString(id[:]) }

// Short returns the first five bytes as hex, for status-bar display.
func (id TopicID) Short() string { return hex.EncodeToString(id[:5]) }

// IsZero reports whether the TopicID is the zero value (uninitialized).
func (id TopicID) IsZero() bool { return id == TopicID{} }

// MarshalText implements encoding.TextMarshaler.
func (id TopicID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *TopicID) UnmarshalText(text []byte) error {
	parsed, err := ParseTopicID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
