// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PeerIDSize is the width of a peer identifier in bytes.
const PeerIDSize = 32

// PeerID is the stable per-process identity of a chat participant.
//
// Peer IDs are generated by the mesh node at startup and are opaque to
// the rest of the system — they carry no address or name information.
// All peer-indexed state (the participant directory, the announced
// set) is keyed by PeerID.
//
// PeerID is an immutable value type and is comparable, so it can be
// used directly as a map key. The zero value is not valid; use IsZero
// to check.
type PeerID [PeerIDSize]byte

// NewPeerID generates a random peer ID from crypto/rand.
func NewPeerID() (PeerID, error) {
	var id PeerID
	if _, err := rand.Read(id[:]); err != nil {
		return PeerID{}, fmt.Errorf("generating peer ID: %w", err)
	}
	return id, nil
}

// ParsePeerID validates and parses the 64-character hex text form.
func ParsePeerID(raw string) (PeerID, error) {
	var id PeerID
	if err := parseHex32(id[:], raw, "peer ID"); err != nil {
		return PeerID{}, err
	}
	return id, nil
}

// PeerIDFromBytes wraps a raw 32-byte identifier. Returns an error if
// the slice has the wrong length.
func PeerIDFromBytes(raw []byte) (PeerID, error) {
	var id PeerID
	if len(raw) != PeerIDSize {
		return PeerID{}, fmt.Errorf("peer ID must be %d bytes, got %d", PeerIDSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the full lowercase hex form.
func (id PeerID) String() string { return hex.EncodeToString(id[:]) }

// Short returns the first five bytes as hex, for display when no
// display name is known yet.
func (id PeerID) Short() string { return hex.EncodeToString(id[:5]) }

// IsZero reports whether the PeerID is the zero value (uninitialized).
func (id PeerID) IsZero() bool { return id == PeerID{} }

// MarshalText implements encoding.TextMarshaler.
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *PeerID) UnmarshalText(text []byte) error {
	parsed, err := ParsePeerID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseHex32 decodes a 64-character hex string into dst (32 bytes).
// Shared by PeerID and TopicID parsing.
func parseHex32(dst []byte, raw string, what string) error {
	if raw == "" {
		return fmt.Errorf("empty %s", what)
	}
	if len(raw) != 2*len(dst) {
		return fmt.Errorf("%s must be %d hex characters, got %d", what, 2*len(dst), len(raw))
	}
	if _, err := hex.Decode(dst, []byte(raw)); err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	return nil
}
