// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/palaver-foundation/palaver/lib/ref"
)

// layoutVersion is the first byte of the binary layout. Bumped if the
// layout ever changes incompatibly; decoders reject versions they do
// not know.
const layoutVersion = 0x01

// Limits implied by the u8 count fields in the binary layout.
const (
	maxBootstrapRecords   = 255
	maxAddressesPerRecord = 255
	maxAddressLength      = 1<<16 - 1
)

// textEncoding is the RFC 4648 base32 alphabet without padding.
// Base32 survives copy/paste across terminals, chat clients, and URLs;
// padding is dropped because '=' tends to get eaten by exactly those
// channels.
var textEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// PeerAddr is one bootstrap record: a peer and the addresses it can be
// dialed at, in preference order.
type PeerAddr struct {
	Peer      ref.PeerID
	Addresses []string
}

// Ticket is a portable session invitation: the topic that scopes the
// room plus the bootstrap peers a joiner should dial.
type Ticket struct {
	Topic     ref.TopicID
	Bootstrap []PeerAddr
}

// DecodeError reports a malformed ticket string. For a ticket supplied
// at startup this is fatal; the caller aborts with a user-visible
// message.
type DecodeError struct {
	// Reason describes what was wrong, for the user-visible message.
	Reason string
	// Err is the underlying cause, when one exists.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ticket: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ticket: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode renders the ticket as a lowercase base32 string.
func Encode(t Ticket) (string, error) {
	data, err := appendBinary(nil, t)
	if err != nil {
		return "", err
	}
	return strings.ToLower(textEncoding.EncodeToString(data)), nil
}

// Decode parses a ticket string in either case. A malformed string
// yields a *DecodeError and never a partial Ticket.
func Decode(raw string) (Ticket, error) {
	data, err := textEncoding.DecodeString(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return Ticket{}, &DecodeError{Reason: "invalid base32 text", Err: err}
	}
	return parseBinary(data)
}

// appendBinary appends the versioned binary layout to dst:
//
//	version(1) topic(32) recordCount(1)
//	  { peer(32) addressCount(1) { addressLen(2 BE) address } ... } ...
func appendBinary(dst []byte, t Ticket) ([]byte, error) {
	if t.Topic.IsZero() {
		return nil, fmt.Errorf("ticket: cannot encode zero topic")
	}
	if len(t.Bootstrap) > maxBootstrapRecords {
		return nil, fmt.Errorf("ticket: %d bootstrap records exceeds limit %d", len(t.Bootstrap), maxBootstrapRecords)
	}

	dst = append(dst, layoutVersion)
	dst = append(dst, t.Topic[:]...)
	dst = append(dst, byte(len(t.Bootstrap)))

	for _, record := range t.Bootstrap {
		if record.Peer.IsZero() {
			return nil, fmt.Errorf("ticket: cannot encode zero peer ID")
		}
		if len(record.Addresses) > maxAddressesPerRecord {
			return nil, fmt.Errorf("ticket: %d addresses exceeds limit %d", len(record.Addresses), maxAddressesPerRecord)
		}
		dst = append(dst, record.Peer[:]...)
		dst = append(dst, byte(len(record.Addresses)))
		for _, address := range record.Addresses {
			if len(address) > maxAddressLength {
				return nil, fmt.Errorf("ticket: address longer than %d bytes", maxAddressLength)
			}
			dst = binary.BigEndian.AppendUint16(dst, uint16(len(address)))
			dst = append(dst, address...)
		}
	}
	return dst, nil
}

// parseBinary decodes the versioned binary layout. Every length field
// is checked against the remaining bytes before it is consumed, and
// trailing bytes after the last record are rejected, so a truncated or
// padded buffer cannot yield a partially-populated Ticket.
func parseBinary(data []byte) (Ticket, error) {
	cursor := data

	take := func(n int, what string) ([]byte, error) {
		if len(cursor) < n {
			return nil, &DecodeError{Reason: fmt.Sprintf("truncated %s: need %d bytes, have %d", what, n, len(cursor))}
		}
		chunk := cursor[:n]
		cursor = cursor[n:]
		return chunk, nil
	}

	versionByte, err := take(1, "version")
	if err != nil {
		return Ticket{}, err
	}
	if versionByte[0] != layoutVersion {
		return Ticket{}, &DecodeError{Reason: fmt.Sprintf("unsupported layout version %#02x", versionByte[0])}
	}

	topicBytes, err := take(ref.TopicIDSize, "topic")
	if err != nil {
		return Ticket{}, err
	}
	topic, err := ref.TopicIDFromBytes(topicBytes)
	if err != nil {
		return Ticket{}, &DecodeError{Reason: "invalid topic", Err: err}
	}
	if topic.IsZero() {
		return Ticket{}, &DecodeError{Reason: "zero topic"}
	}

	countByte, err := take(1, "record count")
	if err != nil {
		return Ticket{}, err
	}

	var bootstrap []PeerAddr
	for recordIndex := 0; recordIndex < int(countByte[0]); recordIndex++ {
		peerBytes, err := take(ref.PeerIDSize, "peer ID")
		if err != nil {
			return Ticket{}, err
		}
		peer, err := ref.PeerIDFromBytes(peerBytes)
		if err != nil {
			return Ticket{}, &DecodeError{Reason: "invalid peer ID", Err: err}
		}

		addressCountByte, err := take(1, "address count")
		if err != nil {
			return Ticket{}, err
		}

		record := PeerAddr{Peer: peer}
		for addressIndex := 0; addressIndex < int(addressCountByte[0]); addressIndex++ {
			lengthBytes, err := take(2, "address length")
			if err != nil {
				return Ticket{}, err
			}
			addressBytes, err := take(int(binary.BigEndian.Uint16(lengthBytes)), "address")
			if err != nil {
				return Ticket{}, err
			}
			record.Addresses = append(record.Addresses, string(addressBytes))
		}
		bootstrap = append(bootstrap, record)
	}

	if len(cursor) != 0 {
		return Ticket{}, &DecodeError{Reason: fmt.Sprintf("%d trailing bytes after last record", len(cursor))}
	}

	return Ticket{Topic: topic, Bootstrap: bootstrap}, nil
}
