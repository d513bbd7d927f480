// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/palaver-foundation/palaver/lib/codec"
	"github.com/palaver-foundation/palaver/lib/ref"
)

// MaxPayloadSize is the largest broadcast payload the mesh accepts.
// Published so senders can size-check frames before handing them over;
// wire.Encode consumes this constant.
const MaxPayloadSize = 4096

// maxFrameSize bounds the on-link frame (payload plus CBOR envelope
// overhead and hello frames with neighbor lists). Read before decode,
// so a garbage length prefix cannot trigger a huge allocation.
const maxFrameSize = MaxPayloadSize + 4096

// frameKind discriminates link frames.
type frameKind string

const (
	frameHello frameKind = "hello"
	frameData  frameKind = "data"
)

// peerRecord names a peer and the addresses it can be dialed at.
// Appears in hello frames: once for the sending peer itself and once
// per current neighbor, which is how joiners learn about participants
// they did not bootstrap from.
type peerRecord struct {
	Peer      ref.PeerID `cbor:"peer"`
	Addresses []string   `cbor:"addrs,omitempty"`
}

// linkFrame is the CBOR envelope carried after the length prefix.
// Hello frames populate Topic/Self/Neighbors; data frames populate
// Payload only.
type linkFrame struct {
	Kind      frameKind    `cbor:"kind"`
	Topic     ref.TopicID  `cbor:"topic,omitempty"`
	Self      *peerRecord  `cbor:"self,omitempty"`
	Neighbors []peerRecord `cbor:"neighbors,omitempty"`
	Payload   []byte       `cbor:"payload,omitempty"`
}

// writeFrame marshals frame and writes it with a 4-byte big-endian
// length prefix.
func writeFrame(w io.Writer, frame linkFrame) error {
	data, err := codec.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshaling link frame: %w", err)
	}
	if len(data) > maxFrameSize {
		return fmt.Errorf("link frame is %d bytes, exceeds limit %d", len(data), maxFrameSize)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFrame reads one length-prefixed frame. The length is validated
// against maxFrameSize before any payload bytes are read.
func readFrame(r io.Reader) (linkFrame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return linkFrame{}, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 || length > maxFrameSize {
		return linkFrame{}, fmt.Errorf("link frame length %d outside (0, %d]", length, maxFrameSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return linkFrame{}, err
	}

	var frame linkFrame
	if err := codec.Unmarshal(data, &frame); err != nil {
		return linkFrame{}, fmt.Errorf("unmarshaling link frame: %w", err)
	}
	return frame, nil
}
