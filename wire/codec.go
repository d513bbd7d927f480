// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/palaver-foundation/palaver/lib/codec"
	"github.com/palaver-foundation/palaver/lib/ref"
)

// envelope is the CBOR frame layout. One flat struct for all kinds:
// the kind tag selects which optional fields are required, and Decode
// enforces that per kind. Flat beats nested-union here because CBOR
// map keys are sorted deterministically and the frame stays greppable
// in diagnostic output.
type envelope struct {
	Kind  Kind       `cbor:"kind"`
	Nonce []byte     `cbor:"nonce"`
	From  ref.PeerID `cbor:"from"`
	Name  string     `cbor:"name,omitempty"`
	Text  string     `cbor:"text,omitempty"`
}

// Encode serializes a message and verifies the result fits in
// maxPayload bytes. The size check happens here, before any bytes are
// handed to the transport — an oversized frame is the sender's bug to
// surface, not the mesh's to truncate.
func Encode(message Message, maxPayload int) ([]byte, error) {
	frame := envelope{
		Kind:  message.Body.kind(),
		Nonce: message.ID[:],
		From:  message.Sender,
	}
	switch body := message.Body.(type) {
	case WhoIsThere:
	case AboutMe:
		frame.Name = body.Name
	case Chat:
		frame.Text = body.Text
	}

	data, err := codec.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding frame: %w", err)
	}
	if len(data) > maxPayload {
		return nil, &EncodingError{Size: len(data), Limit: maxPayload}
	}
	return data, nil
}

// Decode parses a frame received from the mesh. Truncated CBOR, an
// unknown kind tag, a malformed nonce or sender, or a missing required
// field for a known kind all yield a *DecodeError; the caller drops
// the frame.
func Decode(data []byte) (Message, error) {
	var frame envelope
	if err := codec.Unmarshal(data, &frame); err != nil {
		return Message{}, &DecodeError{Reason: "malformed CBOR frame", Err: err}
	}

	id, err := messageIDFromBytes(frame.Nonce)
	if err != nil {
		return Message{}, &DecodeError{Reason: "invalid nonce", Err: err}
	}
	if frame.From.IsZero() {
		return Message{}, &DecodeError{Reason: "missing sender"}
	}

	message := Message{ID: id, Sender: frame.From}
	switch frame.Kind {
	case KindWhoIsThere:
		message.Body = WhoIsThere{}
	case KindAboutMe:
		if frame.Name == "" {
			return Message{}, &DecodeError{Reason: "about-me frame missing name"}
		}
		message.Body = AboutMe{Name: frame.Name}
	case KindChat:
		if frame.Text == "" {
			return Message{}, &DecodeError{Reason: "chat frame missing text"}
		}
		message.Body = Chat{Text: frame.Text}
	default:
		return Message{}, &DecodeError{Reason: "unknown message kind " + string(frame.Kind)}
	}
	return message, nil
}

// messageIDFromBytes validates the nonce width from the wire.
func messageIDFromBytes(raw []byte) (MessageID, error) {
	var id MessageID
	if len(raw) != MessageIDSize {
		return MessageID{}, &DecodeError{Reason: "nonce must be 16 bytes"}
	}
	copy(id[:], raw)
	return id, nil
}
