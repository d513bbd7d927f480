// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// DecodeError reports a malformed or unrecognized protocol frame.
// Inbound frames that fail to decode are dropped by the event loop
// (non-fatal); callers can use errors.As to distinguish a protocol
// problem from transport failure:
//
//	var decodeErr *wire.DecodeError
//	if errors.As(err, &decodeErr) { ... }
type DecodeError struct {
	// Reason describes what was wrong with the frame.
	Reason string
	// Err is the underlying cause, when one exists.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("wire: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodingError reports that a locally constructed message encodes to
// more bytes than the transport accepts. The send is aborted before
// any bytes reach the mesh; the user's input is not consumed.
type EncodingError struct {
	// Size is the encoded frame length in bytes.
	Size int
	// Limit is the transport's maximum payload size.
	Limit int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("wire: encoded frame is %d bytes, exceeds transport limit of %d", e.Size, e.Limit)
}
