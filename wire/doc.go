// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the chat protocol frame exchanged over the mesh
// and its codec.
//
// A [Message] is a random 16-byte nonce, the sender's peer ID, and a
// tagged [Body]: [WhoIsThere] (discovery request), [AboutMe]
// (discovery reply carrying a display name), or [Chat] (ordinary
// text). Messages are transient — constructed, broadcast once, applied
// to chat state, and discarded; the nonce exists purely so receivers
// can suppress duplicates delivered by mesh re-propagation.
//
// The serialization is field-tagged CBOR through lib/codec with a
// string kind discriminator, so a frame from a future protocol
// revision with an unknown kind is rejected explicitly by [Decode]
// rather than misinterpreted. [Encode] checks the frame against the
// transport's payload limit before any bytes reach the mesh; an
// oversized message never leaves the process.
package wire
