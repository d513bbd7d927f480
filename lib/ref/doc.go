// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref defines Palaver's identifier value types.
//
// A [PeerID] names a chat participant for the lifetime of its process;
// a [TopicID] scopes a chat room. Both are fixed 32-byte values with a
// lowercase hex text form, generated from crypto/rand and never derived
// from user input. They implement encoding.TextMarshaler and
// encoding.TextUnmarshaler so they serialize as text strings in CBOR
// and YAML, including as map keys.
//
// Identifiers are parsed into these types at the boundary (ticket
// decode, wire decode) so the rest of the code never handles raw
// identifier bytes or strings. The zero value of either type is not a
// valid identifier; use IsZero to check.
package ref
