// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Palaver's standard CBOR encoding configuration.
//
// CBOR is the only serialization format on the wire: chat protocol
// frames (package wire) and mesh link envelopes (package mesh) both
// encode through the modes defined here, so every package encodes
// identically without duplicating configuration. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes — which also makes the mesh's
// content-digest dedup stable across peers.
//
// For buffer-oriented operations (protocol frames):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (mesh links):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Identifier types (ref.PeerID, ref.TopicID) implement
// encoding.TextMarshaler and serialize as CBOR text strings; the
// encoder and decoder are configured to honor that on both sides of
// the round trip.
package codec
