// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package mesh is the peer-to-peer publish/subscribe substrate the
// chat client broadcasts over.
//
// A [Node] binds a TCP listener and owns the process's peer identity.
// [Node.Open] starts a subscription on a fresh random topic;
// [Node.Join] subscribes to the topic named in a ticket and dials the
// ticket's bootstrap peers. Either way the caller receives a
// [Subscription] — the narrow interface the chat layer consumes:
// Broadcast (fire-and-forget enqueue), Next (blocking receive), and an
// idempotent Close that releases the listener and every link.
//
// Links speak a minimal framed protocol: a 4-byte big-endian length
// prefix followed by a CBOR envelope. The first frame in each
// direction is a hello naming the topic, the peer, its advertised
// addresses, and the addresses of its current neighbors; a topic
// mismatch closes the link, and the neighbor records let a joiner dial
// peers it did not bootstrap from, so the room survives the departure
// of the peer that opened it. Every subsequent frame carries an opaque
// broadcast payload.
//
// Fan-out is gossip-style: a payload received on one link is delivered
// locally at most once and relayed to every other link. A bounded set
// of recent blake3 digests suppresses re-delivery and re-relay, so
// redundant mesh paths cannot duplicate a broadcast or make it
// circulate forever. Delivery is best-effort — links that fall behind
// drop frames, and no acknowledgment or retry exists at this layer.
//
// The mesh treats payloads as opaque bytes; it neither parses nor
// authenticates chat frames. [MaxPayloadSize] is the published limit
// that senders must check against before handing bytes over.
package mesh
