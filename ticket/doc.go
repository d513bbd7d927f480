// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticket encodes and decodes Palaver session invitations.
//
// A [Ticket] carries everything a peer needs to join a room: the topic
// identifier and an ordered list of bootstrap peers with their network
// addresses. It is produced once when a room is opened, shared
// out-of-band as a single copy-paste-safe string, and consumed once at
// join time to seed the mesh node. Tickets are never mutated after
// creation.
//
// The string form has two independent layers, each testable on its
// own: an explicit versioned binary layout, and a base32 text encoding
// without padding, emitted lowercase and accepted in either case.
// There is no integrity check beyond structural validation; a
// corrupted ticket fails decode deterministically with a
// [DecodeError] rather than producing a partially-populated Ticket.
package ticket
