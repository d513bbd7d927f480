// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat implements the terminal chat client: the session state
// machine and the bubbletea model that drives it.
//
// State is the single-owner record of one session — the message log,
// the participant directory, and the dedup sets. It is pure: applying
// a message mutates state and reports what the caller should do next
// (render, reply), but performs no I/O itself.
//
// Model is the event loop. It is the only writer of State and the only
// component that touches the mesh subscription, the text input, and
// the screen. Network receive, keyboard input, and the redraw tick all
// arrive as bubbletea messages and are serialized through Update, so
// no lock guards the session state.
package chat
