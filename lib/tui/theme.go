// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the shared visual vocabulary for Palaver's
// terminal UI: the color theme and the peer color assignment.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/zeebo/blake3"

	"github.com/palaver-foundation/palaver/lib/ref"
)

// Theme defines the color palette and visual properties for the chat
// client. All colors use lipgloss ANSI 256-color codes for broad
// terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// SystemText styles system-authored log entries (joins, notices).
	SystemText lipgloss.Color

	// SelfText styles the local user's name in the log.
	SelfText lipgloss.Color

	// PeerColors is the palette cycled through for remote peer names.
	// Assignment is by identity hash, so a given peer keeps its color
	// for the whole session on every screen that shows it.
	PeerColors [6]lipgloss.Color

	// UI chrome.
	BorderColor        lipgloss.Color
	BorderFocusedColor lipgloss.Color
	HelpText           lipgloss.Color
	StatusWarning      lipgloss.Color
	StatusError        lipgloss.Color
}

// PeerColor returns the stable display color for a peer. The blake3
// digest of the identity picks a palette slot; the digest is stable
// across processes so all participants color a peer the same way.
func (theme Theme) PeerColor(peer ref.PeerID) lipgloss.Color {
	digest := blake3.Sum256(peer[:])
	return theme.PeerColors[int(digest[0])%len(theme.PeerColors)]
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed for
// 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SystemText: lipgloss.Color("245"),
	SelfText:   lipgloss.Color("114"), // green

	PeerColors: [6]lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("220"), // amber
		lipgloss.Color("141"), // purple
		lipgloss.Color("208"), // orange
		lipgloss.Color("80"),  // teal
		lipgloss.Color("211"), // pink
	},

	BorderColor:        lipgloss.Color("240"),
	BorderFocusedColor: lipgloss.Color("75"),
	HelpText:           lipgloss.Color("241"),
	StatusWarning:      lipgloss.Color("220"),
	StatusError:        lipgloss.Color("196"),
}
