// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the chat client's key bindings. Declared as a struct
// of key.Binding so the help line renders from the same source of
// truth the Update loop matches against.
type KeyMap struct {
	Submit key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the standard binding set.
var DefaultKeyMap = KeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "quit"),
	),
}
