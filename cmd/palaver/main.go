// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// palaver is a peer-to-peer terminal chat client. One participant
// opens a session and shares the printed ticket out of band; everyone
// else joins with that ticket. There is no server: peers relay
// broadcasts to each other over direct TCP links.
//
// Usage:
//
//	palaver --open --name alice
//	palaver --join <ticket> --name bob
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/palaver-foundation/palaver/chat"
	"github.com/palaver-foundation/palaver/lib/clock"
	"github.com/palaver-foundation/palaver/lib/config"
	"github.com/palaver-foundation/palaver/lib/version"
	"github.com/palaver-foundation/palaver/mesh"
	"github.com/palaver-foundation/palaver/ticket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		displayName string
		listen      string
		advertise   []string
		openSession bool
		joinTicket  string
		configPath  string
		logOutput   string
	)

	flagSet := pflag.NewFlagSet("palaver", pflag.ContinueOnError)
	flagSet.StringVar(&displayName, "name", "", "display name announced to peers")
	flagSet.StringVar(&listen, "listen", "", "TCP listen address (default: random port on all interfaces)")
	flagSet.StringArrayVar(&advertise, "advertise", nil, "extra address to publish in tickets (repeatable)")
	flagSet.BoolVar(&openSession, "open", false, "open a new session and print its ticket")
	flagSet.StringVar(&joinTicket, "join", "", "join the session named by this ticket")
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $PALAVER_CONFIG if set)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file (in addition to the status line)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing so it works regardless of
	// other arguments.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("palaver %s\n", version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if displayName == "" {
		displayName = cfg.DisplayName
	}
	if listen == "" {
		listen = cfg.Listen
	}
	if len(advertise) == 0 {
		advertise = cfg.Advertise
	}
	if logOutput == "" {
		logOutput = cfg.LogOutput
	}

	if openSession && joinTicket != "" {
		return fmt.Errorf("--open and --join are mutually exclusive")
	}
	if !openSession && joinTicket == "" {
		joinTicket, err = promptJoinTicket()
		if err != nil {
			return err
		}
		openSession = joinTicket == ""
	}
	if displayName == "" {
		displayName = promptDisplayName()
	}

	// Logging: warnings and errors go to the model's status line (a
	// plain stderr handler would tear the alternate screen). The
	// optional file captures everything for post-mortem reading.
	tuiHandler := chat.NewLogHandler(slog.LevelWarn)
	var logger *slog.Logger
	if logOutput != "" {
		fileHandler, closeFile, fileErr := openFileLogHandler(logOutput)
		if fileErr != nil {
			return fmt.Errorf("cannot open log file %s: %w", logOutput, fileErr)
		}
		defer closeFile()
		logger = slog.New(fanoutHandler{tuiHandler, fileHandler})
	} else {
		logger = slog.New(tuiHandler)
	}

	node, err := mesh.NewNode(listen, advertise, logger)
	if err != nil {
		return err
	}

	var subscription *mesh.Subscription
	if openSession {
		subscription, err = node.Open()
	} else {
		var invitation ticket.Ticket
		invitation, err = ticket.Decode(joinTicket)
		if err != nil {
			return err
		}
		subscription, err = node.Join(invitation)
	}
	if err != nil {
		return err
	}
	defer subscription.Close()

	encodedTicket, err := ticket.Encode(subscription.Ticket())
	if err != nil {
		return err
	}
	fmt.Printf("session ticket (share to invite):\n%s\n", encodedTicket)

	model := chat.NewModel(subscription, node.PeerID(), displayName, logger, clock.Real())
	if openSession {
		// Keep the ticket reachable inside the alternate screen too.
		model.State().AppendSystem("session ticket: " + encodedTicket)
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	tuiHandler.SetSink(func(record chat.LogMsg) {
		program.Send(record)
	})

	_, err = program.Run()
	tuiHandler.SetSink(nil)
	if err != nil {
		return err
	}

	// The alternate screen is gone; repeat the ticket so it survives
	// in the scrollback.
	fmt.Printf("session ticket was:\n%s\n", encodedTicket)
	return nil
}

// loadConfig reads the config file named by --config, falling back to
// $PALAVER_CONFIG. No file at all is fine; every setting has a flag.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// promptJoinTicket asks whether to join an existing session when
// neither --open nor --join was given. An empty answer means open a
// new session; on a non-interactive stdin the choice cannot be made
// and startup fails instead of guessing.
func promptJoinTicket() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("one of --open or --join is required when stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "ticket to join (leave empty to open a new session): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading ticket: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptDisplayName asks for a name on an interactive terminal. On a
// pipe, or when the user just presses enter, it falls back to a
// placeholder rather than refusing to start.
func promptDisplayName() string {
	const fallback = "anonymous"
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fallback
	}
	fmt.Fprint(os.Stderr, "display name: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fallback
	}
	if line = strings.TrimSpace(line); line == "" {
		return fallback
	}
	return line
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `palaver — peer-to-peer terminal chat.

Open a session and share the printed ticket, or join with a ticket
someone shared with you. Messages relay peer-to-peer over TCP; when
the opener leaves, the rest of the room stays connected.

Usage:
  palaver [flags]

Examples:
  # Open a session
  palaver --open --name alice

  # Join from another machine
  palaver --join <ticket> --name bob

  # Pin the listen port so the ticket survives restarts
  palaver --open --listen 0.0.0.0:7654

Keys:
  enter   send the typed message
  q, esc  quit

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// openFileLogHandler creates a slog.JSONHandler writing to path. The
// file is created or truncated.
func openFileLogHandler(path string) (slog.Handler, func(), error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler sends each record to multiple underlying handlers. A
// record is enabled if any sub-handler is enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
