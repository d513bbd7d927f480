// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palaver-foundation/palaver/lib/clock"
	"github.com/palaver-foundation/palaver/lib/ref"
	"github.com/palaver-foundation/palaver/lib/testutil"
	"github.com/palaver-foundation/palaver/mesh"
	"github.com/palaver-foundation/palaver/wire"
)

// fakeSession is an in-memory Session: broadcasts land on a channel
// the test drains, and the test feeds inbound payloads by hand.
type fakeSession struct {
	topic   ref.TopicID
	sent    chan []byte
	inbound chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeSession(t *testing.T) *fakeSession {
	t.Helper()
	topic, err := ref.NewTopicID()
	if err != nil {
		t.Fatalf("NewTopicID: %v", err)
	}
	return &fakeSession{
		topic:   topic,
		sent:    make(chan []byte, 16),
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (f *fakeSession) Topic() ref.TopicID { return f.topic }
func (f *fakeSession) PeerCount() int     { return 1 }

func (f *fakeSession) Broadcast(payload []byte) error {
	f.sent <- payload
	return nil
}

func (f *fakeSession) Next(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-f.inbound:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return nil, mesh.ErrClosed
	}
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestModel(t *testing.T) (Model, *fakeSession) {
	t.Helper()
	session := newFakeSession(t)
	model := NewModel(session, newPeer(t), "alice", slog.New(slog.DiscardHandler), clock.NewFake())
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model), session
}

// requireSent drains one broadcast from the fake session and decodes it.
func requireSent(t *testing.T, session *fakeSession) wire.Message {
	t.Helper()
	payload := testutil.RequireReceive(t, session.sent, time.Second, "waiting for broadcast")
	message, err := wire.Decode(payload)
	if err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	return message
}

func TestInitBroadcastsDiscoveryAndAnnouncement(t *testing.T) {
	model, session := newTestModel(t)
	model.Init()

	message := requireSent(t, session)
	if _, ok := message.Body.(wire.WhoIsThere); !ok {
		t.Fatalf("first broadcast is %T, want WhoIsThere", message.Body)
	}

	// The unprompted announcement rides along: peers already in the
	// room never re-send WhoIsThere, so this is their only chance to
	// learn the joiner.
	message = requireSent(t, session)
	body, ok := message.Body.(wire.AboutMe)
	if !ok {
		t.Fatalf("second broadcast is %T, want AboutMe", message.Body)
	}
	if body.Name != "alice" {
		t.Fatalf("announcement name %q, want alice", body.Name)
	}
	testutil.RequireNoReceive(t, session.sent, 50*time.Millisecond, "extra startup broadcast")
}

func TestSubmitBroadcastsEchoesAndClearsInput(t *testing.T) {
	model, session := newTestModel(t)
	model.input.SetValue("  hello mesh  ")

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)

	message := requireSent(t, session)
	body, ok := message.Body.(wire.Chat)
	if !ok {
		t.Fatalf("broadcast is %T, want Chat", message.Body)
	}
	if body.Text != "hello mesh" {
		t.Fatalf("broadcast text %q, want trimmed input", body.Text)
	}

	entries := model.State().Entries()
	if len(entries) != 1 || entries[0].Name != "alice" || entries[0].Text != "hello mesh" {
		t.Fatalf("local echo missing or wrong: %+v", entries)
	}
	if model.input.Value() != "" {
		t.Fatalf("input not cleared: %q", model.input.Value())
	}
}

func TestSubmitEmptyInputIsIgnored(t *testing.T) {
	model, session := newTestModel(t)
	model.input.SetValue("   ")

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)

	testutil.RequireNoReceive(t, session.sent, 50*time.Millisecond, "blank input broadcast")
	if got := len(model.State().Entries()); got != 0 {
		t.Fatalf("blank input appended %d entries", got)
	}
}

func TestOversizedSubmitKeepsInputIntact(t *testing.T) {
	model, session := newTestModel(t)
	oversized := strings.Repeat("a", mesh.MaxPayloadSize+1)
	model.input.SetValue(oversized)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)

	testutil.RequireNoReceive(t, session.sent, 50*time.Millisecond, "oversized message broadcast")
	if model.input.Value() != oversized {
		t.Fatal("input was consumed by a refused send")
	}
	if got := len(model.State().Entries()); got != 0 {
		t.Fatalf("refused send appended %d entries", got)
	}
	if model.notice == "" {
		t.Fatal("no notice shown for refused send")
	}
}

func TestInboundChatAppendsToLog(t *testing.T) {
	model, _ := newTestModel(t)
	sender := newPeer(t)

	payload := encodeMessage(t, newMessage(t, sender, wire.Chat{Text: "hi there"}))
	updated, cmd := model.Update(broadcastReceivedMsg{payload: payload})
	model = updated.(Model)

	entries := model.State().Entries()
	if len(entries) != 1 || entries[0].Text != "hi there" {
		t.Fatalf("inbound chat not applied: %+v", entries)
	}
	if cmd == nil {
		t.Fatal("receive loop not re-armed")
	}
}

func TestDiscoveryRequestTriggersAnnouncementReply(t *testing.T) {
	model, session := newTestModel(t)
	payload := encodeMessage(t, newMessage(t, newPeer(t), wire.WhoIsThere{}))

	updated, _ := model.Update(broadcastReceivedMsg{payload: payload})
	_ = updated.(Model)

	reply := requireSent(t, session)
	body, ok := reply.Body.(wire.AboutMe)
	if !ok {
		t.Fatalf("reply is %T, want AboutMe", reply.Body)
	}
	if body.Name != "alice" {
		t.Fatalf("reply name %q, want alice", body.Name)
	}
}

func TestMalformedInboundFrameIsDroppedWithNotice(t *testing.T) {
	model, _ := newTestModel(t)

	updated, cmd := model.Update(broadcastReceivedMsg{payload: []byte{0xff, 0x00, 0x01}})
	model = updated.(Model)

	if got := len(model.State().Entries()); got != 0 {
		t.Fatalf("malformed frame appended %d entries", got)
	}
	if model.notice == "" {
		t.Fatal("no notice shown for dropped frame")
	}
	if cmd == nil {
		t.Fatal("receive loop not re-armed after a dropped frame")
	}
}

func TestQuitKeyClosesSessionAndQuits(t *testing.T) {
	model, session := newTestModel(t)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	_ = updated.(Model)

	if !session.isClosed() {
		t.Fatal("session not closed on quit")
	}
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit command did not produce tea.QuitMsg")
	}
}

func TestInboundQueuedBehindQuitIsNotApplied(t *testing.T) {
	model, session := newTestModel(t)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	model = updated.(Model)

	// A frame already in flight when the quit key landed.
	late := encodeMessage(t, newMessage(t, newPeer(t), wire.Chat{Text: "late"}))
	updated, cmd := model.Update(broadcastReceivedMsg{payload: late})
	model = updated.(Model)

	if got := len(model.State().Entries()); got != 0 {
		t.Fatalf("post-quit frame appended %d entries", got)
	}
	if cmd != nil {
		t.Fatal("receive loop re-armed after quit")
	}

	// Discovery frames must not trigger replies either.
	request := encodeMessage(t, newMessage(t, newPeer(t), wire.WhoIsThere{}))
	updated, _ = model.Update(broadcastReceivedMsg{payload: request})
	_ = updated.(Model)
	testutil.RequireNoReceive(t, session.sent, 50*time.Millisecond, "reply broadcast after quit")
}

// roomMember is one simulated participant: a model plus the fake
// session its broadcasts land on.
type roomMember struct {
	name    string
	peer    ref.PeerID
	session *fakeSession
	model   Model
}

// testRoom cross-wires fake sessions into a full mesh: every broadcast
// from one member is delivered to every other member, never back to
// the sender, matching the substrate's self-suppression.
type testRoom struct {
	members []*roomMember
}

func (r *testRoom) join(t *testing.T, name string) *roomMember {
	t.Helper()
	session := newFakeSession(t)
	peer := newPeer(t)
	member := &roomMember{
		name:    name,
		peer:    peer,
		session: session,
		model:   NewModel(session, peer, name, slog.New(slog.DiscardHandler), clock.NewFake()),
	}
	r.members = append(r.members, member)
	member.model.Init()
	r.pump(t)
	return member
}

// pump drains broadcasts and delivers them until the room goes quiet,
// including the replies those deliveries provoke.
func (r *testRoom) pump(t *testing.T) {
	t.Helper()
	for progressed := true; progressed; {
		progressed = false
		for _, sender := range r.members {
			for {
				var payload []byte
				select {
				case payload = <-sender.session.sent:
				default:
				}
				if payload == nil {
					break
				}
				progressed = true
				for _, receiver := range r.members {
					if receiver == sender {
						continue
					}
					updated, _ := receiver.model.Update(broadcastReceivedMsg{payload: payload})
					receiver.model = updated.(Model)
				}
			}
		}
	}
}

func (member *roomMember) joinNotices() []string {
	var notices []string
	for _, entry := range member.model.State().Entries() {
		if entry.System && strings.Contains(entry.Text, "joined") {
			notices = append(notices, entry.Text)
		}
	}
	return notices
}

func TestHandshakeConvergesAcrossSequentialJoiners(t *testing.T) {
	room := &testRoom{}
	alice := room.join(t, "alice")
	bob := room.join(t, "bob")
	carol := room.join(t, "carol")

	// Every member's directory holds every other member's name —
	// including the opener learning the latest joiner.
	for _, member := range room.members {
		if got := member.model.State().Participants(); got != 3 {
			t.Errorf("%s sees %d participants, want 3", member.name, got)
		}
		for _, other := range room.members {
			if other == member {
				continue
			}
			if got := member.model.State().Name(other.peer); got != other.name {
				t.Errorf("%s's directory has %q for %s", member.name, got, other.name)
			}
		}
	}

	// Exactly one join notice per other member, even though AboutMe
	// frames arrive both unprompted and as WhoIsThere replies.
	cases := []struct {
		member *roomMember
		want   []string
	}{
		{alice, []string{"bob joined the session", "carol joined the session"}},
		{bob, []string{"alice joined the session", "carol joined the session"}},
		{carol, []string{"alice joined the session", "bob joined the session"}},
	}
	for _, tc := range cases {
		got := tc.member.joinNotices()
		if len(got) != len(tc.want) {
			t.Errorf("%s has join notices %q, want %q", tc.member.name, got, tc.want)
			continue
		}
		for _, want := range tc.want {
			found := false
			for _, notice := range got {
				if notice == want {
					found = true
				}
			}
			if !found {
				t.Errorf("%s is missing notice %q (has %q)", tc.member.name, want, got)
			}
		}
	}
}

func TestChatReachesEveryMemberAfterConvergence(t *testing.T) {
	room := &testRoom{}
	room.join(t, "alice")
	bob := room.join(t, "bob")
	carol := room.join(t, "carol")

	bob.model.input.SetValue("hello room")
	updated, _ := bob.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	bob.model = updated.(Model)
	room.pump(t)

	for _, member := range []*roomMember{bob, carol} {
		entries := member.model.State().Entries()
		last := entries[len(entries)-1]
		if last.Name != "bob" || last.Text != "hello room" {
			t.Errorf("%s's last entry = %q from %q", member.name, last.Text, last.Name)
		}
	}
}

func TestSessionLossAppendsSystemNotice(t *testing.T) {
	model, _ := newTestModel(t)

	updated, _ := model.Update(sessionClosedMsg{err: mesh.ErrClosed})
	model = updated.(Model)

	entries := model.State().Entries()
	if len(entries) != 1 || !entries[0].System {
		t.Fatalf("expected one system entry, got %+v", entries)
	}
}

func encodeMessage(t *testing.T, message wire.Message) []byte {
	t.Helper()
	payload, err := wire.Encode(message, mesh.MaxPayloadSize)
	if err != nil {
		t.Fatalf("wire.Encode: %v", err)
	}
	return payload
}
