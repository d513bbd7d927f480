// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/palaver-foundation/palaver/lib/ref"
	"github.com/palaver-foundation/palaver/ticket"
)

const (
	// inboundQueueSize buffers payloads between link readers and the
	// consumer's Next loop.
	inboundQueueSize = 128

	// handshakeTimeout bounds the hello exchange on a new connection.
	handshakeTimeout = 10 * time.Second

	// recentDigestLimit bounds the dedup set. At chat rates this is
	// minutes of history; older digests age out in arrival order.
	recentDigestLimit = 1024
)

// Subscription is a live attachment to one topic: the inbound payload
// stream, the outbound broadcast sink, and the set of TCP links they
// run over. The chat event loop is the sole owner — Subscription
// handles are never shared between components.
type Subscription struct {
	node  *Node
	topic ref.TopicID

	inbound chan []byte
	done    chan struct{}

	mu        sync.Mutex
	closed    bool
	links     map[*link]struct{}
	attempted map[ref.PeerID]bool // Peers a dial goroutine was ever started for.
	recent    *digestSet
}

// newSubscription attaches to topic, starts the accept loop, and
// dials the bootstrap peers. With a non-empty bootstrap list, at least
// one dial must succeed.
func newSubscription(node *Node, topic ref.TopicID, bootstrap []ticket.PeerAddr) (*Subscription, error) {
	subscription := &Subscription{
		node:      node,
		topic:     topic,
		inbound:   make(chan []byte, inboundQueueSize),
		done:      make(chan struct{}),
		links:     map[*link]struct{}{},
		attempted: map[ref.PeerID]bool{},
		recent:    newDigestSet(recentDigestLimit),
	}

	go subscription.acceptLoop()

	var connected int
	var lastErr error
	for _, record := range bootstrap {
		if record.Peer == node.peer {
			continue
		}
		subscription.markAttempted(record.Peer)
		if err := subscription.dial(record.Peer, record.Addresses); err != nil {
			lastErr = err
			node.logger.Warn("bootstrap dial failed",
				"peer", record.Peer.Short(),
				"error", err,
			)
			continue
		}
		connected++
	}
	if len(bootstrap) > 0 && connected == 0 {
		subscription.Close()
		if lastErr == nil {
			lastErr = fmt.Errorf("no dialable bootstrap peers")
		}
		return nil, &TransportError{Op: "dial", Err: lastErr}
	}

	return subscription, nil
}

// Topic returns the topic this subscription is scoped to.
func (s *Subscription) Topic() ref.TopicID { return s.topic }

// Ticket mints an invitation for this subscription: the topic plus the
// local node as the single bootstrap peer.
func (s *Subscription) Ticket() ticket.Ticket {
	return ticket.Ticket{
		Topic: s.topic,
		Bootstrap: []ticket.PeerAddr{
			{Peer: s.node.peer, Addresses: s.node.Addresses()},
		},
	}
}

// PeerCount returns the number of live links.
func (s *Subscription) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

// Broadcast enqueues payload to every live link and returns without
// waiting for delivery. The payload's digest is recorded as seen, so
// an echo relayed back by a neighbor is never re-delivered locally.
// Returns a *TransportError wrapping ErrClosed after Close.
func (s *Subscription) Broadcast(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &TransportError{
			Op:  "broadcast",
			Err: fmt.Errorf("payload is %d bytes, exceeds limit %d", len(payload), MaxPayloadSize),
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &TransportError{Op: "broadcast", Err: ErrClosed}
	}
	s.recent.markSeen(blake3.Sum256(payload))
	targets := make([]*link, 0, len(s.links))
	for l := range s.links {
		targets = append(targets, l)
	}
	s.mu.Unlock()

	for _, target := range targets {
		target.enqueue(payload)
	}
	return nil
}

// Next blocks until a broadcast payload arrives, the context is
// cancelled, or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-s.inbound:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, &TransportError{Op: "next", Err: ErrClosed}
	}
}

// Close releases the listener and every link. Idempotent; concurrent
// and repeated calls are safe.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	links := make([]*link, 0, len(s.links))
	for l := range s.links {
		links = append(links, l)
	}
	s.links = map[*link]struct{}{}
	s.mu.Unlock()

	close(s.done)
	s.node.listener.Close()
	for _, l := range links {
		l.close()
	}
	return nil
}

// acceptLoop admits inbound connections until the listener closes.
func (s *Subscription) acceptLoop() {
	for {
		conn, err := s.node.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.node.logger.Warn("accept failed", "error", err)
			}
			return
		}
		go func() {
			if err := s.handshake(conn); err != nil {
				s.node.logger.Debug("inbound handshake rejected", "error", err)
				conn.Close()
			}
		}()
	}
}

// dial connects to one peer, trying its addresses in order.
func (s *Subscription) dial(peer ref.PeerID, addresses []string) error {
	var lastErr error
	for _, address := range addresses {
		conn, err := net.DialTimeout("tcp", address, handshakeTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if err := s.handshake(conn); err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("peer %s has no addresses", peer.Short())
	}
	return lastErr
}

// handshake runs the symmetric hello exchange on a fresh connection
// and, on success, installs the link. Both sides write first and then
// read, so the exchange cannot deadlock.
func (s *Subscription) handshake(conn net.Conn) error {
	deadline := time.Now().Add(handshakeTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	if err := writeFrame(conn, s.helloFrame()); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}

	remoteHello, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if remoteHello.Kind != frameHello || remoteHello.Self == nil {
		return fmt.Errorf("first frame is not a hello")
	}
	if remoteHello.Topic != s.topic {
		return fmt.Errorf("topic mismatch: remote subscribed to %s", remoteHello.Topic.Short())
	}
	remotePeer := remoteHello.Self.Peer
	if remotePeer.IsZero() || remotePeer == s.node.peer {
		return fmt.Errorf("invalid remote peer identity")
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return err
	}

	installed := s.addLink(conn, remoteHello.Self)
	if !installed {
		return fmt.Errorf("duplicate link to %s", remotePeer.Short())
	}

	// Best-effort mesh densification: dial neighbors we have no link
	// to yet. Keeps the room connected when the inviting peer leaves.
	for _, neighbor := range remoteHello.Neighbors {
		s.connectLazily(neighbor)
	}
	return nil
}

// helloFrame builds the local hello: own identity and addresses plus
// one record per current neighbor.
func (s *Subscription) helloFrame() linkFrame {
	s.mu.Lock()
	neighbors := make([]peerRecord, 0, len(s.links))
	for l := range s.links {
		neighbors = append(neighbors, peerRecord{Peer: l.peer, Addresses: l.addresses})
	}
	s.mu.Unlock()

	return linkFrame{
		Kind:  frameHello,
		Topic: s.topic,
		Self: &peerRecord{
			Peer:      s.node.peer,
			Addresses: s.node.Addresses(),
		},
		Neighbors: neighbors,
	}
}

// addLink installs a handshaken connection and starts its read and
// write loops. Returns false (without installing) when the
// subscription is closed or a link to that peer already exists — the
// simultaneous-dial race resolves by keeping the established link.
func (s *Subscription) addLink(conn net.Conn, remote *peerRecord) bool {
	newLink := &link{
		subscription: s,
		conn:         conn,
		peer:         remote.Peer,
		addresses:    remote.Addresses,
		sendQueue:    make(chan []byte, linkSendQueueSize),
		done:         make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	for existing := range s.links {
		if existing.peer == remote.Peer {
			s.mu.Unlock()
			return false
		}
	}
	s.links[newLink] = struct{}{}
	s.mu.Unlock()

	s.node.logger.Info("link established", "peer", remote.Peer.Short())
	go newLink.readLoop()
	go newLink.writeLoop()
	return true
}

// removeLink drops a failed or closed link.
func (s *Subscription) removeLink(l *link) {
	s.mu.Lock()
	_, present := s.links[l]
	delete(s.links, l)
	s.mu.Unlock()

	l.close()
	if present {
		s.node.logger.Info("link lost", "peer", l.peer.Short())
	}
}

// connectLazily starts a background dial to a neighbor learned from a
// hello, unless it is the local peer, already linked, or already being
// attempted. Failures are logged and otherwise ignored.
func (s *Subscription) connectLazily(record peerRecord) {
	if record.Peer.IsZero() || record.Peer == s.node.peer || len(record.Addresses) == 0 {
		return
	}

	s.mu.Lock()
	if s.closed || s.attempted[record.Peer] {
		s.mu.Unlock()
		return
	}
	for existing := range s.links {
		if existing.peer == record.Peer {
			s.mu.Unlock()
			return
		}
	}
	s.attempted[record.Peer] = true
	s.mu.Unlock()

	go func() {
		if err := s.dial(record.Peer, record.Addresses); err != nil {
			s.node.logger.Debug("lazy dial failed",
				"peer", record.Peer.Short(),
				"error", err,
			)
		}
	}()
}

// markAttempted records a peer the bootstrap loop dials, so a hello
// neighbor record does not trigger a redundant lazy dial.
func (s *Subscription) markAttempted(peer ref.PeerID) {
	s.mu.Lock()
	s.attempted[peer] = true
	s.mu.Unlock()
}

// deliver hands a payload received on sourceLink to the local consumer
// (once) and relays it to every other link. Returns immediately; a
// full inbound queue drops the payload with a warning rather than
// stalling the link reader.
func (s *Subscription) deliver(sourceLink *link, payload []byte) {
	s.mu.Lock()
	if s.closed || !s.recent.markSeen(blake3.Sum256(payload)) {
		s.mu.Unlock()
		return
	}
	targets := make([]*link, 0, len(s.links))
	for l := range s.links {
		if l != sourceLink {
			targets = append(targets, l)
		}
	}
	s.mu.Unlock()

	select {
	case s.inbound <- payload:
	default:
		s.node.logger.Warn("inbound queue full, dropping broadcast")
	}

	for _, target := range targets {
		target.enqueue(payload)
	}
}

// digestSet is a bounded recent-set of payload digests. Insertion
// order is tracked in a ring so the oldest digest ages out when the
// limit is reached.
type digestSet struct {
	limit  int
	seen   map[[32]byte]struct{}
	order  [][32]byte
	cursor int
}

func newDigestSet(limit int) *digestSet {
	return &digestSet{
		limit: limit,
		seen:  make(map[[32]byte]struct{}, limit),
		order: make([][32]byte, 0, limit),
	}
}

// markSeen records digest and reports whether it was new. Callers hold
// the subscription lock.
func (d *digestSet) markSeen(digest [32]byte) bool {
	if _, duplicate := d.seen[digest]; duplicate {
		return false
	}
	if len(d.order) < d.limit {
		d.order = append(d.order, digest)
	} else {
		delete(d.seen, d.order[d.cursor])
		d.order[d.cursor] = digest
		d.cursor = (d.cursor + 1) % d.limit
	}
	d.seen[digest] = struct{}{}
	return true
}
