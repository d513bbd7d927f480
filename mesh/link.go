// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"net"
	"sync"

	"github.com/palaver-foundation/palaver/lib/ref"
)

// linkSendQueueSize buffers outbound payloads per link. A link that
// falls further behind than this drops frames — the substrate is
// best-effort and a stalled TCP peer must not block the broadcaster.
const linkSendQueueSize = 64

// link is one handshaken TCP connection to a neighbor. Reads and
// writes run on their own goroutines; the subscription owns link
// lifetime through addLink/removeLink.
type link struct {
	subscription *Subscription
	conn         net.Conn
	peer         ref.PeerID
	addresses    []string // Remote's advertised addresses, from its hello.

	sendQueue chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// enqueue offers a payload to the writer without blocking. Overflow
// drops the frame for this link only.
func (l *link) enqueue(payload []byte) {
	select {
	case l.sendQueue <- payload:
	case <-l.done:
	default:
		l.subscription.node.logger.Warn("link send queue full, dropping frame",
			"peer", l.peer.Short(),
		)
	}
}

// writeLoop drains the send queue onto the connection. A write error
// tears the link down; the relay mesh routes around it.
func (l *link) writeLoop() {
	for {
		select {
		case payload := <-l.sendQueue:
			if err := writeFrame(l.conn, linkFrame{Kind: frameData, Payload: payload}); err != nil {
				l.subscription.node.logger.Debug("link write failed",
					"peer", l.peer.Short(),
					"error", err,
				)
				l.subscription.removeLink(l)
				return
			}
		case <-l.done:
			return
		}
	}
}

// readLoop receives frames until the connection fails or the link is
// closed. Data frames are handed to the subscription for local
// delivery and relay; anything else after the handshake is ignored
// for forward compatibility.
func (l *link) readLoop() {
	for {
		frame, err := readFrame(l.conn)
		if err != nil {
			select {
			case <-l.done:
			default:
				l.subscription.node.logger.Debug("link read failed",
					"peer", l.peer.Short(),
					"error", err,
				)
			}
			l.subscription.removeLink(l)
			return
		}
		if frame.Kind == frameData && len(frame.Payload) > 0 {
			l.subscription.deliver(l, frame.Payload)
		}
	}
}

// close shuts the connection down. Idempotent.
func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.conn.Close()
	})
}
