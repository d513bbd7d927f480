// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"log/slog"
	"net"
	"strconv"

	"github.com/palaver-foundation/palaver/lib/ref"
	"github.com/palaver-foundation/palaver/ticket"
)

// Node is the local mesh endpoint: a TCP listener plus the peer
// identity broadcast frames are attributed to. A node hosts one
// subscription at a time; Close on the subscription releases the
// node's listener.
type Node struct {
	peer      ref.PeerID
	listener  net.Listener
	advertise []string
	logger    *slog.Logger
}

// NewNode binds the TCP listener and generates the process's peer
// identity. listen is a host:port address; empty means ":0" (random
// port). advertise lists extra addresses to publish in tickets and
// hellos for hosts that are not reachable at their bind address.
//
// A bind failure here is fatal to startup — the caller aborts before
// the event loop exists.
func NewNode(listen string, advertise []string, logger *slog.Logger) (*Node, error) {
	if listen == "" {
		listen = ":0"
	}
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, &TransportError{Op: "listen", Err: err}
	}

	peer, err := ref.NewPeerID()
	if err != nil {
		listener.Close()
		return nil, err
	}

	logger.Info("mesh node listening",
		"peer", peer.Short(),
		"address", listener.Addr().String(),
	)

	return &Node{
		peer:      peer,
		listener:  listener,
		advertise: advertise,
		logger:    logger,
	}, nil
}

// PeerID returns the node's stable per-process identity.
func (n *Node) PeerID() ref.PeerID { return n.peer }

// Addresses returns the dialable addresses to publish for this node:
// the configured advertise addresses followed by addresses derived
// from the listener. A wildcard bind expands to one address per
// interface so a ticket minted on ":0" is still dialable from the LAN.
func (n *Node) Addresses() []string {
	addresses := append([]string(nil), n.advertise...)

	tcpAddr, ok := n.listener.Addr().(*net.TCPAddr)
	if !ok {
		return append(addresses, n.listener.Addr().String())
	}
	port := strconv.Itoa(tcpAddr.Port)

	if !tcpAddr.IP.IsUnspecified() {
		return append(addresses, net.JoinHostPort(tcpAddr.IP.String(), port))
	}

	interfaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		n.logger.Warn("enumerating interfaces failed, publishing loopback only", "error", err)
		return append(addresses, net.JoinHostPort("127.0.0.1", port))
	}
	for _, interfaceAddr := range interfaceAddrs {
		ipNet, ok := interfaceAddr.(*net.IPNet)
		if !ok || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		addresses = append(addresses, net.JoinHostPort(ipNet.IP.String(), port))
	}
	return addresses
}

// Open starts a subscription on a fresh random topic. The returned
// ticket (Subscription.Ticket) is how other peers are invited.
func (n *Node) Open() (*Subscription, error) {
	topic, err := ref.NewTopicID()
	if err != nil {
		return nil, err
	}
	return newSubscription(n, topic, nil)
}

// Join subscribes to the ticket's topic and dials its bootstrap
// peers. When the ticket names bootstrap peers and none of them can
// be reached, Join fails — a joiner that cannot reach anyone would sit
// in an empty room with no path to the conversation.
func (n *Node) Join(tk ticket.Ticket) (*Subscription, error) {
	subscription, err := newSubscription(n, tk.Topic, tk.Bootstrap)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}
