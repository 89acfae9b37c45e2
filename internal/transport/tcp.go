package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/adelaide-council/paxos-council/internal/config"
	"github.com/adelaide-council/paxos-council/internal/paxos"
)

// socketTimeout bounds both outbound connect/write and inbound read, per
// spec.md §6's "2-second socket-level timeout".
const socketTimeout = 2 * time.Second

// listenerWorkers bounds the number of inbound connections handled
// concurrently, the "bounded worker pool" of spec.md §5.
const listenerWorkers = 16

// TCP implements paxos.Sender over one-shot TCP connections: connect, write
// the encoded line, flush, close (spec.md §6). It also runs the listener
// that turns inbound connections into decoded paxos.Message values.
type TCP struct {
	self    string
	network *config.Network
	fault   *FaultInjector
	log     zerolog.Logger
}

// NewTCP builds a TCP transport for self, resolving peer addresses from
// network and applying fault to every inbound connection.
func NewTCP(self string, network *config.Network, fault *FaultInjector, log zerolog.Logger) *TCP {
	return &TCP{self: self, network: network, fault: fault, log: log.With().Str("member", self).Logger()}
}

// Send implements paxos.Sender. Connect failures, timeouts and write errors
// are silently discarded — spec.md §7's "lost message" semantics — a peer
// that never receives this message will get it via retry or gossip instead.
func (t *TCP) Send(to string, msg paxos.Message) {
	entry, ok := t.network.Entry(to)
	if !ok {
		t.log.Warn().Str("to", to).Msg("no address configured for peer, dropping send")
		return
	}

	conn, err := net.DialTimeout("tcp", entry.Address(), socketTimeout)
	if err != nil {
		t.log.Debug().Err(err).Str("to", to).Msg("send: dial failed")
		return
	}
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	_ = conn.SetDeadline(time.Now().Add(socketTimeout))

	line := paxos.Encode(msg)
	if _, err := conn.Write([]byte(line)); err != nil {
		t.log.Debug().Err(err).Str("to", to).Msg("send: write failed")
		return
	}
	t.log.Debug().Str("to", to).Str("msg", msg.String()).Msg("sent")
}

// ListenAndServe binds this participant's configured port and serves
// inbound connections until ctx is canceled. It returns once bound; the
// accept loop runs in the background, mirroring the teacher's
// ServeAgents/ServeClients "bind, spawn, return" shape.
func (t *TCP) ListenAndServe(ctx context.Context, handle func(paxos.Message)) (net.Addr, error) {
	entry, ok := t.network.Entry(t.self)
	if !ok {
		return nil, errors.Errorf("transport: no address configured for %s", t.self)
	}

	ln, err := net.Listen("tcp", entry.Address())
	if err != nil {
		return nil, errors.Wrapf(err, "transport: listening on %s", entry.Address())
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	sem := make(chan struct{}, listenerWorkers)
	go t.acceptLoop(ctx, ln, sem, handle)

	return ln.Addr(), nil
}

func (t *TCP) acceptLoop(ctx context.Context, ln net.Listener, sem chan struct{}, handle func(paxos.Message)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				t.log.Debug().Err(err).Msg("accept failed")
				continue
			}
		}
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			t.handleConn(conn, handle)
		}()
	}
}

// handleConn reads exactly one newline-terminated line, applies the
// profile's delay/drop decisions, decodes it, and dispatches — "one
// connection, one message, close" (spec.md §6).
func (t *TCP) handleConn(conn net.Conn, handle func(paxos.Message)) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(socketTimeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		t.log.Debug().Err(err).Msg("read failed")
		return
	}

	if t.fault != nil {
		t.fault.DelayBeforeHandling()
		if t.fault.ShouldDrop() {
			t.log.Debug().Msg("dropping inbound message per fault profile")
			return
		}
	}

	msg, err := paxos.Decode(line)
	if err != nil {
		t.log.Warn().Err(err).Msg("dropping malformed message")
		return
	}
	handle(msg)
}
