package transport

import (
	"github.com/adelaide-council/paxos-council/internal/paxos"
)

// Memory is a channel-backed paxos.Sender used by the multi-participant
// scenario tests in spec.md §8: it lets nine simulated participants run a
// full round with no real sockets. Each inbox delivers in FIFO order; the
// order in which concurrent senders reach an inbox is not fixed.
type Memory struct {
	self  string
	net   *Network
	fault *FaultInjector
}

// Network is the shared registry every Memory transport in a test sends
// through, one inbox channel per registered participant.
type Network struct {
	inboxes map[string]chan paxos.Message
}

// NewNetwork creates an empty registry for the given participant ids.
func NewNetwork(members []string) *Network {
	n := &Network{inboxes: make(map[string]chan paxos.Message, len(members))}
	for _, id := range members {
		n.inboxes[id] = make(chan paxos.Message, 256)
	}
	return n
}

// NewMemory builds a Memory transport for self against net, applying fault
// (may be nil) to every delivered message.
func NewMemory(self string, net *Network, fault *FaultInjector) *Memory {
	return &Memory{self: self, net: net, fault: fault}
}

// Send implements paxos.Sender by pushing directly onto the recipient's
// inbox channel, dropping silently if unknown or full — the in-memory
// analogue of a failed dial (spec.md §7).
func (m *Memory) Send(to string, msg paxos.Message) {
	inbox, ok := m.net.inboxes[to]
	if !ok {
		return
	}
	if m.fault != nil && m.fault.ShouldDrop() {
		return
	}
	select {
	case inbox <- msg:
	default:
	}
}

// Serve drains self's inbox, applying fault's inbound delay before each
// dispatch, until stop is closed. Intended to run in its own goroutine, one
// per simulated participant.
func (m *Memory) Serve(handle func(paxos.Message), stop <-chan struct{}) {
	inbox := m.net.inboxes[m.self]
	for {
		select {
		case <-stop:
			return
		case msg := <-inbox:
			if m.fault != nil {
				m.fault.DelayBeforeHandling()
			}
			handle(msg)
		}
	}
}
