package paxos

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeSender records every Send call for assertions instead of touching a
// real transport, mirroring how the teacher's tests fake the transport layer
// with an in-memory channel implementation.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	to  string
	msg Message
}

func (f *fakeSender) Send(to string, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, msg: msg})
}

func (f *fakeSender) messagesOfType(typ MessageType) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, s := range f.sent {
		if s.msg.Type() == typ {
			out = append(out, s)
		}
	}
	return out
}

func testPeers() []string {
	return []string{"M2", "M3", "M4", "M5", "M6", "M7", "M8", "M9"}
}

func newTestProposer() (*Proposer, *fakeSender, *Learner) {
	sender := &fakeSender{}
	log := zerolog.Nop()
	learner := NewLearner("M1", testPeers(), sender, log)
	proposer := NewProposer("M1", testPeers(), sender, learner, log)
	return proposer, sender, learner
}

func TestProposer_ProposeBroadcastsPrepareToAllPeers(t *testing.T) {
	p, sender, _ := newTestProposer()
	p.Propose("alpha")

	require.Eventually(t, func() bool {
		return len(sender.messagesOfType(TypePrepare)) == len(testPeers())
	}, time.Second, 5*time.Millisecond)
}

func TestProposer_PromiseQuorumLaunchesAcceptRequestExactlyOnce(t *testing.T) {
	p, sender, _ := newTestProposer()
	p.Propose("alpha")

	n := p.currentRound.n
	for i := 0; i < Quorum+2; i++ {
		from := testPeers()[i%len(testPeers())]
		p.OnPromise(Promise{From: from, N: n})
	}

	require.Eventually(t, func() bool {
		return len(sender.messagesOfType(TypeAcceptRequest)) == len(testPeers())
	}, time.Second, 5*time.Millisecond)

	// One more promise past quorum must not trigger a second broadcast.
	p.OnPromise(Promise{From: "M9", N: n})
	time.Sleep(20 * time.Millisecond)
	require.Len(t, sender.messagesOfType(TypeAcceptRequest), len(testPeers()))
}

func TestProposer_PromiseBelowQuorumDoesNotLaunchPhase2(t *testing.T) {
	p, sender, _ := newTestProposer()
	p.Propose("alpha")

	n := p.currentRound.n
	for i := 0; i < Quorum-1; i++ {
		p.OnPromise(Promise{From: testPeers()[i], N: n})
	}

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, sender.messagesOfType(TypeAcceptRequest))
}

func TestProposer_ChoosesHighestAcceptedValueAmongPromises(t *testing.T) {
	p, sender, _ := newTestProposer()
	p.Propose("candidate")

	n := p.currentRound.n
	p.OnPromise(Promise{From: "M2", N: n, HasAccepted: true, AcceptedN: 101, AcceptedV: "old"})
	p.OnPromise(Promise{From: "M3", N: n, HasAccepted: true, AcceptedN: 305, AcceptedV: "newer"})
	for i := 2; i < Quorum; i++ {
		p.OnPromise(Promise{From: testPeers()[i], N: n})
	}

	require.Eventually(t, func() bool {
		msgs := sender.messagesOfType(TypeAcceptRequest)
		if len(msgs) == 0 {
			return false
		}
		return msgs[0].msg.(AcceptRequest).V == "newer"
	}, time.Second, 5*time.Millisecond)
}

func TestProposer_AcceptQuorumDecidesExactlyOnce(t *testing.T) {
	p, sender, learner := newTestProposer()
	p.Propose("alpha")

	n := p.currentRound.n
	for i := 0; i < Quorum; i++ {
		p.OnAccepted(Accepted{From: testPeers()[i], N: n, V: "alpha"})
	}

	require.Eventually(t, func() bool {
		v, decided := learner.HasDecided()
		return decided && v == "alpha"
	}, time.Second, 5*time.Millisecond)

	require.Len(t, sender.messagesOfType(TypeDecide), len(testPeers()))

	// Extra accepted observations past quorum must not re-broadcast decide.
	p.OnAccepted(Accepted{From: "M9", N: n, V: "alpha"})
	time.Sleep(20 * time.Millisecond)
	require.Len(t, sender.messagesOfType(TypeDecide), len(testPeers()))
}

func TestProposer_RejectBelowQuorumEscalatesCounterOnRetry(t *testing.T) {
	p, _, _ := newTestProposer()
	p.Propose("alpha")

	round := p.currentRound
	round.recordReject(999)
	p.onPrepareTimeout(round.n)

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.currentRound != round
	}, time.Second, 5*time.Millisecond)

	p.mu.Lock()
	newN := p.currentRound.n
	p.mu.Unlock()
	require.Greater(t, newN, int64(999))
}

func TestProposer_StaleRoundMessagesAreIgnored(t *testing.T) {
	p, sender, _ := newTestProposer()
	p.Propose("alpha")
	staleN := p.currentRound.n - ProposalStride

	p.OnPromise(Promise{From: "M2", N: staleN})
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, sender.messagesOfType(TypeAcceptRequest))
}
