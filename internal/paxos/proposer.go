package paxos

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Default phase timeouts and retry jitter bounds, per spec.md §4.2.
const (
	PrepareTimeout = 2500 * time.Millisecond
	AcceptTimeout  = 2500 * time.Millisecond
	JitterMin      = 50 * time.Millisecond
	JitterMax      = 200 * time.Millisecond
)

// Sender is the abstract outbound half of the transport facade the
// consensus core depends on (spec.md §1): send(peer, message). Delivery of
// inbound messages is the Engine's Dispatch method, driven by whatever
// listener the transport package provides.
type Sender interface {
	Send(to string, msg Message)
}

// Proposer drives rounds: proposal-number allocation, broadcast, quorum
// collection, value selection, and timeout-driven retry with monotonic
// escalation (spec.md §4.2).
type Proposer struct {
	self  string
	peers []string // all other participants, self excluded
	send  Sender
	learn *Learner
	log   zerolog.Logger

	mu           sync.Mutex
	counter      int64
	currentRound *proposerRound

	timers *concurrentMap[*time.Timer]

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewProposer wires a Proposer to its peers, its outbound Sender, and the
// Learner it consults (to short-circuit once decided) and feeds (to record
// the decision the instant accept-quorum is reached).
func NewProposer(self string, peers []string, send Sender, learn *Learner, log zerolog.Logger) *Proposer {
	return &Proposer{
		self:    self,
		peers:   peers,
		send:    send,
		learn:   learn,
		log:     log.With().Str("role", "proposer").Logger(),
		timers:  newConcurrentMap[*time.Timer](),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		counter: 0,
	}
}

func (p *Proposer) jitter() time.Duration {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	span := int64(JitterMax - JitterMin)
	return JitterMin + time.Duration(p.rng.Int63n(span))
}

func (p *Proposer) broadcast(msg Message) {
	for _, peer := range p.peers {
		go p.send.Send(peer, msg)
	}
}

// Propose starts a new round for candidate. It is the entry point both for
// an external trigger and for a retry timer (spec.md §4.2 step 1-5).
func (p *Proposer) Propose(candidate string) {
	p.mu.Lock()
	if _, decided := p.learn.HasDecided(); decided {
		p.log.Info().Str("member", p.self).Msg("propose dropped: already decided")
		p.mu.Unlock()
		return
	}

	previous := p.currentRound
	p.counter++
	n := ProposalNumber(p.counter, p.self)
	token := xid.New().String()
	round := newProposerRound(n, token, candidate)
	p.currentRound = round
	p.mu.Unlock()

	if previous != nil {
		p.cancelRoundTimers(previous.roundToken)
	}

	p.log.Debug().
		Str("member", p.self).
		Int64("n", n).
		Str("round", token).
		Str("v", candidate).
		Msg("broadcasting prepare")
	p.broadcast(Prepare{From: p.self, N: n})

	p.armPrepareTimeout(round)
}

func (p *Proposer) armPrepareTimeout(round *proposerRound) {
	timer := time.AfterFunc(PrepareTimeout, func() {
		p.onPrepareTimeout(round.n)
	})
	p.timers.set(round.roundToken, timer)
}

func (p *Proposer) armAcceptTimeout(round *proposerRound) {
	timer := time.AfterFunc(AcceptTimeout, func() {
		p.onAcceptTimeout(round.n)
	})
	p.timers.set(round.roundToken+"-accept", timer)
}

// cancelRoundTimers stops and forgets any still-pending prepare/accept
// timers left over from a round a new Propose call has just superseded,
// mirroring the teacher's PaxosInstance.timeouts cancellation
// (peer/impl/paxos_instance.go). Stop can race with an already-fired
// AfterFunc goroutine; the round-number check in onPrepareTimeout/
// onAcceptTimeout still guards against that case.
func (p *Proposer) cancelRoundTimers(roundToken string) {
	p.cancelTimer(roundToken)
	p.cancelTimer(roundToken + "-accept")
}

func (p *Proposer) cancelTimer(key string) {
	if timer, ok := p.timers.get(key); ok {
		timer.Stop()
		p.timers.remove(key)
	}
}

// OnPromise handles a PROMISE from peer p.From at round m.N (spec.md §4.2).
func (p *Proposer) OnPromise(m Promise) {
	p.mu.Lock()
	round := p.currentRound
	if _, decided := p.learn.HasDecided(); decided || round == nil || m.N != round.n {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	round.recordPromise(m.From, m.HasAccepted, m.AcceptedN, m.AcceptedV)

	if round.promiseCount() < Quorum {
		return
	}
	if !round.tryLaunchPhase2() {
		return
	}

	v := round.chooseValue()
	p.log.Debug().
		Str("member", p.self).
		Int64("n", round.n).
		Str("v", v).
		Msg("promise quorum reached, broadcasting accept-request")
	p.broadcast(AcceptRequest{From: p.self, N: round.n, V: v})
	p.armAcceptTimeout(round)
}

// OnAccepted handles an ACCEPTED observation at round m.N, whether it
// arrived over the wire from a peer or was fed directly by the dispatch
// layer after this participant's own acceptor accepted (spec.md §4.4's
// self-acceptance rule — broadcast never reaches the sender itself).
func (p *Proposer) OnAccepted(m Accepted) {
	p.mu.Lock()
	round := p.currentRound
	if round == nil || m.N != round.n {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	round.recordAccepted(m.From)
	if round.acceptedCount() < Quorum {
		return
	}
	if !round.tryDecide(m.V) {
		return
	}

	p.log.Info().
		Str("member", p.self).
		Int64("n", round.n).
		Str("v", m.V).
		Msg("accept quorum reached, deciding")
	p.broadcast(Decide{From: p.self, V: m.V})
	p.learn.DecideLocal(m.V)
}

// OnReject folds a REJECT's higherN into the current round's rejection
// high-water mark, consumed by the next retry (spec.md §4.2).
func (p *Proposer) OnReject(m Reject) {
	if m.HigherN < 0 {
		return
	}
	p.mu.Lock()
	round := p.currentRound
	p.mu.Unlock()
	if round == nil {
		return
	}
	round.recordReject(m.HigherN)
}

func (p *Proposer) onPrepareTimeout(n int64) {
	p.mu.Lock()
	round := p.currentRound
	if _, decided := p.learn.HasDecided(); decided || round == nil || round.n != n {
		p.mu.Unlock()
		return
	}
	if round.promiseCount() >= Quorum {
		p.mu.Unlock()
		return
	}
	p.bumpCounterLocked(round, n)
	candidate := round.proposedV
	p.mu.Unlock()

	p.log.Debug().Str("member", p.self).Int64("n", n).Msg("prepare timeout, scheduling retry")
	p.scheduleRetry(candidate)
}

func (p *Proposer) onAcceptTimeout(n int64) {
	p.mu.Lock()
	round := p.currentRound
	if _, decided := p.learn.HasDecided(); decided || round == nil || round.n != n {
		p.mu.Unlock()
		return
	}
	if round.acceptedCount() >= Quorum {
		p.mu.Unlock()
		return
	}
	p.bumpCounterLocked(round, n)
	candidate := round.proposedV
	p.mu.Unlock()

	p.log.Debug().Str("member", p.self).Int64("n", n).Msg("accept timeout, scheduling retry")
	p.scheduleRetry(candidate)
}

// bumpCounterLocked implements the escalation rule of spec.md §4.2: after a
// timeout, the next minted n must be strictly greater than any observed
// rejecter's promisedN. Caller must hold p.mu.
func (p *Proposer) bumpCounterLocked(round *proposerRound, n int64) {
	highestRejection := round.snapshotHighestRejection()
	bumpCounter := max64(highestRejection+1, n+ProposalStride) / ProposalStride
	if bumpCounter > p.counter {
		p.counter = bumpCounter
	}
}

func (p *Proposer) scheduleRetry(candidate string) {
	time.AfterFunc(p.jitter(), func() {
		p.Propose(candidate)
	})
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
