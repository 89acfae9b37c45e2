package paxos

import "github.com/rs/zerolog"

// Learner records the first decision this participant observes and
// re-broadcasts it once per distinct value to help stragglers converge
// (spec.md §4.3).
type Learner struct {
	self  string
	peers []string
	send  Sender
	log   zerolog.Logger

	decidedValue     atomicString
	relayedDecisions *concurrentSet[string]

	// Decided receives the value exactly once, the instant this
	// participant first decides. Buffered so DecideLocal never blocks on a
	// reader that isn't listening. Optional convenience for callers (the
	// CLI, which shuts down after the decision, and tests) that want to
	// wait for consensus without polling HasDecided.
	Decided chan string
}

// NewLearner constructs a Learner for self, broadcasting relayed decisions
// to peers (which must exclude self).
func NewLearner(self string, peers []string, send Sender, log zerolog.Logger) *Learner {
	return &Learner{
		self:             self,
		peers:            peers,
		send:             send,
		log:              log.With().Str("role", "learner").Logger(),
		relayedDecisions: newConcurrentSet[string](),
		Decided:          make(chan string, 1),
	}
}

// HasDecided reports the decided value and whether one has been set yet.
// Safe to call without any lock beyond what atomicString itself takes,
// matching spec.md §5's "read without the proposer mutex" allowance.
func (l *Learner) HasDecided() (string, bool) {
	return l.decidedValue.get()
}

// DecideLocal sets decidedValue on its first call and emits the single
// user-visible "consensus" line required by spec.md §7. Later calls are a
// protocol invariant to carry the same v; under Paxos safety this can never
// diverge, but a defensive implementation logs a violation rather than
// silently ignoring a mismatch (spec.md §9 open question).
func (l *Learner) DecideLocal(v string) {
	if l.decidedValue.setOnce(v) {
		l.log.Info().
			Str("member", l.self).
			Str("event", "consensus").
			Str("v", v).
			Msg("consensus reached")
		select {
		case l.Decided <- v:
		default:
		}
		return
	}

	if existing, _ := l.decidedValue.get(); existing != v {
		l.log.Error().
			Str("member", l.self).
			Str("event", "protocol_violation").
			Str("decided", existing).
			Str("conflicting", v).
			Msg("decide_local called with a value that disagrees with the prior decision")
	}
}

// OnDecide handles an inbound DECIDE: it records the decision locally and,
// if this participant has not yet relayed this exact value, gossips it
// onward once (spec.md §4.3).
func (l *Learner) OnDecide(m Decide) {
	l.DecideLocal(m.V)
	l.log.Debug().Str("member", l.self).Str("v", m.V).Msg("learn")

	if l.relayedDecisions.add(m.V) {
		return // already relayed this value once; suppress the gossip storm
	}
	for _, peer := range l.peers {
		go l.send.Send(peer, Decide{From: l.self, V: m.V})
	}
}
