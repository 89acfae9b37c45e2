package paxos

import "github.com/rs/zerolog"

// Engine hosts the three logical roles that share state on one participant
// (spec.md §2) and implements the single inbound demux of spec.md §4.4.
type Engine struct {
	Self  string
	Peers []string // all other participants, self excluded

	Acceptor *Acceptor
	Proposer *Proposer
	Learner  *Learner

	send Sender
	log  zerolog.Logger
}

// NewEngine wires the three roles together for participant self, given the
// full peer set (self excluded) and the transport-facing Sender.
func NewEngine(self string, peers []string, send Sender, log zerolog.Logger) *Engine {
	log = log.With().Str("member", self).Logger()
	learner := NewLearner(self, peers, send, log)
	proposer := NewProposer(self, peers, send, learner, log)
	return &Engine{
		Self:     self,
		Peers:    peers,
		Acceptor: NewAcceptor(),
		Proposer: proposer,
		Learner:  learner,
		send:     send,
		log:      log,
	}
}

// Dispatch routes one parsed inbound message by type, per spec.md §4.4.
func (e *Engine) Dispatch(m Message) {
	switch msg := m.(type) {
	case Propose:
		e.Proposer.Propose(msg.V)
	case Prepare:
		e.handlePrepare(msg)
	case AcceptRequest:
		e.handleAcceptRequest(msg)
	case Promise:
		e.Proposer.OnPromise(msg)
	case Accepted:
		e.Proposer.OnAccepted(msg)
	case Reject:
		e.Proposer.OnReject(msg)
	case Decide:
		e.Learner.OnDecide(msg)
	default:
		e.log.Warn().Msg("dropping message of unknown type")
	}
}

func (e *Engine) handlePrepare(m Prepare) {
	if v, decided := e.Learner.HasDecided(); decided {
		e.send.Send(m.From, Decide{From: e.Self, V: v})
		return
	}

	promise, reject := e.Acceptor.OnPrepare(m.N)
	if promise != nil {
		e.send.Send(m.From, Promise{
			From:        e.Self,
			N:           m.N,
			HasAccepted: promise.HasAccepted,
			AcceptedN:   promise.AcceptedN,
			AcceptedV:   promise.AcceptedV,
		})
		return
	}
	e.send.Send(m.From, Reject{From: e.Self, HigherN: reject.HigherN})
}

func (e *Engine) handleAcceptRequest(m AcceptRequest) {
	if v, decided := e.Learner.HasDecided(); decided {
		e.send.Send(m.From, Decide{From: e.Self, V: v})
		return
	}

	accept, reject := e.Acceptor.OnAcceptRequest(m.N, m.V)
	if accept != nil {
		for _, peer := range e.Peers {
			go e.send.Send(peer, Accepted{From: e.Self, N: accept.N, V: accept.V})
		}
		// Broadcast never reaches self; feed the acceptance back through the
		// proposer path directly so self counts toward accept-quorum
		// (spec.md §4.4's self-acceptance rule).
		e.Proposer.OnAccepted(Accepted{From: e.Self, N: accept.N, V: accept.V})
		return
	}
	e.send.Send(m.From, Reject{From: e.Self, HigherN: reject.HigherN})
}
