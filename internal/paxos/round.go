package paxos

import "sync"

// promiseRecord bundles the (acceptedN, acceptedV) pair carried inside a
// single PROMISE, only ever stored when both are present.
type promiseRecord struct {
	acceptedN int64
	acceptedV string
}

// proposerRound is the record for one proposer round, at most one active per
// participant at a time (spec.md §3). It is replaced, never merged, when a
// new proposal number is allocated; an abandoned round is left in place for
// any delayed timer callback to observe a round-number mismatch against.
type proposerRound struct {
	mu sync.Mutex

	n          int64
	roundToken string // cosmetic xid correlation id, see SPEC_FULL §10.1
	proposedV  string

	promisesFrom map[string]struct{}
	acceptedBy   map[string]promiseRecord
	acceptedFrom map[string]struct{}

	phase2Launched    bool
	highestRejectionN int64

	decided  bool
	decidedV string
}

func newProposerRound(n int64, roundToken, candidate string) *proposerRound {
	return &proposerRound{
		n:                 n,
		roundToken:        roundToken,
		proposedV:         candidate,
		promisesFrom:      make(map[string]struct{}),
		acceptedBy:        make(map[string]promiseRecord),
		acceptedFrom:      make(map[string]struct{}),
		highestRejectionN: NoRound,
	}
}

// recordPromise adds from to promisesFrom and, if the promise carried a
// prior accepted (n, v) pair, stores it for the value-selection rule.
func (r *proposerRound) recordPromise(from string, hasAccepted bool, acceptedN int64, acceptedV string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promisesFrom[from] = struct{}{}
	if hasAccepted {
		r.acceptedBy[from] = promiseRecord{acceptedN: acceptedN, acceptedV: acceptedV}
	}
}

func (r *proposerRound) promiseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.promisesFrom)
}

// chooseValue implements spec.md §4.2's value-selection rule: the (n, v) pair
// with the maximum acceptedN across all recorded promises wins; absent any
// such pair, the caller's original candidate is kept.
func (r *proposerRound) chooseValue() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	bestN := NoRound
	bestV := ""
	found := false
	for _, rec := range r.acceptedBy {
		if rec.acceptedN > bestN {
			bestN = rec.acceptedN
			bestV = rec.acceptedV
			found = true
		}
	}
	if found {
		r.proposedV = bestV
	}
	return r.proposedV
}

// tryLaunchPhase2 reports whether phase 2 has not yet been launched for this
// round and, if so, marks it launched. Callers use this to guarantee the
// accept-request broadcast happens exactly once per round even though
// promises keep arriving after quorum.
func (r *proposerRound) tryLaunchPhase2() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase2Launched {
		return false
	}
	r.phase2Launched = true
	return true
}

func (r *proposerRound) recordReject(higherN int64) {
	if higherN < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if higherN > r.highestRejectionN {
		r.highestRejectionN = higherN
	}
}

func (r *proposerRound) recordAccepted(from string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acceptedFrom[from] = struct{}{}
}

func (r *proposerRound) acceptedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.acceptedFrom)
}

// tryDecide reports whether this round was not yet decided and, if so, marks
// it decided with v. Guarantees decide is broadcast exactly once per round.
func (r *proposerRound) tryDecide(v string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decided {
		return false
	}
	r.decided = true
	r.decidedV = v
	return true
}

func (r *proposerRound) snapshotHighestRejection() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highestRejectionN
}
