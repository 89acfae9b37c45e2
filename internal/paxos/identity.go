package paxos

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NoRound is the sentinel proposal number meaning "no round in progress".
// It is never a value minted by ProposalNumber.
const NoRound int64 = -1

// Quorum is the majority size for a fixed nine-member council.
const Quorum = 5

// MemberCount is the fixed size of the membership set.
const MemberCount = 9

// ProposalStride is the multiplier separating successive counters minted by
// the same participant; the low digits carry the minting participant's
// numeric id so no two participants ever mint the same proposal number.
const ProposalStride int64 = 100

// ParseMemberID parses a participant id of the form "M<k>" into its numeric
// suffix, returning an error instead of panicking. config.Load calls this
// once per configured id so a malformed id is rejected at startup rather
// than surfacing later as a panic out of IDNum (spec.md §7's "no panic
// path" for the consensus core).
func ParseMemberID(id string) (int64, error) {
	trimmed := strings.TrimPrefix(id, "M")
	if trimmed == id || trimmed == "" {
		return 0, errors.Errorf("paxos: malformed participant id %q: want M<k>", id)
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "paxos: malformed participant id %q", id)
	}
	return n, nil
}

// IDNum extracts the numeric suffix from a participant id of the form "M<k>".
// It panics on a malformed id: every id reaching here was already validated
// once via ParseMemberID at config-load time (config.Load) and ids are never
// constructed dynamically afterward.
func IDNum(id string) int64 {
	n, err := ParseMemberID(id)
	if err != nil {
		panic(err)
	}
	return n
}

// ProposalNumber mints n = counter*ProposalStride + IDNum(self). Counter must
// be a positive, per-participant monotonic integer.
func ProposalNumber(counter int64, self string) int64 {
	return counter*ProposalStride + IDNum(self)
}
