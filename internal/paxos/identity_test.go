package paxos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDNum(t *testing.T) {
	require.Equal(t, int64(1), IDNum("M1"))
	require.Equal(t, int64(9), IDNum("M9"))
}

func TestIDNum_PanicsOnMalformedID(t *testing.T) {
	require.Panics(t, func() { IDNum("bogus") })
}

func TestParseMemberID_ReturnsErrorInsteadOfPanicking(t *testing.T) {
	_, err := ParseMemberID("bogus")
	require.Error(t, err)

	_, err = ParseMemberID("M")
	require.Error(t, err)

	n, err := ParseMemberID("M7")
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
}

func TestProposalNumber_UniqueAcrossParticipants(t *testing.T) {
	seen := make(map[int64]string)
	for k := int64(1); k <= MemberCount; k++ {
		id := "M" + string(rune('0'+k))
		n := ProposalNumber(1, id)
		other, exists := seen[n]
		require.False(t, exists, "proposal number %d minted by both %s and %s", n, other, id)
		seen[n] = id
	}
}

func TestProposalNumber_MonotonicPerParticipant(t *testing.T) {
	first := ProposalNumber(1, "M3")
	second := ProposalNumber(2, "M3")
	require.Less(t, first, second)
}
