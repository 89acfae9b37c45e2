package paxos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcceptor_PromisesHigherPrepare(t *testing.T) {
	a := NewAcceptor()

	promise, reject := a.OnPrepare(305)
	require.Nil(t, reject)
	require.NotNil(t, promise)
	require.False(t, promise.HasAccepted)
}

func TestAcceptor_RejectsPrepareBelowPromised(t *testing.T) {
	a := NewAcceptor()
	_, reject := a.OnPrepare(305)
	require.Nil(t, reject)

	promise, reject := a.OnPrepare(204)
	require.Nil(t, promise)
	require.NotNil(t, reject)
	require.Equal(t, int64(305), reject.HigherN)
}

func TestAcceptor_PromiseCarriesPriorAccept(t *testing.T) {
	a := NewAcceptor()
	_, reject := a.OnAcceptRequest(101, "alpha")
	require.Nil(t, reject)

	promise, reject := a.OnPrepare(305)
	require.Nil(t, reject)
	require.True(t, promise.HasAccepted)
	require.Equal(t, int64(101), promise.AcceptedN)
	require.Equal(t, "alpha", promise.AcceptedV)
}

// TestAcceptor_AcceptAtExactlyPromisedN pins the boundary decision recorded
// in SPEC_FULL.md §12: an acceptor that promised at exactly n must still
// accept an ACCEPT_REQUEST at that same n, since the comparison is >=.
func TestAcceptor_AcceptAtExactlyPromisedN(t *testing.T) {
	a := NewAcceptor()
	promise, reject := a.OnPrepare(305)
	require.Nil(t, reject)
	require.NotNil(t, promise)

	accept, reject := a.OnAcceptRequest(305, "alpha")
	require.Nil(t, reject)
	require.NotNil(t, accept)
	require.Equal(t, int64(305), accept.N)
	require.Equal(t, "alpha", accept.V)
}

func TestAcceptor_RejectsAcceptBelowPromised(t *testing.T) {
	a := NewAcceptor()
	_, reject := a.OnPrepare(305)
	require.Nil(t, reject)

	accept, reject := a.OnAcceptRequest(204, "beta")
	require.Nil(t, accept)
	require.NotNil(t, reject)
	require.Equal(t, int64(305), reject.HigherN)
}

func TestAcceptor_AcceptWithoutPriorPromiseSucceeds(t *testing.T) {
	a := NewAcceptor()
	accept, reject := a.OnAcceptRequest(101, "alpha")
	require.Nil(t, reject)
	require.NotNil(t, accept)

	promisedN, acceptedN, acceptedV, hasAccepted := a.Snapshot()
	require.Equal(t, int64(101), promisedN)
	require.Equal(t, int64(101), acceptedN)
	require.Equal(t, "alpha", acceptedV)
	require.True(t, hasAccepted)
}
