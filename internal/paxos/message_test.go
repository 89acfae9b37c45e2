package paxos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []Message{
		Propose{From: "M1", V: "alpha"},
		Prepare{From: "M2", N: 305},
		Promise{From: "M3", N: 305},
		Promise{From: "M3", N: 305, HasAccepted: true, AcceptedN: 204, AcceptedV: "beta"},
		Reject{From: "M4", HigherN: 601},
		AcceptRequest{From: "M1", N: 305, V: "alpha"},
		Accepted{From: "M5", N: 305, V: "alpha"},
		Decide{From: "M1", V: "alpha"},
	}

	for _, want := range cases {
		line := Encode(want)
		got, err := Decode(line)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecode_TrimsTrailingNewline(t *testing.T) {
	msg, err := Decode("type=PREPARE;from=M1;n=101\n")
	require.NoError(t, err)
	require.Equal(t, Prepare{From: "M1", N: 101}, msg)
}

func TestDecode_RejectsEmptyLine(t *testing.T) {
	_, err := Decode("")
	require.Error(t, err)
}

func TestDecode_RejectsMissingRequiredField(t *testing.T) {
	_, err := Decode("type=PREPARE;from=M1")
	require.Error(t, err)
}

func TestDecode_RejectsUnknownType(t *testing.T) {
	_, err := Decode("type=BOGUS;from=M1")
	require.Error(t, err)
}

func TestDecode_RejectsMalformedField(t *testing.T) {
	_, err := Decode("type=PREPARE;from=M1;n")
	require.Error(t, err)
}

func TestDecode_PromiseWithoutPriorAccept(t *testing.T) {
	msg, err := Decode("type=PROMISE;from=M2;n=305")
	require.NoError(t, err)
	promise, ok := msg.(Promise)
	require.True(t, ok)
	require.False(t, promise.HasAccepted)
}
