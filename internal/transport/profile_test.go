package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	for _, name := range []string{"reliable", "latent", "standard", "failure"} {
		p, ok := ParseProfile(name)
		require.True(t, ok)
		require.Equal(t, Profile(name), p)
	}

	_, ok := ParseProfile("bogus")
	require.False(t, ok)
}

func TestFaultInjector_ReliableNeverDrops(t *testing.T) {
	f := NewFaultInjectorSeeded(ProfileReliable, 1)
	for i := 0; i < 1000; i++ {
		require.False(t, f.ShouldDrop())
	}
	require.False(t, f.ShouldCrashAfterPrepare())
}

func TestFaultInjector_FailureProfileDropsAndCrashesSometimes(t *testing.T) {
	f := NewFaultInjectorSeeded(ProfileFailure, 42)
	drops := 0
	crashes := 0
	const trials = 2000
	for i := 0; i < trials; i++ {
		if f.ShouldDrop() {
			drops++
		}
		if f.ShouldCrashAfterPrepare() {
			crashes++
		}
	}
	require.Greater(t, drops, 0)
	require.Less(t, drops, trials)
	require.Greater(t, crashes, 0)
}

func TestFaultInjector_SeededIsDeterministic(t *testing.T) {
	a := NewFaultInjectorSeeded(ProfileStandard, 7)
	b := NewFaultInjectorSeeded(ProfileStandard, 7)

	for i := 0; i < 100; i++ {
		require.Equal(t, a.ShouldDrop(), b.ShouldDrop())
	}
}
