// Package transport provides the TCP wire transport, an in-memory transport
// for tests, and the fault-injection profiles validated at the transport
// boundary. None of it is imported by internal/paxos: the consensus core
// only ever sees the paxos.Sender interface (spec.md §1).
package transport

import (
	"math/rand"
	"sync"
	"time"
)

// Profile names one of the four network behaviors of spec.md §6's CLI.
// Delay, drop and crash decisions reimplement the original council.Profile
// enum (original_source/src/main/java/council/Profile.java) using
// math/rand rather than java.util.Random.
type Profile string

const (
	ProfileReliable Profile = "reliable"
	ProfileLatent   Profile = "latent"
	ProfileStandard Profile = "standard"
	ProfileFailure  Profile = "failure"
)

// ParseProfile validates a --profile flag value.
func ParseProfile(s string) (Profile, bool) {
	switch Profile(s) {
	case ProfileReliable, ProfileLatent, ProfileStandard, ProfileFailure:
		return Profile(s), true
	default:
		return "", false
	}
}

// FaultInjector applies a Profile's delay/drop/crash decisions. It owns its
// own rand.Rand so concurrent handlers on the same participant don't
// contend on the package-level generator or on each other's seed state.
type FaultInjector struct {
	profile Profile
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewFaultInjector seeds a FaultInjector for profile. Tests that need
// reproducible scheduler outcomes should construct with a fixed seed via
// NewFaultInjectorSeeded instead (spec.md §9's "implementers SHOULD allow
// test-time seeding").
func NewFaultInjector(profile Profile) *FaultInjector {
	return NewFaultInjectorSeeded(profile, time.Now().UnixNano())
}

// NewFaultInjectorSeeded is NewFaultInjector with an explicit seed.
func NewFaultInjectorSeeded(profile Profile, seed int64) *FaultInjector {
	return &FaultInjector{profile: profile, rng: rand.New(rand.NewSource(seed))}
}

func (f *FaultInjector) float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64()
}

func (f *FaultInjector) intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Intn(n)
}

// DelayBeforeHandling blocks the caller for the profile's configured
// inbound-handling delay, mirroring Profile.delayBeforeHandling.
func (f *FaultInjector) DelayBeforeHandling() {
	switch f.profile {
	case ProfileLatent:
		time.Sleep(time.Duration(200+f.intn(800)) * time.Millisecond)
	case ProfileStandard:
		time.Sleep(time.Duration(20+f.intn(200)) * time.Millisecond)
	case ProfileFailure:
		time.Sleep(time.Duration(10+f.intn(50)) * time.Millisecond)
	case ProfileReliable:
		// no delay
	}
}

// ShouldDrop reports whether an inbound message should be silently dropped,
// mirroring Profile.shouldDrop.
func (f *FaultInjector) ShouldDrop() bool {
	switch f.profile {
	case ProfileLatent:
		return f.float64() < 0.05
	case ProfileStandard:
		return f.float64() < 0.02
	case ProfileFailure:
		return f.float64() < 0.25
	default: // ProfileReliable
		return false
	}
}

// ShouldCrashAfterPrepare reports whether the failure profile should
// terminate the process shortly after broadcasting PREPARE, simulating a
// crashed proposer (spec.md §8 scenario 4).
func (f *FaultInjector) ShouldCrashAfterPrepare() bool {
	return f.profile == ProfileFailure && f.float64() < 0.5
}
