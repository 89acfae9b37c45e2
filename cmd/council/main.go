// Command council runs one participant of the nine-member Paxos council
// described in spec.md: it loads the network config, opens the TCP
// listener, serves incoming messages, optionally issues a single propose,
// and exits once this participant has decided or on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adelaide-council/paxos-council/internal/config"
	"github.com/adelaide-council/paxos-council/internal/logging"
	"github.com/adelaide-council/paxos-council/internal/paxos"
	"github.com/adelaide-council/paxos-council/internal/transport"
)

const usagePrefix = `Runs one participant of a nine-member Paxos council.

Usage: council <memberId> [OPTIONS]

  memberId   this process's identity, one of M1..M9 in --config

OPTIONS:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("council", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usagePrefix)
		fs.PrintDefaults()
	}

	profileFlag := fs.String("profile", "standard", "network behavior: reliable|latent|standard|failure")
	configFlag := fs.String("config", "council.conf", "path to the network config file")
	logLevelFlag := fs.String("log-level", logging.LevelFromEnv("info"), "log level: trace|debug|info|warn|error")
	proposeFlag := fs.String("propose", "", "if set, immediately propose this value and exit once decided")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}
	self := fs.Arg(0)
	// flag stops at the first non-flag argument, so options given after
	// memberId are parsed in a second pass.
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return 1
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return 1
	}

	profile, ok := transport.ParseProfile(*profileFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "council: unknown --profile %q\n", *profileFlag)
		return 1
	}

	log := logging.New(*logLevelFlag)

	network, err := config.Load(*configFlag)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return 1
	}
	if _, ok := network.Entry(self); !ok {
		log.Error().Str("member", self).Msg("member id not present in config")
		return 1
	}

	fault := transport.NewFaultInjector(profile)
	tcp := transport.NewTCP(self, network, fault, log)
	engine := paxos.NewEngine(self, network.PeersOf(self), tcp, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := tcp.ListenAndServe(ctx, engine.Dispatch)
	if err != nil {
		log.Error().Err(err).Msg("failed to bind listener")
		return 1
	}

	log.Info().
		Str("member", self).
		Str("addr", addr.String()).
		Str("profile", string(profile)).
		Str("run_id", uuid.NewString()).
		Msg("council member started")

	if profile == transport.ProfileFailure {
		go crashAfterPrepare(fault, log)
	}

	if *proposeFlag != "" {
		engine.Proposer.Propose(*proposeFlag)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case v := <-engine.Learner.Decided:
		log.Info().Str("value", v).Msg("shutting down after decision")
	case <-sigCh:
		log.Info().Msg("shutting down on signal")
	}
	return 0
}

// crashAfterPrepare sleeps for half of PrepareTimeout (it does not check
// whether a PREPARE was actually sent), then consults the failure profile's
// crash roll, simulating the proposer crash
// of spec.md §8 scenario 4 (original_source Profile.java's post-prepare
// crash check). It fires at most once per process.
func crashAfterPrepare(fault *transport.FaultInjector, log zerolog.Logger) {
	time.Sleep(paxos.PrepareTimeout / 2)
	if fault.ShouldCrashAfterPrepare() {
		log.Warn().Msg("simulated crash after prepare")
		os.Exit(1)
	}
}
