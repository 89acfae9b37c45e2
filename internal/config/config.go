// Package config loads the network configuration file described in
// spec.md §6: one non-empty, non-comment "memberId,host,port" line per
// participant, read once at startup and treated as read-only thereafter.
// Every memberId is validated against the "M<k>" shape paxos.IDNum expects,
// so a malformed id fails Load with an error instead of surfacing later as
// a panic the first time a proposal number is minted.
package config

import (
	"bufio"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/adelaide-council/paxos-council/internal/paxos"
)

// Entry is one participant's network address.
type Entry struct {
	Host string
	Port int
}

// Address returns the entry formatted as host:port, suitable for
// net.Dial/net.Listen.
func (e Entry) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Network is the fully-loaded membership-to-address map.
type Network struct {
	// order preserves the file's declaration order so broadcasts and log
	// output are deterministic across runs of the same config file.
	order   []string
	entries map[string]Entry
}

// Load reads and parses path. Malformed lines are wrapped with
// github.com/pkg/errors so the failure carries file/line context.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: opening %s", path)
	}
	defer f.Close()

	cfg := &Network{entries: make(map[string]Entry)}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return nil, errors.Errorf("config: %s:%d: expected memberId,host,port, got %q", path, lineNo, line)
		}
		id := strings.TrimSpace(parts[0])
		if _, err := paxos.ParseMemberID(id); err != nil {
			return nil, errors.Wrapf(err, "config: %s:%d: invalid member id in %q", path, lineNo, line)
		}
		host := strings.TrimSpace(parts[1])
		port, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "config: %s:%d: bad port in %q", path, lineNo, line)
		}
		if _, dup := cfg.entries[id]; dup {
			return nil, errors.Errorf("config: %s:%d: duplicate member id %q", path, lineNo, id)
		}
		cfg.entries[id] = Entry{Host: host, Port: port}
		cfg.order = append(cfg.order, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}
	if len(cfg.entries) == 0 {
		return nil, errors.Errorf("config: %s: no members configured", path)
	}
	return cfg, nil
}

// Entry looks up a single participant's address.
func (n *Network) Entry(id string) (Entry, bool) {
	e, ok := n.entries[id]
	return e, ok
}

// Members returns every configured participant id, in file order.
func (n *Network) Members() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// PeersOf returns every configured participant id except self, in file
// order — the broadcast set spec.md's proposer and learner use.
func (n *Network) PeersOf(self string) []string {
	out := make([]string, 0, len(n.order))
	for _, id := range n.order {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}
