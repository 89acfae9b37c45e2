package paxos

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MessageType names one of the seven wire message variants of spec.md §6.
type MessageType string

const (
	TypePropose       MessageType = "PROPOSE"
	TypePrepare       MessageType = "PREPARE"
	TypePromise       MessageType = "PROMISE"
	TypeReject        MessageType = "REJECT"
	TypeAcceptRequest MessageType = "ACCEPT_REQUEST"
	TypeAccepted      MessageType = "ACCEPTED"
	TypeDecide        MessageType = "DECIDE"
)

// Message is the tagged-variant sum type recommended by spec.md §9's design
// notes: one concrete struct per wire message, each carrying exactly its
// required fields, rather than one struct with nullable optional fields for
// every variant. Mirrors the shape of the teacher's types.Message interface
// (types/ban_consensus.go) — Name()/String() there, Type()/String() here.
type Message interface {
	Type() MessageType
	Sender() string
	String() string
}

// Propose is the external trigger that starts a round (spec.md §4.2).
type Propose struct {
	From string
	V    string
}

func (m Propose) Type() MessageType { return TypePropose }
func (m Propose) Sender() string    { return m.From }
func (m Propose) String() string    { return fmt.Sprintf("PROPOSE{from=%s v=%s}", m.From, m.V) }

// Prepare is phase-1's request (spec.md §4.1).
type Prepare struct {
	From string
	N    int64
}

func (m Prepare) Type() MessageType { return TypePrepare }
func (m Prepare) Sender() string    { return m.From }
func (m Prepare) String() string    { return fmt.Sprintf("PREPARE{from=%s n=%d}", m.From, m.N) }

// Promise is an acceptor's phase-1 response, optionally carrying a prior
// accepted (n, v) pair.
type Promise struct {
	From        string
	N           int64
	HasAccepted bool
	AcceptedN   int64
	AcceptedV   string
}

func (m Promise) Type() MessageType { return TypePromise }
func (m Promise) Sender() string    { return m.From }
func (m Promise) String() string {
	if !m.HasAccepted {
		return fmt.Sprintf("PROMISE{from=%s n=%d}", m.From, m.N)
	}
	return fmt.Sprintf("PROMISE{from=%s n=%d acceptedN=%d acceptedV=%s}",
		m.From, m.N, m.AcceptedN, m.AcceptedV)
}

// Reject is an acceptor's refusal of a phase-1 or phase-2 request, carrying
// the acceptor's current promisedN.
type Reject struct {
	From    string
	HigherN int64
}

func (m Reject) Type() MessageType { return TypeReject }
func (m Reject) Sender() string    { return m.From }
func (m Reject) String() string {
	return fmt.Sprintf("REJECT{from=%s higherN=%d}", m.From, m.HigherN)
}

// AcceptRequest is phase-2's request.
type AcceptRequest struct {
	From string
	N    int64
	V    string
}

func (m AcceptRequest) Type() MessageType { return TypeAcceptRequest }
func (m AcceptRequest) Sender() string    { return m.From }
func (m AcceptRequest) String() string {
	return fmt.Sprintf("ACCEPT_REQUEST{from=%s n=%d v=%s}", m.From, m.N, m.V)
}

// Accepted is an acceptor's phase-2 response confirming acceptance.
type Accepted struct {
	From string
	N    int64
	V    string
}

func (m Accepted) Type() MessageType { return TypeAccepted }
func (m Accepted) Sender() string    { return m.From }
func (m Accepted) String() string {
	return fmt.Sprintf("ACCEPTED{from=%s n=%d v=%s}", m.From, m.N, m.V)
}

// Decide announces the final decision, from either a proposer at
// accept-quorum or a learner relaying gossip.
type Decide struct {
	From string
	V    string
}

func (m Decide) Type() MessageType { return TypeDecide }
func (m Decide) Sender() string    { return m.From }
func (m Decide) String() string    { return fmt.Sprintf("DECIDE{from=%s v=%s}", m.From, m.V) }

// Encode serializes m to the wire format of spec.md §6: a semicolon-separated
// list of key=value pairs terminated by a single newline. n is emitted only
// when >= 0; acceptedN/acceptedV only together; higherN only on REJECT.
func Encode(m Message) string {
	fields := []string{"type=" + string(m.Type()), "from=" + m.Sender()}

	switch v := m.(type) {
	case Propose:
		fields = append(fields, "v="+v.V)
	case Prepare:
		if v.N >= 0 {
			fields = append(fields, "n="+strconv.FormatInt(v.N, 10))
		}
	case Promise:
		if v.N >= 0 {
			fields = append(fields, "n="+strconv.FormatInt(v.N, 10))
		}
		if v.HasAccepted {
			fields = append(fields,
				"acceptedN="+strconv.FormatInt(v.AcceptedN, 10),
				"acceptedV="+v.AcceptedV)
		}
	case Reject:
		fields = append(fields, "higherN="+strconv.FormatInt(v.HigherN, 10))
	case AcceptRequest:
		if v.N >= 0 {
			fields = append(fields, "n="+strconv.FormatInt(v.N, 10))
		}
		fields = append(fields, "v="+v.V)
	case Accepted:
		if v.N >= 0 {
			fields = append(fields, "n="+strconv.FormatInt(v.N, 10))
		}
		fields = append(fields, "v="+v.V)
	case Decide:
		fields = append(fields, "v="+v.V)
	}

	return strings.Join(fields, ";") + "\n"
}

// Decode parses a single wire line (with or without its trailing newline)
// into a concrete Message. Unknown types and malformed lines return a
// wrapped error; callers must log and drop, never crash (spec.md §7).
func Decode(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errors.New("paxos: empty message line")
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(line, ";") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Errorf("paxos: malformed field %q in line %q", pair, line)
		}
		fields[kv[0]] = kv[1]
	}

	typ, ok := fields["type"]
	if !ok {
		return nil, errors.Errorf("paxos: missing type field in line %q", line)
	}
	from, ok := fields["from"]
	if !ok {
		return nil, errors.Errorf("paxos: missing from field in line %q", line)
	}

	n, hasN, err := decodeInt64(fields, "n")
	if err != nil {
		return nil, err
	}
	acceptedN, hasAcceptedN, err := decodeInt64(fields, "acceptedN")
	if err != nil {
		return nil, err
	}
	higherN, hasHigherN, err := decodeInt64(fields, "higherN")
	if err != nil {
		return nil, err
	}
	v, hasV := fields["v"]
	acceptedV, hasAcceptedV := fields["acceptedV"]

	switch MessageType(typ) {
	case TypePropose:
		return Propose{From: from, V: v}, nil
	case TypePrepare:
		if !hasN {
			return nil, errors.Errorf("paxos: PREPARE missing n in line %q", line)
		}
		return Prepare{From: from, N: n}, nil
	case TypePromise:
		if !hasN {
			return nil, errors.Errorf("paxos: PROMISE missing n in line %q", line)
		}
		msg := Promise{From: from, N: n}
		if hasAcceptedN && hasAcceptedV {
			msg.HasAccepted = true
			msg.AcceptedN = acceptedN
			msg.AcceptedV = acceptedV
		}
		return msg, nil
	case TypeReject:
		if !hasHigherN {
			return nil, errors.Errorf("paxos: REJECT missing higherN in line %q", line)
		}
		return Reject{From: from, HigherN: higherN}, nil
	case TypeAcceptRequest:
		if !hasN || !hasV {
			return nil, errors.Errorf("paxos: ACCEPT_REQUEST missing n/v in line %q", line)
		}
		return AcceptRequest{From: from, N: n, V: v}, nil
	case TypeAccepted:
		if !hasN || !hasV {
			return nil, errors.Errorf("paxos: ACCEPTED missing n/v in line %q", line)
		}
		return Accepted{From: from, N: n, V: v}, nil
	case TypeDecide:
		return Decide{From: from, V: v}, nil
	default:
		return nil, errors.Errorf("paxos: unknown message type %q in line %q", typ, line)
	}
}

func decodeInt64(fields map[string]string, key string) (val int64, present bool, err error) {
	raw, ok := fields[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "paxos: bad %s field %q", key, raw)
	}
	return n, true, nil
}
