package ddns

import (
	"net/netip"
	"time"
)

// DnsRecord is the agent's view of the managed A record. LastIP is the
// address the remote record is known to hold.
type DnsRecord struct {
	ID     string
	Name   string
	TTL    time.Duration
	LastIP netip.Addr
}

type OutcomeKind int

const (
	Unchanged OutcomeKind = iota
	Updated
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one reconciliation cycle. For Unchanged only
// NewIP is set, for Failed only Err.
type Outcome struct {
	Kind  OutcomeKind
	OldIP netip.Addr
	NewIP netip.Addr
	Err   error
}

func UnchangedOutcome(ip netip.Addr) Outcome {
	return Outcome{Kind: Unchanged, NewIP: ip}
}

func UpdatedOutcome(oldIP, newIP netip.Addr) Outcome {
	return Outcome{Kind: Updated, OldIP: oldIP, NewIP: newIP}
}

func FailedOutcome(err error) Outcome {
	return Outcome{Kind: Failed, Err: err}
}
