package ddns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/provider"
	"github.com/evanofslack/ddns-agent/internal/resolver"
	"github.com/libdns/libdns"
)

// Client owns the managed record. It is not safe for concurrent use; the
// scheduler runs one cycle at a time.
type Client struct {
	provider provider.Provider
	resolver resolver.Resolver
	record   DnsRecord
}

// Init reads the remote record once and builds the client around it. A
// record that is not of type A is refused.
func Init(ctx context.Context, p provider.Provider, r resolver.Resolver, recordID string) (*Client, error) {
	remote, err := p.GetRecord(ctx, recordID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Network("get record", err)
		}
		return nil, fmt.Errorf("fetch record %s: %w", recordID, err)
	}

	if remote.Type != provider.TypeA {
		return nil, apperr.TypeMismatch(provider.TypeA, remote.Type)
	}

	lastIP, err := resolver.ParseIPv4(remote.Data)
	if err != nil {
		return nil, fmt.Errorf("record %s content: %w", recordID, err)
	}

	record := DnsRecord{
		ID:     remote.ID,
		Name:   remote.Name,
		TTL:    remote.TTL,
		LastIP: lastIP,
	}
	if record.ID == "" {
		record.ID = recordID
	}
	slog.Info("Loaded DNS record", "id", record.ID, "name", record.Name, "ttl", record.TTL, "ip", record.LastIP)

	return &Client{
		provider: p,
		resolver: r,
		record:   record,
	}, nil
}

func (c *Client) Record() DnsRecord {
	return c.record
}

// Reconcile runs one resolve-compare-update pass. LastIP only changes after
// the provider confirmed the update, so a failed push is retried by the next
// cycle.
func (c *Client) Reconcile(ctx context.Context) Outcome {
	current, err := c.resolver.Resolve(ctx)
	if err != nil {
		return FailedOutcome(fmt.Errorf("resolve public ip: %w", err))
	}

	if current == c.record.LastIP {
		slog.Debug("Public ip unchanged", "name", c.record.Name, "ip", current)
		return UnchangedOutcome(current)
	}

	update := provider.FromAddress(c.record.ID, libdns.Address{
		Name: c.record.Name,
		TTL:  c.record.TTL,
		IP:   current,
	})
	if err := c.provider.UpdateRecord(ctx, update); err != nil {
		return FailedOutcome(fmt.Errorf("update record %s to %s: %w", c.record.ID, current, err))
	}

	old := c.record.LastIP
	c.record.LastIP = current
	return UpdatedOutcome(old, current)
}
