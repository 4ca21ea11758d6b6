package provider

import (
	"context"
	"time"

	"github.com/libdns/libdns"
)

const TypeA = "A"

// Provider reads and writes a single remote DNS record. Implementations
// report failures as *apperr.Error values.
type Provider interface {
	GetRecord(ctx context.Context, id string) (Record, error)
	UpdateRecord(ctx context.Context, record Record) error
}

type Record struct {
	ID   string
	Name string
	Type string
	Data string
	TTL  time.Duration
}

// FromAddress builds the record carrying addr under the given remote id.
func FromAddress(id string, addr libdns.Address) Record {
	rr := addr.RR()
	return Record{
		ID:   id,
		Name: rr.Name,
		Type: rr.Type,
		Data: rr.Data,
		TTL:  rr.TTL,
	}
}
