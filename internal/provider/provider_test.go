package provider

import (
	"net/netip"
	"testing"
	"time"

	"github.com/libdns/libdns"
	"github.com/stretchr/testify/assert"
)

func TestFromAddress(t *testing.T) {
	r := FromAddress("42", libdns.Address{
		Name: "home",
		TTL:  10 * time.Minute,
		IP:   netip.MustParseAddr("203.0.113.7"),
	})

	assert.Equal(t, Record{
		ID:   "42",
		Name: "home",
		Type: TypeA,
		Data: "203.0.113.7",
		TTL:  10 * time.Minute,
	}, r)
}
