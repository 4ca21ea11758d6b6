package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	DefaultServiceURL = "https://api.ipify.org"
	defaultTimeout    = 15 * time.Second
	maxBodySize       = 64
)

type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebResolver asks an address-echo service for the caller's public IPv4
// address. The whole response body, trimmed, must be a dotted-quad address.
type WebResolver struct {
	serviceURL string
	http       Httper
	timeout    time.Duration
	metrics    *metrics.Metrics
}

func New(serviceURL string, metrics *metrics.Metrics) *WebResolver {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	return &WebResolver{
		serviceURL: serviceURL,
		http:       cleanhttp.DefaultPooledClient(),
		timeout:    defaultTimeout,
		metrics:    metrics,
	}
}

func (r *WebResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addr, err := r.lookup(ctx)
	r.metrics.IncResolverRequest(err == nil)
	if err != nil {
		return netip.Addr{}, err
	}
	slog.Debug("Resolved public ip", "ip", addr, "service", r.serviceURL)
	return addr, nil
}

func (r *WebResolver) lookup(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.serviceURL, nil)
	if err != nil {
		return netip.Addr{}, apperr.Network("create ip lookup request", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.http.Do(req)
	if err != nil {
		return netip.Addr{}, apperr.Network("ip lookup request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, apperr.Network(fmt.Sprintf("ip lookup request, status=%d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return netip.Addr{}, apperr.Network("read ip lookup response", err)
	}
	if len(body) > maxBodySize {
		return netip.Addr{}, apperr.Format(fmt.Sprintf("ip lookup response longer than %d bytes", maxBodySize), nil)
	}
	return ParseIPv4(string(body))
}

// ParseIPv4 parses a trimmed dotted-quad address. IPv6 and IPv4-mapped IPv6
// forms are rejected.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, apperr.Format("parse ip address", err)
	}
	if !addr.Is4() {
		return netip.Addr{}, apperr.Format(fmt.Sprintf("%s is not an ipv4 address", addr), nil)
	}
	return addr, nil
}
