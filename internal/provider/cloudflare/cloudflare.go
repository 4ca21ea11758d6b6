package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/config"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/evanofslack/ddns-agent/internal/provider"
)

type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
	zone    string
	zoneID  string
}

func New(token string, cfg config.Cloudflare, metrics *metrics.Metrics, opts ...cloudflare.Option) (*CloudflareProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}
	if cfg.Zone == "" {
		return nil, fmt.Errorf("cloudflare zone required")
	}

	client, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	zoneID, err := client.ZoneIDByName(cfg.Zone)
	if err != nil {
		return nil, apperr.Network(fmt.Sprintf("get zone ID for %s", cfg.Zone), err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
		zone:    cfg.Zone,
		zoneID:  zoneID,
	}, nil
}

func (p *CloudflareProvider) GetRecord(ctx context.Context, id string) (provider.Record, error) {
	slog.Info("Getting DNS record", "zone", p.zone, "id", id)
	start := time.Now()

	r, err := p.client.GetDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), id)
	if err != nil {
		p.metrics.IncDNSRequest("read", false)
		return provider.Record{}, apperr.Network("get DNS record", err)
	}

	p.metrics.IncDNSRequest("read", true)
	slog.Debug("Retrieved DNS record", "zone", p.zone, "id", id, "duration", time.Since(start))
	return toRecord(r), nil
}

func (p *CloudflareProvider) UpdateRecord(ctx context.Context, record provider.Record) error {
	slog.Info("Updating DNS record", "zone", p.zone, "name", record.Name, "type", record.Type, "data", record.Data)
	start := time.Now()

	_, err := p.client.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), toUpdateParams(record))
	if err != nil {
		p.metrics.IncDNSRequest("update", false)
		return apperr.Network("update DNS record", err)
	}

	p.metrics.IncDNSRequest("update", true)
	slog.Debug("Updated DNS record", "zone", p.zone, "name", record.Name, "type", record.Type, "duration", time.Since(start))
	return nil
}

func toRecord(r cloudflare.DNSRecord) provider.Record {
	return provider.Record{
		ID:   r.ID,
		Name: r.Name,
		Type: r.Type,
		Data: r.Content,
		TTL:  time.Duration(r.TTL) * time.Second,
	}
}

func toUpdateParams(record provider.Record) cloudflare.UpdateDNSRecordParams {
	return cloudflare.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Data,
		TTL:     int(record.TTL.Seconds()),
	}
}
