package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/evanofslack/ddns-agent/internal/provider"
	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-cleanhttp"
)

const defaultTimeout = 30 * time.Second

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// RecordsProvider talks to the record-management REST API. The token is
// passed as a query parameter on every request.
type RecordsProvider struct {
	baseURL string
	token   string
	http    Httper
	timeout time.Duration
	metrics *metrics.Metrics
}

func New(baseURL, token string, metrics *metrics.Metrics) (*RecordsProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("records api url required")
	}
	if token == "" {
		return nil, fmt.Errorf("records api token required")
	}
	return &RecordsProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    cleanhttp.DefaultPooledClient(),
		timeout: defaultTimeout,
		metrics: metrics,
	}, nil
}

func (p *RecordsProvider) GetRecord(ctx context.Context, id string) (provider.Record, error) {
	slog.Info("Getting DNS record", "id", id)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint, err := p.recordURL(id, tokenQuery{Token: p.token})
	if err != nil {
		return provider.Record{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return provider.Record{}, apperr.Network("create record request", redact(err))
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.metrics.IncDNSRequest("read", false)
		return provider.Record{}, apperr.Network("get record", redact(err))
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		p.metrics.IncDNSRequest("read", false)
		return provider.Record{}, apperr.Network(fmt.Sprintf("get record, status=%d", resp.StatusCode), nil)
	}

	var body recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.metrics.IncDNSRequest("read", false)
		return provider.Record{}, apperr.Format("decode record response", err)
	}
	c := body.Msg.Content
	if c.Type == "" || c.Content == "" {
		p.metrics.IncDNSRequest("read", false)
		return provider.Record{}, apperr.Format(fmt.Sprintf("record %s response has no type or content", id), nil)
	}
	p.metrics.IncDNSRequest("read", true)

	slog.Debug("Retrieved DNS record", "id", id, "name", c.Name, "type", c.Type, "data", c.Content,
		"updated_at", body.Msg.UpdatedAt.Time, "duration", time.Since(start))
	return provider.Record{
		ID:   id,
		Name: c.Name,
		Type: c.Type,
		Data: c.Content,
		TTL:  time.Duration(c.TTL) * time.Second,
	}, nil
}

func (p *RecordsProvider) UpdateRecord(ctx context.Context, record provider.Record) error {
	slog.Info("Updating DNS record", "id", record.ID, "name", record.Name, "type", record.Type, "data", record.Data)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint, err := p.updateURL(record)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return apperr.Network("create update request", redact(err))
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.metrics.IncDNSRequest("update", false)
		return apperr.Network("update record", redact(err))
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		p.metrics.IncDNSRequest("update", false)
		return apperr.Network(fmt.Sprintf("update record, status=%d", resp.StatusCode), nil)
	}

	p.metrics.IncDNSRequest("update", true)
	slog.Debug("Updated DNS record", "id", record.ID, "name", record.Name, "duration", time.Since(start))
	return nil
}

func (p *RecordsProvider) updateURL(record provider.Record) (string, error) {
	payload, err := json.Marshal(recordContent{
		Content: record.Data,
		TTL:     int(record.TTL.Seconds()),
		Type:    record.Type,
		Name:    record.Name,
	})
	if err != nil {
		return "", apperr.Format("encode record content", err)
	}
	return p.recordURL(record.ID, updateQuery{Content: string(payload), Token: p.token})
}

// recordURL renders {base}/records/{id}/?{query}. Ids must be unsigned
// integers.
func (p *RecordsProvider) recordURL(id string, q any) (string, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return "", apperr.Format(fmt.Sprintf("invalid record id %q", id), err)
	}
	values, err := query.Values(q)
	if err != nil {
		return "", apperr.Format("encode query", err)
	}
	return fmt.Sprintf("%s/records/%d/?%s", p.baseURL, n, values.Encode()), nil
}

// redact strips the query from the url carried by transport errors, since it
// holds the token.
func redact(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u := ue.URL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return &url.Error{Op: ue.Op, URL: u, Err: ue.Err}
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}
