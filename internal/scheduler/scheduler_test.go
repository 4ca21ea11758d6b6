package scheduler

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/ddns"
	"github.com/evanofslack/ddns-agent/internal/history"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	oldIP = netip.MustParseAddr("203.0.113.7")
	newIP = netip.MustParseAddr("198.51.100.23")
	errUp = apperr.Network("update record, status=503", nil)
)

// MockReconciler replays a fixed list of outcomes, repeating the last one.
type MockReconciler struct {
	outcomes []ddns.Outcome
	calls    int
}

func (m *MockReconciler) Reconcile(ctx context.Context) ddns.Outcome {
	i := min(m.calls, len(m.outcomes)-1)
	m.calls++
	return m.outcomes[i]
}

func (m *MockReconciler) Record() ddns.DnsRecord {
	return ddns.DnsRecord{ID: "42", Name: "home", LastIP: newIP}
}

type MockJournal struct {
	entries   []history.Entry
	appendErr error
}

func (m *MockJournal) Append(ctx context.Context, e history.Entry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, e)
	return nil
}
func (m *MockJournal) List(ctx context.Context) ([]history.Entry, error) { return m.entries, nil }
func (m *MockJournal) Close() error                                     { return nil }

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		interval time.Duration
		expected time.Duration
	}{
		{interval: time.Minute, expected: 6 * time.Second},
		{interval: 5 * time.Minute, expected: 30 * time.Second},
		{interval: 20 * time.Minute, expected: 120 * time.Second},
		{interval: 60 * time.Minute, expected: 120 * time.Second},
		{interval: 24 * time.Hour, expected: 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, RetryDelay(tt.interval))
		})
	}
}

func TestRunOnceDelays(t *testing.T) {
	interval := 5 * time.Minute
	r := &MockReconciler{outcomes: []ddns.Outcome{
		ddns.FailedOutcome(errUp),
		ddns.FailedOutcome(errUp),
		ddns.FailedOutcome(errUp),
		ddns.UpdatedOutcome(oldIP, newIP),
		ddns.FailedOutcome(errUp),
		ddns.UnchangedOutcome(newIP),
	}}
	s := New(r, interval, nil, metrics.New(false))

	expected := []struct {
		delay    time.Duration
		failures uint
	}{
		{30 * time.Second, 1},
		{30 * time.Second, 2},
		{30 * time.Second, 3}, // no growth with the failure count
		{interval, 0},
		{30 * time.Second, 1},
		{interval, 0},
	}

	for i, want := range expected {
		_, delay := s.RunOnce(context.Background())
		assert.Equal(t, want.delay, delay, "cycle %d delay", i)
		assert.Equal(t, want.failures, s.ConsecutiveFailures(), "cycle %d failures", i)
	}
}

func TestRunOnceRecordsUpdates(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	journal := &MockJournal{}
	r := &MockReconciler{outcomes: []ddns.Outcome{
		ddns.UnchangedOutcome(oldIP),
		ddns.UpdatedOutcome(oldIP, newIP),
		ddns.FailedOutcome(errUp),
	}}
	s := New(r, time.Minute, journal, metrics.New(false))
	s.now = func() time.Time { return at }

	for i := 0; i < 3; i++ {
		s.RunOnce(context.Background())
	}

	require.Len(t, journal.entries, 1)
	assert.Equal(t, history.Entry{
		At:       at,
		RecordID: "42",
		Name:     "home",
		OldIP:    "203.0.113.7",
		NewIP:    "198.51.100.23",
	}, journal.entries[0])
}

func TestJournalFailureDoesNotFailCycle(t *testing.T) {
	journal := &MockJournal{appendErr: errors.New("disk full")}
	r := &MockReconciler{outcomes: []ddns.Outcome{ddns.UpdatedOutcome(oldIP, newIP)}}
	s := New(r, time.Minute, journal, metrics.New(false))

	out, delay := s.RunOnce(context.Background())
	assert.Equal(t, ddns.Updated, out.Kind)
	assert.Equal(t, time.Minute, delay)
	assert.Zero(t, s.ConsecutiveFailures())
}

func TestRunSleepsAfterEachCycle(t *testing.T) {
	interval := 60 * time.Minute
	r := &MockReconciler{outcomes: []ddns.Outcome{
		ddns.UnchangedOutcome(oldIP),
		ddns.FailedOutcome(errUp),
		ddns.FailedOutcome(errUp),
		ddns.UpdatedOutcome(oldIP, newIP),
	}}
	s := New(r, interval, nil, metrics.New(false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	var callsAtSleep []int
	s.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		callsAtSleep = append(callsAtSleep, r.calls)
		if len(delays) == 4 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{interval, 120 * time.Second, 120 * time.Second, interval}, delays)
	// every sleep starts after exactly one more completed cycle
	assert.Equal(t, []int{1, 2, 3, 4}, callsAtSleep)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
