package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/ddns"
	"github.com/evanofslack/ddns-agent/internal/history"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/google/uuid"
)

const maxRetryDelay = 120 * time.Second

type Reconciler interface {
	Reconcile(ctx context.Context) ddns.Outcome
	Record() ddns.DnsRecord
}

// Scheduler runs reconciliation cycles one after another. The delay before
// the next cycle only starts once the previous cycle has returned.
type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	journal    history.Journal
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time

	consecutiveFailures uint
}

func New(r Reconciler, interval time.Duration, journal history.Journal, metrics *metrics.Metrics) *Scheduler {
	if journal == nil {
		journal = history.Nop()
	}
	return &Scheduler{
		reconciler: r,
		interval:   interval,
		journal:    journal,
		metrics:    metrics,
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// RetryDelay is the wait after a failed cycle: a tenth of the interval,
// capped at two minutes. It does not grow with repeated failures.
func RetryDelay(interval time.Duration) time.Duration {
	return min(interval/10, maxRetryDelay)
}

// Run loops until ctx is cancelled and returns the context error.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Starting sync loop", "interval", s.interval, "retry_delay", RetryDelay(s.interval))
	for {
		_, delay := s.RunOnce(ctx)
		if err := s.sleep(ctx, delay); err != nil {
			slog.Info("Stopping sync loop")
			return err
		}
	}
}

// RunOnce performs a single cycle and returns its outcome along with the
// delay to wait before the next one.
func (s *Scheduler) RunOnce(ctx context.Context) (ddns.Outcome, time.Duration) {
	log := slog.With("cycle", uuid.NewString())
	log.Debug("Starting sync cycle")
	start := s.now()

	out := s.reconciler.Reconcile(ctx)
	delay := s.next(out)

	s.metrics.SetSyncDuration(s.now().Sub(start))
	s.metrics.IncSyncRun(out.Kind.String())
	s.metrics.SetConsecutiveFailures(s.consecutiveFailures)
	s.metrics.SetNextSyncDelay(delay)

	switch out.Kind {
	case ddns.Updated:
		log.Info("DNS record updated", "old_ip", out.OldIP, "new_ip", out.NewIP, "next_in", delay)
		s.recordUpdate(ctx, log, out)
	case ddns.Unchanged:
		log.Info("Public ip unchanged", "ip", out.NewIP, "next_in", delay)
	case ddns.Failed:
		log.Error("Sync cycle failed",
			"error", out.Err,
			"kind", apperr.KindOf(out.Err).String(),
			"consecutive_failures", s.consecutiveFailures,
			"retry_in", delay)
	}
	return out, delay
}

func (s *Scheduler) ConsecutiveFailures() uint {
	return s.consecutiveFailures
}

func (s *Scheduler) next(out ddns.Outcome) time.Duration {
	if out.Kind == ddns.Failed {
		s.consecutiveFailures++
		return RetryDelay(s.interval)
	}
	s.consecutiveFailures = 0
	return s.interval
}

// A journal failure is only logged, the remote record was updated anyway.
func (s *Scheduler) recordUpdate(ctx context.Context, log *slog.Logger, out ddns.Outcome) {
	record := s.reconciler.Record()
	entry := history.Entry{
		At:       s.now(),
		RecordID: record.ID,
		Name:     record.Name,
		OldIP:    out.OldIP.String(),
		NewIP:    out.NewIP.String(),
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		log.Warn("Failed to append update history", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
