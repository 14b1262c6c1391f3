package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/observability"
)

// CancelPolicy selects the outcome reported for cancelled runs.
type CancelPolicy string

const (
	// CancelledAsFailed reports cancelled runs as ErrOperationFailed.
	CancelledAsFailed CancelPolicy = "failed"
	// CancelledAsConflict reports cancelled runs as ErrOperationCancelled.
	CancelledAsConflict CancelPolicy = "conflict"
)

// ParseCancelPolicy validates a policy name.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch p := CancelPolicy(s); p {
	case CancelledAsFailed, CancelledAsConflict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cancel policy %q (want %q or %q)", s, CancelledAsFailed, CancelledAsConflict)
	}
}

// PollerConfig bounds how a run is awaited.
type PollerConfig struct {
	// Interval is the wait between status queries.
	Interval time.Duration
	// MaxAttempts caps the number of status queries. Zero polls until the
	// run ends or the context is done.
	MaxAttempts int
	CancelledAs CancelPolicy
}

// DefaultPollerConfig polls once a second for up to two minutes.
var DefaultPollerConfig = PollerConfig{
	Interval:    time.Second,
	MaxAttempts: 120,
	CancelledAs: CancelledAsFailed,
}

// Poller waits for assistant runs to reach a terminal state.
type Poller struct {
	querier RunQuerier
	cfg     PollerConfig
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPoller creates a Poller. A nil clock means the real clock.
func NewPoller(querier RunQuerier, cfg PollerConfig, clock clockwork.Clock, metrics *observability.Metrics, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollerConfig.Interval
	}
	if cfg.CancelledAs == "" {
		cfg.CancelledAs = DefaultPollerConfig.CancelledAs
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		querier: querier,
		cfg:     cfg,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// AwaitCompletion queries run until it is terminal and returns the newest
// message of the thread once the run completed. Every other terminal state
// is returned as an error; query errors are returned unchanged.
func (p *Poller) AwaitCompletion(ctx context.Context, run Run) (Message, error) {
	start := p.clock.Now()
	msg, outcome, err := p.await(ctx, run)

	p.metrics.RunOutcomes.WithLabelValues(outcome).Inc()
	p.metrics.RunWaitSeconds.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.logger.Info("assistant run did not produce a reply",
			zap.String("thread_id", run.ThreadID),
			zap.String("run_id", run.ID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	return msg, err
}

func (p *Poller) await(ctx context.Context, run Run) (Message, string, error) {
	for attempt := 1; ; attempt++ {
		current, err := p.querier.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return Message{}, "aborted", err
		}
		p.metrics.RunPolls.Inc()

		if current.Status.Terminal() {
			return p.settle(ctx, current)
		}

		if p.cfg.MaxAttempts > 0 && attempt >= p.cfg.MaxAttempts {
			return Message{}, "timed_out", fmt.Errorf("%w: run %s still %s after %d queries",
				ErrPollingTimedOut, current.ID, current.Status, attempt)
		}

		select {
		case <-ctx.Done():
			return Message{}, "aborted", ctx.Err()
		case <-p.clock.After(p.cfg.Interval):
		}
	}
}

func (p *Poller) settle(ctx context.Context, run Run) (Message, string, error) {
	switch run.Status {
	case RunCompleted:
		return p.latestReply(ctx, run.ThreadID)
	case RunFailed, RunIncomplete:
		return Message{}, "failed", newRunError(ErrOperationFailed, run)
	case RunCancelled:
		if p.cfg.CancelledAs == CancelledAsConflict {
			return Message{}, "cancelled", newRunError(ErrOperationCancelled, run)
		}
		return Message{}, "cancelled", newRunError(ErrOperationFailed, run)
	case RunExpired:
		return Message{}, "expired", newRunError(ErrOperationExpired, run)
	default:
		return Message{}, "failed", newRunError(ErrOperationFailed, run)
	}
}

func (p *Poller) latestReply(ctx context.Context, threadID string) (Message, string, error) {
	msgs, err := p.querier.ListMessages(ctx, threadID, ListOptions{Order: OrderDesc, Limit: 1})
	if err != nil {
		return Message{}, "aborted", err
	}
	if len(msgs) == 0 {
		return Message{}, "no_content", ErrNoContent
	}

	latest := msgs[0]
	if latest.Role != RoleAssistant {
		return Message{}, "unprocessable", fmt.Errorf("%w: newest message %s has role %q",
			ErrUnprocessableResponse, latest.ID, latest.Role)
	}
	return latest, "completed", nil
}
