package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	janitorTracer     = otel.Tracer("bancolink/scheduler")
	janitorMeter      = otel.Meter("bancolink/scheduler")
	purgeDuration, _  = janitorMeter.Float64Histogram("session.purge.duration", metric.WithDescription("Expired session purge duration in seconds"), metric.WithUnit("s"))
	purgedSessions, _ = janitorMeter.Int64Counter("session.purge.deleted", metric.WithDescription("Expired sessions deleted"))
	purgeFailures, _  = janitorMeter.Int64Counter("session.purge.failures", metric.WithDescription("Failed purge runs"))
)

const purgeTimeout = 30 * time.Second

// Purger deletes expired records and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired sessions from persistent storage.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewJanitor(purger Purger, interval time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		purger:   purger,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the purge loop. It is a no-op after the first call.
func (j *Janitor) Start() {
	j.once.Do(func() {
		j.logger.Info("session janitor started", zap.Duration("interval", j.interval))
		j.wg.Add(1)
		go j.loop()
	})
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce performs a single purge and returns the number of deleted sessions.
func (j *Janitor) RunOnce() int64 {
	ctx, cancel := context.WithTimeout(j.ctx, purgeTimeout)
	defer cancel()

	ctx, span := janitorTracer.Start(ctx, "session.purge")
	defer span.End()

	start := time.Now()
	n, err := j.purger.PurgeExpired(ctx)
	purgeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		purgeFailures.Add(ctx, 1)
		j.logger.Warn("failed to purge expired sessions", zap.Error(err))
		return 0
	}

	span.SetAttributes(attribute.Int64("sessions.deleted", n))
	purgedSessions.Add(ctx, n)
	if n > 0 {
		j.logger.Info("purged expired sessions", zap.Int64("deleted", n))
	}
	return n
}

// Shutdown stops the loop and waits up to timeout for an in-flight purge.
func (j *Janitor) Shutdown(timeout time.Duration) {
	j.cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("session janitor stopped")
	case <-time.After(timeout):
		j.logger.Warn("session janitor shutdown timed out", zap.Duration("timeout", timeout))
	}
}
