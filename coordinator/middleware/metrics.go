package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Register(ctx context.Context, participantID string, sampleCount uint64) (fl.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "register").Add(1)
		mm.latency.With("method", "register").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Register(ctx, participantID, sampleCount)
}

func (mm *metricsMiddleware) CurrentModel(ctx context.Context) (coordinator.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "current-model").Add(1)
		mm.latency.With("method", "current-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CurrentModel(ctx)
}

func (mm *metricsMiddleware) SubmitUpdate(ctx context.Context, update fl.Update) (coordinator.SubmitResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-update").Add(1)
		mm.latency.With("method", "submit-update").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitUpdate(ctx, update)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (fl.Status, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "status").Add(1)
		mm.latency.With("method", "status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Status(ctx)
}
