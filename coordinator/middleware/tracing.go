package middleware

import (
	"context"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Register(ctx context.Context, participantID string, sampleCount uint64) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "register", trace.WithAttributes(
		attribute.String("participant_id", participantID),
		attribute.Int64("sample_count", int64(sampleCount)),
	))
	defer span.End()

	return tm.svc.Register(ctx, participantID, sampleCount)
}

func (tm *tracing) CurrentModel(ctx context.Context) (coordinator.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "current-model")
	defer span.End()

	return tm.svc.CurrentModel(ctx)
}

func (tm *tracing) SubmitUpdate(ctx context.Context, update fl.Update) (res coordinator.SubmitResult, err error) {
	ctx, span := tm.tracer.Start(ctx, "submit-update", trace.WithAttributes(
		attribute.String("participant_id", update.ParticipantID),
		attribute.Int64("round", int64(update.Round)),
	))
	defer func() {
		span.SetAttributes(attribute.Bool("aggregated", res.Aggregated))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	return tm.svc.SubmitUpdate(ctx, update)
}

func (tm *tracing) Status(ctx context.Context) (fl.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer span.End()

	return tm.svc.Status(ctx)
}
