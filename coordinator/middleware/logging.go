package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Register(ctx context.Context, participantID string, sampleCount uint64) (p fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", participantID),
				slog.Uint64("sample_count", sampleCount),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register participant failed", args...)

			return
		}
		lm.logger.Info("Register participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Register(ctx, participantID, sampleCount)
}

func (lm *loggingMiddleware) CurrentModel(ctx context.Context) (gm coordinator.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", gm.Round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get current model failed", args...)

			return
		}
		lm.logger.Debug("Get current model completed successfully", args...)
	}(time.Now())

	return lm.svc.CurrentModel(ctx)
}

func (lm *loggingMiddleware) SubmitUpdate(ctx context.Context, update fl.Update) (res coordinator.SubmitResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("participant_id", update.ParticipantID),
				slog.Uint64("round", update.Round),
				slog.Int("size", len(update.Params)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit update failed", args...)

			return
		}
		args = append(args, slog.Bool("aggregated", res.Aggregated), slog.Uint64("new_round", res.NewRound))
		lm.logger.Info("Submit update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitUpdate(ctx, update)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (status fl.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Debug("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}
