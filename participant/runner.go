package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/sdk"
)

type Config struct {
	ParticipantID string
	// Epochs is the number of local gradient steps per round.
	Epochs       int
	LearningRate float64
	// Rounds stops the runner once the coordinator reaches that round.
	// Zero runs until the context is cancelled.
	Rounds       uint64
	PollInterval time.Duration
	UseCBOR      bool
}

// Runner takes part in rounds until the coordinator reaches Config.Rounds
// or the context is cancelled.
type Runner struct {
	cfg     Config
	client  sdk.SDK
	trainer *Trainer
	logger  *slog.Logger
	wake    chan uint64
}

func NewRunner(cfg Config, client sdk.SDK, trainer *Trainer, logger *slog.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return &Runner{
		cfg:     cfg,
		client:  client,
		trainer: trainer,
		logger:  logger,
		wake:    make(chan uint64, 1),
	}
}

// Subscribe wakes the runner as soon as the coordinator announces a new
// round on topic instead of waiting for the next poll.
func (r *Runner) Subscribe(ctx context.Context, pubsub mqtt.PubSub, topic string) error {
	return pubsub.Subscribe(ctx, topic, r.handleRoundCompleted)
}

func (r *Runner) handleRoundCompleted(_ string, msg map[string]any) error {
	newRound, ok := msg["new_round"].(float64)
	if !ok {
		return fmt.Errorf("invalid round notification: %v", msg)
	}

	select {
	case r.wake <- uint64(newRound):
	default:
	}

	return nil
}

func (r *Runner) Run(ctx context.Context) error {
	p, err := r.client.Register(r.cfg.ParticipantID, r.trainer.Samples())
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	r.logger.InfoContext(ctx, "registered with coordinator",
		slog.String("participant_id", p.ID),
		slog.Uint64("sample_count", p.SampleCount))

	var submitted bool
	var lastRound uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		gm, err := r.client.CurrentModel()
		if err != nil {
			return fmt.Errorf("failed to fetch global model: %w", err)
		}
		if r.cfg.Rounds > 0 && gm.Round >= r.cfg.Rounds {
			r.logger.InfoContext(ctx, "training finished", slog.Uint64("round", gm.Round))

			return nil
		}
		if submitted && gm.Round == lastRound {
			if err := r.wait(ctx); err != nil {
				return err
			}

			continue
		}

		if err := r.trainer.SetModel(gm.Model); err != nil {
			return err
		}
		loss, err := r.trainer.Train(r.cfg.Epochs, r.cfg.LearningRate)
		if err != nil {
			return fmt.Errorf("failed to train: %w", err)
		}

		res, err := r.submit(sdk.Update{
			ParticipantID: r.cfg.ParticipantID,
			Round:         gm.Round,
			Model:         r.trainer.Model(),
			Loss:          &loss,
		})
		switch {
		case errors.Is(err, coordinator.ErrRoundMismatch):
			r.logger.WarnContext(ctx, "round advanced during training, refetching model",
				slog.Uint64("round", gm.Round),
				slog.Any("error", err))

			continue
		case err != nil:
			return fmt.Errorf("failed to submit update: %w", err)
		}

		submitted, lastRound = true, gm.Round
		r.logger.InfoContext(ctx, "submitted update",
			slog.Uint64("round", gm.Round),
			slog.Float64("loss", loss),
			slog.Bool("aggregated", res.Aggregated))
		if res.Aggregated {
			continue
		}
		if err := r.wait(ctx); err != nil {
			return err
		}
	}
}

func (r *Runner) submit(update sdk.Update) (coordinator.SubmitResult, error) {
	if r.cfg.UseCBOR {
		return r.client.SubmitUpdateCBOR(update)
	}

	return r.client.SubmitUpdate(update)
}

func (r *Runner) wait(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.wake:
		return nil
	case <-timer.C:
		return nil
	}
}
