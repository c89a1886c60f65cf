package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/model"
	"github.com/absmach/fedavg/pkg/storage"
)

type service struct {
	shape      model.Shape
	aggregator fl.Aggregator
	notifier   Notifier
	logger     *slog.Logger

	// Lock order: roundMu, then participants.mu, then modelMu. lossMu is a
	// leaf and may be taken under any of them.
	modelMu sync.RWMutex
	global  GlobalModel

	participants *registry

	roundMu sync.Mutex
	round   uint64
	pending map[string]fl.Contribution

	lossMu     sync.RWMutex
	losses     map[string]float64
	globalLoss *float64
}

type Option func(*service)

// WithAggregator replaces the federated averaging aggregator.
func WithAggregator(a fl.Aggregator) Option {
	return func(svc *service) {
		svc.aggregator = a
	}
}

// WithNotifier announces completed rounds through n.
func WithNotifier(n Notifier) Option {
	return func(svc *service) {
		svc.notifier = n
	}
}

// NewService creates a coordinator at round 0 with a randomly initialized
// model of the given shape. Participants already in repo are loaded into
// the registry.
func NewService(ctx context.Context, inputDim, outputDim int, repo storage.ParticipantRepository, logger *slog.Logger, opts ...Option) (Service, error) {
	return NewServiceWithModel(ctx, model.New(inputDim, outputDim), repo, logger, opts...)
}

// NewServiceWithModel creates a coordinator at round 0 whose global model is initial.
func NewServiceWithModel(ctx context.Context, initial model.Model, repo storage.ParticipantRepository, logger *slog.Logger, opts ...Option) (Service, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	params, err := model.Encode(initial)
	if err != nil {
		return nil, err
	}

	participants, err := newRegistry(ctx, repo)
	if err != nil {
		return nil, err
	}

	svc := &service{
		shape:        initial.Shape(),
		aggregator:   fl.NewFedAvgAggregator(),
		logger:       logger,
		global:       GlobalModel{Round: 0, Params: params},
		participants: participants,
		pending:      make(map[string]fl.Contribution),
		losses:       make(map[string]float64),
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

func (svc *service) Register(ctx context.Context, participantID string, sampleCount uint64) (fl.Participant, error) {
	if participantID == "" {
		return fl.Participant{}, ErrMissingParticipantID
	}
	if sampleCount == 0 {
		return fl.Participant{}, ErrInvalidSampleCount
	}

	p := fl.Participant{
		ID:           participantID,
		SampleCount:  sampleCount,
		RegisteredAt: time.Now().UTC(),
	}
	inserted, err := svc.participants.save(ctx, p)
	if err != nil {
		return fl.Participant{}, fmt.Errorf("failed to save participant: %w", err)
	}
	if !inserted {
		return p, nil
	}

	svc.roundMu.Lock()
	round, pending := svc.round, len(svc.pending)
	svc.roundMu.Unlock()
	if pending > 0 {
		svc.logger.WarnContext(ctx, "participant registered during an in-flight round; the round now also waits for it",
			slog.String("participant_id", participantID),
			slog.Uint64("round", round),
			slog.Int("pending_updates", pending))
	}

	return p, nil
}

func (svc *service) CurrentModel(ctx context.Context) (GlobalModel, error) {
	svc.modelMu.RLock()
	defer svc.modelMu.RUnlock()

	return GlobalModel{
		Round:  svc.global.Round,
		Params: bytes.Clone(svc.global.Params),
	}, nil
}

func (svc *service) SubmitUpdate(ctx context.Context, update fl.Update) (SubmitResult, error) {
	if update.ParticipantID == "" {
		return SubmitResult{}, ErrMissingParticipantID
	}

	// Decoding is done outside the round lock; its error is reported only
	// after the round and registration checks.
	decoded, decodeErr := model.Decode(update.Params)

	svc.roundMu.Lock()
	if update.Round != svc.round {
		current := svc.round
		svc.roundMu.Unlock()

		return SubmitResult{}, fmt.Errorf("%w: update is for round %d, current round is %d", ErrRoundMismatch, update.Round, current)
	}
	sampleCount, ok := svc.participants.sampleCount(update.ParticipantID)
	if !ok {
		svc.roundMu.Unlock()

		return SubmitResult{}, fmt.Errorf("%w: %s", ErrUnregisteredParticipant, update.ParticipantID)
	}
	if decodeErr != nil {
		svc.roundMu.Unlock()

		return SubmitResult{}, fmt.Errorf("%w: %w", ErrMalformedParameters, decodeErr)
	}
	if decoded.Shape() != svc.shape {
		svc.roundMu.Unlock()

		return SubmitResult{}, fmt.Errorf("%w: expected shape %s, got %s", ErrMalformedParameters, svc.shape, decoded.Shape())
	}

	contribution := fl.Contribution{
		ParticipantID: update.ParticipantID,
		Model:         decoded,
		NumSamples:    sampleCount,
		Loss:          update.Loss,
		ReceivedAt:    time.Now().UTC(),
	}
	previous, replaced := svc.pending[update.ParticipantID]
	svc.pending[update.ParticipantID] = contribution
	result := SubmitResult{Round: svc.round, NewRound: svc.round}

	// Strict equality against the live registry size: a participant that
	// registers mid-round raises the threshold for the round in flight.
	if len(svc.pending) != svc.participants.size() {
		svc.roundMu.Unlock()
		svc.recordLoss(update.ParticipantID, update.Loss)

		return result, nil
	}

	event, err := svc.completeRound()
	if err != nil {
		if replaced {
			svc.pending[update.ParticipantID] = previous
		} else {
			delete(svc.pending, update.ParticipantID)
		}
		round := svc.round
		svc.roundMu.Unlock()
		svc.logger.ErrorContext(ctx, "failed to aggregate round",
			slog.Uint64("round", round),
			slog.String("participant_id", update.ParticipantID),
			slog.Any("error", err))

		return SubmitResult{}, fmt.Errorf("%w: %w", ErrAggregationFailed, err)
	}
	svc.roundMu.Unlock()

	svc.recordLoss(update.ParticipantID, update.Loss)
	result.Aggregated = true
	result.NewRound = event.NewRound

	svc.logger.InfoContext(ctx, "round aggregated",
		slog.Uint64("round", event.Round),
		slog.Uint64("new_round", event.NewRound),
		slog.Int("participants", len(event.Participants)),
		slog.Uint64("total_samples", event.TotalSamples))

	if svc.notifier != nil {
		if err := svc.notifier.RoundCompleted(ctx, event); err != nil {
			svc.logger.WarnContext(ctx, "failed to publish round completion",
				slog.Uint64("new_round", event.NewRound),
				slog.Any("error", err))
		}
	}

	return result, nil
}

// completeRound aggregates the pending buffer, commits the new global model
// and advances the round. It must be called with roundMu held. On error no
// state has been changed.
func (svc *service) completeRound() (fl.RoundCompleted, error) {
	ids := make([]string, 0, len(svc.pending))
	for id := range svc.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	contributions := make([]fl.Contribution, 0, len(ids))
	var totalSamples uint64
	for _, id := range ids {
		c := svc.pending[id]
		contributions = append(contributions, c)
		totalSamples += c.NumSamples
	}

	next, err := svc.aggregator.Aggregate(contributions)
	if err != nil {
		return fl.RoundCompleted{}, err
	}
	if next.Shape() != svc.shape {
		return fl.RoundCompleted{}, fmt.Errorf("%w: aggregated shape %s, expected %s", model.ErrShapeMismatch, next.Shape(), svc.shape)
	}
	params, err := model.Encode(next)
	if err != nil {
		return fl.RoundCompleted{}, err
	}

	completed := svc.round
	newRound := completed + 1

	svc.modelMu.Lock()
	svc.global = GlobalModel{Round: newRound, Params: params}
	svc.modelMu.Unlock()

	globalLoss := fl.MeanLoss(contributions)
	svc.lossMu.Lock()
	svc.globalLoss = globalLoss
	svc.lossMu.Unlock()

	svc.round = newRound
	clear(svc.pending)

	return fl.RoundCompleted{
		Round:        completed,
		NewRound:     newRound,
		Participants: ids,
		TotalSamples: totalSamples,
		GlobalLoss:   globalLoss,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func (svc *service) recordLoss(participantID string, loss *float64) {
	if loss == nil {
		return
	}

	svc.lossMu.Lock()
	svc.losses[participantID] = *loss
	svc.lossMu.Unlock()
}

func (svc *service) Status(ctx context.Context) (fl.Status, error) {
	svc.roundMu.Lock()
	round, pending := svc.round, len(svc.pending)
	svc.roundMu.Unlock()

	status := fl.Status{
		CurrentRound:           round,
		RegisteredParticipants: svc.participants.ids(),
		PendingUpdates:         pending,
	}

	svc.lossMu.RLock()
	status.ParticipantLosses = maps.Clone(svc.losses)
	if svc.globalLoss != nil {
		gl := *svc.globalLoss
		status.GlobalLoss = &gl
	}
	svc.lossMu.RUnlock()

	return status, nil
}
