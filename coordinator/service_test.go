package coordinator_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/model"
	"github.com/absmach/fedavg/pkg/mqtt/mocks"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const roundsTopic = "fedavg/fl/rounds/next"

var errAggregate = errors.New("aggregate failed")

type failingAggregator struct{}

func (failingAggregator) Aggregate([]fl.Contribution) (model.Model, error) {
	return model.Model{}, errAggregate
}

func scalar(w, b float32) model.Model {
	return model.Model{InputDim: 1, OutputDim: 1, Weights: []float32{w}, Bias: []float32{b}}
}

func encode(t *testing.T, m model.Model) []byte {
	t.Helper()

	data, err := model.Encode(m)
	require.NoError(t, err)

	return data
}

func ptr(v float64) *float64 {
	return &v
}

func newService(t *testing.T, opts ...coordinator.Option) coordinator.Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := coordinator.NewServiceWithModel(context.Background(), scalar(0, 0), storage.NewInMemoryParticipantRepository(), logger, opts...)
	require.NoError(t, err)

	return svc
}

func currentModel(t *testing.T, svc coordinator.Service) (uint64, model.Model) {
	t.Helper()

	gm, err := svc.CurrentModel(context.Background())
	require.NoError(t, err)
	m, err := model.Decode(gm.Params)
	require.NoError(t, err)

	return gm.Round, m
}

func TestNewService(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := coordinator.NewService(context.Background(), 3, 2, storage.NewInMemoryParticipantRepository(), logger)
	require.NoError(t, err)
	round, m := currentModel(t, svc)
	assert.Equal(t, uint64(0), round)
	assert.Equal(t, model.Shape{Inputs: 3, Outputs: 2}, m.Shape())

	_, err = coordinator.NewService(context.Background(), 0, 2, storage.NewInMemoryParticipantRepository(), logger)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestNewServiceLoadsParticipants(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewInMemoryParticipantRepository()
	require.NoError(t, repo.Save(ctx, fl.Participant{ID: "w1", SampleCount: 4}))

	svc, err := coordinator.NewServiceWithModel(ctx, scalar(0, 0), repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, status.RegisteredParticipants)

	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(2, 1))})
	require.NoError(t, err)
	assert.True(t, res.Aggregated)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc    string
		id      string
		samples uint64
		err     error
	}{
		{desc: "register participant", id: "w1", samples: 10},
		{desc: "missing id", id: "", samples: 10, err: coordinator.ErrMissingParticipantID},
		{desc: "zero samples", id: "w1", samples: 0, err: coordinator.ErrInvalidSampleCount},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			svc := newService(t)
			p, err := svc.Register(context.Background(), tc.id, tc.samples)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.id, p.ID)
			assert.Equal(t, tc.samples, p.SampleCount)
			assert.False(t, p.RegisteredAt.IsZero())
		})
	}
}

func TestRegisterOverwritesSampleCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w2", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w1", 3)
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, status.RegisteredParticipants)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(4, 0))})
	require.NoError(t, err)
	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w2", Params: encode(t, scalar(0, 4))})
	require.NoError(t, err)

	_, m := currentModel(t, svc)
	assert.True(t, scalar(3, 1).Equal(m), "got %+v", m)
}

func TestSubmitUpdateWeightedRound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w2", 3)
	require.NoError(t, err)

	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Round: 0, Params: encode(t, scalar(1, 2))})
	require.NoError(t, err)
	assert.Equal(t, coordinator.SubmitResult{Round: 0, Aggregated: false, NewRound: 0}, res)

	round, m := currentModel(t, svc)
	assert.Equal(t, uint64(0), round)
	assert.True(t, scalar(0, 0).Equal(m), "model must not change before the round completes")

	res, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w2", Round: 0, Params: encode(t, scalar(5, 6))})
	require.NoError(t, err)
	assert.Equal(t, coordinator.SubmitResult{Round: 0, Aggregated: true, NewRound: 1}, res)

	round, m = currentModel(t, svc)
	assert.Equal(t, uint64(1), round)
	assert.True(t, scalar(4, 5).Equal(m), "got %+v", m)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.CurrentRound)
	assert.Zero(t, status.PendingUpdates)
}

func TestSubmitUpdateRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	valid := encode(t, scalar(1, 1))
	wrongShape := encode(t, model.Zeros(2, 1))
	oversized := []byte(`{"input_dim":4611686018427387904,"output_dim":2,"weights":[[1],[1]],"bias":[0,0]}`)
	huge := []byte(`{"input_dim":1099511627776,"output_dim":2,"weights":[[1],[1]],"bias":[0,0]}`)

	cases := []struct {
		desc   string
		update fl.Update
		err    error
	}{
		{
			desc:   "missing participant id",
			update: fl.Update{Params: valid},
			err:    coordinator.ErrMissingParticipantID,
		},
		{
			desc:   "future round",
			update: fl.Update{ParticipantID: "w1", Round: 1, Params: valid},
			err:    coordinator.ErrRoundMismatch,
		},
		{
			desc:   "round checked before registration",
			update: fl.Update{ParticipantID: "ghost", Round: 7, Params: []byte("garbage")},
			err:    coordinator.ErrRoundMismatch,
		},
		{
			desc:   "unregistered participant",
			update: fl.Update{ParticipantID: "ghost", Params: valid},
			err:    coordinator.ErrUnregisteredParticipant,
		},
		{
			desc:   "registration checked before parameters",
			update: fl.Update{ParticipantID: "ghost", Params: []byte("garbage")},
			err:    coordinator.ErrUnregisteredParticipant,
		},
		{
			desc:   "undecodable parameters",
			update: fl.Update{ParticipantID: "w1", Params: []byte("garbage")},
			err:    coordinator.ErrMalformedParameters,
		},
		{
			desc:   "empty parameters",
			update: fl.Update{ParticipantID: "w1"},
			err:    coordinator.ErrMalformedParameters,
		},
		{
			desc:   "unregistered participant with oversized input_dim",
			update: fl.Update{ParticipantID: "ghost", Params: oversized},
			err:    coordinator.ErrUnregisteredParticipant,
		},
		{
			desc:   "oversized input_dim",
			update: fl.Update{ParticipantID: "w1", Params: oversized},
			err:    coordinator.ErrMalformedParameters,
		},
		{
			desc:   "huge input_dim",
			update: fl.Update{ParticipantID: "w1", Params: huge},
			err:    coordinator.ErrMalformedParameters,
		},
		{
			desc:   "wrong shape",
			update: fl.Update{ParticipantID: "w1", Params: wrongShape},
			err:    coordinator.ErrMalformedParameters,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			svc := newService(t)
			_, err := svc.Register(ctx, "w1", 1)
			require.NoError(t, err)
			_, err = svc.Register(ctx, "w2", 1)
			require.NoError(t, err)

			_, err = svc.SubmitUpdate(ctx, tc.update)
			assert.ErrorIs(t, err, tc.err)

			status, err := svc.Status(ctx)
			require.NoError(t, err)
			assert.Zero(t, status.PendingUpdates)
			assert.Equal(t, uint64(0), status.CurrentRound)
		})
	}
}

func TestSubmitUpdateStaleRound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)

	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Round: 0, Params: encode(t, scalar(1, 1))})
	require.NoError(t, err)
	require.True(t, res.Aggregated)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Round: 0, Params: encode(t, scalar(9, 9))})
	assert.ErrorIs(t, err, coordinator.ErrRoundMismatch)

	round, m := currentModel(t, svc)
	assert.Equal(t, uint64(1), round)
	assert.True(t, scalar(1, 1).Equal(m))
}

func TestSubmitUpdateResubmissionOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w2", 1)
	require.NoError(t, err)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(100, 100))})
	require.NoError(t, err)
	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(2, 0))})
	require.NoError(t, err)
	assert.False(t, res.Aggregated)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PendingUpdates)

	res, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w2", Params: encode(t, scalar(4, 2))})
	require.NoError(t, err)
	assert.True(t, res.Aggregated)

	_, m := currentModel(t, svc)
	assert.True(t, scalar(3, 1).Equal(m), "got %+v", m)
}

func TestSubmitUpdateLateRegistrationRaisesThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "a", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "b", 1)
	require.NoError(t, err)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "a", Params: encode(t, scalar(1, 0))})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "c", 1)
	require.NoError(t, err)

	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "b", Params: encode(t, scalar(2, 0))})
	require.NoError(t, err)
	assert.False(t, res.Aggregated, "round must wait for the late participant")

	res, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "c", Params: encode(t, scalar(3, 0))})
	require.NoError(t, err)
	assert.True(t, res.Aggregated)

	round, m := currentModel(t, svc)
	assert.Equal(t, uint64(1), round)
	assert.True(t, scalar(2, 0).Equal(m), "got %+v", m)
}

func TestRegisterWarnsOnlyForNewParticipantsMidRound(t *testing.T) {
	t.Parallel()

	const warning = "participant registered during an in-flight round"

	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc, err := coordinator.NewServiceWithModel(ctx, scalar(0, 0), storage.NewInMemoryParticipantRepository(), logger)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "b", 1)
	require.NoError(t, err)
	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "a", Params: encode(t, scalar(1, 0))})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "b", 5)
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), warning, "updating a known participant does not change the threshold")

	_, err = svc.Register(ctx, "c", 1)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), warning)
	assert.Contains(t, logs.String(), "participant_id=c")

	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "b", Params: encode(t, scalar(2, 0))})
	require.NoError(t, err)
	assert.False(t, res.Aggregated)
}

func TestSubmitUpdateAggregationFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t, coordinator.WithAggregator(failingAggregator{}))
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w2", 1)
	require.NoError(t, err)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(1, 1))})
	require.NoError(t, err)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w2", Params: encode(t, scalar(2, 2))})
	assert.ErrorIs(t, err, coordinator.ErrAggregationFailed)
	assert.ErrorIs(t, err, errAggregate)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.CurrentRound)
	assert.Equal(t, 1, status.PendingUpdates, "failed update must be rolled back")

	round, m := currentModel(t, svc)
	assert.Equal(t, uint64(0), round)
	assert.True(t, scalar(0, 0).Equal(m))
}

func TestSubmitUpdateConcurrentAggregatesOnce(t *testing.T) {
	t.Parallel()

	const participants = 32

	ctx := context.Background()
	svc := newService(t)
	ids := make([]string, participants)
	for i := range ids {
		ids[i] = "w" + string(rune('A'+i))
		_, err := svc.Register(ctx, ids[i], 1)
		require.NoError(t, err)
	}

	params := encode(t, scalar(2, 1))
	var aggregated atomic.Int32
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: id, Params: params})
			assert.NoError(t, err)
			if res.Aggregated {
				aggregated.Add(1)
			}
		}(id)
	}

	var readers sync.WaitGroup
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()

			for range 50 {
				gm, err := svc.CurrentModel(ctx)
				assert.NoError(t, err)
				_, err = model.Decode(gm.Params)
				assert.NoError(t, err)
			}
		}()
	}

	wg.Wait()
	readers.Wait()

	assert.Equal(t, int32(1), aggregated.Load())
	round, m := currentModel(t, svc)
	assert.Equal(t, uint64(1), round)
	assert.True(t, scalar(2, 1).Equal(m), "got %+v", m)
}

func TestSubmitUpdateNotifiesRoundCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pubsub := mocks.NewPubSub(t)
	pubsub.On("Publish", mock.Anything, roundsTopic, mock.MatchedBy(func(e fl.RoundCompleted) bool {
		return e.Round == 0 && e.NewRound == 1 && e.TotalSamples == 3 &&
			len(e.Participants) == 2 && e.GlobalLoss != nil && *e.GlobalLoss == 0.5
	})).Return(nil).Once()

	svc := newService(t, coordinator.WithNotifier(coordinator.NewMQTTNotifier(pubsub, roundsTopic)))
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w2", 2)
	require.NoError(t, err)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(1, 1)), Loss: ptr(0.25)})
	require.NoError(t, err)
	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w2", Params: encode(t, scalar(1, 1)), Loss: ptr(0.75)})
	require.NoError(t, err)
}

func TestSubmitUpdatePublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pubsub := mocks.NewPubSub(t)
	pubsub.On("Publish", mock.Anything, roundsTopic, mock.Anything).Return(errors.New("broker down")).Once()

	svc := newService(t, coordinator.WithNotifier(coordinator.NewMQTTNotifier(pubsub, roundsTopic)))
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)

	res, err := svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(1, 1))})
	require.NoError(t, err)
	assert.True(t, res.Aggregated)
}

func TestStatusLosses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, "w1", 1)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "w2", 1)
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.ParticipantLosses)
	assert.Nil(t, status.GlobalLoss)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w1", Params: encode(t, scalar(1, 1)), Loss: ptr(1)})
	require.NoError(t, err)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"w1": 1}, status.ParticipantLosses)
	assert.Nil(t, status.GlobalLoss)
	assert.Equal(t, 1, status.PendingUpdates)

	_, err = svc.SubmitUpdate(ctx, fl.Update{ParticipantID: "w2", Params: encode(t, scalar(1, 1)), Loss: ptr(3)})
	require.NoError(t, err)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"w1": 1, "w2": 3}, status.ParticipantLosses)
	require.NotNil(t, status.GlobalLoss)
	assert.InDelta(t, 2.0, *status.GlobalLoss, 1e-12)
}
