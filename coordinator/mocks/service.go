package mocks

import (
	"context"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*Service)(nil)

type Service struct {
	mock.Mock
}

// NewService creates a mock and asserts its expectations when the test ends.
func NewService(t interface {
	mock.TestingT
	Cleanup(func())
},
) *Service {
	m := &Service{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *Service) Register(ctx context.Context, participantID string, sampleCount uint64) (fl.Participant, error) {
	args := m.Called(ctx, participantID, sampleCount)

	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *Service) CurrentModel(ctx context.Context) (coordinator.GlobalModel, error) {
	args := m.Called(ctx)

	return args.Get(0).(coordinator.GlobalModel), args.Error(1)
}

func (m *Service) SubmitUpdate(ctx context.Context, update fl.Update) (coordinator.SubmitResult, error) {
	args := m.Called(ctx, update)

	return args.Get(0).(coordinator.SubmitResult), args.Error(1)
}

func (m *Service) Status(ctx context.Context) (fl.Status, error) {
	args := m.Called(ctx)

	return args.Get(0).(fl.Status), args.Error(1)
}
