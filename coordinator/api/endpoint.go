package api

import (
	"context"
	"errors"

	"github.com/absmach/fedavg/coordinator"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

var errInvalidLoss = errors.New("loss must be a finite number")

func registerEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(registerReq)
		if !ok {
			return registerRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return registerRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.Register(ctx, req.ParticipantID, req.SampleCount)
		if err != nil {
			return registerRes{}, err
		}

		return registerRes{Participant: p, created: true}, nil
	}
}

func currentModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		gm, err := svc.CurrentModel(ctx)
		if err != nil {
			return modelRes{}, err
		}

		return modelRes{Round: gm.Round, Model: gm.Params}, nil
	}
}

func submitUpdateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(submitUpdateReq)
		if !ok {
			return submitUpdateRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submitUpdateRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.SubmitUpdate(ctx, req.update)
		if err != nil {
			return submitUpdateRes{}, err
		}

		return submitUpdateRes{SubmitResult: res}, nil
	}
}

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return statusRes{}, err
		}

		return statusRes{Status: status}, nil
	}
}
