package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/api"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "fedavg-coordinator"

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Post("/participants", otelhttp.NewHandler(kithttp.NewServer(
		registerEndpoint(svc),
		decodeRegisterReq,
		api.EncodeResponse,
		opts...,
	), "register").ServeHTTP)

	mux.Get("/model", otelhttp.NewHandler(kithttp.NewServer(
		currentModelEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "current-model").ServeHTTP)

	mux.Post("/update", otelhttp.NewHandler(kithttp.NewServer(
		submitUpdateEndpoint(svc),
		decodeUpdateReq,
		api.EncodeResponse,
		opts...,
	), "submit-update").ServeHTTP)

	mux.Post("/update_cbor", otelhttp.NewHandler(kithttp.NewServer(
		submitUpdateEndpoint(svc),
		decodeUpdateCBORReq,
		api.EncodeResponse,
		opts...,
	), "submit-update-cbor").ServeHTTP)

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "status").ServeHTTP)

	mux.Get("/health", supermq.Health(serviceName, instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeRegisterReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req registerReq
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, api.MaxBodySize)).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeUpdateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var body updateBody
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, api.MaxBodySize)).Decode(&body); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return submitUpdateReq{update: fl.Update{
		ParticipantID: body.ParticipantID,
		Round:         body.Round,
		Params:        body.Parameters,
		Loss:          body.Loss,
	}}, nil
}

func decodeUpdateCBORReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.CBORContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, api.MaxBodySize))
	if err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	var update fl.Update
	if err := cbor.Unmarshal(data, &update); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return submitUpdateReq{update: update}, nil
}
