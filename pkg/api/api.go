package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/fedavg/coordinator"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
)

const (
	ContentType     = "application/json"
	CBORContentType = "application/cbor"

	// MaxBodySize bounds update payloads.
	MaxBodySize = 64 << 20
)

// ErrorRes is the body of every non-2xx response.
type ErrorRes struct {
	Err string `json:"error"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(StatusCode(err))

	if err := json.NewEncoder(w).Encode(ErrorRes{Err: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// StatusCode maps service errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrRoundMismatch):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrUnregisteredParticipant),
		errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apiutil.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, coordinator.ErrMissingParticipantID),
		errors.Is(err, coordinator.ErrInvalidSampleCount),
		errors.Is(err, coordinator.ErrMalformedParameters),
		errors.Is(err, pkgerrors.ErrEmptyKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
