package api

import (
	"encoding/json"
	"math"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type registerReq struct {
	ParticipantID string `json:"participant_id"`
	SampleCount   uint64 `json:"sample_count"`
}

func (req registerReq) validate() error {
	if req.ParticipantID == "" {
		return apiutil.ErrMissingID
	}
	if req.SampleCount == 0 {
		return coordinator.ErrInvalidSampleCount
	}

	return nil
}

// updateBody is the JSON form of an update. Parameters carries the model
// document as is.
type updateBody struct {
	ParticipantID string          `json:"participant_id"`
	Round         uint64          `json:"round"`
	Parameters    json.RawMessage `json:"parameters"`
	Loss          *float64        `json:"loss,omitempty"`
}

type submitUpdateReq struct {
	update fl.Update
}

func (req submitUpdateReq) validate() error {
	if req.update.ParticipantID == "" {
		return apiutil.ErrMissingID
	}
	if l := req.update.Loss; l != nil && (math.IsNaN(*l) || math.IsInf(*l, 0)) {
		return errInvalidLoss
	}

	return nil
}
