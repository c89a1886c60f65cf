package sdk

import (
	"encoding/json"
	"net/http"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/model"
	"github.com/fxamacker/cbor/v2"
)

const (
	participantsEndpoint = "/participants"
	modelEndpoint        = "/model"
	updateEndpoint       = "/update"
	updateCBOREndpoint   = "/update_cbor"
	statusEndpoint       = "/status"
)

type registerReq struct {
	ParticipantID string `json:"participant_id"`
	SampleCount   uint64 `json:"sample_count"`
}

type modelRes struct {
	Round uint64          `json:"round"`
	Model json.RawMessage `json:"model"`
}

type updateReq struct {
	ParticipantID string          `json:"participant_id"`
	Round         uint64          `json:"round"`
	Parameters    json.RawMessage `json:"parameters"`
	Loss          *float64        `json:"loss,omitempty"`
}

func (sdk *fedSDK) Register(participantID string, sampleCount uint64) (fl.Participant, error) {
	data, err := json.Marshal(registerReq{ParticipantID: participantID, SampleCount: sampleCount})
	if err != nil {
		return fl.Participant{}, err
	}

	url := sdk.coordinatorURL + participantsEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, CTJSON, data, http.StatusCreated)
	if err != nil {
		return fl.Participant{}, err
	}

	var p fl.Participant
	if err := json.Unmarshal(body, &p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (sdk *fedSDK) CurrentModel() (GlobalModel, error) {
	url := sdk.coordinatorURL + modelEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, CTJSON, nil, http.StatusOK)
	if err != nil {
		return GlobalModel{}, err
	}

	var res modelRes
	if err := json.Unmarshal(body, &res); err != nil {
		return GlobalModel{}, err
	}
	m, err := model.Decode(res.Model)
	if err != nil {
		return GlobalModel{}, err
	}

	return GlobalModel{Round: res.Round, Model: m}, nil
}

func (sdk *fedSDK) SubmitUpdate(update Update) (coordinator.SubmitResult, error) {
	params, err := model.Encode(update.Model)
	if err != nil {
		return coordinator.SubmitResult{}, err
	}
	data, err := json.Marshal(updateReq{
		ParticipantID: update.ParticipantID,
		Round:         update.Round,
		Parameters:    params,
		Loss:          update.Loss,
	})
	if err != nil {
		return coordinator.SubmitResult{}, err
	}

	return sdk.submit(updateEndpoint, CTJSON, data)
}

func (sdk *fedSDK) SubmitUpdateCBOR(update Update) (coordinator.SubmitResult, error) {
	params, err := model.EncodeCBOR(update.Model)
	if err != nil {
		return coordinator.SubmitResult{}, err
	}
	data, err := cbor.Marshal(fl.Update{
		ParticipantID: update.ParticipantID,
		Round:         update.Round,
		Params:        params,
		Loss:          update.Loss,
	})
	if err != nil {
		return coordinator.SubmitResult{}, err
	}

	return sdk.submit(updateCBOREndpoint, CTCBOR, data)
}

func (sdk *fedSDK) submit(endpoint, contentType string, data []byte) (coordinator.SubmitResult, error) {
	url := sdk.coordinatorURL + endpoint

	body, err := sdk.processRequest(http.MethodPost, url, contentType, data, http.StatusOK)
	if err != nil {
		return coordinator.SubmitResult{}, err
	}

	var res coordinator.SubmitResult
	if err := json.Unmarshal(body, &res); err != nil {
		return coordinator.SubmitResult{}, err
	}

	return res, nil
}

func (sdk *fedSDK) Status() (fl.Status, error) {
	url := sdk.coordinatorURL + statusEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, CTJSON, nil, http.StatusOK)
	if err != nil {
		return fl.Status{}, err
	}

	var status fl.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return fl.Status{}, err
	}

	return status, nil
}
