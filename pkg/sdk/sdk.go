package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/api"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/model"
)

const (
	CTJSON string = api.ContentType
	CTCBOR string = api.CBORContentType
)

var (
	ErrBadRequest       = errors.New("request rejected by coordinator")
	ErrUnexpectedStatus = errors.New("unexpected response code")
)

// GlobalModel is the decoded global model together with its round.
type GlobalModel struct {
	Round uint64
	Model model.Model
}

// Update is a locally trained model ready to be submitted.
type Update struct {
	ParticipantID string
	Round         uint64
	Model         model.Model
	Loss          *float64
}

type SDK interface {
	// Register registers a participant and the size of its local dataset.
	//
	// example:
	//  p, _ := sdk.Register("worker-1", 1000)
	//  fmt.Println(p.RegisteredAt)
	Register(participantID string, sampleCount uint64) (fl.Participant, error)

	// CurrentModel fetches the global model and the round it belongs to.
	//
	// example:
	//  gm, _ := sdk.CurrentModel()
	//  fmt.Println(gm.Round, gm.Model.Shape())
	CurrentModel() (GlobalModel, error)

	// SubmitUpdate submits a locally trained model as JSON. An update for
	// a round other than the current one fails with
	// coordinator.ErrRoundMismatch.
	//
	// example:
	//  res, _ := sdk.SubmitUpdate(sdk.Update{
	//    ParticipantID: "worker-1",
	//    Round:         gm.Round,
	//    Model:         trained,
	//  })
	//  fmt.Println(res.Aggregated)
	SubmitUpdate(update Update) (coordinator.SubmitResult, error)

	// SubmitUpdateCBOR submits a locally trained model as CBOR.
	SubmitUpdateCBOR(update Update) (coordinator.SubmitResult, error)

	// Status returns the coordinator status.
	Status() (fl.Status, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
	Timeout         time.Duration
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *fedSDK) processRequest(method, reqURL, contentType string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", contentType)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, decodeError(resp.StatusCode, body)
	}

	return body, nil
}

// decodeError maps an error response back onto the coordinator errors so
// callers can use errors.Is on both sides of the wire.
func decodeError(code int, body []byte) error {
	var res api.ErrorRes
	msg := string(bytes.TrimSpace(body))
	if err := json.Unmarshal(body, &res); err == nil && res.Err != "" {
		msg = res.Err
	}

	switch code {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", coordinator.ErrRoundMismatch, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", coordinator.ErrUnregisteredParticipant, msg)
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	default:
		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, code, msg)
	}
}
