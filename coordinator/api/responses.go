package api

import (
	"encoding/json"
	"net/http"

	"github.com/absmach/fedavg/coordinator"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*registerRes)(nil)
	_ supermq.Response = (*modelRes)(nil)
	_ supermq.Response = (*submitUpdateRes)(nil)
	_ supermq.Response = (*statusRes)(nil)
)

type registerRes struct {
	fl.Participant
	created bool
}

func (res registerRes) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res registerRes) Headers() map[string]string {
	if res.created {
		return map[string]string{
			"Location": "/participants/" + res.ID,
		}
	}

	return map[string]string{}
}

func (res registerRes) Empty() bool {
	return false
}

type modelRes struct {
	Round uint64          `json:"round"`
	Model json.RawMessage `json:"model"`
}

func (res modelRes) Code() int {
	return http.StatusOK
}

func (res modelRes) Headers() map[string]string {
	return map[string]string{}
}

func (res modelRes) Empty() bool {
	return false
}

type submitUpdateRes struct {
	coordinator.SubmitResult
}

func (res submitUpdateRes) Code() int {
	return http.StatusOK
}

func (res submitUpdateRes) Headers() map[string]string {
	return map[string]string{}
}

func (res submitUpdateRes) Empty() bool {
	return false
}

type statusRes struct {
	fl.Status
}

func (res statusRes) Code() int {
	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}
