package fl

import (
	"errors"
	"fmt"

	"github.com/absmach/fedavg/pkg/model"
)

var (
	ErrNoUpdates = fmt.Errorf("no updates provided for aggregation: %w", model.ErrEmptyInput)
	ErrOverflow  = errors.New("sample count overflow during aggregation")
)
