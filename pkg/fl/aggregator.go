package fl

import (
	"math"

	"github.com/absmach/fedavg/pkg/model"
)

type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(contributions []Contribution) (model.Model, error) {
	if len(contributions) == 0 {
		return model.Model{}, ErrNoUpdates
	}

	entries := make([]model.Weighted, 0, len(contributions))
	var totalSamples uint64
	for _, c := range contributions {
		if c.NumSamples > math.MaxUint64-totalSamples {
			return model.Model{}, ErrOverflow
		}
		totalSamples += c.NumSamples
		entries = append(entries, model.Weighted{Model: c.Model, Weight: c.NumSamples})
	}

	return model.Average(entries)
}

// MeanLoss averages the losses reported with the contributions. It returns
// nil when no contribution carried a loss.
func MeanLoss(contributions []Contribution) *float64 {
	var sum float64
	var n int
	for _, c := range contributions {
		if c.Loss == nil {
			continue
		}
		sum += *c.Loss
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)

	return &mean
}
