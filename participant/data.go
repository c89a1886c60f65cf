package participant

import (
	"math/rand/v2"

	"github.com/absmach/fedavg/pkg/model"
	"gonum.org/v1/gonum/mat"
)

// SyntheticData draws n feature rows uniformly from [-1, 1) and labels them
// with truth plus Gaussian noise of the given standard deviation.
func SyntheticData(n int, truth model.Model, noise float64, rng *rand.Rand) (*mat.Dense, *mat.Dense, error) {
	if n <= 0 {
		return nil, nil, ErrNoSamples
	}

	features := mat.NewDense(n, truth.InputDim, nil)
	features.Apply(func(_, _ int, _ float64) float64 {
		return rng.Float64()*2 - 1
	}, features)

	labels, err := truth.Forward(features)
	if err != nil {
		return nil, nil, err
	}
	if noise > 0 {
		labels.Apply(func(_, _ int, v float64) float64 {
			return v + rng.NormFloat64()*noise
		}, labels)
	}

	return features, labels, nil
}
