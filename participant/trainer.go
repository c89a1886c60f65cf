// Package participant implements the training side of federated averaging:
// a local linear-regression trainer and a runner that drives it through
// the coordinator's rounds.
package participant

import (
	"errors"
	"fmt"

	"github.com/absmach/fedavg/pkg/model"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoSamples       = errors.New("trainer needs at least one sample")
	ErrLabelsMismatch  = errors.New("features and labels have different row counts")
	ErrInvalidLearning = errors.New("learning rate must be positive")
)

// Trainer fits a linear model to a local dataset with full-batch gradient
// descent on the squared error.
type Trainer struct {
	features *mat.Dense
	labels   *mat.Dense
	model    model.Model
}

// NewTrainer creates a trainer over features (n×inputs) and labels
// (n×outputs) starting from a zero model.
func NewTrainer(features, labels *mat.Dense) (*Trainer, error) {
	n, inputs := features.Dims()
	ln, outputs := labels.Dims()
	if n == 0 {
		return nil, ErrNoSamples
	}
	if n != ln {
		return nil, fmt.Errorf("%w: %d features, %d labels", ErrLabelsMismatch, n, ln)
	}

	return &Trainer{
		features: features,
		labels:   labels,
		model:    model.Zeros(inputs, outputs),
	}, nil
}

// Samples is the number of local training samples.
func (t *Trainer) Samples() uint64 {
	n, _ := t.features.Dims()

	return uint64(n)
}

func (t *Trainer) Model() model.Model {
	return t.model.Clone()
}

// SetModel replaces the local model, normally with the global model of a new round.
func (t *Trainer) SetModel(m model.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Shape() != t.model.Shape() {
		return fmt.Errorf("%w: trainer expects %s, got %s", model.ErrShapeMismatch, t.model.Shape(), m.Shape())
	}
	t.model = m.Clone()

	return nil
}

// TrainEpoch runs one gradient step over the whole dataset and returns
// the mean squared error of the predictions made before the step.
func (t *Trainer) TrainEpoch(learningRate float64) (float64, error) {
	if learningRate <= 0 {
		return 0, ErrInvalidLearning
	}

	pred, err := t.model.Forward(t.features)
	if err != nil {
		return 0, err
	}
	var diff mat.Dense
	diff.Sub(pred, t.labels)

	// ∇W = errᵀ·X (outputs×inputs), ∇b = column sums of err.
	var gradW mat.Dense
	gradW.Mul(diff.T(), t.features)
	gradW.Scale(learningRate, &gradW)

	w, b := t.model.Dense()
	w.Sub(w, &gradW)
	for o := range b.Len() {
		b.SetVec(o, b.AtVec(o)-learningRate*mat.Sum(diff.ColView(o)))
	}

	next, err := model.FromDense(w, b)
	if err != nil {
		return 0, err
	}
	t.model = next

	var sq mat.Dense
	sq.MulElem(&diff, &diff)
	n, _ := t.features.Dims()

	return mat.Sum(&sq) / float64(n), nil
}

// Train runs epochs gradient steps and returns the loss of the last one.
func (t *Trainer) Train(epochs int, learningRate float64) (float64, error) {
	var loss float64
	for range max(epochs, 1) {
		l, err := t.TrainEpoch(learningRate)
		if err != nil {
			return 0, err
		}
		loss = l
	}

	return loss, nil
}
