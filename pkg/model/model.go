package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// initScale bounds the uniform initial parameters so the first local
// gradients stay small.
const initScale = 0.1

// Shape is the (input, output) dimensionality of a linear model.
type Shape struct {
	Inputs  int `json:"inputs"`
	Outputs int `json:"outputs"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Outputs, s.Inputs)
}

// Model is a linear model y = x·Wᵀ + b. Weights holds the OutputDim×InputDim
// matrix in row-major order.
type Model struct {
	InputDim  int
	OutputDim int
	Weights   []float32
	Bias      []float32
}

// New returns a model with small uniform random parameters.
func New(inputDim, outputDim int) Model {
	m := Zeros(inputDim, outputDim)
	for i := range m.Weights {
		m.Weights[i] = rand.Float32() * initScale
	}
	for i := range m.Bias {
		m.Bias[i] = rand.Float32() * initScale
	}

	return m
}

// Zeros returns a model with every parameter set to zero.
func Zeros(inputDim, outputDim int) Model {
	inputDim, outputDim = max(inputDim, 0), max(outputDim, 0)

	return Model{
		InputDim:  inputDim,
		OutputDim: outputDim,
		Weights:   make([]float32, inputDim*outputDim),
		Bias:      make([]float32, outputDim),
	}
}

func (m Model) Shape() Shape {
	return Shape{Inputs: m.InputDim, Outputs: m.OutputDim}
}

// At returns the weight connecting input i to output o.
func (m Model) At(o, i int) float32 {
	return m.Weights[o*m.InputDim+i]
}

func (m Model) Clone() Model {
	c := m
	c.Weights = append([]float32(nil), m.Weights...)
	c.Bias = append([]float32(nil), m.Bias...)

	return c
}

// Equal reports whether both models have the same shape and bit-identical parameters.
func (m Model) Equal(other Model) bool {
	if m.Shape() != other.Shape() || len(m.Weights) != len(other.Weights) || len(m.Bias) != len(other.Bias) {
		return false
	}
	for i := range m.Weights {
		if math.Float32bits(m.Weights[i]) != math.Float32bits(other.Weights[i]) {
			return false
		}
	}
	for i := range m.Bias {
		if math.Float32bits(m.Bias[i]) != math.Float32bits(other.Bias[i]) {
			return false
		}
	}

	return true
}

// Validate checks that the parameter slices match the declared dimensions.
func (m Model) Validate() error {
	if m.InputDim <= 0 || m.OutputDim <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %s", ErrShapeMismatch, m.Shape())
	}
	if len(m.Weights) != m.InputDim*m.OutputDim {
		return fmt.Errorf("%w: %d weights for shape %s", ErrShapeMismatch, len(m.Weights), m.Shape())
	}
	if len(m.Bias) != m.OutputDim {
		return fmt.Errorf("%w: %d bias values for shape %s", ErrShapeMismatch, len(m.Bias), m.Shape())
	}

	return nil
}

// Forward evaluates the model on every row of batch.
func (m Model) Forward(batch mat.Matrix) (*mat.Dense, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	rows, cols := batch.Dims()
	if rows == 0 {
		return nil, ErrEmptyInput
	}
	if cols != m.InputDim {
		return nil, fmt.Errorf("%w: batch has %d columns, model expects %d", ErrShapeMismatch, cols, m.InputDim)
	}

	w, b := m.Dense()
	out := mat.NewDense(rows, m.OutputDim, nil)
	out.Mul(batch, w.T())
	out.Apply(func(_, j int, v float64) float64 {
		return v + b.AtVec(j)
	}, out)

	return out, nil
}

// Dense returns the parameters as gonum values. The result does not alias the model.
func (m Model) Dense() (*mat.Dense, *mat.VecDense) {
	w := make([]float64, len(m.Weights))
	for i, v := range m.Weights {
		w[i] = float64(v)
	}
	b := make([]float64, len(m.Bias))
	for i, v := range m.Bias {
		b[i] = float64(v)
	}

	return mat.NewDense(m.OutputDim, m.InputDim, w), mat.NewVecDense(m.OutputDim, b)
}

// FromDense builds a model from gonum weights (outputs×inputs) and bias.
func FromDense(w mat.Matrix, b mat.Vector) (Model, error) {
	outputs, inputs := w.Dims()
	if b.Len() != outputs {
		return Model{}, fmt.Errorf("%w: bias length %d for %d outputs", ErrShapeMismatch, b.Len(), outputs)
	}

	m := Zeros(inputs, outputs)
	for o := range outputs {
		for i := range inputs {
			m.Weights[o*inputs+i] = float32(w.At(o, i))
		}
		m.Bias[o] = float32(b.AtVec(o))
	}

	return m, nil
}
