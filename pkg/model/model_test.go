package model_test

import (
	"math"
	"testing"

	"github.com/absmach/fedavg/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNew(t *testing.T) {
	t.Parallel()

	m := model.New(3, 2)
	assert.Equal(t, model.Shape{Inputs: 3, Outputs: 2}, m.Shape())
	require.Len(t, m.Weights, 6)
	require.Len(t, m.Bias, 2)
	require.NoError(t, m.Validate())

	for _, v := range append(append([]float32{}, m.Weights...), m.Bias...) {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(0.1))
	}
}

func TestForward(t *testing.T) {
	t.Parallel()

	m := model.Model{
		InputDim:  2,
		OutputDim: 1,
		Weights:   []float32{1, 2},
		Bias:      []float32{0.5},
	}

	cases := []struct {
		desc  string
		batch mat.Matrix
		want  []float64
		err   error
	}{
		{
			desc:  "forward two rows",
			batch: mat.NewDense(2, 2, []float64{1, 1, 2, 0}),
			want:  []float64{3.5, 2.5},
		},
		{
			desc:  "forward with wrong column count",
			batch: mat.NewDense(1, 3, []float64{1, 2, 3}),
			err:   model.ErrShapeMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			out, err := m.Forward(tc.batch)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			rows, cols := out.Dims()
			assert.Equal(t, len(tc.want), rows)
			assert.Equal(t, 1, cols)
			for i, want := range tc.want {
				assert.InDelta(t, want, out.At(i, 0), 1e-9)
			}
		})
	}
}

func TestForwardMultipleOutputs(t *testing.T) {
	t.Parallel()

	m := model.Model{
		InputDim:  2,
		OutputDim: 2,
		Weights:   []float32{1, 0, 0, 1},
		Bias:      []float32{1, -1},
	}

	out, err := m.Forward(mat.NewDense(1, 2, []float64{4, 7}))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, out.RawRowView(0))
}

func TestDenseRoundTrip(t *testing.T) {
	t.Parallel()

	m := model.Model{InputDim: 3, OutputDim: 2, Weights: []float32{1, 2, 3, 4, 5, 6}, Bias: []float32{7, 8}}
	w, b := m.Dense()
	assert.Equal(t, 5.0, w.At(1, 1))

	back, err := model.FromDense(w, b)
	require.NoError(t, err)
	assert.True(t, m.Equal(back))

	_, err = model.FromDense(w, mat.NewVecDense(3, nil))
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestAverage(t *testing.T) {
	t.Parallel()

	column := func(w1, w2, b float32) model.Model {
		return model.Model{InputDim: 1, OutputDim: 2, Weights: []float32{w1, w2}, Bias: []float32{b, b}}
	}

	cases := []struct {
		desc    string
		entries []model.Weighted
		want    model.Model
		err     error
	}{
		{
			desc: "equal weights average to the arithmetic mean",
			entries: []model.Weighted{
				{Model: column(1, 1, 0), Weight: 1},
				{Model: column(3, 3, 0), Weight: 1},
			},
			want: column(2, 2, 0),
		},
		{
			desc: "weights are proportional to sample counts",
			entries: []model.Weighted{
				{Model: column(3, 0, 3), Weight: 2},
				{Model: column(0, 3, 6), Weight: 1},
			},
			want: column(2, 1, 4),
		},
		{
			desc: "single entry is returned unchanged",
			entries: []model.Weighted{
				{Model: column(5, 6, 7), Weight: 42},
			},
			want: column(5, 6, 7),
		},
		{
			desc:    "empty input",
			entries: nil,
			err:     model.ErrEmptyInput,
		},
		{
			desc: "heterogeneous shapes",
			entries: []model.Weighted{
				{Model: column(1, 1, 1), Weight: 1},
				{Model: model.Zeros(2, 2), Weight: 1},
			},
			err: model.ErrShapeMismatch,
		},
		{
			desc: "inconsistent parameter slices",
			entries: []model.Weighted{
				{Model: model.Model{InputDim: 1, OutputDim: 2, Weights: []float32{1}, Bias: []float32{0, 0}}, Weight: 1},
			},
			err: model.ErrShapeMismatch,
		},
		{
			desc: "all weights zero",
			entries: []model.Weighted{
				{Model: column(1, 1, 1), Weight: 0},
			},
			err: model.ErrInvalidWeight,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			got, err := model.Average(tc.entries)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want.Shape(), got.Shape())
			assert.InDeltaSlice(t, tc.want.Weights, got.Weights, 1e-6)
			assert.InDeltaSlice(t, tc.want.Bias, got.Bias, 1e-6)
		})
	}
}

func TestAverageDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	a := model.New(4, 3)
	b := model.New(4, 3)
	aCopy, bCopy := a.Clone(), b.Clone()

	_, err := model.Average([]model.Weighted{{Model: a, Weight: 3}, {Model: b, Weight: 5}})
	require.NoError(t, err)
	assert.True(t, a.Equal(aCopy))
	assert.True(t, b.Equal(bCopy))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	edge := model.Model{
		InputDim:  3,
		OutputDim: 2,
		Weights: []float32{
			0.1, -0.2, 1.0 / 3.0,
			math.MaxFloat32, math.SmallestNonzeroFloat32, -123456.789,
		},
		Bias: []float32{float32(math.Pi), -1e-20},
	}

	encoders := []struct {
		desc   string
		encode func(model.Model) ([]byte, error)
	}{
		{desc: "json", encode: model.Encode},
		{desc: "cbor", encode: model.EncodeCBOR},
	}

	for _, enc := range encoders {
		for _, m := range []model.Model{edge, model.New(2, 1), model.New(16, 4)} {
			data, err := enc.encode(m)
			require.NoError(t, err, enc.desc)

			decoded, err := model.Decode(data)
			require.NoError(t, err, enc.desc)
			assert.True(t, m.Equal(decoded), "%s round trip changed the model", enc.desc)
		}
	}
}

func TestEncodeJSONLayout(t *testing.T) {
	t.Parallel()

	m := model.Model{InputDim: 2, OutputDim: 1, Weights: []float32{1, 2}, Bias: []float32{0.5}}
	data, err := model.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"input_dim":2,"output_dim":1,"weights":[[1,2]],"bias":[0.5]}`, string(data))
}

func TestEncodeInvalidModel(t *testing.T) {
	t.Parallel()

	_, err := model.Encode(model.Model{InputDim: 2, OutputDim: 1, Weights: []float32{1}, Bias: []float32{0}})
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}
