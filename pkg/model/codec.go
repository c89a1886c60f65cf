package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"

	cborMajorMap = 5
)

// document is the self-describing wire form shared by the JSON and CBOR encodings.
type document struct {
	InputDim  int         `json:"input_dim"  cbor:"input_dim"`
	OutputDim int         `json:"output_dim" cbor:"output_dim"`
	Weights   [][]float32 `json:"weights"    cbor:"weights"`
	Bias      []float32   `json:"bias"       cbor:"bias"`
}

// Encode returns the JSON encoding of m.
func Encode(m Model) ([]byte, error) {
	doc, err := toDocument(m)
	if err != nil {
		return nil, err
	}

	return json.Marshal(doc)
}

// EncodeCBOR returns the CBOR encoding of m. Parameters stay 32-bit floats.
func EncodeCBOR(m Model) ([]byte, error) {
	doc, err := toDocument(m)
	if err != nil {
		return nil, err
	}

	return cbor.Marshal(doc)
}

// Decode parses a JSON or CBOR encoded model and checks that it is
// internally consistent. The format is detected from the first byte.
func Decode(data []byte) (Model, error) {
	var doc document
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return Model{}, fmt.Errorf("%w: empty payload", ErrDeserialization)
	case trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return Model{}, fmt.Errorf("%w: %w", ErrDeserialization, err)
		}
	case trimmed[0]>>5 == cborMajorMap:
		if err := cbor.Unmarshal(trimmed, &doc); err != nil {
			return Model{}, fmt.Errorf("%w: %w", ErrDeserialization, err)
		}
	default:
		return Model{}, fmt.Errorf("%w: unrecognised encoding", ErrDeserialization)
	}

	return fromDocument(doc)
}

func toDocument(m Model) (document, error) {
	if err := m.Validate(); err != nil {
		return document{}, err
	}

	rows := make([][]float32, m.OutputDim)
	for o := range rows {
		rows[o] = m.Weights[o*m.InputDim : (o+1)*m.InputDim : (o+1)*m.InputDim]
	}

	return document{
		InputDim:  m.InputDim,
		OutputDim: m.OutputDim,
		Weights:   rows,
		Bias:      m.Bias,
	}, nil
}

func fromDocument(doc document) (Model, error) {
	if doc.InputDim <= 0 || doc.OutputDim <= 0 {
		return Model{}, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrDeserialization, doc.OutputDim, doc.InputDim)
	}
	if len(doc.Weights) != doc.OutputDim {
		return Model{}, fmt.Errorf("%w: %d weight rows, output_dim is %d", ErrDeserialization, len(doc.Weights), doc.OutputDim)
	}
	if len(doc.Bias) != doc.OutputDim {
		return Model{}, fmt.Errorf("%w: %d bias values, output_dim is %d", ErrDeserialization, len(doc.Bias), doc.OutputDim)
	}

	// input_dim is untrusted until every row matches it.
	for o, row := range doc.Weights {
		if len(row) != doc.InputDim {
			return Model{}, fmt.Errorf("%w: weight row %d has %d values, input_dim is %d", ErrDeserialization, o, len(row), doc.InputDim)
		}
	}

	m := Zeros(doc.InputDim, doc.OutputDim)
	for o, row := range doc.Weights {
		copy(m.Weights[o*doc.InputDim:], row)
	}
	copy(m.Bias, doc.Bias)

	for _, v := range m.Weights {
		if !finite(v) {
			return Model{}, fmt.Errorf("%w: non-finite weight", ErrDeserialization)
		}
	}
	for _, v := range m.Bias {
		if !finite(v) {
			return Model{}, fmt.Errorf("%w: non-finite bias", ErrDeserialization)
		}
	}

	return m, nil
}

func finite(v float32) bool {
	f := float64(v)

	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
