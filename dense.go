package ssdlite

import (
	"fmt"

	"gorgonia.org/tensor"
)

// OutputFromDense wraps a gorgonia tensor, as produced by a pure Go inference
// backend, as an Output.  FP32, FP64 and INT8 tensors are supported, FP64 data
// is narrowed to float32
func OutputFromDense(index int, t *tensor.Dense) (Output, error) {

	shape := t.Shape()
	dims := make([]int, len(shape))
	copy(dims, shape)

	out := Output{
		Index: index,
		Dims:  dims,
	}

	switch t.Dtype() {
	case tensor.Float32:
		data, ok := t.Data().([]float32)

		if !ok {
			return Output{}, fmt.Errorf("%w: tensor %d holds a scalar", ErrUnsupportedType, index)
		}

		out.Type = TensorFloat32
		out.BufFloat = data

	case tensor.Float64:
		data, ok := t.Data().([]float64)

		if !ok {
			return Output{}, fmt.Errorf("%w: tensor %d holds a scalar", ErrUnsupportedType, index)
		}

		out.Type = TensorFloat32
		out.BufFloat = make([]float32, len(data))

		for i, v := range data {
			out.BufFloat[i] = float32(v)
		}

	case tensor.Int8:
		data, ok := t.Data().([]int8)

		if !ok {
			return Output{}, fmt.Errorf("%w: tensor %d holds a scalar", ErrUnsupportedType, index)
		}

		// gorgonia tensors carry no quantization parameters
		out.Type = TensorInt8
		out.BufInt = data
		out.Scale = 1

	default:
		return Output{}, fmt.Errorf("%w: tensor %d has dtype %v",
			ErrUnsupportedType, index, t.Dtype())
	}

	return out, nil
}
