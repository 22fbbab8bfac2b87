package ssdlite

import (
	"fmt"
)

// BatchSize returns the number of images in the outputs, taken from the
// leading dimension of the first output.  Outputs without dimensions are
// treated as a single image
func (o *Outputs) BatchSize() int {

	if len(o.Output) == 0 {
		return 0
	}

	dims := o.Output[0].Dims

	if len(dims) < 2 || dims[0] <= 0 {
		return 1
	}

	return dims[0]
}

// ImageSlice returns the float32 values of output number out belonging to
// image idx of the batch.  idx starts counting from 0 to (batchsize-1)
func (o *Outputs) ImageSlice(out, idx int) ([]float32, error) {

	if out < 0 || out >= len(o.Output) {
		return nil, fmt.Errorf("%w: output %d of %d", ErrOutOfRange, out, len(o.Output))
	}

	batch := o.BatchSize()

	if idx < 0 || idx >= batch {
		return nil, fmt.Errorf("%w: index %d out of range [0-%d)", ErrOutOfRange, idx, batch)
	}

	output := o.Output[out]
	total := output.Len()

	if total%batch != 0 {
		return nil, fmt.Errorf("%w: output %d has %d elements, not divisible by batch size %d",
			ErrOutOfRange, out, total, batch)
	}

	size := total / batch

	return output.float32Range(idx*size, size)
}
