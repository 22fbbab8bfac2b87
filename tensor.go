package ssdlite

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedType is returned when an Output holds a data type that
	// can not be converted to float32
	ErrUnsupportedType = errors.New("unsupported tensor type")
	// ErrOutOfRange is returned when an image index or buffer offset falls
	// outside the Output buffer
	ErrOutOfRange = errors.New("out of range")
)

// TensorType is the data type of an Output buffer
type TensorType int

const (
	TensorFloat32 TensorType = iota
	TensorFloat16
	TensorInt8
)

// String returns a readable name of the TensorType
func (t TensorType) String() string {
	switch t {
	case TensorFloat32:
		return "FP32"
	case TensorFloat16:
		return "FP16"
	case TensorInt8:
		return "INT8"
	default:
		return "UNKNOWN"
	}
}

// TensorFormat is the memory layout of the per anchor values of a model
// output, excluding the leading batch dimension
type TensorFormat int

const (
	// FormatAnchorMajor lays out values as [anchors, values], all values of
	// the first anchor followed by all values of the next
	FormatAnchorMajor TensorFormat = iota
	// FormatChannelMajor lays out values as [values, anchors], the layout of
	// a convolutional detection head before it is permuted
	FormatChannelMajor
)

// String returns a readable name of the TensorFormat
func (f TensorFormat) String() string {
	switch f {
	case FormatAnchorMajor:
		return "anchor-major"
	case FormatChannelMajor:
		return "channel-major"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (f TensorFormat) MarshalText() ([]byte, error) {
	if f != FormatAnchorMajor && f != FormatChannelMajor {
		return nil, fmt.Errorf("unknown tensor format %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *TensorFormat) UnmarshalText(text []byte) error {

	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "anchor-major", "nac":
		*f = FormatAnchorMajor
	case "channel-major", "nca":
		*f = FormatChannelMajor
	default:
		return fmt.Errorf("unknown tensor format %q", string(text))
	}

	return nil
}

// Output is a single output tensor of a model.  Only the buffer matching
// Type is used
type Output struct {
	// Index is the output index of the tensor in the model
	Index int
	// Type is the data type of the buffer
	Type TensorType
	// Dims are the tensor dimensions, batch first
	Dims []int
	// ZP is the quantization zero point used for INT8 outputs
	ZP int32
	// Scale is the quantization scale used for INT8 outputs
	Scale float32
	// BufFloat is the buffer for FP32 outputs
	BufFloat []float32
	// BufHalf is the buffer for FP16 outputs held as raw IEEE 754 half
	// precision bits
	BufHalf []uint16
	// BufInt is the buffer for INT8 outputs
	BufInt []int8
}

// Len returns the number of elements in the buffer matching the tensor type
func (o Output) Len() int {
	switch o.Type {
	case TensorFloat32:
		return len(o.BufFloat)
	case TensorFloat16:
		return len(o.BufHalf)
	case TensorInt8:
		return len(o.BufInt)
	default:
		return 0
	}
}

// Float32s returns the whole output buffer as float32 values
func (o Output) Float32s() ([]float32, error) {
	return o.float32Range(0, o.Len())
}

// float32Range converts size elements starting at offset to float32.  FP32
// buffers are returned without copying
func (o Output) float32Range(offset, size int) ([]float32, error) {

	if offset < 0 || size < 0 || offset+size > o.Len() {
		return nil, fmt.Errorf("%w: elements [%d,%d) of output %d with %d elements",
			ErrOutOfRange, offset, offset+size, o.Index, o.Len())
	}

	switch o.Type {
	case TensorFloat32:
		return o.BufFloat[offset : offset+size], nil

	case TensorFloat16:
		return convertFloat16ToFloat32(o.BufHalf[offset : offset+size]), nil

	case TensorInt8:
		buf := make([]float32, size)

		for i, q := range o.BufInt[offset : offset+size] {
			buf[i] = deqntAffineToF32(q, o.ZP, o.Scale)
		}

		return buf, nil

	default:
		return nil, fmt.Errorf("%w: output %d has type %s",
			ErrUnsupportedType, o.Index, o.Type)
	}
}

// Outputs are the output tensors of one inference run
type Outputs struct {
	Output []Output
}
