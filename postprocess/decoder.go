package postprocess

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/swdee/go-ssdlite"
	"github.com/swdee/go-ssdlite/box"
	"github.com/swdee/go-ssdlite/dboxes"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultScaleXY is the variance applied to the center offsets
	DefaultScaleXY = 0.1
	// DefaultScaleWH is the variance applied to the log size offsets
	DefaultScaleWH = 0.2
)

// ErrShapeMismatch is returned when model outputs do not match the default
// box set or class count
var ErrShapeMismatch = errors.New("output shape mismatch")

// Decoded holds the decoded boxes and class probabilities of one image,
// aligned one to one with the default box set
type Decoded struct {
	// Boxes are the predicted boxes in corner form, not clamped to the image
	Boxes []box.Corner
	// Probs are the softmax class probabilities in [anchors, classes] order
	Probs []float32
	// NumClasses is the number of classes including the background
	NumClasses int
}

// Prob returns the probability of class for the given anchor
func (d Decoded) Prob(anchor, class int) float32 {
	return d.Probs[anchor*d.NumClasses+class]
}

// Decoder turns regression offsets and raw class scores back into boxes and
// probabilities using the default box set
type Decoder struct {
	boxes   *dboxes.Set
	scaleXY float32
	scaleWH float32
	format  ssdlite.TensorFormat
	scratch *scratchPool
}

// NewDecoder returns a Decoder.  scaleXY and scaleWH must be the same
// variances the model was trained with
func NewDecoder(set *dboxes.Set, scaleXY, scaleWH float32,
	format ssdlite.TensorFormat) *Decoder {

	return &Decoder{
		boxes:   set,
		scaleXY: scaleXY,
		scaleWH: scaleWH,
		format:  format,
		scratch: newScratchPool(0),
	}
}

// DecodeImage decodes the location offsets and class scores of a single
// image.  loc holds 4 values and scores holds numClasses values per default
// box, in the Decoder's tensor format
func (d *Decoder) DecodeImage(loc, scores []float32, numClasses int) (Decoded, error) {

	anchors := d.boxes.Len()

	if numClasses < 2 {
		return Decoded{}, fmt.Errorf("%w: %d classes, need background plus at least one",
			ErrShapeMismatch, numClasses)
	}

	if len(loc) != anchors*4 {
		return Decoded{}, fmt.Errorf("%w: %d location values, want %d",
			ErrShapeMismatch, len(loc), anchors*4)
	}

	if len(scores) != anchors*numClasses {
		return Decoded{}, fmt.Errorf("%w: %d score values, want %d",
			ErrShapeMismatch, len(scores), anchors*numClasses)
	}

	out := Decoded{
		Boxes:      make([]box.Corner, anchors),
		Probs:      make([]float32, anchors*numClasses),
		NumClasses: numClasses,
	}

	buf := d.scratch.Get(numClasses)
	defer d.scratch.Put(buf)

	logits := *buf

	// every anchor writes only its own slots
	for i := 0; i < anchors; i++ {

		out.Boxes[i] = d.decodeBox(i, loc)

		for c := 0; c < numClasses; c++ {
			logits[c] = float64(d.at(scores, i, c, numClasses))
		}

		softmax(logits, out.Probs[i*numClasses:(i+1)*numClasses])
	}

	return out, nil
}

// DecodeBatch decodes several images concurrently, one goroutine per image.
// The results are in the same order as locs
func (d *Decoder) DecodeBatch(locs, scores [][]float32, numClasses int) ([]Decoded, error) {

	if len(locs) != len(scores) {
		return nil, fmt.Errorf("%w: %d location buffers and %d score buffers",
			ErrShapeMismatch, len(locs), len(scores))
	}

	results := make([]Decoded, len(locs))
	errs := make([]error, len(locs))

	var wg sync.WaitGroup
	wg.Add(len(locs))

	for i := range locs {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.DecodeImage(locs[i], scores[i], numClasses)
		}(i)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return results, nil
}

// decodeBox applies the regression offsets of anchor i to its default box.
// Offsets that overflow are clamped so the box is empty rather than NaN or
// infinite
func (d *Decoder) decodeBox(i int, loc []float32) box.Corner {

	anchor := d.boxes.Center(i)

	dx := d.at(loc, i, 0, 4)
	dy := d.at(loc, i, 1, 4)
	dw := d.at(loc, i, 2, 4)
	dh := d.at(loc, i, 3, 4)

	c := box.Center{
		CX: dx*d.scaleXY*anchor.W + anchor.CX,
		CY: dy*d.scaleXY*anchor.H + anchor.CY,
		W:  float32(math.Exp(float64(dw*d.scaleWH))) * anchor.W,
		H:  float32(math.Exp(float64(dh*d.scaleWH))) * anchor.H,
	}

	if !isFinite(c.CX) {
		c.CX = anchor.CX
	}

	if !isFinite(c.CY) {
		c.CY = anchor.CY
	}

	if !isFinite(c.W) || c.W < 0 {
		c.W = 0
	}

	if !isFinite(c.H) || c.H < 0 {
		c.H = 0
	}

	return c.Corner()
}

// at returns value v of anchor i from a buffer holding n values per anchor
func (d *Decoder) at(buf []float32, i, v, n int) float32 {

	if d.format == ssdlite.FormatChannelMajor {
		return buf[v*d.boxes.Len()+i]
	}

	return buf[i*n+v]
}

// softmax writes the softmax of logits into dst.  Rows holding a NaN or only
// -Inf logits get all zero probabilities so they never pass a score
// threshold.  +Inf logits share a probability of 1 between them
func softmax(logits []float64, dst []float32) {

	if floats.HasNaN(logits) {
		zero(dst)
		return
	}

	lse := floats.LogSumExp(logits)

	if math.IsInf(lse, -1) {
		zero(dst)
		return
	}

	if math.IsInf(lse, 1) {
		n := 0

		for _, v := range logits {
			if math.IsInf(v, 1) {
				n++
			}
		}

		for c, v := range logits {
			dst[c] = 0

			if math.IsInf(v, 1) {
				dst[c] = 1 / float32(n)
			}
		}

		return
	}

	for c, v := range logits {
		p := math.Exp(v - lse)

		if math.IsNaN(p) {
			p = 0
		}

		dst[c] = float32(p)
	}
}

func zero(dst []float32) {
	for c := range dst {
		dst[c] = 0
	}
}
