package postprocess

import (
	"errors"
	"fmt"
	"sync"

	"github.com/swdee/go-ssdlite/box"
	"github.com/swdee/go-ssdlite/dboxes"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultCriteria is the IoU a default box must exceed against a ground
// truth box to be assigned to it
const DefaultCriteria = 0.5

// forcedMatchIoU is written over the IoU of the best default box of every
// ground truth box so it survives any threshold
const forcedMatchIoU = 2.0

var (
	// ErrNoGroundTruth is reported when an image has no ground truth boxes
	ErrNoGroundTruth = errors.New("no ground truth boxes")
	// ErrMalformedGroundTruth is reported when a ground truth box has
	// non-finite coordinates or a negative label
	ErrMalformedGroundTruth = errors.New("malformed ground truth")
)

// GroundTruth is an annotated object of a training image
type GroundTruth struct {
	// Box is the object location in normalized corner form
	Box box.Corner
	// Label is the object class, 0 is reserved for the background
	Label int
}

// EncodeStatus is the outcome of encoding one image
type EncodeStatus int

const (
	// EncodeOK means the ground truth was matched against the default boxes
	EncodeOK EncodeStatus = iota
	// EncodeDegraded means the ground truth could not be used and every
	// default box was labelled background
	EncodeDegraded
)

// String returns a readable name of the EncodeStatus
func (s EncodeStatus) String() string {
	switch s {
	case EncodeOK:
		return "ok"
	case EncodeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// EncodeResult holds the training targets of one image, aligned one to one
// with the default box set
type EncodeResult struct {
	// Boxes are the regression targets in center form.  Positive default
	// boxes hold their matched ground truth box, negatives hold themselves
	Boxes []box.Center
	// Labels are the class of each default box, 0 for background
	Labels []int
	// Status reports whether the ground truth was used
	Status EncodeStatus
	// Err is the reason for a degraded result
	Err error
}

// Positives returns the number of default boxes assigned to an object
func (r EncodeResult) Positives() int {

	n := 0

	for _, l := range r.Labels {
		if l > 0 {
			n++
		}
	}

	return n
}

// Encoder matches ground truth boxes against a default box set to produce
// training targets
type Encoder struct {
	boxes *dboxes.Set
	log   *zap.Logger
}

// NewEncoder returns an Encoder for the given default box set
func NewEncoder(set *dboxes.Set, opts ...Option) *Encoder {

	o := buildOptions(opts)

	return &Encoder{
		boxes: set,
		log:   o.logger,
	}
}

// Encode assigns every default box a label and a regression target.
//
// Each default box takes the ground truth box it overlaps most, then every
// ground truth box claims the default box it overlaps most regardless of the
// threshold so no object goes unmatched.  Default boxes whose IoU exceeds
// criteria are positives.
//
// Encode does not fail, input that can not be matched produces an
// EncodeDegraded result with every default box labelled background
func (e *Encoder) Encode(gt []GroundTruth, criteria float32) EncodeResult {

	if len(gt) == 0 {
		return e.degraded(ErrNoGroundTruth)
	}

	truths := make([]box.Corner, len(gt))

	for i, g := range gt {
		if !g.Box.IsFinite() {
			return e.degraded(fmt.Errorf("%w: box %d has non-finite coordinates %+v",
				ErrMalformedGroundTruth, i, g.Box))
		}

		if g.Label < 0 {
			return e.degraded(fmt.Errorf("%w: box %d has label %d",
				ErrMalformedGroundTruth, i, g.Label))
		}

		truths[i] = g.Box.Clamp()
	}

	n := len(truths)
	m := e.boxes.Len()
	ious := e.iouMatrix(truths)

	// best ground truth for each default box
	bestIoU := make([]float64, m)
	bestIdx := make([]int, m)

	for i := 0; i < n; i++ {
		for j, v := range ious.RawRowView(i) {
			if v > bestIoU[j] {
				bestIoU[j] = v
				bestIdx[j] = i
			}
		}
	}

	// best default box for each ground truth, later ground truth boxes win
	// a default box claimed twice
	for i := 0; i < n; i++ {
		j := floats.MaxIdx(ious.RawRowView(i))
		bestIoU[j] = forcedMatchIoU
		bestIdx[j] = i
	}

	res := EncodeResult{
		Boxes:  make([]box.Center, m),
		Labels: make([]int, m),
		Status: EncodeOK,
	}

	for j := 0; j < m; j++ {
		if bestIoU[j] > float64(criteria) {
			res.Labels[j] = gt[bestIdx[j]].Label
			res.Boxes[j] = truths[bestIdx[j]].Center()
			continue
		}

		res.Boxes[j] = e.boxes.Center(j)
	}

	return res
}

// EncodeBatch encodes the ground truth of several images concurrently.  The
// results are in the same order as gts
func (e *Encoder) EncodeBatch(gts [][]GroundTruth, criteria float32) []EncodeResult {

	results := make([]EncodeResult, len(gts))

	var wg sync.WaitGroup
	wg.Add(len(gts))

	for i := range gts {
		go func(i int) {
			defer wg.Done()
			results[i] = e.Encode(gts[i], criteria)
		}(i)
	}

	wg.Wait()

	return results
}

// Offsets converts encoded targets into the variance scaled regression
// offsets the network learns to predict, in anchor major [anchors, 4] order.
// Decoding the offsets with the same scales gives back the target boxes
func (e *Encoder) Offsets(r EncodeResult, scaleXY, scaleWH float32) []float32 {

	out := make([]float32, len(r.Boxes)*4)

	for j, t := range r.Boxes {
		a := e.boxes.Center(j)

		out[j*4+0] = (t.CX - a.CX) / (scaleXY * a.W)
		out[j*4+1] = (t.CY - a.CY) / (scaleXY * a.H)
		out[j*4+2] = (safeLog(t.W) - safeLog(a.W)) / scaleWH
		out[j*4+3] = (safeLog(t.H) - safeLog(a.H)) / scaleWH
	}

	return out
}

// iouMatrix returns the N x M matrix of IoU between the ground truth boxes
// and the default boxes
func (e *Encoder) iouMatrix(truths []box.Corner) *mat.Dense {

	m := e.boxes.Len()
	ious := mat.NewDense(len(truths), m, nil)

	for i, t := range truths {
		row := ious.RawRowView(i)

		for j := 0; j < m; j++ {
			row[j] = float64(box.IoU(t, e.boxes.Corner(j)))
		}
	}

	return ious
}

// degraded returns the all background result used when the ground truth can
// not be matched
func (e *Encoder) degraded(err error) EncodeResult {

	if errors.Is(err, ErrNoGroundTruth) {
		e.log.Debug("encoding image without ground truth as background")
	} else {
		e.log.Warn("ground truth rejected, encoding image as background", zap.Error(err))
	}

	m := e.boxes.Len()

	res := EncodeResult{
		Boxes:  make([]box.Center, m),
		Labels: make([]int, m),
		Status: EncodeDegraded,
		Err:    err,
	}

	for j := 0; j < m; j++ {
		res.Boxes[j] = e.boxes.Center(j)
	}

	return res
}
