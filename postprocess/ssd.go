package postprocess

import (
	"errors"
	"fmt"
	"sync"

	"github.com/swdee/go-ssdlite"
	"github.com/swdee/go-ssdlite/dboxes"
	"github.com/swdee/go-ssdlite/postprocess/result"
	"github.com/swdee/go-ssdlite/preprocess"
	"go.uber.org/zap"
)

// SSD defines the struct for SSD model inference post processing
type SSD struct {
	// Params are the Model configuration parameters
	Params SSDParams
	// boxes is the default box set the Model was trained against
	boxes *dboxes.Set
	// encoder matches ground truth against the default boxes
	encoder *Encoder
	// decoder turns Model outputs back into boxes and probabilities
	decoder *Decoder
	// idGen is the ID generator for assigning ID's to detection results
	idGen *result.IDGenerator
	log   *zap.Logger
}

// SSDParams defines the struct containing the SSD parameters to use for
// post processing operations
type SSDParams struct {
	// Boxes is the default box geometry the Model was trained with
	Boxes dboxes.Config `yaml:"boxes"`
	// ScaleXY is the variance applied to the box center offsets
	ScaleXY float32 `yaml:"scale_xy"`
	// ScaleWH is the variance applied to the box log size offsets
	ScaleWH float32 `yaml:"scale_wh"`
	// Criteria is the IoU a default box must exceed to be matched to a
	// ground truth box when encoding
	Criteria float32 `yaml:"criteria"`
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with, including the background class at index 0
	ObjectClassNum int `yaml:"object_class_num"`
	// NMS are the Non-Maximum Suppression thresholds and caps
	NMS NMSParams `yaml:"nms"`
	// Format is the memory layout of the location and score outputs
	Format ssdlite.TensorFormat `yaml:"format"`
}

// SSD300COCOParams returns an instance of SSDParams configured with default
// values for a Model trained on the COCO dataset featuring:
// - Default Boxes: SSD300 COCO geometry producing 8732 boxes
// - Object Classes: 81 (80 objects plus background)
// - Scale XY: 0.1
// - Scale WH: 0.2
// - Criteria: 0.5
// - NMS: score threshold 0.05, IoU threshold 0.45, 200 per class, 200 total
// - Format: anchor major
func SSD300COCOParams() SSDParams {
	return SSDParams{
		Boxes:          dboxes.SSD300COCO(),
		ScaleXY:        DefaultScaleXY,
		ScaleWH:        DefaultScaleWH,
		Criteria:       DefaultCriteria,
		ObjectClassNum: 81,
		NMS:            DefaultNMSParams(),
		Format:         ssdlite.FormatAnchorMajor,
	}
}

// SSD300VOCParams returns an instance of SSDParams configured with default
// values for a Model trained on the Pascal VOC dataset.  It is the same as
// SSD300COCOParams except for:
// - Default Boxes: SSD300 VOC scales
// - Object Classes: 21 (20 objects plus background)
func SSD300VOCParams() SSDParams {
	p := SSD300COCOParams()
	p.Boxes = dboxes.SSD300VOC()
	p.ObjectClassNum = 21
	return p
}

// SSDResult defines a struct used for object detection results
type SSDResult struct {
	DetectResults []result.DetectResult
}

// GetDetectResults returns the object detection results containing bounding
// boxes
func (r SSDResult) GetDetectResults() []result.DetectResult {
	return r.DetectResults
}

// NewSSD returns an instance of the SSD post processor
func NewSSD(p SSDParams, opts ...Option) (*SSD, error) {

	if p.ObjectClassNum < 2 {
		return nil, fmt.Errorf("%w: %d classes, need background plus at least one",
			ErrShapeMismatch, p.ObjectClassNum)
	}

	set, err := dboxes.Generate(p.Boxes)

	if err != nil {
		return nil, fmt.Errorf("error generating default boxes: %w", err)
	}

	o := buildOptions(opts)

	o.logger.Info("SSD post processor ready",
		zap.Int("defaultBoxes", set.Len()),
		zap.Int("classes", p.ObjectClassNum),
		zap.Stringer("format", p.Format),
	)

	return &SSD{
		Params:  p,
		boxes:   set,
		encoder: NewEncoder(set, opts...),
		decoder: NewDecoder(set, p.ScaleXY, p.ScaleWH, p.Format),
		idGen:   result.NewIDGenerator(),
		log:     o.logger,
	}, nil
}

// DefaultBoxes returns the default box set the post processor decodes with
func (s *SSD) DefaultBoxes() *dboxes.Set {
	return s.boxes
}

// Encode produces the training targets of one image using the configured
// Criteria
func (s *SSD) Encode(gt []GroundTruth) EncodeResult {
	return s.encoder.Encode(gt, s.Params.Criteria)
}

// Offsets converts encoded targets into regression offsets using the
// configured variances
func (s *SSD) Offsets(r EncodeResult) []float32 {
	return s.encoder.Offsets(r, s.Params.ScaleXY, s.Params.ScaleWH)
}

// Detect decodes and suppresses the location and score outputs of a single
// image.  When lb is nil the pixel Box of each result is left zeroed
func (s *SSD) Detect(loc, scores []float32, lb *preprocess.Letterbox) (SSDResult, error) {

	dets, err := s.detect(loc, scores)

	if err != nil {
		return SSDResult{}, err
	}

	return s.toResult(dets, lb), nil
}

// DetectObjects takes the batched location (output 0) and class score
// (output 1) tensors from the SSD model and returns the detected objects of
// each image in batch order.  Images are processed concurrently
func (s *SSD) DetectObjects(outputs *ssdlite.Outputs,
	lb *preprocess.Letterbox) ([]SSDResult, error) {

	if len(outputs.Output) < 2 {
		return nil, fmt.Errorf("%w: %d outputs, want location and score outputs",
			ErrShapeMismatch, len(outputs.Output))
	}

	batch := outputs.BatchSize()
	dets := make([][]Detection, batch)
	errs := make([]error, batch)

	var wg sync.WaitGroup
	wg.Add(batch)

	for i := 0; i < batch; i++ {
		go func(i int) {
			defer wg.Done()

			loc, err := outputs.ImageSlice(0, i)

			if err != nil {
				errs[i] = fmt.Errorf("image %d location: %w", i, err)
				return
			}

			scores, err := outputs.ImageSlice(1, i)

			if err != nil {
				errs[i] = fmt.Errorf("image %d scores: %w", i, err)
				return
			}

			dets[i], errs[i] = s.detect(loc, scores)
		}(i)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// IDs are handed out after the join so they follow batch order
	results := make([]SSDResult, batch)

	for i, d := range dets {
		results[i] = s.toResult(d, lb)
	}

	s.log.Debug("detected objects", zap.Int("images", batch))

	return results, nil
}

// detect runs the decoder and NMS over one image
func (s *SSD) detect(loc, scores []float32) ([]Detection, error) {

	decoded, err := s.decoder.DecodeImage(loc, scores, s.Params.ObjectClassNum)

	if err != nil {
		return nil, err
	}

	return SelectNMS(decoded, s.Params.NMS), nil
}

// toResult converts kept detections into detection results
func (s *SSD) toResult(dets []Detection, lb *preprocess.Letterbox) SSDResult {

	res := SSDResult{
		DetectResults: make([]result.DetectResult, 0, len(dets)),
	}

	for _, d := range dets {

		dr := result.DetectResult{
			Class:       d.Class,
			Norm:        d.Box,
			Probability: d.Score,
			ID:          s.idGen.GetNext(),
		}

		if lb != nil {
			dr.Box = lb.ToSource(d.Box)
		}

		res.DetectResults = append(res.DetectResults, dr)
	}

	return res
}
