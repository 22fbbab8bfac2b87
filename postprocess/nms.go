package postprocess

import (
	"sort"

	"github.com/swdee/go-ssdlite/box"
)

// NMSParams defines the thresholds and caps used by SelectNMS
type NMSParams struct {
	// ScoreThreshold is the probability a class score must exceed for its
	// box to be considered
	ScoreThreshold float32 `yaml:"score_threshold"`
	// IoUThreshold is the Non-Maximum Suppression threshold.  A candidate
	// overlapping a kept box of the same class with an IoU at or above it is
	// removed
	IoUThreshold float32 `yaml:"iou_threshold"`
	// MaxPerClass caps the candidates of each class before suppression,
	// keeping the highest scoring.  Zero or less disables the cap
	MaxPerClass int `yaml:"max_per_class"`
	// MaxTotal caps the detections returned for an image across all classes,
	// keeping the highest scoring.  Zero or less disables the cap
	MaxTotal int `yaml:"max_total"`
}

// DefaultNMSParams returns an instance of NMSParams configured with the
// default values featuring:
// - Score Threshold: 0.05
// - IoU Threshold: 0.45
// - Max Per Class: 200
// - Max Total: 200
func DefaultNMSParams() NMSParams {
	return NMSParams{
		ScoreThreshold: 0.05,
		IoUThreshold:   0.45,
		MaxPerClass:    200,
		MaxTotal:       200,
	}
}

// Detection is a box kept by non-maximum suppression
type Detection struct {
	// Box is the detected object location in normalized corner form
	Box box.Corner
	// Class is the detected object class, never the background
	Class int
	// Score is the class probability
	Score float32
	// Anchor is the index of the default box the detection came from
	Anchor int
}

// candidate is an anchor whose class score passed the score threshold
type candidate struct {
	anchor int
	score  float32
}

// SelectNMS runs greedy per class Non-Maximum Suppression over a decoded
// image and returns the kept detections ordered by descending score.  An
// image without detections returns an empty slice
func SelectNMS(d Decoded, p NMSParams) []Detection {

	kept := make([]Detection, 0)
	cands := make([]candidate, 0)

	// class 0 is the background
	for c := 1; c < d.NumClasses; c++ {

		cands = cands[:0]

		for i := range d.Boxes {
			if s := d.Prob(i, c); s > p.ScoreThreshold {
				cands = append(cands, candidate{anchor: i, score: s})
			}
		}

		if len(cands) == 0 {
			continue
		}

		// ascending by score, equal scores stay in anchor order
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].score < cands[j].score
		})

		if p.MaxPerClass > 0 && len(cands) > p.MaxPerClass {
			cands = cands[len(cands)-p.MaxPerClass:]
		}

		kept = suppress(kept, cands, d.Boxes, c, p.IoUThreshold)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if p.MaxTotal > 0 && len(kept) > p.MaxTotal {
		kept = kept[:p.MaxTotal]
	}

	return kept
}

// suppress repeatedly keeps the highest scoring candidate and drops every
// remaining candidate overlapping it with an IoU at or above threshold.
// cands must be sorted by ascending score and is reordered in place
func suppress(dst []Detection, cands []candidate, boxes []box.Corner,
	class int, threshold float32) []Detection {

	for len(cands) > 0 {

		top := cands[len(cands)-1]
		cands = cands[:len(cands)-1]

		dst = append(dst, Detection{
			Box:    boxes[top.anchor],
			Class:  class,
			Score:  top.score,
			Anchor: top.anchor,
		})

		n := 0

		for _, r := range cands {
			if box.IoU(boxes[top.anchor], boxes[r.anchor]) < threshold {
				cands[n] = r
				n++
			}
		}

		cands = cands[:n]
	}

	return dst
}
