package augment

import (
	"math"

	"github.com/swdee/go-ssdlite/box"
	"github.com/swdee/go-ssdlite/postprocess"
)

// Sampler is a source of uniform random numbers in [0,1).  *rand.Rand from
// math/rand satisfies it
type Sampler interface {
	Float64() float64
}

// cropMode bounds the IoU every ground truth box must have with a sampled
// window.  A keep mode returns the input untouched
type cropMode struct {
	keep   bool
	minIoU float64
	maxIoU float64
}

var cropModes = []cropMode{
	{keep: true},
	{minIoU: 0.1, maxIoU: math.Inf(1)},
	{minIoU: 0.3, maxIoU: math.Inf(1)},
	{minIoU: 0.5, maxIoU: math.Inf(1)},
	{minIoU: 0.7, maxIoU: math.Inf(1)},
	{minIoU: 0.9, maxIoU: math.Inf(1)},
	{minIoU: math.Inf(-1), maxIoU: math.Inf(1)},
}

const (
	// minCropSize is the smallest window side relative to the image
	minCropSize = 0.3
	// MaxCropTrials is the number of windows sampled before Crop gives up and
	// returns the input unchanged
	MaxCropTrials = 100
)

// fullImage is the window returned when no crop is applied
var fullImage = box.Corner{Left: 0, Top: 0, Right: 1, Bottom: 1}

// Crop samples a random window and returns the ground truth whose centers
// fall strictly inside it, clipped to the window and renormalized to it.
// Each trial picks one of seven modes uniformly: keep the image, require
// every box to overlap the window with IoU above 0.1, 0.3, 0.5, 0.7 or 0.9,
// or no IoU requirement.  The window is returned so the caller can crop the
// image pixels, cropped is false when the input was returned unchanged
func Crop(gt []postprocess.GroundTruth, rng Sampler) (
	out []postprocess.GroundTruth, window box.Corner, cropped bool) {

	for trial := 0; trial < MaxCropTrials; trial++ {

		mode := cropModes[pick(rng, len(cropModes))]

		if mode.keep {
			return gt, fullImage, false
		}

		w := minCropSize + (1-minCropSize)*rng.Float64()
		h := minCropSize + (1-minCropSize)*rng.Float64()

		if w/h < 0.5 || w/h > 2 {
			continue
		}

		left := rng.Float64() * (1 - w)
		top := rng.Float64() * (1 - h)

		win := box.Corner{
			Left:   float32(left),
			Top:    float32(top),
			Right:  float32(left + w),
			Bottom: float32(top + h),
		}

		if !withinIoU(gt, win, mode) {
			continue
		}

		if res := cropTo(gt, win); len(res) > 0 {
			return res, win, true
		}
	}

	return gt, fullImage, false
}

// pick returns a uniform index in [0,n)
func pick(rng Sampler, n int) int {

	i := int(rng.Float64() * float64(n))

	if i >= n {
		return n - 1
	}

	return i
}

// withinIoU reports whether every ground truth box overlaps win strictly
// between the mode bounds
func withinIoU(gt []postprocess.GroundTruth, win box.Corner, mode cropMode) bool {

	for _, g := range gt {
		iou := float64(box.IoU(g.Box, win))

		if !(iou > mode.minIoU && iou < mode.maxIoU) {
			return false
		}
	}

	return true
}

// cropTo keeps the ground truth centered strictly inside win, clips it to
// win and rescales it so win spans [0,1]
func cropTo(gt []postprocess.GroundTruth, win box.Corner) []postprocess.GroundTruth {

	w := win.Width()
	h := win.Height()

	var out []postprocess.GroundTruth

	for _, g := range gt {
		c := g.Box.Center()

		if !(c.CX > win.Left && c.CX < win.Right && c.CY > win.Top && c.CY < win.Bottom) {
			continue
		}

		b := box.Corner{
			Left:   max(g.Box.Left, win.Left),
			Top:    max(g.Box.Top, win.Top),
			Right:  min(g.Box.Right, win.Right),
			Bottom: min(g.Box.Bottom, win.Bottom),
		}

		out = append(out, postprocess.GroundTruth{
			Box: box.Corner{
				Left:   (b.Left - win.Left) / w,
				Top:    (b.Top - win.Top) / h,
				Right:  (b.Right - win.Left) / w,
				Bottom: (b.Bottom - win.Top) / h,
			},
			Label: g.Label,
		})
	}

	return out
}

// Flip mirrors the ground truth horizontally, a box spanning [l,r] spans
// [1-r,1-l] afterwards.  The input is not modified
func Flip(gt []postprocess.GroundTruth) []postprocess.GroundTruth {

	out := make([]postprocess.GroundTruth, len(gt))

	for i, g := range gt {
		out[i] = postprocess.GroundTruth{
			Box: box.Corner{
				Left:   1 - g.Box.Right,
				Top:    g.Box.Top,
				Right:  1 - g.Box.Left,
				Bottom: g.Box.Bottom,
			},
			Label: g.Label,
		}
	}

	return out
}

// RandomFlip flips the ground truth with probability p and reports whether
// it did, so the caller can mirror the image to match
func RandomFlip(gt []postprocess.GroundTruth, rng Sampler, p float64) (
	[]postprocess.GroundTruth, bool) {

	if rng.Float64() < p {
		return Flip(gt), true
	}

	return gt, false
}
