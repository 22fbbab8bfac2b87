package preprocess

import (
	"errors"
	"fmt"

	"github.com/swdee/go-ssdlite/box"
	"github.com/swdee/go-ssdlite/postprocess/result"
)

// ErrInvalidSize is returned when a source or destination dimension is not
// positive
var ErrInvalidSize = errors.New("invalid image size")

// Letterbox holds the geometry of scaling a source image into the model
// input while keeping its aspect ratio, with the unused area padded
type Letterbox struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width of the model input
	destWidth int
	// destHeight is the height of the model input
	destHeight int
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewLetterbox returns the letterbox geometry for fitting a source image of
// srcWidth x srcHeight into a model input of destWidth x destHeight
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) (*Letterbox, error) {

	if srcWidth <= 0 || srcHeight <= 0 || destWidth <= 0 || destHeight <= 0 {
		return nil, fmt.Errorf("%w: source %dx%d, destination %dx%d",
			ErrInvalidSize, srcWidth, srcHeight, destWidth, destHeight)
	}

	l := &Letterbox{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
	}

	l.preCalc()

	return l, nil
}

// preCalc the scaling factors for source and destination
func (l *Letterbox) preCalc() {

	l.resizeW = l.destWidth
	l.resizeH = l.destHeight

	scaleW := float32(l.destWidth) / float32(l.srcWidth)
	scaleH := float32(l.destHeight) / float32(l.srcHeight)
	l.scale = scaleH

	if scaleW < scaleH {
		l.scale = scaleW
		l.resizeH = int(float32(l.srcHeight) * l.scale)
	} else {
		l.resizeW = int(float32(l.srcWidth) * l.scale)
	}

	l.yPad = (l.destHeight - l.resizeH) / 2 // padding height / 2
	l.xPad = (l.destWidth - l.resizeW) / 2  // padding width / 2
}

// ToSource maps a box normalized to the model input onto pixel coordinates
// of the source image, clamped to the source image bounds
func (l *Letterbox) ToSource(b box.Corner) result.BoxRect {

	x1 := b.Left*float32(l.destWidth) - float32(l.xPad)
	y1 := b.Top*float32(l.destHeight) - float32(l.yPad)
	x2 := b.Right*float32(l.destWidth) - float32(l.xPad)
	y2 := b.Bottom*float32(l.destHeight) - float32(l.yPad)

	return result.BoxRect{
		Left:   l.toSrc(x1, l.resizeW, l.srcWidth),
		Top:    l.toSrc(y1, l.resizeH, l.srcHeight),
		Right:  l.toSrc(x2, l.resizeW, l.srcWidth),
		Bottom: l.toSrc(y2, l.resizeH, l.srcHeight),
	}
}

// toSrc clamps a model pixel coordinate to the resized image area and scales
// it back to the source image
func (l *Letterbox) toSrc(v float32, resized, src int) int {

	px := int(clamp(v, 0, float32(resized)) / l.scale)

	if px > src {
		return src
	}

	return px
}

// ScaleFactor returns the scale factor used in letterbox resize
func (l *Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the x padding used in letterbox resize
func (l *Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the y padding used in letterbox resize
func (l *Letterbox) YPad() int {
	return l.yPad
}

// SrcWidth returns the width of the source image
func (l *Letterbox) SrcWidth() int {
	return l.srcWidth
}

// SrcHeight returns the height of the source image
func (l *Letterbox) SrcHeight() int {
	return l.srcHeight
}

// clamp restricts val to be within the range min and max, NaN maps to min
func clamp(val, min, max float32) float32 {

	if !(val > min) {
		return min
	}

	if val > max {
		return max
	}

	return val
}
