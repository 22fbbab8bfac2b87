package dboxes

import (
	"errors"
	"fmt"
	"math"

	"github.com/swdee/go-ssdlite/box"
)

// ErrInvalidConfig is returned when a Config can not describe a default box
// set
var ErrInvalidConfig = errors.New("invalid default box config")

// Config defines the feature map geometry and per layer scale and aspect
// ratio settings the default boxes are generated from
type Config struct {
	// ImageSize is the pixel width and height of the square input image
	ImageSize int `yaml:"image_size"`
	// FeatureMapSizes are the number of cells per side of each detection
	// layer's feature map
	FeatureMapSizes []int `yaml:"feature_map_sizes"`
	// StepSizes are the stride in pixels of each detection layer
	StepSizes []int `yaml:"step_sizes"`
	// Scales are the box size anchor points in pixels, one more than the
	// number of detection layers
	Scales []float64 `yaml:"scales"`
	// AspectRatios are the extra aspect ratios for each detection layer.  Each
	// ratio adds two box variants, the ratio and its transpose
	AspectRatios [][]float64 `yaml:"aspect_ratios"`
}

// SSD300COCO returns the Config for the SSD300 model trained on the COCO
// dataset featuring:
// - Image Size: 300
// - Feature Maps: 38, 19, 10, 5, 3, 1
// - Steps: 8, 16, 32, 64, 100, 300
// - Scales: 21, 45, 99, 153, 207, 261, 315
// - Aspect Ratios: [2], [2,3], [2,3], [2,3], [2], [2]
//
// Which produces 8732 default boxes
func SSD300COCO() Config {
	return Config{
		ImageSize:       300,
		FeatureMapSizes: []int{38, 19, 10, 5, 3, 1},
		StepSizes:       []int{8, 16, 32, 64, 100, 300},
		Scales:          []float64{21, 45, 99, 153, 207, 261, 315},
		AspectRatios: [][]float64{
			{2},
			{2, 3},
			{2, 3},
			{2, 3},
			{2},
			{2},
		},
	}
}

// SSD300VOC returns the Config for the SSD300 model trained on the Pascal VOC
// dataset.  It shares the COCO feature maps and aspect ratios and differs in
// the Scales: 30, 60, 111, 162, 213, 264, 315
func SSD300VOC() Config {
	c := SSD300COCO()
	c.Scales = []float64{30, 60, 111, 162, 213, 264, 315}
	return c
}

// Validate checks the Config is self consistent
func (c Config) Validate() error {

	layers := len(c.FeatureMapSizes)

	if c.ImageSize <= 0 {
		return fmt.Errorf("%w: image size %d must be positive", ErrInvalidConfig, c.ImageSize)
	}

	if layers == 0 {
		return fmt.Errorf("%w: no feature maps", ErrInvalidConfig)
	}

	if len(c.StepSizes) != layers {
		return fmt.Errorf("%w: %d step sizes for %d feature maps",
			ErrInvalidConfig, len(c.StepSizes), layers)
	}

	if len(c.AspectRatios) != layers {
		return fmt.Errorf("%w: %d aspect ratio lists for %d feature maps",
			ErrInvalidConfig, len(c.AspectRatios), layers)
	}

	if len(c.Scales) != layers+1 {
		return fmt.Errorf("%w: %d scales for %d feature maps, want %d",
			ErrInvalidConfig, len(c.Scales), layers, layers+1)
	}

	for k := 0; k < layers; k++ {
		if c.FeatureMapSizes[k] <= 0 {
			return fmt.Errorf("%w: feature map %d has size %d",
				ErrInvalidConfig, k, c.FeatureMapSizes[k])
		}

		if c.StepSizes[k] <= 0 {
			return fmt.Errorf("%w: feature map %d has step %d",
				ErrInvalidConfig, k, c.StepSizes[k])
		}

		for _, a := range c.AspectRatios[k] {
			if !(a > 0) || math.IsInf(a, 0) {
				return fmt.Errorf("%w: feature map %d has aspect ratio %v",
					ErrInvalidConfig, k, a)
			}
		}
	}

	for k, s := range c.Scales {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: scale %d is %v", ErrInvalidConfig, k, s)
		}
	}

	return nil
}

// NumBoxes returns the number of default boxes the Config generates.  The
// Config is assumed to be valid
func (c Config) NumBoxes() int {

	n := 0

	for k, f := range c.FeatureMapSizes {
		n += f * f * (2 + 2*len(c.AspectRatios[k]))
	}

	return n
}

// Layer describes the run of default boxes belonging to a single feature map
type Layer struct {
	// Offset is the index of the first default box of the layer
	Offset int
	// Count is the number of default boxes in the layer
	Count int
	// FeatureMapSize is the number of cells per side of the feature map
	FeatureMapSize int
	// Variants is the number of box shapes emitted for every cell
	Variants int
}

// Set is an immutable, ordered set of default boxes.  It is safe for
// concurrent use
type Set struct {
	center []box.Center
	corner []box.Corner
	layers []Layer
}

// Generate builds the default box set for the given Config.
//
// Boxes are emitted per layer in (variant, row, column) order, all cells for
// the first box shape then all cells for the next.  The network's output
// channels must follow the same order
func Generate(cfg Config) (*Set, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	total := cfg.NumBoxes()

	s := &Set{
		center: make([]box.Center, 0, total),
		corner: make([]box.Corner, 0, total),
		layers: make([]Layer, 0, len(cfg.FeatureMapSizes)),
	}

	imageSize := float64(cfg.ImageSize)

	for k, fsize := range cfg.FeatureMapSizes {

		fk := imageSize / float64(cfg.StepSizes[k])

		sk1 := cfg.Scales[k] / imageSize
		sk2 := cfg.Scales[k+1] / imageSize
		sk3 := math.Sqrt(sk1 * sk2)

		sizes := [][2]float64{{sk1, sk1}, {sk3, sk3}}

		for _, alpha := range cfg.AspectRatios[k] {
			w, h := sk1*math.Sqrt(alpha), sk1/math.Sqrt(alpha)
			sizes = append(sizes, [2]float64{w, h}, [2]float64{h, w})
		}

		layer := Layer{
			Offset:         len(s.center),
			FeatureMapSize: fsize,
			Variants:       len(sizes),
		}

		for _, wh := range sizes {
			for i := 0; i < fsize; i++ {
				for j := 0; j < fsize; j++ {

					c := box.Center{
						CX: float32((float64(j) + 0.5) / fk),
						CY: float32((float64(i) + 0.5) / fk),
						W:  float32(wh[0]),
						H:  float32(wh[1]),
					}.Clamp()

					s.center = append(s.center, c)
					s.corner = append(s.corner, c.Corner())
				}
			}
		}

		layer.Count = len(s.center) - layer.Offset
		s.layers = append(s.layers, layer)
	}

	return s, nil
}

// Len returns the number of default boxes
func (s *Set) Len() int {
	return len(s.center)
}

// Center returns default box i in center form
func (s *Set) Center(i int) box.Center {
	return s.center[i]
}

// Corner returns default box i in corner form
func (s *Set) Corner(i int) box.Corner {
	return s.corner[i]
}

// Layers returns the per feature map layout of the set
func (s *Set) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}
