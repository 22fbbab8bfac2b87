package postprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/swdee/go-ssdlite"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestDecodeZeroOffsets(t *testing.T) {

	set := gridSet(t)
	dec := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)

	classes := 4
	out, err := dec.DecodeImage(make([]float32, set.Len()*4),
		make([]float32, set.Len()*classes), classes)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.NumClasses != classes || len(out.Probs) != set.Len()*classes {
		t.Fatalf("unexpected probability shape %d x %d", len(out.Probs), out.NumClasses)
	}

	for i := 0; i < set.Len(); i++ {
		if out.Boxes[i] != set.Corner(i) {
			t.Errorf("box %d expected default box %+v, got %+v", i, set.Corner(i), out.Boxes[i])
		}

		for c := 0; c < classes; c++ {
			if !almostEqual(out.Prob(i, c), 0.25, 1e-6) {
				t.Errorf("box %d class %d expected probability 0.25, got %f", i, c, out.Prob(i, c))
			}
		}
	}
}

func TestDecodeOffsets(t *testing.T) {

	set := gridSet(t)
	dec := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)

	loc := make([]float32, set.Len()*4)
	// shift box 0 by one anchor width and double its size
	loc[0] = 10
	loc[1] = -10
	loc[2] = float32(math.Log(2) / DefaultScaleWH)
	loc[3] = float32(math.Log(2) / DefaultScaleWH)

	out, err := dec.DecodeImage(loc, make([]float32, set.Len()*2), 2)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// anchor 0 is centered at 0.25 sized 0.5
	got := out.Boxes[0].Center()

	if !almostEqual(got.CX, 0.75, 1e-5) || !almostEqual(got.CY, -0.25, 1e-5) {
		t.Errorf("expected center (0.75,-0.25), got (%f,%f)", got.CX, got.CY)
	}

	if !almostEqual(got.W, 1, 1e-5) || !almostEqual(got.H, 1, 1e-5) {
		t.Errorf("expected size 1x1, got %fx%f", got.W, got.H)
	}
}

func TestDecodeSoftmax(t *testing.T) {

	set := gridSet(t)
	dec := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)

	scores := make([]float32, set.Len()*2)
	// anchor 1 logits [0, ln 3] give probabilities [0.25, 0.75]
	scores[3] = float32(math.Log(3))
	// large logits must not overflow
	scores[4] = 1000
	scores[5] = 1000

	out, err := dec.DecodeImage(make([]float32, set.Len()*4), scores, 2)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(out.Prob(1, 0), 0.25, 1e-6) || !almostEqual(out.Prob(1, 1), 0.75, 1e-6) {
		t.Errorf("expected [0.25 0.75], got [%f %f]", out.Prob(1, 0), out.Prob(1, 1))
	}

	if !almostEqual(out.Prob(2, 0), 0.5, 1e-6) || !almostEqual(out.Prob(2, 1), 0.5, 1e-6) {
		t.Errorf("expected [0.5 0.5], got [%f %f]", out.Prob(2, 0), out.Prob(2, 1))
	}

	for i := 0; i < set.Len(); i++ {
		row := make([]float64, 2)

		for c := range row {
			row[c] = float64(out.Prob(i, c))
		}

		if !scalar.EqualWithinAbs(floats.Sum(row), 1, 1e-6) {
			t.Errorf("anchor %d probabilities sum to %f", i, floats.Sum(row))
		}
	}
}

func TestDecodeChannelMajor(t *testing.T) {

	set := gridSet(t)
	anchors := set.Len()
	classes := 3

	loc := make([]float32, anchors*4)
	scores := make([]float32, anchors*classes)

	for i := range loc {
		loc[i] = float32(i%7) * 0.3
	}

	for i := range scores {
		scores[i] = float32(i%5) - 2
	}

	// transpose [anchors, values] into [values, anchors]
	transpose := func(buf []float32, n int) []float32 {
		out := make([]float32, len(buf))

		for i := 0; i < anchors; i++ {
			for v := 0; v < n; v++ {
				out[v*anchors+i] = buf[i*n+v]
			}
		}

		return out
	}

	nac := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)
	nca := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatChannelMajor)

	want, err := nac.DecodeImage(loc, scores, classes)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := nca.DecodeImage(transpose(loc, 4), transpose(scores, classes), classes)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < anchors; i++ {
		if got.Boxes[i] != want.Boxes[i] {
			t.Errorf("box %d expected %+v, got %+v", i, want.Boxes[i], got.Boxes[i])
		}
	}

	for i := range want.Probs {
		if got.Probs[i] != want.Probs[i] {
			t.Errorf("probability %d expected %f, got %f", i, want.Probs[i], got.Probs[i])
		}
	}
}

func TestDecodeNonFinite(t *testing.T) {

	set := gridSet(t)
	dec := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)

	inf := float32(math.Inf(1))
	nan := float32(math.NaN())

	loc := make([]float32, set.Len()*4)
	copy(loc[0:4], []float32{nan, inf, inf, 1e6})
	copy(loc[4:8], []float32{0, 0, nan, float32(math.Inf(-1))})

	scores := make([]float32, set.Len()*2)
	scores[0] = nan
	scores[2] = inf
	scores[5] = inf
	scores[6] = inf
	scores[7] = inf
	scores[8] = float32(math.Inf(-1))
	scores[9] = float32(math.Inf(-1))

	out, err := dec.DecodeImage(loc, scores, 2)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, b := range out.Boxes {
		if !b.IsFinite() {
			t.Errorf("box %d is not finite: %+v", i, b)
		}
	}

	// overflowing offsets keep the anchor center and collapse the size
	a := set.Center(0)
	c := out.Boxes[0].Center()

	if c.CX != a.CX || c.CY != a.CY || c.W != 0 || c.H != 0 {
		t.Errorf("expected empty box at anchor center, got %+v", c)
	}

	if out.Boxes[1].Area() != 0 {
		t.Errorf("expected box 1 to be empty, got %+v", out.Boxes[1])
	}

	for i, p := range out.Probs {
		if !isFinite(p) {
			t.Errorf("probability %d is not finite", i)
		}
	}

	tests := []struct {
		name   string
		anchor int
		want   [2]float32
	}{
		{"nan logit", 0, [2]float32{0, 0}},
		{"infinite background", 1, [2]float32{1, 0}},
		{"infinite object", 2, [2]float32{0, 1}},
		{"infinite tie", 3, [2]float32{0.5, 0.5}},
		{"all negative infinity", 4, [2]float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := [2]float32{out.Prob(tt.anchor, 0), out.Prob(tt.anchor, 1)}

			if got != tt.want {
				t.Errorf("anchor %d expected %v, got %v", tt.anchor, tt.want, got)
			}
		})
	}
}

func TestDecodeShapeErrors(t *testing.T) {

	set := gridSet(t)
	dec := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)
	n := set.Len()

	tests := []struct {
		name    string
		loc     []float32
		scores  []float32
		classes int
	}{
		{"short locations", make([]float32, n*4-1), make([]float32, n*2), 2},
		{"long scores", make([]float32, n*4), make([]float32, n*2+1), 2},
		{"no object classes", make([]float32, n*4), make([]float32, n), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.DecodeImage(tt.loc, tt.scores, tt.classes)

			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("expected ErrShapeMismatch, got %v", err)
			}
		})
	}
}

func TestDecodeBatch(t *testing.T) {

	set := gridSet(t)
	dec := NewDecoder(set, DefaultScaleXY, DefaultScaleWH, ssdlite.FormatAnchorMajor)
	n := set.Len()

	locs := make([][]float32, 4)
	scores := make([][]float32, 4)

	for b := range locs {
		locs[b] = make([]float32, n*4)
		scores[b] = make([]float32, n*2)
		// image b favours class 1 on anchor b
		scores[b][b*2+1] = 5
	}

	out, err := dec.DecodeBatch(locs, scores, 2)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 4 {
		t.Fatalf("expected 4 results, got %d", len(out))
	}

	for b, d := range out {
		if d.Prob(b, 1) < 0.99 {
			t.Errorf("image %d expected anchor %d to favour class 1, got %f", b, b, d.Prob(b, 1))
		}
	}

	scores[2] = scores[2][:1]

	if _, err := dec.DecodeBatch(locs, scores, 2); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for bad image, got %v", err)
	}

	if _, err := dec.DecodeBatch(locs, scores[:2], 2); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for mismatched batch, got %v", err)
	}
}
