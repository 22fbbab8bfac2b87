package postprocess

import (
	"testing"

	"github.com/swdee/go-ssdlite/box"
)

// newDecoded returns a Decoded of the given boxes where every probability is
// zero until set
func newDecoded(boxes []box.Corner, classes int) Decoded {
	return Decoded{
		Boxes:      boxes,
		Probs:      make([]float32, len(boxes)*classes),
		NumClasses: classes,
	}
}

func (d Decoded) set(anchor, class int, p float32) {
	d.Probs[anchor*d.NumClasses+class] = p
}

func TestSelectNMSSuppresses(t *testing.T) {

	d := newDecoded([]box.Corner{
		{Left: 0, Top: 0, Right: 0.5, Bottom: 0.5},
		{Left: 0.02, Top: 0.02, Right: 0.52, Bottom: 0.52},
		{Left: 0.5, Top: 0.5, Right: 1, Bottom: 1},
		{Left: 0.01, Top: 0, Right: 0.51, Bottom: 0.5},
	}, 2)

	d.set(0, 1, 0.7)
	d.set(1, 1, 0.9)
	d.set(2, 1, 0.6)
	d.set(3, 1, 0.8)

	dets := SelectNMS(d, DefaultNMSParams())

	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d: %+v", len(dets), dets)
	}

	if dets[0].Anchor != 1 || dets[0].Score != 0.9 {
		t.Errorf("expected anchor 1 first, got %+v", dets[0])
	}

	if dets[1].Anchor != 2 || dets[1].Score != 0.6 {
		t.Errorf("expected anchor 2 second, got %+v", dets[1])
	}

	for i := range dets {
		for j := i + 1; j < len(dets); j++ {
			if dets[i].Class == dets[j].Class &&
				box.IoU(dets[i].Box, dets[j].Box) >= DefaultNMSParams().IoUThreshold {
				t.Errorf("detections %d and %d overlap above the threshold", i, j)
			}
		}
	}
}

func TestSelectNMSThresholds(t *testing.T) {

	// IoU of the two boxes is exactly 0.5
	d := newDecoded([]box.Corner{
		{Left: 0, Top: 0, Right: 0.5, Bottom: 0.5},
		{Left: 0, Top: 0, Right: 0.5, Bottom: 0.25},
	}, 2)

	d.set(0, 1, 0.9)
	d.set(1, 1, 0.5)

	tests := []struct {
		name   string
		params NMSParams
		want   int
	}{
		{"overlap equal to threshold is suppressed", NMSParams{ScoreThreshold: 0.1, IoUThreshold: 0.5}, 1},
		{"overlap below threshold is kept", NMSParams{ScoreThreshold: 0.1, IoUThreshold: 0.51}, 2},
		{"score equal to threshold is dropped", NMSParams{ScoreThreshold: 0.5, IoUThreshold: 0.9}, 1},
		{"score above threshold is kept", NMSParams{ScoreThreshold: 0.49, IoUThreshold: 0.9}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets := SelectNMS(d, tt.params)

			if len(dets) != tt.want {
				t.Errorf("expected %d detections, got %d: %+v", tt.want, len(dets), dets)
			}
		})
	}
}

func TestSelectNMSPerClass(t *testing.T) {

	d := newDecoded([]box.Corner{
		{Left: 0.1, Top: 0.1, Right: 0.4, Bottom: 0.4},
	}, 3)

	// the background never produces a detection
	d.set(0, 0, 0.95)
	d.set(0, 1, 0.6)
	d.set(0, 2, 0.3)

	dets := SelectNMS(d, DefaultNMSParams())

	if len(dets) != 2 {
		t.Fatalf("expected one detection per object class, got %d: %+v", len(dets), dets)
	}

	if dets[0].Class != 1 || dets[1].Class != 2 {
		t.Errorf("expected classes [1 2], got [%d %d]", dets[0].Class, dets[1].Class)
	}
}

func TestSelectNMSCaps(t *testing.T) {

	// disjoint boxes along the diagonal so nothing is suppressed
	boxes := make([]box.Corner, 10)

	for i := range boxes {
		v := float32(i) * 0.1
		boxes[i] = box.Corner{Left: v, Top: v, Right: v + 0.05, Bottom: v + 0.05}
	}

	d := newDecoded(boxes, 3)

	for i := range boxes {
		d.set(i, 1, 0.1+float32(i)*0.05)
		d.set(i, 2, 0.12+float32(i)*0.05)
	}

	t.Run("per class", func(t *testing.T) {
		dets := SelectNMS(d, NMSParams{ScoreThreshold: 0.05, IoUThreshold: 0.5, MaxPerClass: 3})

		if len(dets) != 6 {
			t.Fatalf("expected 6 detections, got %d", len(dets))
		}

		for _, det := range dets {
			if det.Anchor < 7 {
				t.Errorf("expected only the 3 highest scoring anchors, got anchor %d", det.Anchor)
			}
		}
	})

	t.Run("total", func(t *testing.T) {
		dets := SelectNMS(d, NMSParams{ScoreThreshold: 0.05, IoUThreshold: 0.5, MaxTotal: 4})

		if len(dets) != 4 {
			t.Fatalf("expected 4 detections, got %d", len(dets))
		}

		for i := 1; i < len(dets); i++ {
			if dets[i].Score > dets[i-1].Score {
				t.Errorf("detections not in descending score order at %d", i)
			}
		}

		if dets[0].Class != 2 || dets[0].Anchor != 9 {
			t.Errorf("expected class 2 anchor 9 first, got %+v", dets[0])
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		dets := SelectNMS(d, NMSParams{ScoreThreshold: 0.05, IoUThreshold: 0.5})

		if len(dets) != 20 {
			t.Errorf("expected 20 detections, got %d", len(dets))
		}
	})
}

func TestSelectNMSEqualScores(t *testing.T) {

	d := newDecoded([]box.Corner{
		{Left: 0, Top: 0, Right: 0.5, Bottom: 0.5},
		{Left: 0.01, Top: 0.01, Right: 0.5, Bottom: 0.5},
	}, 2)

	d.set(0, 1, 0.8)
	d.set(1, 1, 0.8)

	for i := 0; i < 10; i++ {
		dets := SelectNMS(d, DefaultNMSParams())

		if len(dets) != 1 || dets[0].Anchor != 1 {
			t.Fatalf("expected the later anchor to be kept, got %+v", dets)
		}
	}
}

func TestSelectNMSDegenerate(t *testing.T) {

	d := newDecoded([]box.Corner{
		{Left: 0.3, Top: 0.3, Right: 0.3, Bottom: 0.3},
		{Left: 0.3, Top: 0.3, Right: 0.3, Bottom: 0.3},
	}, 2)

	d.set(0, 1, 0.8)
	d.set(1, 1, 0.7)

	// empty boxes overlap nothing, both are kept and the loop ends
	dets := SelectNMS(d, DefaultNMSParams())

	if len(dets) != 2 {
		t.Errorf("expected 2 detections, got %d", len(dets))
	}
}

func TestSelectNMSEmpty(t *testing.T) {

	d := newDecoded([]box.Corner{
		{Left: 0, Top: 0, Right: 0.5, Bottom: 0.5},
	}, 2)

	d.set(0, 0, 0.99)
	d.set(0, 1, 0.01)

	dets := SelectNMS(d, DefaultNMSParams())

	if dets == nil || len(dets) != 0 {
		t.Errorf("expected an empty non nil result, got %#v", dets)
	}
}

func TestSelectNMSIdenticalBoxes(t *testing.T) {

	b := box.Corner{Left: 0.2, Top: 0.2, Right: 0.6, Bottom: 0.7}
	d := newDecoded([]box.Corner{b, b}, 2)

	d.set(0, 1, 0.8)
	d.set(1, 1, 0.9)

	dets := SelectNMS(d, DefaultNMSParams())

	if len(dets) != 1 || dets[0].Score != 0.9 || dets[0].Anchor != 1 {
		t.Errorf("expected only the 0.9 box, got %+v", dets)
	}
}

func TestSelectNMSGlobalTop(t *testing.T) {

	boxes := make([]box.Corner, 5)

	for i := range boxes {
		v := float32(i) * 0.2
		boxes[i] = box.Corner{Left: v, Top: v, Right: v + 0.1, Bottom: v + 0.1}
	}

	d := newDecoded(boxes, 4)

	d.set(0, 1, 0.3)
	d.set(1, 2, 0.9)
	d.set(2, 3, 0.5)
	d.set(3, 1, 0.7)
	d.set(4, 2, 0.6)

	dets := SelectNMS(d, NMSParams{ScoreThreshold: 0.05, IoUThreshold: 0.45, MaxTotal: 1})

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}

	if dets[0].Score != 0.9 || dets[0].Class != 2 || dets[0].Anchor != 1 {
		t.Errorf("expected the 0.9 class 2 detection, got %+v", dets[0])
	}
}
