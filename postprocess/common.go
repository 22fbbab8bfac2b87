package postprocess

import (
	"math"
)

// minBoxSize is the smallest width or height used when taking the log of a
// box size ratio
const minBoxSize = 1e-6

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// safeLog returns the natural log of v, with v raised to minBoxSize so that
// empty boxes produce a large negative but finite value
func safeLog(v float32) float32 {
	return float32(math.Log(math.Max(float64(v), minBoxSize)))
}
