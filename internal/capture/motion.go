package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// MotionConfig configures the motion gate.
type MotionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Threshold is the percentage of pixels that must change between two
	// frames to count as motion.
	Threshold float64 `yaml:"threshold"`
}

// DefaultMotionConfig leaves the gate off: inference runs on every frame.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{Enabled: false, Threshold: 0.5}
}

const (
	blurSize      = 21
	diffThreshold = 25
)

// MotionGate compares each frame with the previous one by blurred grayscale
// differencing. When nothing moved the previous landmark result can be
// reused instead of running inference again.
//
// Not safe for concurrent use.
type MotionGate struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionGate creates a gate. Thresholds <= 0 fall back to the default.
func NewMotionGate(threshold float64) *MotionGate {
	if threshold <= 0 {
		threshold = DefaultMotionConfig().Threshold
	}
	return &MotionGate{threshold: threshold, prev: gocv.NewMat()}
}

// Moved reports whether frame differs from the previous frame by more than
// the threshold, and the changed percentage. The first frame after creation
// or Reset always counts as motion so that it gets analyzed.
func (m *MotionGate) Moved(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurSize, Y: blurSize}, 0, 0, gocv.BorderDefault)

	if !m.primed || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		m.swap(blurred)
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	changed := float64(gocv.CountNonZero(thresh)) / float64(total) * 100

	m.swap(blurred)
	return changed > m.threshold, changed
}

func (m *MotionGate) swap(next gocv.Mat) {
	m.prev.Close()
	m.prev = next
	m.primed = true
}

// Reset forgets the previous frame.
func (m *MotionGate) Reset() {
	m.prev.Close()
	m.prev = gocv.NewMat()
	m.primed = false
}

// Close releases the stored frame.
func (m *MotionGate) Close() {
	m.Reset()
}
