package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns either a fixed set of hands or a scripted sequence, one entry
// per Detect call.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.sequence = nil
}

// SetSequence scripts the results of consecutive Detect calls. Once the
// sequence is exhausted Detect reports no hands.
func (m *MockDetector) SetSequence(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
	m.hands = nil
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.sequence != nil {
		if len(m.sequence) == 0 {
			return nil, nil
		}
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// fingerChains lists MCP, PIP, DIP and tip indices of the four long fingers.
var fingerChains = [4][4]int{
	{IndexMCP, IndexPIP, IndexDIP, IndexTip},
	{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
	{RingMCP, RingPIP, RingDIP, RingTip},
	{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
}

// OpenHand returns an upright open hand with every finger extended.
// Left hands sit on the left half of the frame, right hands on the right half;
// the thumb points away from the palm.
func OpenHand(handedness string) HandLandmarks {
	h := HandLandmarks{
		Handedness: handedness,
		Score:      0.95,
	}

	cx := 0.3
	thumbDir := 1.0
	if handedness == HandRight {
		cx = 0.7
		thumbDir = -1.0
	}

	h.Points[Wrist] = Point3D{X: cx, Y: 0.85}

	h.Points[ThumbCMC] = Point3D{X: cx + thumbDir*0.05, Y: 0.80}
	h.Points[ThumbMCP] = Point3D{X: cx + thumbDir*0.09, Y: 0.74}
	h.Points[ThumbIP] = Point3D{X: cx + thumbDir*0.13, Y: 0.69}
	h.Points[ThumbTip] = Point3D{X: cx + thumbDir*0.17, Y: 0.65}

	for i, chain := range fingerChains {
		x := cx + thumbDir*(0.04-float64(i)*0.03)
		h.Points[chain[0]] = Point3D{X: x, Y: 0.62}
		h.Points[chain[1]] = Point3D{X: x, Y: 0.50}
		h.Points[chain[2]] = Point3D{X: x, Y: 0.42}
		h.Points[chain[3]] = Point3D{X: x, Y: 0.35}
	}

	return h
}

// Fist returns a hand with the four long fingers curled and the thumb open.
func Fist(handedness string) HandLandmarks {
	return OpenHand(handedness).Fold(IndexTip, MiddleTip, RingTip, PinkyTip)
}

// Fold returns a copy of the hand with the fingers identified by their tip
// landmark folded down. A folded long finger has its tip below both PIP and
// MCP joints; a folded thumb crosses over its MCP joint toward the palm.
func (h HandLandmarks) Fold(tips ...int) HandLandmarks {
	out := h
	for _, tip := range tips {
		if tip == ThumbTip {
			mcp := out.Points[ThumbMCP]
			dir := -1.0
			if out.Handedness == HandRight {
				dir = 1.0
			}
			out.Points[ThumbIP] = Point3D{X: mcp.X + dir*0.02, Y: mcp.Y - 0.02}
			out.Points[ThumbTip] = Point3D{X: mcp.X + dir*0.05, Y: mcp.Y}
			continue
		}
		for _, chain := range fingerChains {
			if chain[3] != tip {
				continue
			}
			mcp := out.Points[chain[0]]
			pip := out.Points[chain[1]]
			out.Points[chain[2]] = Point3D{X: pip.X, Y: pip.Y + 0.08}
			out.Points[chain[3]] = Point3D{X: mcp.X, Y: mcp.Y + 0.04}
		}
	}
	return out
}

// Unlabeled returns a copy of the hand without a handedness label, as some
// detector builds report.
func (h HandLandmarks) Unlabeled() HandLandmarks {
	h.Handedness = ""
	return h
}
