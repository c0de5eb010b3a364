package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back a fixed set of frames. Without a frame set it
// synthesizes blank frames, which is all the mock detector needs.
type MockCamera struct {
	mu      sync.Mutex
	frames  []*gocv.Mat
	index   int
	limit   int
	served  int
	loop    bool
	running bool
	width   int
	height  int
	fps     int
}

// NewMockCamera replays frames, starting over at the end when loop is set.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		width:  DefaultWidth,
		height: DefaultHeight,
		fps:    DefaultFPS,
	}
}

// NewBlankCamera serves n blank frames of the given size, then reports
// ErrFrameUnavailable. A negative n never runs out.
func NewBlankCamera(width, height, n int) *MockCamera {
	return &MockCamera{
		limit:  n,
		width:  width,
		height: height,
		fps:    DefaultFPS,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	c.served = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.frames == nil {
		if c.limit >= 0 && c.served >= c.limit {
			return nil, fmt.Errorf("blank camera exhausted: %w", ErrFrameUnavailable)
		}
		c.served++
		mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), c.height, c.width, gocv.MatTypeCV8UC3)
		return &mat, nil
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames: %w", ErrFrameUnavailable)
	}
	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, fmt.Errorf("no more frames: %w", ErrFrameUnavailable)
		}
		c.index = 0
	}

	// Clone so the caller may close it.
	frame := c.frames[c.index].Clone()
	c.index++
	c.served++
	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *MockCamera) Size() (int, int) {
	return c.width, c.height
}

// Served returns how many frames have been read since Open.
func (c *MockCamera) Served() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.served
}

// SetFrames replaces the frame sequence.
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}
