package detector

import (
	"errors"
	"strings"
	"testing"
)

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{OpenHand(HandLeft), Fist(HandRight)})

		for i := 0; i < 3; i++ {
			hands, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(hands) != 2 {
				t.Errorf("call %d: expected 2 hands, got %d", i, len(hands))
			}
		}
		if mock.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", mock.Calls())
		}
	})

	t.Run("plays a sequence then reports no hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetSequence([][]HandLandmarks{
			{OpenHand(HandLeft)},
			nil,
			{OpenHand(HandLeft), OpenHand(HandRight)},
		})

		wantCounts := []int{1, 0, 2, 0, 0}
		for i, want := range wantCounts {
			hands, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(hands) != want {
				t.Errorf("call %d: got %d hands, want %d", i, len(hands), want)
			}
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestOpenHand(t *testing.T) {
	for _, side := range []string{HandLeft, HandRight} {
		t.Run(side, func(t *testing.T) {
			h := OpenHand(side)
			if h.Handedness != side {
				t.Errorf("handedness = %q, want %q", h.Handedness, side)
			}
			for _, chain := range fingerChains {
				if h.Points[chain[3]].Y >= h.Points[chain[1]].Y {
					t.Errorf("tip %d should be above its PIP joint", chain[3])
				}
				if h.Points[chain[3]].Y >= h.Points[chain[0]].Y {
					t.Errorf("tip %d should be above its MCP joint", chain[3])
				}
			}
		})
	}

	t.Run("hands occupy their own half of the frame", func(t *testing.T) {
		if OpenHand(HandLeft).Points[Wrist].X >= 0.5 {
			t.Error("left hand wrist should be on the left half")
		}
		if OpenHand(HandRight).Points[Wrist].X <= 0.5 {
			t.Error("right hand wrist should be on the right half")
		}
	})
}

func TestFold(t *testing.T) {
	t.Run("long finger tip drops below PIP and MCP", func(t *testing.T) {
		h := OpenHand(HandRight).Fold(MiddleTip)
		if h.Points[MiddleTip].Y <= h.Points[MiddlePIP].Y {
			t.Error("folded middle tip should be below its PIP joint")
		}
		if h.Points[MiddleTip].Y <= h.Points[MiddleMCP].Y {
			t.Error("folded middle tip should be below its MCP joint")
		}
		if h.Points[IndexTip].Y >= h.Points[IndexPIP].Y {
			t.Error("index finger should stay extended")
		}
	})

	t.Run("thumb crosses its MCP joint", func(t *testing.T) {
		left := OpenHand(HandLeft)
		if left.Points[ThumbTip].X <= left.Points[ThumbMCP].X {
			t.Fatal("open left thumb should point right of its MCP joint")
		}
		if folded := left.Fold(ThumbTip); folded.Points[ThumbTip].X >= folded.Points[ThumbMCP].X {
			t.Error("folded left thumb should cross to the left of its MCP joint")
		}

		right := OpenHand(HandRight)
		if right.Points[ThumbTip].X >= right.Points[ThumbMCP].X {
			t.Fatal("open right thumb should point left of its MCP joint")
		}
		if folded := right.Fold(ThumbTip); folded.Points[ThumbTip].X <= folded.Points[ThumbMCP].X {
			t.Error("folded right thumb should cross to the right of its MCP joint")
		}
	})

	t.Run("fold does not modify the receiver", func(t *testing.T) {
		h := OpenHand(HandLeft)
		before := h.Points[IndexTip]
		_ = h.Fold(IndexTip)
		if h.Points[IndexTip] != before {
			t.Error("Fold mutated the original hand")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	point := `{"x":0.1,"y":0.2,"z":0}`
	points := "[" + strings.TrimSuffix(strings.Repeat(point+",", NumLandmarks), ",") + "]"
	short := "[" + point + "]"

	tests := []struct {
		name     string
		line     string
		maxHands int
		want     int
		wantErr  bool
	}{
		{name: "no hands", line: `{"hands":[]}`, want: 0},
		{name: "two hands", line: `{"hands":[{"points":` + points + `,"handedness":"Left","score":0.9},{"points":` + points + `,"handedness":"Right","score":0.8}]}`, want: 2},
		{name: "max hands caps result", line: `{"hands":[{"points":` + points + `},{"points":` + points + `}]}`, maxHands: 1, want: 1},
		{name: "short hand dropped", line: `{"hands":[{"points":` + short + `}]}`, want: 0},
		{name: "service error", line: `{"error":"model not loaded"}`, wantErr: true},
		{name: "invalid json", line: `{hands`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands, err := decodeResponse([]byte(tt.line), tt.maxHands)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(hands) != tt.want {
				t.Errorf("got %d hands, want %d", len(hands), tt.want)
			}
		})
	}

	t.Run("labels and points are preserved", func(t *testing.T) {
		line := `{"hands":[{"points":` + points + `,"handedness":"Right","score":0.75}]}`
		hands, err := decodeResponse([]byte(line), 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hands[0].Handedness != HandRight || hands[0].Score != 0.75 {
			t.Errorf("got %q/%f, want Right/0.75", hands[0].Handedness, hands[0].Score)
		}
		if hands[0].Points[PinkyTip].Y != 0.2 {
			t.Errorf("pinky tip Y = %f, want 0.2", hands[0].Points[PinkyTip].Y)
		}
	})
}

func TestPoint3D_Pixel(t *testing.T) {
	x, y := Point3D{X: 0.5, Y: 0.25}.Pixel(640, 480)
	if x != 320 || y != 120 {
		t.Errorf("Pixel() = (%d, %d), want (320, 120)", x, y)
	}
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	_, err := NewMediaPipeDetector(Config{Script: "/nonexistent/" + ServiceScript})
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}
