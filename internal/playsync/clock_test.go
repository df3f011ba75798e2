package playsync

import (
	"math"
	"testing"
)

func TestEstimatePositionPausedIsExact(t *testing.T) {
	s := Snapshot{Position: 42.0, Playing: false, Rate: 1.0, CapturedAtMs: 1_000_000}

	got := EstimatePosition(s, 1_005_000)
	if got != 42.0 {
		t.Fatalf("EstimatePosition() = %v, want exactly 42.0", got)
	}
}

func TestEstimatePositionPlayingCompensatesDelay(t *testing.T) {
	s := Snapshot{Position: 10.0, Playing: true, Rate: 1.0, CapturedAtMs: 1_000_000}

	got := EstimatePosition(s, 1_002_000)
	if math.Abs(got-12.0) > 1e-9 {
		t.Fatalf("EstimatePosition() = %v, want 12.0", got)
	}
}

func TestEstimatePositionClampsClockSkew(t *testing.T) {
	// Sender clock ahead of ours: the estimate must not rewind.
	s := Snapshot{Position: 30.0, Playing: true, Rate: 1.0, CapturedAtMs: 1_000_000}

	got := EstimatePosition(s, 999_000)
	if got != 30.0 {
		t.Fatalf("EstimatePosition() = %v, want 30.0", got)
	}
}
