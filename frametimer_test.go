package shaderflow

import (
	"math"
	"testing"
)

func TestFrameTimerStats(t *testing.T) {
	s := NewScene(WithFramerate(10))
	timer := NewFrameTimer()
	if err := s.Add("timer", timer); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	pipe := NewPipeline()
	deltas := []float64{0.010, 0.020, 0.010, 0.040, 0.020}
	for _, dt := range deltas {
		if err := s.step(dt, pipe); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	if got := timer.FrametimeMin(); got != 0.010 {
		t.Errorf("FrametimeMin = %v, want 0.010", got)
	}
	if got := timer.FrametimeMax(); got != 0.040 {
		t.Errorf("FrametimeMax = %v, want 0.040", got)
	}
	wantAvg := (0.010 + 0.020 + 0.010 + 0.040 + 0.020) / 5
	if got := timer.FrametimeAverage(100); math.Abs(got-wantAvg) > 1e-12 {
		t.Errorf("FrametimeAverage(100) = %v, want %v", got, wantAvg)
	}
	// The worst 40% are the two slowest frames.
	if got := timer.FrametimeAverage(40); math.Abs(got-0.030) > 1e-12 {
		t.Errorf("FrametimeAverage(40) = %v, want 0.030", got)
	}
	if got := timer.FramerateMin(); math.Abs(got-25) > 1e-9 {
		t.Errorf("FramerateMin = %v, want 25", got)
	}
	if got := timer.FramerateMax(); math.Abs(got-100) > 1e-9 {
		t.Errorf("FramerateMax = %v, want 100", got)
	}
}

func TestFrameTimerWindowBound(t *testing.T) {
	s := NewScene(WithFramerate(60))
	timer := NewFrameTimer()
	timer.SetHistory(0.5)
	if err := s.Add("timer", timer); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pipe := NewPipeline()
	for i := 0; i < 100; i++ {
		if err := s.Tick(pipe); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	// 0.5s at 60fps keeps 30 samples.
	if got := len(timer.times); got != 30 {
		t.Fatalf("window holds %d samples, want 30", got)
	}
	if got := timer.FramerateAverage(100); math.Abs(got-60) > 1e-9 {
		t.Errorf("FramerateAverage = %v, want 60", got)
	}
}

func TestFrameTimerEmpty(t *testing.T) {
	timer := NewFrameTimer()
	if got := timer.FrametimeAverage(100); got != 0 {
		t.Errorf("FrametimeAverage on empty = %v, want 0", got)
	}
	if got := timer.FramerateMin(); got != 0 {
		t.Errorf("FramerateMin on empty = %v, want 0", got)
	}
}
