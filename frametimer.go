package shaderflow

import "sort"

// FrameTimer keeps a sliding window of measured frame times and derives
// framerate statistics from it. The window tracks wall-clock deltas, so
// in export mode every sample equals the fixed frame period.
type FrameTimer struct {
	Base

	history float64
	times   []float64
}

// NewFrameTimer returns a timer keeping two seconds of history.
func NewFrameTimer() *FrameTimer {
	return &FrameTimer{history: 2}
}

// SetHistory sets the window length in seconds.
func (f *FrameTimer) SetHistory(seconds float64) {
	if seconds > 0 {
		f.history = seconds
	}
}

func (f *FrameTimer) length() int {
	return max(int(f.history*f.Scene().Framerate()), 10)
}

// Update records the real delta of the current frame.
func (f *FrameTimer) Update() error {
	f.times = append(f.times, f.Scene().RealDelta())
	if n := f.length(); len(f.times) > n {
		f.times = f.times[len(f.times)-n:]
	}
	return nil
}

// worst returns the slowest fraction of recorded frame times.
func (f *FrameTimer) worst(percent float64) []float64 {
	sorted := append([]float64(nil), f.times...)
	sort.Float64s(sorted)
	cut := max(int(float64(len(sorted))*percent/100), 1)
	if cut > len(sorted) {
		cut = len(sorted)
	}
	return sorted[len(sorted)-cut:]
}

// FrametimeAverage averages the slowest percent of frames. Pass 100 for
// the plain average, 1 for the "low 1%" metric.
func (f *FrameTimer) FrametimeAverage(percent float64) float64 {
	if len(f.times) == 0 {
		return 0
	}
	worst := f.worst(percent)
	var sum float64
	for _, t := range worst {
		sum += t
	}
	return sum / float64(len(worst))
}

// FrametimeMin returns the fastest recorded frame time.
func (f *FrameTimer) FrametimeMin() float64 {
	if len(f.times) == 0 {
		return 0
	}
	v := f.times[0]
	for _, t := range f.times[1:] {
		v = min(v, t)
	}
	return v
}

// FrametimeMax returns the slowest recorded frame time.
func (f *FrameTimer) FrametimeMax() float64 {
	if len(f.times) == 0 {
		return 0
	}
	v := f.times[0]
	for _, t := range f.times[1:] {
		v = max(v, t)
	}
	return v
}

func safeRate(frametime float64) float64 {
	if frametime <= 0 {
		return 0
	}
	return 1 / frametime
}

// FramerateAverage converts the slowest-percent average to a framerate.
func (f *FrameTimer) FramerateAverage(percent float64) float64 {
	return safeRate(f.FrametimeAverage(percent))
}

// FramerateMin returns the framerate of the slowest frame.
func (f *FrameTimer) FramerateMin() float64 {
	return safeRate(f.FrametimeMax())
}

// FramerateMax returns the framerate of the fastest frame.
func (f *FrameTimer) FramerateMax() float64 {
	return safeRate(f.FrametimeMin())
}
