package shaderflow

import (
	"context"
	"errors"
	"time"
)

// RunOption configures a realtime Run.
type RunOption func(*runConfig)

type runConfig struct {
	maxFrames     uint64
	untilDuration bool
}

// WithMaxFrames stops Run after n frames. Zero means unlimited.
func WithMaxFrames(n uint64) RunOption {
	return func(c *runConfig) { c.maxFrames = n }
}

// WithUntilDuration stops Run when the scene clock reaches its duration
// instead of looping forever.
func WithUntilDuration() RunOption {
	return func(c *runConfig) { c.untilDuration = true }
}

// Run drives the scene in realtime: frames are paced to the target
// framerate against the wall clock, and the scene time step of each
// frame is the measured wall clock step. Dropped frames never skew the
// cadence because the next deadline advances by whole periods.
//
// Run returns when ctx is canceled, a QuitMessage is relayed, or a stop
// condition from the options is reached. Per-frame errors are logged and
// the frame dropped; only a destroyed scene aborts the loop with an
// error.
func (s *Scene) Run(ctx context.Context, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := s.build(); err != nil {
		return err
	}
	s.realtime = true
	s.quit = false
	Logger().Info("run started", "fps", s.fps,
		"width", s.width, "height", s.height)

	pipe := NewPipeline()
	period := time.Duration(float64(time.Second) / s.fps)
	next := time.Now()
	last := next
	var frames uint64

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		now := time.Now()
		rdt := now.Sub(last).Seconds()
		last = now

		if err := s.step(rdt, pipe); errors.Is(err, ErrSceneDestroyed) {
			return err
		}
		frames++

		if s.quit {
			s.quit = false
			Logger().Info("run stopped", "frames", frames)
			return nil
		}

		if cfg.maxFrames != 0 && frames >= cfg.maxFrames {
			return nil
		}
		if cfg.untilDuration && s.time >= s.Duration() {
			return nil
		}

		next = next.Add(period)
		if time.Until(next) < -period {
			// Fell more than a whole frame behind. Resync instead of
			// bursting catch-up frames.
			next = time.Now()
			continue
		}
		preciseSleep(next)
	}
}

// Tick advances the scene by exactly one deterministic frame of length
// 1/framerate, regardless of the wall clock. Export and tests use it to
// get bit-identical frame sequences.
func (s *Scene) Tick(pipe *Pipeline) error {
	if !s.built {
		if err := s.build(); err != nil {
			return err
		}
	}
	s.realtime = false
	return s.step(1/s.fps, pipe)
}

// preciseSleep blocks until the deadline. It sleeps the bulk of the
// interval, then spins the last stretch, because timer wakeups alone are
// too coarse to hold a stable frame cadence.
func preciseSleep(deadline time.Time) {
	const spin = 500 * time.Microsecond
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > spin {
			time.Sleep(remaining - spin)
		}
	}
}
