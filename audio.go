package shaderflow

import (
	"math"
	"sync"

	"github.com/gogpu/shaderflow/audio"
)

// Audio publishes smoothed loudness uniforms from a PCM source every
// frame. A finite source is drained synchronously in Update, one frame
// delta's worth of samples at a time, so the analysis window at frame n
// depends only on the frame sequence and exports reproduce bit for bit.
// A live source (Duration 0) cannot be paced and is drained by a worker
// goroutine into the rolling buffer instead.
//
// When the source has a known length the module reports it as scene
// content duration, so exports cover the whole track.
type Audio struct {
	Base

	source audio.Source
	window float64
	chunk  int

	buffer *audio.Buffer
	volume *SecondOrder
	std    *SecondOrder

	live bool
	eof  bool
	read []float32

	done chan struct{}
	wg   sync.WaitGroup
}

// AudioOption configures an Audio module.
type AudioOption func(*Audio)

// WithWindow sets the analysis window in seconds. Default 0.1.
func WithWindow(seconds float64) AudioOption {
	return func(a *Audio) {
		if seconds > 0 {
			a.window = seconds
		}
	}
}

// NewAudio creates a sampler reading from the given source.
func NewAudio(src audio.Source, opts ...AudioOption) *Audio {
	a := &Audio{
		source: src,
		window: 0.1,
		chunk:  1024,
		volume: NewSecondOrder(2, 1, 0, 0),
		std:    NewSecondOrder(10, 1, 0, 0),
	}
	a.volume.Integrate = true
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build allocates the rolling buffer. Live sources additionally start
// the sampling worker.
func (a *Audio) Build(s *Scene) error {
	a.buffer = audio.NewBuffer(a.source.SampleRate(), 30)
	a.live = a.source.Duration() == 0
	if a.live {
		a.done = make(chan struct{})
		a.wg.Add(1)
		go a.worker()
	}
	return nil
}

func (a *Audio) channels() int {
	if c := a.source.Channels(); c >= 1 {
		return c
	}
	return 1
}

// pull drains one frame delta's worth of samples from a finite source
// into the rolling buffer.
func (a *Audio) pull(seconds float64) {
	if a.eof || seconds <= 0 {
		return
	}
	channels := a.channels()
	frames := int(float64(a.source.SampleRate()) * seconds)
	if frames < 1 {
		return
	}
	want := frames * channels
	if cap(a.read) < want {
		a.read = make([]float32, want)
	}
	buf := a.read[:want]
	for len(buf) > 0 {
		n, err := a.source.Read(buf)
		if n > 0 {
			a.buffer.Push(audio.Mix(buf[:n], channels))
			buf = buf[n:]
		}
		if err != nil {
			a.eof = true
			return
		}
	}
}

func (a *Audio) worker() {
	defer a.wg.Done()
	channels := a.channels()
	buf := make([]float32, a.chunk*channels)
	for {
		select {
		case <-a.done:
			return
		default:
		}
		n, err := a.source.Read(buf)
		if n > 0 {
			a.buffer.Push(audio.Mix(buf[:n], channels))
		}
		if err != nil {
			return
		}
	}
}

// Setup resets the smoothing systems to silence.
func (a *Audio) Setup() error {
	a.volume.Reset(true)
	a.std.Reset(true)
	return nil
}

// Update advances the analysis window and retargets the loudness
// systems from it. Finite sources are read here, paced by the frame
// delta; live sources are fed by the worker.
func (a *Audio) Update() error {
	if !a.live {
		a.pull(a.Scene().RealDelta())
	}
	a.volume.Target(2 * a.buffer.RMS(a.window) * math.Sqrt2)
	a.std.Target(a.buffer.Std(a.window))
	dt := math.Abs(a.Scene().DeltaTime())
	a.volume.Next(dt)
	a.std.Next(dt)
	return nil
}

// Waveform returns a copy of the most recent analysis window.
func (a *Audio) Waveform() []float32 {
	return a.buffer.Last(a.window)
}

// Volume returns the current smoothed loudness.
func (a *Audio) Volume() float64 { return a.volume.Value()[0] }

// Duration reports the source length so the scene can cover it.
func (a *Audio) Duration() float64 { return a.source.Duration() }

// Pipeline publishes the smoothed loudness uniforms.
func (a *Audio) Pipeline() []Uniform {
	name := a.Name()
	return []Uniform{
		{Name: name + "Volume", Value: float32(a.volume.Value()[0])},
		{Name: name + "VolumeIntegral", Value: float32(a.volume.Integral()[0])},
		{Name: name + "STD", Value: float32(a.std.Value()[0])},
	}
}

// Destroy stops the worker and waits for it to exit.
func (a *Audio) Destroy() {
	if a.done != nil {
		select {
		case <-a.done:
		default:
			close(a.done)
		}
		a.wg.Wait()
		a.done = nil
	}
}
