// Package audio provides PCM sources and rolling sample buffers for
// audio-reactive scenes. Decoding compressed formats is out of scope;
// a Source delivers raw float32 samples from wherever they come from.
package audio

import (
	"io"
	"math"
	"sync"
)

// Source delivers interleaved float32 PCM samples. Read fills p with up
// to len(p) samples and reports how many were written; it returns io.EOF
// when the stream ends. Read should return promptly so a sampler worker
// can be shut down.
type Source interface {
	Read(p []float32) (int, error)
	SampleRate() int
	Channels() int

	// Duration reports the stream length in seconds, or 0 when the
	// length is unknown or the source is live.
	Duration() float64
}

// Mix folds interleaved multi-channel samples down to mono by averaging
// each frame's channels. Mono input is returned as a copy.
func Mix(interleaved []float32, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Buffer is a fixed-capacity rolling window of mono samples. Pushes past
// capacity discard the oldest samples. Safe for one writer and any
// number of readers.
type Buffer struct {
	mu   sync.Mutex
	rate int
	data []float32
	head int
	fill int
}

// NewBuffer returns a buffer holding the given number of seconds of
// samples at the given rate.
func NewBuffer(rate int, seconds float64) *Buffer {
	n := int(float64(rate) * seconds)
	if n < 1 {
		n = 1
	}
	return &Buffer{rate: rate, data: make([]float32, n)}
}

// SampleRate returns the rate the buffer was sized for.
func (b *Buffer) SampleRate() int { return b.rate }

// Push appends mono samples, discarding the oldest on overflow.
func (b *Buffer) Push(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(samples) > len(b.data) {
		samples = samples[len(samples)-len(b.data):]
	}
	for _, v := range samples {
		b.data[b.head] = v
		b.head = (b.head + 1) % len(b.data)
	}
	if b.fill += len(samples); b.fill > len(b.data) {
		b.fill = len(b.data)
	}
}

// Last returns a copy of the most recent samples covering the given
// span, oldest first. A younger buffer returns what it has.
func (b *Buffer) Last(seconds float64) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int(float64(b.rate) * seconds)
	if n > b.fill {
		n = b.fill
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = b.data[(b.head-n+i+len(b.data))%len(b.data)]
	}
	return out
}

// RMS returns the root mean square of the most recent span.
func (b *Buffer) RMS(seconds float64) float64 {
	return rms(b.Last(seconds))
}

// Std returns the standard deviation of the most recent span.
func (b *Buffer) Std(seconds float64) float64 {
	samples := b.Last(seconds)
	if len(samples) == 0 {
		return 0
	}
	var mean float64
	for _, v := range samples {
		mean += float64(v)
	}
	mean /= float64(len(samples))
	var acc float64
	for _, v := range samples {
		d := float64(v) - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(samples)))
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var acc float64
	for _, v := range samples {
		acc += float64(v) * float64(v)
	}
	return math.Sqrt(acc / float64(len(samples)))
}

// Tone is a finite sine wave Source, handy for tests and examples.
type Tone struct {
	Rate      int     // sample rate, default 44100
	Frequency float64 // Hz, default 440
	Amplitude float64 // peak, default 1
	Seconds   float64 // length, default 1

	pos int
}

func (t *Tone) rate() int {
	if t.Rate <= 0 {
		return 44100
	}
	return t.Rate
}

// SampleRate returns the tone's sample rate.
func (t *Tone) SampleRate() int { return t.rate() }

// Channels returns 1: tones are mono.
func (t *Tone) Channels() int { return 1 }

// Duration returns the tone length in seconds.
func (t *Tone) Duration() float64 {
	if t.Seconds <= 0 {
		return 1
	}
	return t.Seconds
}

// Read synthesizes the next chunk of the sine wave.
func (t *Tone) Read(p []float32) (int, error) {
	total := int(float64(t.rate()) * t.Duration())
	if t.pos >= total {
		return 0, io.EOF
	}
	freq := t.Frequency
	if freq <= 0 {
		freq = 440
	}
	amp := t.Amplitude
	if amp <= 0 {
		amp = 1
	}
	n := len(p)
	if remain := total - t.pos; n > remain {
		n = remain
	}
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * freq * float64(t.pos+i) / float64(t.rate())
		p[i] = float32(amp * math.Sin(phase))
	}
	t.pos += n
	return n, nil
}
