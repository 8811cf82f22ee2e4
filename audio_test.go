package shaderflow

import (
	"math"
	"testing"
	"time"

	"github.com/gogpu/shaderflow/audio"
)

// liveSource synthesizes an endless tone and reports no length, like a
// microphone.
type liveSource struct {
	audio.Tone
}

func (l *liveSource) Duration() float64 { return 0 }

func waitForAudio(t *testing.T, a *Audio) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for a.buffer.RMS(a.window) < 0.5 {
		if time.Now().After(deadline) {
			t.Fatal("worker never filled the buffer")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAudioVolumeConverges(t *testing.T) {
	tone := &audio.Tone{Rate: 4410, Frequency: 100, Seconds: 4}
	a := NewAudio(tone)
	s := NewScene(WithFramerate(60), WithRuntime(1))
	if err := s.Add("iAudio", a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pipe := NewPipeline()
	for i := 0; i < 180; i++ {
		if err := s.Tick(pipe); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	// A full-scale sine settles to 2*RMS*sqrt(2) = 2.
	if got := a.Volume(); math.Abs(got-2) > 0.1 {
		t.Errorf("Volume = %v, want ~2", got)
	}
	s.Destroy()
}

func TestAudioLiveSourceUsesWorker(t *testing.T) {
	src := &liveSource{audio.Tone{Rate: 4410, Frequency: 100, Seconds: 3600}}
	a := NewAudio(src)
	s := NewScene()
	if err := s.Add("iAudio", a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	defer s.Destroy()
	// The buffer fills without a single Tick.
	waitForAudio(t, a)
	if got := s.Duration(); got != 10 {
		t.Errorf("live source extended Duration to %v, want default 10", got)
	}
}

func TestAudioExportVolumesReproducible(t *testing.T) {
	run := func() []float64 {
		tone := &audio.Tone{Rate: 4410, Frequency: 100, Seconds: 2}
		a := NewAudio(tone)
		s := NewScene(WithFramerate(60))
		if err := s.Add("iAudio", a); err != nil {
			t.Fatalf("Add: %v", err)
		}
		defer s.Destroy()
		pipe := NewPipeline()
		out := make([]float64, 0, 120)
		for i := 0; i < 120; i++ {
			if err := s.Tick(pipe); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			out = append(out, a.Volume())
		}
		return out
	}
	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("frame %d volume diverged: %v vs %v", i, first[i], second[i])
		}
	}
	if first[len(first)-1] == 0 {
		t.Fatal("volume never left zero, source was not drained")
	}
}

func TestAudioPipelineUniforms(t *testing.T) {
	tone := &audio.Tone{Rate: 4410, Seconds: 1}
	a := NewAudio(tone)
	s := NewScene()
	if err := s.Add("iAudio", a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	defer s.Destroy()

	want := []string{"iAudioVolume", "iAudioVolumeIntegral", "iAudioSTD"}
	got := a.Pipeline()
	if len(got) != len(want) {
		t.Fatalf("published %d uniforms, want %d", len(got), len(want))
	}
	for i, u := range got {
		if u.Name != want[i] {
			t.Errorf("uniform %d named %q, want %q", i, u.Name, want[i])
		}
		if _, ok := u.Value.(float32); !ok {
			t.Errorf("uniform %q is %T, want float32", u.Name, u.Value)
		}
	}
}

func TestAudioExtendsSceneDuration(t *testing.T) {
	tone := &audio.Tone{Rate: 4410, Seconds: 2}
	s := NewScene(WithFramerate(60), WithRuntime(1))
	if err := s.Add("iAudio", NewAudio(tone)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.Duration(); got != 2 {
		t.Fatalf("Duration = %v, want 2 (track outlives runtime)", got)
	}
	if got := s.TotalFrames(); got != 120 {
		t.Fatalf("TotalFrames = %d, want 120", got)
	}
}

func TestAudioWaveformWindow(t *testing.T) {
	tone := &audio.Tone{Rate: 1000, Seconds: 1}
	a := NewAudio(tone, WithWindow(0.05))
	s := NewScene(WithFramerate(60))
	if err := s.Add("iAudio", a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	defer s.Destroy()
	pipe := NewPipeline()
	for i := 0; i < 10; i++ {
		if err := s.Tick(pipe); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if got := len(a.Waveform()); got != 50 {
		t.Fatalf("Waveform holds %d samples, want 50 (0.05s at 1kHz)", got)
	}
}

func TestAudioDestroyIdempotent(t *testing.T) {
	tone := &audio.Tone{Rate: 4410, Seconds: 1}
	a := NewAudio(tone)
	s := NewScene()
	if err := s.Add("iAudio", a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	a.Destroy()
	a.Destroy()
}
