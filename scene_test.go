package shaderflow

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/shaderflow/gpu"
)

func TestSceneDefaults(t *testing.T) {
	s := NewScene()
	if s.Width() != 1920 || s.Height() != 1080 {
		t.Errorf("resolution %dx%d, want 1920x1080", s.Width(), s.Height())
	}
	if s.Framerate() != 60 {
		t.Errorf("Framerate = %v, want 60", s.Framerate())
	}
	if s.Duration() != 10 {
		t.Errorf("Duration = %v, want 10", s.Duration())
	}
	if s.SSAA() != 1 {
		t.Errorf("SSAA = %v, want 1", s.SSAA())
	}
}

func TestSceneClockAdvancesAfterRender(t *testing.T) {
	s := NewScene(WithFramerate(10))
	pipe := NewPipeline()

	// Frame zero renders at t=0; the clock moves afterwards.
	if err := s.Tick(pipe); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	u, ok := pipe.Get("iTime")
	if !ok {
		t.Fatal("iTime missing from the pipeline")
	}
	if got := u.Value.(float32); got != 0 {
		t.Fatalf("frame 0 rendered at t=%v, want 0", got)
	}
	if got := s.Time(); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("Time after frame 0 = %v, want 0.1", got)
	}
}

func TestSceneSpeedScalesClock(t *testing.T) {
	s := NewScene(WithFramerate(10))
	s.SetSpeed(2)
	pipe := NewPipeline()
	for i := 0; i < 5; i++ {
		if err := s.Tick(pipe); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if got := s.Time(); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("Time = %v, want 1.0 (5 frames of 0.1s at speed 2)", got)
	}
	if got := s.DeltaTime(); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("DeltaTime = %v, want 0.2", got)
	}
	if got := s.RealDelta(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("RealDelta = %v, want 0.1", got)
	}
}

func TestSceneDuplicateModuleName(t *testing.T) {
	s := NewScene()
	if err := s.Add("iCamera", NewCamera()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := s.Add("iCamera", NewCamera())
	if !errors.Is(err, ErrDuplicateModule) {
		t.Fatalf("second Add: got %v, want ErrDuplicateModule", err)
	}
	if len(s.Modules()) != 1 {
		t.Fatalf("scene holds %d modules, want 1", len(s.Modules()))
	}
}

func TestSceneResizeClampsToDevice(t *testing.T) {
	dev := gpu.NewTrackingDevice()
	dev.MaxTextureSize = 2048
	s := NewScene(WithDevice(dev), WithResolution(1280, 720))

	s.Relay(ResizeMessage{Width: 4096, Height: 2304})
	if s.Width() > 2048 || s.Height() > 2048 {
		t.Fatalf("resize exceeded device limit: %dx%d", s.Width(), s.Height())
	}
	want := float64(1280) / 720
	if got := s.AspectRatio(); math.Abs(got-want) > 0.01 {
		t.Errorf("clamped resize broke aspect: %v, want %v", got, want)
	}
}

func TestSceneResizeKeepsForcedAspect(t *testing.T) {
	s := NewScene(WithResolution(1280, 720), WithAspect(16.0/9))
	s.Relay(ResizeMessage{Width: 1000, Height: 1000})
	got := float64(s.Width()) / float64(s.Height())
	if math.Abs(got-16.0/9) > 0.01 {
		t.Errorf("aspect after resize = %v, want 16/9", got)
	}
}

func TestSceneResizeReachesModules(t *testing.T) {
	s := NewScene(WithResolution(100, 100))
	c := &recompileCounter{}
	sizes := &resizeRecorder{}
	if err := s.Add("counter", c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("sizes", sizes); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Relay(ResizeMessage{Width: 200, Height: 200})
	if sizes.last.Width != 200 || sizes.last.Height != 200 {
		t.Fatalf("module saw resize %v, want 200x200", sizes.last)
	}
}

type resizeRecorder struct {
	Base
	last ResizeMessage
}

func (r *resizeRecorder) Handle(msg Message) {
	if m, ok := msg.(ResizeMessage); ok {
		r.last = m
	}
}

func TestSceneFileDropReachesModules(t *testing.T) {
	s := NewScene()
	drops := &fileDropRecorder{}
	if err := s.Add("drops", drops); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Relay(FileDropMessage{Paths: []string{"/tmp/a.wgsl", "/tmp/b.png"}})
	if got := len(drops.last.Paths); got != 2 {
		t.Fatalf("module saw %d dropped paths, want 2", got)
	}
	if got := drops.last.First(); got != "/tmp/a.wgsl" {
		t.Errorf("First = %q, want /tmp/a.wgsl", got)
	}
	if got := (FileDropMessage{}).First(); got != "" {
		t.Errorf("empty drop First = %q, want empty", got)
	}
}

type fileDropRecorder struct {
	Base
	last FileDropMessage
}

func (f *fileDropRecorder) Handle(msg Message) {
	if m, ok := msg.(FileDropMessage); ok {
		f.last = m
	}
}

func TestSceneQuitMessageStopsRun(t *testing.T) {
	s := NewScene(WithFramerate(500))
	q := &quitAfter{frames: 3}
	if err := s.Add("quitter", q); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run only stopped on the timeout, not the quit message")
	}
	if q.seen != q.frames {
		t.Errorf("ran %d frames, want %d", q.seen, q.frames)
	}
}

type quitAfter struct {
	Base
	frames int
	seen   int
}

func (q *quitAfter) Update() error {
	if q.seen++; q.seen >= q.frames {
		q.Scene().Relay(QuitMessage{})
	}
	return nil
}

func TestSceneSeekClampsToDuration(t *testing.T) {
	s := NewScene(WithRuntime(5))
	s.Relay(SeekMessage{Time: 100})
	if got := s.Time(); got != 5 {
		t.Errorf("seek past end landed at %v, want 5", got)
	}
	s.Relay(SeekMessage{Time: -3})
	if got := s.Time(); got != 0 {
		t.Errorf("seek before start landed at %v, want 0", got)
	}
	s.Relay(SeekMessage{Time: 2.5})
	if got := s.Time(); got != 2.5 {
		t.Errorf("seek landed at %v, want 2.5", got)
	}
	if got := s.Frame(); got != 150 {
		t.Errorf("Frame after seek = %d, want 150", got)
	}
}

func TestSceneTauProgress(t *testing.T) {
	s := NewScene(WithRuntime(10))
	s.Relay(SeekMessage{Time: 5})
	if got := s.Tau(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Tau = %v, want 0.5", got)
	}
}

func TestSceneFrameErrorDropsButAdvances(t *testing.T) {
	s := NewScene(WithFramerate(10))
	if err := s.Add("bad", &failingUpdater{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pipe := NewPipeline()
	if err := s.Tick(pipe); err == nil {
		t.Fatal("Tick swallowed the frame error")
	}
	if got := s.Time(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("clock did not advance past the bad frame: %v", got)
	}
}

type failingUpdater struct {
	Base
}

func (f *failingUpdater) Update() error { return errors.New("sensor offline") }

func TestSceneUniformConflictDropsFrame(t *testing.T) {
	s := NewScene()
	if err := s.Add("a", &constantUniform{name: "iBeat"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("b", &constantUniform{name: "iBeat"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pipe := NewPipeline()
	if err := s.Tick(pipe); !errors.Is(err, ErrUniformConflict) {
		t.Fatalf("Tick: got %v, want ErrUniformConflict", err)
	}
}

type constantUniform struct {
	Base
	name string
}

func (c *constantUniform) Pipeline() []Uniform {
	return []Uniform{{Name: c.name, Value: float32(1)}}
}

func TestSceneUniformNames(t *testing.T) {
	s := NewScene(WithResolution(1280, 720), WithSSAA(2))
	pipe := NewPipeline()
	if err := s.Tick(pipe); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	for _, name := range []string{
		"iTime", "iTau", "iDuration", "iDeltaTime", "iResolution",
		"iAspect", "iSSAA", "iFramerate", "iFrame", "iRealtime", "iQuality",
	} {
		if _, ok := pipe.Get(name); !ok {
			t.Errorf("scene uniform %q missing", name)
		}
	}
	res, _ := pipe.Get("iResolution")
	if v := res.Value.(Vec2); v.X != 2560 || v.Y != 1440 {
		t.Errorf("iResolution = %v, want SSAA-scaled 2560x1440", v)
	}
}

func TestSceneDestroyedRefusesWork(t *testing.T) {
	s := NewScene()
	s.Destroy()
	s.Destroy() // idempotent
	if err := s.Add("late", NewCamera()); !errors.Is(err, ErrSceneDestroyed) {
		t.Fatalf("Add after destroy: got %v, want ErrSceneDestroyed", err)
	}
	pipe := NewPipeline()
	if err := s.Tick(pipe); !errors.Is(err, ErrSceneDestroyed) {
		t.Fatalf("Tick after destroy: got %v, want ErrSceneDestroyed", err)
	}
}

func TestSceneTotalFramesNeverZero(t *testing.T) {
	s := NewScene(WithRuntime(0.001), WithFramerate(24))
	if got := s.TotalFrames(); got != 1 {
		t.Errorf("TotalFrames = %d, want 1", got)
	}
}

func TestSceneTotalFramesCoversFractionalTail(t *testing.T) {
	// 5.05 frames of content round up to 6, never down to 5.
	s := NewScene(WithRuntime(0.505), WithFramerate(10))
	if got := s.TotalFrames(); got != 6 {
		t.Errorf("TotalFrames = %d, want 6", got)
	}
}
