package shaderflow

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shaderflow/gpu"
	"github.com/gogpu/shaderflow/cache"
)

var (
	// ErrSceneDestroyed is returned from operations on a scene after
	// Destroy.
	ErrSceneDestroyed = errors.New("shaderflow: scene destroyed")

	// ErrDuplicateModule is returned when a module name is registered
	// twice.
	ErrDuplicateModule = errors.New("shaderflow: module name already registered")
)

// Scene owns a set of modules, the GPU device they share, and the frame
// clock. It is the root object of the engine: modules are added to it,
// then Run or Export drives the frame loop.
//
// A scene is not safe for concurrent use. All module lifecycle calls
// happen on the goroutine driving the loop.
type Scene struct {
	device gpu.Device
	handle gpu.DeviceHandle

	modules []Module
	byName  map[string]Module

	// compiled programs keyed by content hash, shared by every shader
	// module of the scene
	programs *cache.Cache[[32]byte, gpu.Program]

	width, height uint32
	aspect        float64 // enforced ratio, 0 means free
	ssaa          float64
	fps           float64
	runtime       float64
	quality       float64
	speed         float64

	time     float64
	dt       float64
	rdt      float64
	realtime bool

	built     bool
	destroyed bool
	quit      bool
}

// SceneOption configures a Scene at construction.
type SceneOption func(*Scene)

// WithResolution sets the initial render resolution.
func WithResolution(width, height uint32) SceneOption {
	return func(s *Scene) { s.width, s.height = width, height }
}

// WithFramerate sets the target frames per second.
func WithFramerate(fps float64) SceneOption {
	return func(s *Scene) { s.fps = fps }
}

// WithRuntime sets the scene's own content length in seconds. The
// effective duration is the maximum of this and every module's.
func WithRuntime(seconds float64) SceneOption {
	return func(s *Scene) { s.runtime = seconds }
}

// WithDevice sets the GPU device the scene allocates resources on.
func WithDevice(dev gpu.Device) SceneOption {
	return func(s *Scene) { s.device = dev }
}

// WithDeviceHandle attaches a host device provider, used to pick the
// surface texture format when rendering to a window.
func WithDeviceHandle(h gpu.DeviceHandle) SceneOption {
	return func(s *Scene) { s.handle = h }
}

// WithSSAA sets the supersampling factor applied to render targets.
func WithSSAA(factor float64) SceneOption {
	return func(s *Scene) { s.ssaa = factor }
}

// WithQuality sets the abstract quality knob in [0, 100] that shaders
// may read to trade fidelity for speed.
func WithQuality(q float64) SceneOption {
	return func(s *Scene) { s.quality = math.Min(math.Max(q, 0), 100) }
}

// WithAspect enforces a width over height ratio across resizes.
func WithAspect(ar float64) SceneOption {
	return func(s *Scene) { s.aspect = ar }
}

// NewScene creates a scene with the given options. Defaults are
// 1920x1080 at 60 fps, 10 seconds runtime, SSAA 1, on a tracking device
// so headless use needs no GPU.
func NewScene(opts ...SceneOption) *Scene {
	s := &Scene{
		handle:  gpu.NullDeviceHandle{},
		byName:  make(map[string]Module),
		width:   1920,
		height:  1080,
		ssaa:    1,
		fps:     60,
		runtime: 10,
		quality: 50,
		speed:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.device == nil {
		s.device = gpu.NewTrackingDevice()
	}
	s.programs = cache.New[[32]byte, gpu.Program](64)
	s.programs.OnEvict(func(p gpu.Program) { p.Destroy() })
	return s
}

// Device returns the scene's GPU device.
func (s *Scene) Device() gpu.Device { return s.device }

// TextureFormat returns the format render targets use: the host
// surface's format when a device handle provides one, RGBA8 otherwise.
func (s *Scene) TextureFormat() gputypes.TextureFormat {
	if f := s.handle.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		return f
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// Add registers a module under a unique name and binds it to the scene.
// When the scene is already built, the module is built immediately.
func (s *Scene) Add(name string, m Module) error {
	if s.destroyed {
		return ErrSceneDestroyed
	}
	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, name)
	}
	m.bind(s, name)
	s.byName[name] = m
	s.modules = append(s.modules, m)
	if s.built {
		if err := m.Build(s); err != nil {
			return fmt.Errorf("shaderflow: build module %q: %w", name, err)
		}
		if err := m.Setup(); err != nil {
			return fmt.Errorf("shaderflow: setup module %q: %w", name, err)
		}
	}
	return nil
}

// Module returns the module registered under name.
func (s *Scene) Module(name string) (Module, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Modules returns the registered modules in registration order.
func (s *Scene) Modules() []Module { return s.modules }

// Relay broadcasts a message to the scene and every module, in
// registration order. The scene reacts to ResizeMessage, SeekMessage
// and QuitMessage before the modules see them.
func (s *Scene) Relay(msg Message) {
	switch m := msg.(type) {
	case ResizeMessage:
		s.applyResize(m.Width, m.Height)
		msg = ResizeMessage{Width: s.width, Height: s.height}
	case SeekMessage:
		s.time = math.Min(math.Max(m.Time, 0), s.Duration())
	case QuitMessage:
		s.quit = true
	}
	for _, mod := range s.modules {
		mod.Handle(msg)
	}
}

func (s *Scene) applyResize(width, height uint32) {
	w, h, err := ResolutionFit{
		OldWidth:  s.width,
		OldHeight: s.height,
		NewWidth:  width,
		NewHeight: height,
		MaxWidth:  s.device.Capabilities().MaxTextureSize,
		MaxHeight: s.device.Capabilities().MaxTextureSize,
		Aspect:    s.aspect,
	}.Solve()
	if err != nil {
		Logger().Warn("resize rejected", "error", err)
		return
	}
	s.width, s.height = w, h
	Logger().Info("scene resized", "width", w, "height", h)
}

// Width returns the current render width in pixels.
func (s *Scene) Width() uint32 { return s.width }

// Height returns the current render height in pixels.
func (s *Scene) Height() uint32 { return s.height }

// RenderWidth returns the width of render targets after SSAA.
func (s *Scene) RenderWidth() uint32 {
	return uint32(math.Round(float64(s.width) * s.ssaa))
}

// RenderHeight returns the height of render targets after SSAA.
func (s *Scene) RenderHeight() uint32 {
	return uint32(math.Round(float64(s.height) * s.ssaa))
}

// AspectRatio returns width over height of the current resolution.
func (s *Scene) AspectRatio() float64 {
	return float64(s.width) / float64(s.height)
}

// Framerate returns the target frames per second.
func (s *Scene) Framerate() float64 { return s.fps }

// SSAA returns the supersampling factor.
func (s *Scene) SSAA() float64 { return s.ssaa }

// Time returns the scene clock in seconds.
func (s *Scene) Time() float64 { return s.time }

// DeltaTime returns the scene time step of the current frame, which is
// the wall clock step scaled by Speed.
func (s *Scene) DeltaTime() float64 { return s.dt }

// RealDelta returns the unscaled wall clock step of the current frame.
func (s *Scene) RealDelta() float64 { return s.rdt }

// Speed returns the time scale applied to the clock.
func (s *Scene) Speed() float64 { return s.speed }

// SetSpeed changes the time scale. Negative values run the clock
// backwards.
func (s *Scene) SetSpeed(speed float64) { s.speed = speed }

// Realtime reports whether the scene is driven by the wall clock rather
// than the deterministic export clock.
func (s *Scene) Realtime() bool { return s.realtime }

// Frame returns the current frame index, derived from the clock so that
// seeks keep frame and time consistent.
func (s *Scene) Frame() uint64 {
	return uint64(math.Max(math.Round(s.time*s.fps), 0))
}

// Duration returns the effective content length: the scene runtime or
// the longest module, whichever is greater.
func (s *Scene) Duration() float64 {
	d := s.runtime
	for _, m := range s.modules {
		if p, ok := m.(DurationProvider); ok {
			d = math.Max(d, p.Duration())
		}
	}
	return d
}

// TotalFrames returns the number of frames an export produces,
// ceil(duration * framerate), never less than one. A fractional tail
// shorter than a frame still gets its own frame so exports never cut
// content.
func (s *Scene) TotalFrames() uint64 {
	return uint64(math.Max(math.Ceil(s.Duration()*s.fps), 1))
}

// Tau returns normalized progress, time over duration, in [0, 1].
func (s *Scene) Tau() float64 {
	d := s.Duration()
	if d <= 0 {
		return 0
	}
	return math.Min(s.time/d, 1)
}

// Pipeline returns the scene's own per-frame uniforms.
func (s *Scene) Pipeline() []Uniform {
	return []Uniform{
		{Name: "iTime", Value: float32(s.time)},
		{Name: "iTau", Value: float32(s.Tau())},
		{Name: "iDuration", Value: float32(s.Duration())},
		{Name: "iDeltaTime", Value: float32(s.dt)},
		{Name: "iResolution", Value: V2(float32(s.RenderWidth()), float32(s.RenderHeight()))},
		{Name: "iAspect", Value: float32(s.AspectRatio())},
		{Name: "iSSAA", Value: float32(s.ssaa)},
		{Name: "iFramerate", Value: float32(s.fps)},
		{Name: "iFrame", Value: uint32(s.Frame())},
		{Name: "iRealtime", Value: s.realtime},
		{Name: "iQuality", Value: float32(s.quality / 100)},
	}
}

// build runs Build then Setup on every module once.
func (s *Scene) build() error {
	if s.destroyed {
		return ErrSceneDestroyed
	}
	if s.built {
		return nil
	}
	for _, m := range s.modules {
		if err := m.Build(s); err != nil {
			return fmt.Errorf("shaderflow: build module %q: %w", m.Name(), err)
		}
	}
	for _, m := range s.modules {
		if err := m.Setup(); err != nil {
			return fmt.Errorf("shaderflow: setup module %q: %w", m.Name(), err)
		}
	}
	s.built = true
	Logger().Info("scene built", "modules", len(s.modules),
		"device", s.device.Capabilities().DeviceName)
	return nil
}

// renderer is implemented by modules that draw after uniform collection.
type renderer interface {
	render(p *Pipeline) error
}

// step renders one frame: update every module, collect uniforms, draw
// every rendering module, then advance the clock. rdt is the wall clock
// step that produced this frame.
//
// A uniform conflict or draw failure cancels the frame but keeps the
// loop alive; the clock still advances so a bad frame cannot stall
// playback.
func (s *Scene) step(rdt float64, pipe *Pipeline) error {
	if s.destroyed {
		return ErrSceneDestroyed
	}
	s.rdt = rdt
	s.dt = rdt * s.speed

	var frameErr error
	for _, m := range s.modules {
		if err := m.Update(); err != nil {
			frameErr = fmt.Errorf("shaderflow: update module %q: %w", m.Name(), err)
			break
		}
	}
	if frameErr == nil {
		pipe.Reset()
		if err := pipe.AddAll(s.Pipeline()); err != nil {
			frameErr = err
		}
		for _, m := range s.modules {
			if frameErr != nil {
				break
			}
			if err := pipe.AddAll(m.Pipeline()); err != nil {
				frameErr = fmt.Errorf("shaderflow: module %q: %w", m.Name(), err)
			}
		}
	}
	if frameErr == nil {
		for _, m := range s.modules {
			r, ok := m.(renderer)
			if !ok {
				continue
			}
			if err := r.render(pipe); err != nil {
				frameErr = fmt.Errorf("shaderflow: render module %q: %w", m.Name(), err)
				break
			}
		}
	}

	s.time += s.dt
	if frameErr != nil {
		Logger().Warn("frame dropped", "frame", s.Frame(), "error", frameErr)
	}
	return frameErr
}

// Destroy tears the scene down: modules are destroyed in reverse
// registration order and the scene refuses further work. Destroy is
// idempotent.
func (s *Scene) Destroy() {
	if s.destroyed {
		return
	}
	for i := len(s.modules) - 1; i >= 0; i-- {
		s.modules[i].Destroy()
	}
	s.programs.Clear()
	s.destroyed = true
	Logger().Info("scene destroyed")
}
