package shaderflow

// Module is a unit of per-frame behavior owned by a Scene. Implementations
// embed Base, which supplies no-op defaults for every lifecycle method, and
// override what they need.
//
// The scene drives each module through a fixed lifecycle:
//
//	Build    once, when the module is added and the device is available
//	Setup    before the first frame and again on every relaunch
//	Update   once per frame, before uniforms are collected
//	Pipeline after Update, returns the module's uniforms for the frame
//	Handle   on every relayed Message, in registration order
//	Destroy  once, when the scene shuts down
//
// Modules are never called concurrently; all lifecycle methods run on the
// scene's frame loop goroutine.
type Module interface {
	// Name returns the registration name, unique within the scene.
	Name() string

	// Build allocates device resources. It runs once.
	Build(s *Scene) error

	// Setup resets per-run state before the first frame.
	Setup() error

	// Update advances the module by the scene's current frame.
	Update() error

	// Pipeline returns the uniforms this module contributes this frame.
	Pipeline() []Uniform

	// Handle reacts to a relayed message.
	Handle(msg Message)

	// Destroy releases everything Build allocated.
	Destroy()

	bind(s *Scene, name string)
}

// DurationProvider is implemented by modules with a natural content
// length, such as audio tracks. The scene's duration is the maximum
// over all providers.
type DurationProvider interface {
	Duration() float64
}

// IncludeProvider is implemented by modules that contribute named WGSL
// snippets to the shader preprocessor.
type IncludeProvider interface {
	Includes() map[string]string
}

// DefineProvider is implemented by modules that contribute textual
// defines to the shader preprocessor.
type DefineProvider interface {
	Defines() map[string]string
}

// Base is the mandatory embed for Module implementations. Its zero value
// is ready to use; the scene populates it when the module is added.
type Base struct {
	name  string
	owner *Scene
}

func (b *Base) bind(s *Scene, name string) {
	b.owner = s
	b.name = name
}

// Name returns the name the module was registered under.
func (b *Base) Name() string { return b.name }

// Scene returns the owning scene, or nil before the module is added.
func (b *Base) Scene() *Scene { return b.owner }

func (b *Base) Build(s *Scene) error { return nil }
func (b *Base) Setup() error         { return nil }
func (b *Base) Update() error        { return nil }
func (b *Base) Pipeline() []Uniform  { return nil }
func (b *Base) Handle(msg Message)   {}
func (b *Base) Destroy()             {}

// FindModules returns every module of the scene that is a T, in
// registration order.
func FindModules[T any](s *Scene) []T {
	var out []T
	for _, m := range s.Modules() {
		if t, ok := m.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// FindModule returns the first module of the scene that is a T.
func FindModule[T any](s *Scene) (T, bool) {
	for _, m := range s.Modules() {
		if t, ok := m.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}
