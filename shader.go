package shaderflow

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/gogpu/shaderflow/gpu"
)

// ErrNoProgram is returned when a shader module has no compiled program
// and no previous one to fall back on.
var ErrNoProgram = errors.New("shaderflow: no compiled program")

// ShaderProgram is a module that compiles a WGSL fragment and draws it
// into its own texture ring every frame, one pass per layer. The ring
// carries the program's registration name, so other shaders sample its
// output as <name><temporal>x<layer>.
//
// Source changes take effect at the next frame boundary. A failed
// recompile keeps the last good program running and logs the diagnostic,
// so live edits cannot kill a running scene.
type ShaderProgram struct {
	Base

	content string
	path    string
	pre     *Preprocessor
	ring    *TextureRing

	program gpu.Program
	dirty   bool
}

// ShaderOption configures a ShaderProgram at construction.
type ShaderOption func(*ShaderProgram)

// WithLayers sets the number of layers the program renders per frame.
func WithLayers(n int) ShaderOption {
	return func(p *ShaderProgram) { p.ring.layers = max(n, 1) }
}

// WithTemporal sets how many past frames of output stay sampleable.
func WithTemporal(n int) ShaderOption {
	return func(p *ShaderProgram) { p.ring.temporal = max(n, 1) }
}

// WithInclude registers a named snippet with the program's preprocessor.
func WithInclude(name, source string) ShaderOption {
	return func(p *ShaderProgram) { p.pre.Include(name, source) }
}

// WithDefine registers a textual define with the program's preprocessor.
func WithDefine(name, replacement string) ShaderOption {
	return func(p *ShaderProgram) { p.pre.Define(name, replacement) }
}

// NewShaderProgram creates a shader module from WGSL source text.
func NewShaderProgram(source string, opts ...ShaderOption) *ShaderProgram {
	p := &ShaderProgram{
		content: source,
		pre:     NewPreprocessor(),
		ring:    NewTextureRing(1, 1),
		dirty:   true,
	}
	for name, src := range builtinIncludes {
		p.pre.Include(name, src)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewShaderProgramFromFile creates a shader module whose source is read
// from path at build time and re-read on every RecompileMessage. Pair it
// with a Watcher to get live reloads.
func NewShaderProgramFromFile(path string, opts ...ShaderOption) *ShaderProgram {
	p := NewShaderProgram("", opts...)
	p.path = path
	return p
}

// SetSource replaces the WGSL content. The swap happens at the next
// frame boundary.
func (p *ShaderProgram) SetSource(source string) {
	p.content = source
	p.dirty = true
}

// Ring returns the program's output texture ring.
func (p *ShaderProgram) Ring() *TextureRing { return p.ring }

// Build allocates the output ring and performs the initial compile
// check by reading the source file when one is configured. The first
// compile itself happens on the first frame, when the uniform set is
// known.
func (p *ShaderProgram) Build(s *Scene) error {
	p.ring.bind(s, p.Name())
	if err := p.ring.Build(s); err != nil {
		return err
	}
	if p.path != "" {
		if err := p.reload(); err != nil {
			return err
		}
	}
	return nil
}

func (p *ShaderProgram) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("shaderflow: read shader %s: %w", p.path, err)
	}
	p.content = string(data)
	p.dirty = true
	return nil
}

// Update forwards to the ring so deferred resizes land on frame
// boundaries.
func (p *ShaderProgram) Update() error {
	return p.ring.Update()
}

// Handle reacts to resizes and recompile requests.
func (p *ShaderProgram) Handle(msg Message) {
	p.ring.Handle(msg)
	if _, ok := msg.(RecompileMessage); !ok {
		return
	}
	if p.path != "" {
		if err := p.reload(); err != nil {
			Logger().Warn("shader reload failed", "module", p.Name(), "error", err)
			return
		}
	}
	p.dirty = true
}

// Pipeline contributes the ring's metadata uniforms.
func (p *ShaderProgram) Pipeline() []Uniform {
	return p.ring.Pipeline()
}

// Bindings exposes the ring's samplers to sibling shaders.
func (p *ShaderProgram) Bindings() []TextureBinding {
	return p.ring.Bindings()
}

// Defines exposes the ring's last-layer aliases.
func (p *ShaderProgram) Defines() map[string]string {
	return p.ring.Defines()
}

// binder is implemented by modules exposing sampler bindings.
type binder interface {
	Bindings() []TextureBinding
}

// sceneBindings collects every sampler binding visible to this program,
// in module registration order.
func (p *ShaderProgram) sceneBindings() []TextureBinding {
	var out []TextureBinding
	for _, m := range p.Scene().Modules() {
		if b, ok := m.(binder); ok {
			out = append(out, b.Bindings()...)
		}
	}
	return out
}

// compile assembles the final source for the current uniform set and
// fetches or builds the program. Identical assembled sources share one
// GPU program through the scene cache.
func (p *ShaderProgram) compile(uniforms []Uniform, bindings []TextureBinding) (gpu.Program, error) {
	s := p.Scene()
	for _, m := range s.Modules() {
		if ip, ok := m.(IncludeProvider); ok {
			for name, src := range ip.Includes() {
				p.pre.Include(name, src)
			}
		}
		if dp, ok := m.(DefineProvider); ok {
			for name, repl := range dp.Defines() {
				p.pre.Define(name, repl)
			}
		}
	}

	uniforms = append(append([]Uniform{}, uniforms...), Uniform{Name: "iLayer", Value: int32(0)})
	source, err := p.pre.Process(p.content, uniforms, bindings)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(uniforms)+len(bindings))
	for _, u := range uniforms {
		names = append(names, u.Name)
	}
	for _, b := range bindings {
		names = append(names, b.Name)
	}

	key := sha256.Sum256([]byte(source))
	return s.programs.GetOrCreate(key, func() (gpu.Program, error) {
		Logger().Info("compiling shader", "module", p.Name(), "bytes", len(source))
		return s.Device().CompileProgram(gpu.ProgramDescriptor{
			Label:    p.Name(),
			Source:   source,
			Uniforms: names,
		})
	})
}

// render draws one frame: swap in a fresh program if the source changed,
// roll the ring, upload uniforms, bind samplers and draw every layer.
func (p *ShaderProgram) render(pipe *Pipeline) error {
	if p.dirty {
		prog, err := p.compile(pipe.Uniforms(), p.sceneBindings())
		switch {
		case err == nil:
			p.program = prog
			p.dirty = false
		case p.program != nil:
			// Keep the last good program on the screen.
			Logger().Warn("shader compile failed, keeping previous program",
				"module", p.Name(), "error", err)
			p.dirty = false
		default:
			return err
		}
	}
	if p.program == nil {
		return fmt.Errorf("%w: %s", ErrNoProgram, p.Name())
	}

	p.ring.Roll()

	// Collected after the roll so sampler names point at this frame's
	// physical textures.
	bindings := p.sceneBindings()

	for _, u := range pipe.Uniforms() {
		if err := p.program.SetUniform(u.Name, u.Value); err != nil {
			if errors.Is(err, gpu.ErrUnknownUniform) {
				continue
			}
			return err
		}
	}
	for _, b := range bindings {
		if err := p.program.BindTexture(b.Name, b.Texture); err != nil {
			if errors.Is(err, gpu.ErrUnknownUniform) {
				continue
			}
			return err
		}
	}

	for layer := 0; layer < p.ring.Layers(); layer++ {
		if err := p.program.SetUniform("iLayer", int32(layer)); err != nil &&
			!errors.Is(err, gpu.ErrUnknownUniform) {
			return err
		}
		target, err := p.ring.Texture(0, layer)
		if err != nil {
			return err
		}
		if err := p.program.Draw(target, true); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases the ring. Compiled programs belong to the scene
// cache and outlive individual modules.
func (p *ShaderProgram) Destroy() {
	p.ring.Destroy()
	p.program = nil
}
