package shaderflow

import (
	"errors"
	"fmt"
)

// ErrUniformConflict is returned when two modules contribute a uniform
// with the same name in one frame.
var ErrUniformConflict = errors.New("shaderflow: uniform name already contributed")

// Uniform is a single named value a module contributes to the shader
// each frame. Supported value types are bool, int32, uint32, float32,
// Vec2 and Vec3.
type Uniform struct {
	Name  string
	Value any
}

// WGSLType returns the WGSL type the value maps to. Booleans upload as
// u32 because WGSL forbids bool in uniform address space.
func (u Uniform) WGSLType() (string, error) {
	switch u.Value.(type) {
	case bool:
		return "u32", nil
	case int32:
		return "i32", nil
	case uint32:
		return "u32", nil
	case float32:
		return "f32", nil
	case Vec2:
		return "vec2<f32>", nil
	case Vec3:
		return "vec3<f32>", nil
	default:
		return "", fmt.Errorf("shaderflow: uniform %q has unsupported type %T", u.Name, u.Value)
	}
}

// Pipeline accumulates the uniforms contributed by every module during
// one frame. Iteration order is contribution order, so a scene's output
// is deterministic for a fixed module registration order.
type Pipeline struct {
	uniforms []Uniform
	index    map[string]int
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{index: make(map[string]int)}
}

// Add appends a uniform. Adding a name that is already present returns
// ErrUniformConflict and leaves the pipeline unchanged.
func (p *Pipeline) Add(u Uniform) error {
	if _, ok := p.index[u.Name]; ok {
		return fmt.Errorf("%w: %q", ErrUniformConflict, u.Name)
	}
	p.index[u.Name] = len(p.uniforms)
	p.uniforms = append(p.uniforms, u)
	return nil
}

// AddAll appends every uniform in order, stopping at the first conflict.
func (p *Pipeline) AddAll(uniforms []Uniform) error {
	for _, u := range uniforms {
		if err := p.Add(u); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the uniform with the given name.
func (p *Pipeline) Get(name string) (Uniform, bool) {
	i, ok := p.index[name]
	if !ok {
		return Uniform{}, false
	}
	return p.uniforms[i], true
}

// Uniforms returns the accumulated uniforms in contribution order. The
// slice is owned by the pipeline and valid until the next Reset.
func (p *Pipeline) Uniforms() []Uniform {
	return p.uniforms
}

// Len returns the number of accumulated uniforms.
func (p *Pipeline) Len() int {
	return len(p.uniforms)
}

// Reset clears the pipeline for the next frame, keeping capacity.
func (p *Pipeline) Reset() {
	p.uniforms = p.uniforms[:0]
	clear(p.index)
}
