package shaderflow

import (
	"errors"
	"fmt"

	"github.com/gogpu/shaderflow/gpu"
)

var (
	// ErrTemporalOutOfRange is returned for a history index at or beyond
	// the ring's temporal depth.
	ErrTemporalOutOfRange = errors.New("shaderflow: temporal index out of range")

	// ErrLayerOutOfRange is returned for a layer index at or beyond the
	// ring's layer count.
	ErrLayerOutOfRange = errors.New("shaderflow: layer index out of range")
)

// TextureBinding pairs a shader sampler name with the texture behind it.
type TextureBinding struct {
	Name    string
	Texture gpu.Texture
}

// TextureRing is a module holding a layers by temporal matrix of GPU
// textures. Temporal index 0 is always the current frame and index t is
// the frame t rolls ago; Roll rotates a cursor, so aging every texture
// by one frame costs O(1) regardless of depth.
//
// Samplers are exposed to shaders as <name><temporal>x<layer>, plus a
// define aliasing <name><temporal> to that temporal's last layer. The
// ring also contributes <name>Size, <name>Layers and <name>Temporal
// uniforms.
type TextureRing struct {
	Base

	layers   int
	temporal int

	// fixed size, or zero to track the scene render resolution
	width, height uint32

	textures [][]gpu.Texture // [temporal][layer]
	head     int
	recreate bool
}

// NewTextureRing creates a ring with the given layer count and temporal
// depth, both clamped to at least 1. Textures track the scene render
// resolution until SetSize pins them.
func NewTextureRing(layers, temporal int) *TextureRing {
	return &TextureRing{layers: max(layers, 1), temporal: max(temporal, 1)}
}

// SetSize pins the ring to a fixed resolution instead of tracking the
// scene. Takes effect at the next frame boundary.
func (r *TextureRing) SetSize(width, height uint32) {
	r.width, r.height = width, height
	r.recreate = true
}

// Layers returns the layer count.
func (r *TextureRing) Layers() int { return r.layers }

// Temporal returns the temporal depth.
func (r *TextureRing) Temporal() int { return r.temporal }

func (r *TextureRing) size() (uint32, uint32) {
	if r.width != 0 && r.height != 0 {
		return r.width, r.height
	}
	return r.Scene().RenderWidth(), r.Scene().RenderHeight()
}

// Build allocates the texture matrix.
func (r *TextureRing) Build(s *Scene) error {
	return r.allocate()
}

func (r *TextureRing) allocate() error {
	s := r.Scene()
	width, height := r.size()
	textures := make([][]gpu.Texture, r.temporal)
	for t := range textures {
		textures[t] = make([]gpu.Texture, r.layers)
		for l := range textures[t] {
			tex, err := s.Device().CreateTexture(gpu.TextureDescriptor{
				Label:  fmt.Sprintf("%s%dx%d", r.Name(), t, l),
				Width:  width,
				Height: height,
				Format: s.TextureFormat(),
			})
			if err != nil {
				r.destroyTextures(textures)
				return err
			}
			textures[t][l] = tex
		}
	}
	r.destroyTextures(r.textures)
	r.textures = textures
	r.head = 0
	r.recreate = false
	Logger().Debug("texture ring allocated", "name", r.Name(),
		"layers", r.layers, "temporal", r.temporal,
		"width", width, "height", height)
	return nil
}

func (r *TextureRing) destroyTextures(textures [][]gpu.Texture) {
	for _, row := range textures {
		for _, tex := range row {
			if tex != nil {
				tex.Destroy()
			}
		}
	}
}

// Update recreates the matrix at a frame boundary after a resize.
func (r *TextureRing) Update() error {
	if r.recreate {
		return r.allocate()
	}
	return nil
}

// Handle flags the ring for recreation on resolution changes and on
// explicit recreate requests. A pinned ring ignores resizes but still
// honors the explicit request.
func (r *TextureRing) Handle(msg Message) {
	switch msg.(type) {
	case ResizeMessage:
		if r.width == 0 {
			r.recreate = true
		}
	case RecreateTexturesMessage:
		r.recreate = true
	}
}

// Pipeline contributes the ring's metadata uniforms.
func (r *TextureRing) Pipeline() []Uniform {
	w, h := r.size()
	return []Uniform{
		{Name: r.Name() + "Size", Value: V2(float32(w), float32(h))},
		{Name: r.Name() + "Layers", Value: int32(r.layers)},
		{Name: r.Name() + "Temporal", Value: int32(r.temporal)},
	}
}

// Roll ages the ring by one frame: what was current becomes one frame
// old, and the oldest row is recycled as the new current frame. Its
// content is stale until written.
func (r *TextureRing) Roll() {
	r.head = (r.head - 1 + r.temporal) % r.temporal
}

// row maps a temporal offset to a physical row.
func (r *TextureRing) row(temporal int) int {
	return (r.head + temporal) % r.temporal
}

// Texture returns the texture at a temporal offset and layer.
func (r *TextureRing) Texture(temporal, layer int) (gpu.Texture, error) {
	if temporal < 0 || temporal >= r.temporal {
		return nil, fmt.Errorf("%w: %d of %d", ErrTemporalOutOfRange, temporal, r.temporal)
	}
	if layer < 0 || layer >= r.layers {
		return nil, fmt.Errorf("%w: %d of %d", ErrLayerOutOfRange, layer, r.layers)
	}
	return r.textures[r.row(temporal)][layer], nil
}

// Write uploads pixel data into the current frame's texture at layer.
func (r *TextureRing) Write(layer int, data []byte) error {
	tex, err := r.Texture(0, layer)
	if err != nil {
		return err
	}
	return tex.Write(data)
}

// Read downloads the texture at a temporal offset and layer.
func (r *TextureRing) Read(temporal, layer int) ([]byte, error) {
	tex, err := r.Texture(temporal, layer)
	if err != nil {
		return nil, err
	}
	return tex.Read()
}

// Bindings returns every sampler binding the ring exposes, named
// <name><temporal>x<layer> with temporal 0 the current frame.
func (r *TextureRing) Bindings() []TextureBinding {
	out := make([]TextureBinding, 0, r.temporal*r.layers)
	for t := 0; t < r.temporal; t++ {
		for l := 0; l < r.layers; l++ {
			out = append(out, TextureBinding{
				Name:    fmt.Sprintf("%s%dx%d", r.Name(), t, l),
				Texture: r.textures[r.row(t)][l],
			})
		}
	}
	return out
}

// Defines aliases <name><t> to that temporal's last layer, the
// composited output of the frame. The current frame's alias is the bare
// name, so a single layer single temporal ring reads naturally as just
// <name>. Matching sampler aliases are emitted too.
func (r *TextureRing) Defines() map[string]string {
	defines := make(map[string]string, 2*r.temporal)
	for t := 0; t < r.temporal; t++ {
		short := r.Name()
		if t > 0 {
			short = fmt.Sprintf("%s%d", r.Name(), t)
		}
		full := fmt.Sprintf("%s%dx%d", r.Name(), t, r.layers-1)
		defines[short] = full
		defines[short+"Sampler"] = full + "Sampler"
	}
	return defines
}

// Destroy releases every texture in the matrix.
func (r *TextureRing) Destroy() {
	r.destroyTextures(r.textures)
	r.textures = nil
}
