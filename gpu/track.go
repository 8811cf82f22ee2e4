package gpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
)

// TrackingDevice is an in-memory Device that records resource lifecycles.
// It backs the engine's own tests: allocation limits, uniform binding
// semantics, compile failure recovery, and the zero-leak destroy property.
//
// Unlike real backends, TrackingDevice is safe for concurrent use so tests
// may inspect it while a scheduler goroutine runs.
type TrackingDevice struct {
	mu sync.Mutex

	// MaxTextureSize is the reported device limit. Defaults to 8192.
	MaxTextureSize uint32

	// CompileHook, when set, is consulted before every CompileProgram
	// call. Returning a non-nil error simulates a compiler diagnostic.
	CompileHook func(desc ProgramDescriptor) error

	textures     int
	programs     int
	liveTextures int
	livePrograms int
	draws        int
}

// NewTrackingDevice creates a TrackingDevice with default limits.
func NewTrackingDevice() *TrackingDevice {
	return &TrackingDevice{MaxTextureSize: 8192}
}

func (d *TrackingDevice) Capabilities() Capabilities {
	return Capabilities{
		MaxTextureSize: d.MaxTextureSize,
		DeviceName:     "shaderflow tracking device",
	}
}

func (d *TrackingDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, desc.Width, desc.Height)
	}
	if max := d.MaxTextureSize; desc.Width > max || desc.Height > max {
		return nil, fmt.Errorf("%w: requested %dx%d, device limit %d",
			ErrTextureTooLarge, desc.Width, desc.Height, max)
	}
	d.mu.Lock()
	d.textures++
	d.liveTextures++
	d.mu.Unlock()
	return &trackingTexture{
		device: d,
		desc:   desc,
		data:   make([]byte, desc.Width*desc.Height*BytesPerPixel(desc.Format)),
	}, nil
}

func (d *TrackingDevice) CompileProgram(desc ProgramDescriptor) (Program, error) {
	if d.CompileHook != nil {
		if err := d.CompileHook(desc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCompile, desc.Label, err)
		}
	}
	// A uniform is "referenced" when its name appears in the expanded
	// source. Real backends get this from compiler reflection; the text
	// scan models the same contract for tests.
	referenced := make(map[string]bool, len(desc.Uniforms))
	for _, name := range desc.Uniforms {
		referenced[name] = strings.Contains(desc.Source, name)
	}
	d.mu.Lock()
	d.programs++
	d.livePrograms++
	d.mu.Unlock()
	return &trackingProgram{
		device:     d,
		desc:       desc,
		referenced: referenced,
		uniforms:   make(map[string]any),
		samplers:   make(map[string]Texture),
	}, nil
}

// LiveTextures reports textures created and not yet destroyed.
func (d *TrackingDevice) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveTextures
}

// LivePrograms reports programs created and not yet destroyed.
func (d *TrackingDevice) LivePrograms() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.livePrograms
}

// Draws reports the total number of draw calls executed.
func (d *TrackingDevice) Draws() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// trackingTexture stores pixel data in memory.
type trackingTexture struct {
	device    *TrackingDevice
	desc      TextureDescriptor
	data      []byte
	destroyed bool
}

func (t *trackingTexture) Label() string                  { return t.desc.Label }
func (t *trackingTexture) Width() uint32                  { return t.desc.Width }
func (t *trackingTexture) Height() uint32                 { return t.desc.Height }
func (t *trackingTexture) Format() gputypes.TextureFormat { return t.desc.Format }

func (t *trackingTexture) Write(data []byte) error {
	if t.destroyed {
		return ErrTextureDestroyed
	}
	if len(data) != len(t.data) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrWriteSize, len(data), len(t.data))
	}
	copy(t.data, data)
	return nil
}

func (t *trackingTexture) Read() ([]byte, error) {
	if t.destroyed {
		return nil, ErrTextureDestroyed
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out, nil
}

func (t *trackingTexture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.device.mu.Lock()
	t.device.liveTextures--
	t.device.mu.Unlock()
}

// trackingProgram records uniform bindings and draw calls.
type trackingProgram struct {
	device     *TrackingDevice
	desc       ProgramDescriptor
	referenced map[string]bool
	uniforms   map[string]any
	samplers   map[string]Texture
	destroyed  bool
}

func (p *trackingProgram) Label() string { return p.desc.Label }

func (p *trackingProgram) SetUniform(name string, value any) error {
	if p.destroyed {
		return ErrProgramDestroyed
	}
	if !p.referenced[name] {
		return fmt.Errorf("%w: %q", ErrUnknownUniform, name)
	}
	p.uniforms[name] = value
	return nil
}

func (p *trackingProgram) BindTexture(name string, tex Texture) error {
	if p.destroyed {
		return ErrProgramDestroyed
	}
	if !p.referenced[name] {
		return fmt.Errorf("%w: %q", ErrUnknownUniform, name)
	}
	p.samplers[name] = tex
	return nil
}

func (p *trackingProgram) Draw(target Texture, clear bool) error {
	if p.destroyed {
		return ErrProgramDestroyed
	}
	if target == nil {
		return fmt.Errorf("gpu: draw without target")
	}
	p.device.mu.Lock()
	p.device.draws++
	p.device.mu.Unlock()
	return nil
}

func (p *trackingProgram) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.device.mu.Lock()
	p.device.livePrograms--
	p.device.mu.Unlock()
}

// Uniform returns the last value bound for name, for test assertions.
func (p *trackingProgram) Uniform(name string) (any, bool) {
	v, ok := p.uniforms[name]
	return v, ok
}
