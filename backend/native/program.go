package native

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderflow"
	"github.com/gogpu/shaderflow/gpu"
)

// programScaffold is appended to every program source. The vertex stage
// emits one oversized triangle covering the viewport; the fragment stage
// calls the user's main(uv) with 0..1 coordinates, origin top-left.
const programScaffold = `
struct FullscreenOut {
	@builtin(position) clip: vec4<f32>,
	@location(0) stuv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> FullscreenOut {
	let x = f32(i32(index) / 2) * 4.0 - 1.0;
	let y = f32(i32(index) % 2) * 4.0 - 1.0;
	var out: FullscreenOut;
	out.clip = vec4<f32>(x, y, 0.0, 1.0);
	out.stuv = vec2<f32>((x + 1.0) * 0.5, 1.0 - (y + 1.0) * 0.5);
	return out;
}

@fragment
fn fs_main(in: FullscreenOut) -> @location(0) vec4<f32> {
	return main(in.stuv);
}
`

// Declaration headers generated by the engine's preprocessor. The bind
// group layouts are derived from these instead of compiler reflection.
var (
	uniformDecl = regexp.MustCompile(`@group\(0\)\s*@binding\((\d+)\)\s*var<uniform>\s*(\w+)\s*:`)
	textureDecl = regexp.MustCompile(`@group\(1\)\s*@binding\((\d+)\)\s*var\s+(\w+)\s*:\s*texture_2d<f32>\s*;`)
)

// uniformSlot is one group-0 binding: a 16-byte uniform buffer and its
// CPU-side staging copy.
type uniformSlot struct {
	binding uint32
	buffer  hal.Buffer
	data    [16]byte
	dirty   bool
}

// textureSlot is one group-1 texture binding. The matching sampler sits
// at binding+1.
type textureSlot struct {
	binding uint32
	tex     *Texture
}

// Program is a compiled fullscreen pass. One render pipeline is created
// per target format on first use.
type Program struct {
	backend *Device
	label   string

	module        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipelines     map[gputypes.TextureFormat]hal.RenderPipeline

	uniforms     map[string]*uniformSlot
	textures     map[string]*textureSlot
	uniformGroup hal.BindGroup

	destroyed bool
}

// CompileProgram compiles fully expanded WGSL through naga and builds
// the bind group and pipeline layouts. Compile failures wrap
// gpu.ErrCompile with the compiler diagnostic; the caller keeps its
// previous program.
func (d *Device) CompileProgram(desc gpu.ProgramDescriptor) (gpu.Program, error) {
	source := desc.Source + programScaffold

	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gpu.ErrCompile, desc.Label, err)
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gpu.ErrCompile, desc.Label, err)
	}

	p := &Program{
		backend:   d,
		label:     desc.Label,
		module:    module,
		pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline),
		uniforms:  make(map[string]*uniformSlot),
		textures:  make(map[string]*textureSlot),
	}
	if err := p.buildLayouts(desc.Source); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// buildLayouts parses the generated declaration header and creates the
// uniform buffers, bind group layouts and pipeline layout.
func (p *Program) buildLayouts(source string) error {
	dev := p.backend.device

	var uniformEntries []gputypes.BindGroupLayoutEntry
	for _, m := range uniformDecl.FindAllStringSubmatch(source, -1) {
		binding, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return fmt.Errorf("native: %s: uniform binding %q: %w", p.label, m[1], err)
		}
		name := m[2]
		buf, err := dev.CreateBuffer(&hal.BufferDescriptor{
			Label: p.label + "_" + name,
			Size:  16,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("native: %s: create uniform buffer %q: %w", p.label, name, err)
		}
		p.uniforms[name] = &uniformSlot{binding: uint32(binding), buffer: buf}
		uniformEntries = append(uniformEntries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(binding),
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}

	var textureEntries []gputypes.BindGroupLayoutEntry
	for _, m := range textureDecl.FindAllStringSubmatch(source, -1) {
		binding, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return fmt.Errorf("native: %s: texture binding %q: %w", p.label, m[1], err)
		}
		name := m[2]
		p.textures[name] = &textureSlot{binding: uint32(binding)}
		textureEntries = append(textureEntries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(binding),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(binding) + 1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}

	uniformLayout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.label + "_uniform_layout",
		Entries: uniformEntries,
	})
	if err != nil {
		return fmt.Errorf("native: %s: create uniform layout: %w", p.label, err)
	}
	p.uniformLayout = uniformLayout

	textureLayout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.label + "_texture_layout",
		Entries: textureEntries,
	})
	if err != nil {
		return fmt.Errorf("native: %s: create texture layout: %w", p.label, err)
	}
	p.textureLayout = textureLayout

	pipeLayout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout, p.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("native: %s: create pipeline layout: %w", p.label, err)
	}
	p.pipeLayout = pipeLayout
	return nil
}

// Label returns the program's debug label.
func (p *Program) Label() string { return p.label }

// SetUniform stages a named uniform value for the next draw.
func (p *Program) SetUniform(name string, value any) error {
	if p.destroyed {
		return fmt.Errorf("%w: %s", gpu.ErrProgramDestroyed, p.label)
	}
	slot, ok := p.uniforms[name]
	if !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownUniform, name)
	}
	if err := encodeUniform(value, slot.data[:]); err != nil {
		return fmt.Errorf("native: %s: uniform %q: %w", p.label, name, err)
	}
	slot.dirty = true
	return nil
}

// encodeUniform writes value as its WGSL layout into dst. Booleans
// upload as u32.
func encodeUniform(value any, dst []byte) error {
	put := func(i int, bits uint32) { binary.LittleEndian.PutUint32(dst[i*4:], bits) }
	switch v := value.(type) {
	case bool:
		var bits uint32
		if v {
			bits = 1
		}
		put(0, bits)
	case int32:
		put(0, uint32(v))
	case uint32:
		put(0, v)
	case float32:
		put(0, math.Float32bits(v))
	case shaderflow.Vec2:
		put(0, math.Float32bits(v.X))
		put(1, math.Float32bits(v.Y))
	case shaderflow.Vec3:
		put(0, math.Float32bits(v.X))
		put(1, math.Float32bits(v.Y))
		put(2, math.Float32bits(v.Z))
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
	return nil
}

// BindTexture binds a named texture for the next draw.
func (p *Program) BindTexture(name string, tex gpu.Texture) error {
	if p.destroyed {
		return fmt.Errorf("%w: %s", gpu.ErrProgramDestroyed, p.label)
	}
	slot, ok := p.textures[name]
	if !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownUniform, name)
	}
	nt, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: %s", ErrForeignTexture, name)
	}
	if nt.destroyed {
		return fmt.Errorf("%w: %s", gpu.ErrTextureDestroyed, nt.label)
	}
	slot.tex = nt
	return nil
}

// pipelineFor returns the render pipeline for a target format, creating
// it on first use.
func (p *Program) pipelineFor(format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if pipe, ok := p.pipelines[format]; ok {
		return pipe, nil
	}
	premul := gputypes.BlendStatePremultiplied()
	pipe, err := p.backend.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  p.label + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				Blend:     &premul,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s: create pipeline: %w", p.label, err)
	}
	p.pipelines[format] = pipe
	return pipe, nil
}

// ensureUniformGroup creates the group-0 bind group on first draw. The
// uniform buffers never change identity, so one bind group serves the
// program's whole lifetime.
func (p *Program) ensureUniformGroup() (hal.BindGroup, error) {
	if p.uniformGroup != nil {
		return p.uniformGroup, nil
	}
	entries := make([]gputypes.BindGroupEntry, 0, len(p.uniforms))
	for _, slot := range p.uniforms {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  slot.binding,
			Resource: gputypes.BufferBinding{Buffer: slot.buffer.NativeHandle(), Offset: 0, Size: 0},
		})
	}
	group, err := p.backend.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.label + "_uniform_bind",
		Layout:  p.uniformLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s: create uniform bind group: %w", p.label, err)
	}
	p.uniformGroup = group
	return group, nil
}

// textureGroup creates the group-1 bind group for the textures bound
// this frame. Ring rotation changes which physical texture sits behind
// each name, so the group is rebuilt per draw.
func (p *Program) textureGroup() (hal.BindGroup, error) {
	sampler, err := p.backend.linearSampler()
	if err != nil {
		return nil, err
	}
	entries := make([]gputypes.BindGroupEntry, 0, 2*len(p.textures))
	for name, slot := range p.textures {
		if slot.tex == nil {
			return nil, fmt.Errorf("native: %s: texture %q never bound", p.label, name)
		}
		view, err := slot.tex.ensureView()
		if err != nil {
			return nil, err
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding: slot.binding,
				Resource: gputypes.TextureViewBinding{
					TextureView: view.NativeHandle(),
				},
			},
			gputypes.BindGroupEntry{
				Binding: slot.binding + 1,
				Resource: gputypes.SamplerBinding{
					Sampler: sampler.NativeHandle(),
				},
			},
		)
	}
	group, err := p.backend.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.label + "_texture_bind",
		Layout:  p.textureLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s: create texture bind group: %w", p.label, err)
	}
	return group, nil
}

// Draw executes the fullscreen pass into the target texture.
func (p *Program) Draw(target gpu.Texture, clear bool) error {
	if p.destroyed {
		return fmt.Errorf("%w: %s", gpu.ErrProgramDestroyed, p.label)
	}
	nt, ok := target.(*Texture)
	if !ok {
		return fmt.Errorf("%w: draw target", ErrForeignTexture)
	}
	if nt.destroyed {
		return fmt.Errorf("%w: %s", gpu.ErrTextureDestroyed, nt.label)
	}
	dev := p.backend.device

	pipe, err := p.pipelineFor(nt.format)
	if err != nil {
		return err
	}
	targetView, err := nt.ensureView()
	if err != nil {
		return err
	}
	uniformGroup, err := p.ensureUniformGroup()
	if err != nil {
		return err
	}
	texGroup, err := p.textureGroup()
	if err != nil {
		return err
	}
	defer dev.DestroyBindGroup(texGroup)

	for _, slot := range p.uniforms {
		if slot.dirty {
			p.backend.queue.WriteBuffer(slot.buffer, 0, slot.data[:])
			slot.dirty = false
		}
	}

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: p.label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.label + "_pass"); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}

	for _, slot := range p.textures {
		slot.tex.transition(encoder, gputypes.TextureUsageTextureBinding)
	}
	nt.transition(encoder, gputypes.TextureUsageRenderAttachment)

	loadOp := gputypes.LoadOpLoad
	if clear {
		loadOp = gputypes.LoadOpClear
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: p.label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       targetView,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(pipe)
	rp.SetBindGroup(0, uniformGroup, nil)
	rp.SetBindGroup(1, texGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	fence, err := dev.CreateFence()
	if err != nil {
		return fmt.Errorf("native: create fence: %w", err)
	}
	defer dev.DestroyFence(fence)

	if err := p.backend.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("native: submit draw: %w", err)
	}
	fenceOK, err := dev.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return fmt.Errorf("native: wait for draw: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// Destroy releases the program's GPU resources in reverse creation
// order. Safe to call more than once.
func (p *Program) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	dev := p.backend.device

	if p.uniformGroup != nil {
		dev.DestroyBindGroup(p.uniformGroup)
		p.uniformGroup = nil
	}
	for _, pipe := range p.pipelines {
		dev.DestroyRenderPipeline(pipe)
	}
	p.pipelines = nil
	if p.pipeLayout != nil {
		dev.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.textureLayout != nil {
		dev.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.uniformLayout != nil {
		dev.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	for _, slot := range p.uniforms {
		if slot.buffer != nil {
			dev.DestroyBuffer(slot.buffer)
			slot.buffer = nil
		}
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
		p.module = nil
	}
}
