package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderflow/gpu"
)

// ErrForeignTexture is returned when a texture created by another
// backend is passed to a program or draw call.
var ErrForeignTexture = errors.New("native: texture belongs to another backend")

// Device implements gpu.Device over a hal.Device and hal.Queue borrowed
// from the host application. The host keeps ownership of both; Destroy
// releases only the resources the backend created itself.
type Device struct {
	device hal.Device
	queue  hal.Queue
	limits gputypes.Limits
	name   string

	// Shared linear clamp sampler for all texture bindings, created on
	// first use.
	sampler hal.Sampler
}

var (
	_ gpu.Device  = (*Device)(nil)
	_ gpu.Texture = (*Texture)(nil)
	_ gpu.Program = (*Program)(nil)
)

// Option configures a Device at construction.
type Option func(*Device)

// WithLimits overrides the adapter limits the backend validates against.
func WithLimits(limits gputypes.Limits) Option {
	return func(d *Device) { d.limits = limits }
}

// WithName sets the device name reported in Capabilities.
func WithName(name string) Option {
	return func(d *Device) { d.name = name }
}

// New wraps a hal device and queue as a gpu.Device. When no limits are
// supplied the gputypes defaults apply.
func New(device hal.Device, queue hal.Queue, opts ...Option) *Device {
	d := &Device{
		device: device,
		queue:  queue,
		limits: gputypes.DefaultLimits(),
		name:   "gogpu native",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capabilities reports the adapter limits relevant to the engine.
func (d *Device) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{
		MaxTextureSize: d.limits.MaxTextureDimension2D,
		DeviceName:     d.name,
	}
}

// CreateTexture allocates a 2D texture usable as render target, sampled
// texture and copy source/destination.
func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", gpu.ErrInvalidTextureSize, desc.Width, desc.Height)
	}
	if limit := d.limits.MaxTextureDimension2D; desc.Width > limit || desc.Height > limit {
		return nil, fmt.Errorf("%w: requested %dx%d, device limit %d",
			gpu.ErrTextureTooLarge, desc.Width, desc.Height, limit)
	}

	format := desc.Format
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}

	return &Texture{
		backend: d,
		tex:     tex,
		label:   desc.Label,
		width:   desc.Width,
		height:  desc.Height,
		format:  format,
		usage:   gputypes.TextureUsageCopyDst,
	}, nil
}

// linearSampler returns the shared clamp-to-edge linear sampler.
func (d *Device) linearSampler() (hal.Sampler, error) {
	if d.sampler != nil {
		return d.sampler, nil
	}
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "shaderflow_linear_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create sampler: %w", err)
	}
	d.sampler = sampler
	return sampler, nil
}

// Destroy releases the backend's shared resources. Textures and programs
// are destroyed individually by their owners; the hal device and queue
// stay with the host.
func (d *Device) Destroy() {
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
}
