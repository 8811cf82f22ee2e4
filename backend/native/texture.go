package native

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderflow/gpu"
)

// Texture is a 2D image on the hal device. It tracks its current usage
// state so copies and render passes can insert the layout transitions
// Vulkan and DX12 require; the transitions are no-ops on Metal and GLES.
type Texture struct {
	backend *Device
	tex     hal.Texture
	view    hal.TextureView

	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat
	usage  gputypes.TextureUsage

	destroyed bool
}

// Label returns the texture's debug label.
func (t *Texture) Label() string { return t.label }

// Width returns the texture width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the texture pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// ensureView creates the texture view on first use.
func (t *Texture) ensureView() (hal.TextureView, error) {
	if t.view != nil {
		return t.view, nil
	}
	view, err := t.backend.device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
		Label:         t.label + "_view",
		Format:        t.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create view for %q: %w", t.label, err)
	}
	t.view = view
	return view, nil
}

// transition records a usage barrier when the texture is not already in
// the requested state.
func (t *Texture) transition(encoder hal.CommandEncoder, usage gputypes.TextureUsage) {
	if t.usage == usage {
		return
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: t.usage, NewUsage: usage},
	}})
	t.usage = usage
}

// Write uploads a full image of tightly packed pixel data.
func (t *Texture) Write(data []byte) error {
	if t.destroyed {
		return fmt.Errorf("%w: %s", gpu.ErrTextureDestroyed, t.label)
	}
	bytesPerRow := t.width * gpu.BytesPerPixel(t.format)
	if want := uint64(bytesPerRow) * uint64(t.height); uint64(len(data)) != want {
		return fmt.Errorf("%w: %s: got %d bytes, want %d", gpu.ErrWriteSize, t.label, len(data), want)
	}

	t.backend.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: t.height},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
	t.usage = gputypes.TextureUsageCopyDst
	return nil
}

// Read downloads the full texture contents through a staging buffer.
// Copy pitch must be 256-byte aligned on WebGPU and DX12, so rows are
// read back padded and repacked tight.
func (t *Texture) Read() ([]byte, error) {
	if t.destroyed {
		return nil, fmt.Errorf("%w: %s", gpu.ErrTextureDestroyed, t.label)
	}
	dev := t.backend.device

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: t.label + "_readback",
	})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(t.label + "_readback"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}

	bytesPerRow := t.width * gpu.BytesPerPixel(t.format)
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(t.height)

	staging, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: t.label + "_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer dev.DestroyBuffer(staging)

	t.transition(encoder, gputypes.TextureUsageCopySrc)
	encoder.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: t.height},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	}})
	t.transition(encoder, gputypes.TextureUsageRenderAttachment)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	fence, err := dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	defer dev.DestroyFence(fence)

	if err := t.backend.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("native: submit readback: %w", err)
	}
	fenceOK, err := dev.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("native: wait for readback: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, stagingSize)
	if err := t.backend.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("native: read staging buffer: %w", err)
	}

	if alignedBytesPerRow == bytesPerRow {
		return readback[:uint64(bytesPerRow)*uint64(t.height)], nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(t.height))
	for row := uint32(0); row < t.height; row++ {
		srcOff := uint64(row) * uint64(alignedBytesPerRow)
		dstOff := uint64(row) * uint64(bytesPerRow)
		copy(tight[dstOff:dstOff+uint64(bytesPerRow)], readback[srcOff:srcOff+uint64(bytesPerRow)])
	}
	return tight, nil
}

// Destroy releases the texture and its view. Safe to call more than once.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if t.view != nil {
		t.backend.device.DestroyTextureView(t.view)
		t.view = nil
	}
	t.backend.device.DestroyTexture(t.tex)
	t.tex = nil
}
