package gpu

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Device errors.
var (
	// ErrTextureTooLarge is returned when a requested texture exceeds the
	// device's maximum texture dimension.
	ErrTextureTooLarge = errors.New("gpu: texture size exceeds device limit")

	// ErrInvalidTextureSize is returned when texture dimensions are zero.
	ErrInvalidTextureSize = errors.New("gpu: invalid texture size")

	// ErrTextureDestroyed is returned when operating on a destroyed texture.
	ErrTextureDestroyed = errors.New("gpu: texture has been destroyed")

	// ErrProgramDestroyed is returned when operating on a destroyed program.
	ErrProgramDestroyed = errors.New("gpu: program has been destroyed")

	// ErrUnknownUniform is returned by Program.SetUniform when the compiled
	// shader does not reference a uniform of that name. Callers that bind a
	// full pipeline may treat this as non-fatal and skip the variable.
	ErrUnknownUniform = errors.New("gpu: unknown uniform")

	// ErrCompile is the base error for shader compilation failures. The
	// returned error wraps ErrCompile and carries the compiler diagnostic.
	ErrCompile = errors.New("gpu: shader compile error")

	// ErrWriteSize is returned when Texture.Write is called with a byte
	// slice that does not match the texture's size and format.
	ErrWriteSize = errors.New("gpu: write data size mismatch")
)

// Device is the capability surface the engine core requires from a GPU
// backend: texture allocation and shader program compilation. The device
// is owned by the host; the engine only borrows it for the lifetime of a
// Scene.
//
// Thread Safety: the engine calls Device methods from a single goroutine
// (the frame loop). Implementations do not need internal locking for the
// engine's sake.
type Device interface {
	// CreateTexture allocates a 2D texture. Fails with ErrTextureTooLarge
	// when the requested size exceeds Capabilities().MaxTextureSize; the
	// error message reports the requested and available sizes.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CompileProgram compiles a fullscreen shader program from fully
	// expanded source. A failure wraps ErrCompile and is recoverable:
	// the caller keeps its previous program.
	CompileProgram(desc ProgramDescriptor) (Program, error)

	// Capabilities reports static device limits.
	Capabilities() Capabilities
}

// Capabilities describes the limits of a GPU device that the engine
// checks before allocating resources.
type Capabilities struct {
	// MaxTextureSize is the maximum texture dimension in pixels.
	MaxTextureSize uint32

	// DeviceName is a human-readable device identifier for logs.
	DeviceName string
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Width and Height are the texture dimensions in pixels.
	Width  uint32
	Height uint32

	// Format is the texture pixel format.
	Format gputypes.TextureFormat
}

// Texture is a 2D GPU image the engine can write pixel data into, read
// back for export, and bind to shader programs.
type Texture interface {
	// Label returns the texture's debug label.
	Label() string

	// Width returns the texture width in pixels.
	Width() uint32

	// Height returns the texture height in pixels.
	Height() uint32

	// Format returns the texture pixel format.
	Format() gputypes.TextureFormat

	// Write uploads a full image worth of pixel data. The slice length
	// must equal Width*Height*BytesPerPixel(Format).
	Write(data []byte) error

	// Read downloads the full texture contents. Used by the exporter.
	Read() ([]byte, error)

	// Destroy releases the GPU resource. Safe to call more than once.
	Destroy()
}

// ProgramDescriptor describes a shader program to compile. Source is the
// fully expanded shader text (all includes and defines resolved); Uniforms
// lists every uniform the caller may bind, in declaration order.
type ProgramDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Source is the fully expanded shader source text.
	Source string

	// Uniforms are the names of uniforms declared for this program.
	Uniforms []string
}

// Program is a compiled fullscreen shader program. Exactly one program is
// bound per draw call; binding happens through SetUniform/BindTexture
// followed by Draw.
type Program interface {
	// Label returns the program's debug label.
	Label() string

	// SetUniform binds a named uniform value for the next draw. Returns
	// ErrUnknownUniform when the compiled shader does not reference the
	// name.
	SetUniform(name string, value any) error

	// BindTexture binds a named texture sampler for the next draw.
	// Returns ErrUnknownUniform when the shader does not reference it.
	BindTexture(name string, tex Texture) error

	// Draw executes the fullscreen pass into the target texture.
	Draw(target Texture, clear bool) error

	// Destroy releases the GPU resource. Safe to call more than once.
	Destroy()
}

// BytesPerPixel returns the pixel stride for the formats the engine uses.
// Unknown formats report 4 (the RGBA8 family stride).
func BytesPerPixel(format gputypes.TextureFormat) uint32 {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 4
	}
}
