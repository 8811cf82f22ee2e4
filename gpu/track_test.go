package gpu

import (
	"errors"
	"fmt"
	"testing"
)

func TestTrackingDeviceTextureLimits(t *testing.T) {
	dev := NewTrackingDevice()
	dev.MaxTextureSize = 64

	if _, err := dev.CreateTexture(TextureDescriptor{Width: 0, Height: 16}); !errors.Is(err, ErrInvalidTextureSize) {
		t.Fatalf("zero width: got %v, want ErrInvalidTextureSize", err)
	}
	if _, err := dev.CreateTexture(TextureDescriptor{Width: 65, Height: 16}); !errors.Is(err, ErrTextureTooLarge) {
		t.Fatalf("oversize: got %v, want ErrTextureTooLarge", err)
	}
	tex, err := dev.CreateTexture(TextureDescriptor{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("CreateTexture at limit: %v", err)
	}
	if got := dev.LiveTextures(); got != 1 {
		t.Fatalf("LiveTextures = %d, want 1", got)
	}
	tex.Destroy()
	tex.Destroy() // second destroy is a no-op
	if got := dev.LiveTextures(); got != 0 {
		t.Fatalf("LiveTextures after destroy = %d, want 0", got)
	}
}

func TestTrackingTextureReadWrite(t *testing.T) {
	dev := NewTrackingDevice()
	tex, err := dev.CreateTexture(TextureDescriptor{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := tex.Write([]byte{1, 2, 3}); !errors.Is(err, ErrWriteSize) {
		t.Fatalf("short write: got %v, want ErrWriteSize", err)
	}
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	if err := tex.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := tex.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range got {
		if got[i] != byte(i) {
			t.Fatalf("pixel %d = %d, want %d", i, got[i], i)
		}
	}
	tex.Destroy()
	if _, err := tex.Read(); !errors.Is(err, ErrTextureDestroyed) {
		t.Fatalf("read after destroy: got %v, want ErrTextureDestroyed", err)
	}
}

func TestTrackingProgramUniforms(t *testing.T) {
	dev := NewTrackingDevice()
	prog, err := dev.CompileProgram(ProgramDescriptor{
		Label:    "main",
		Source:   "fn main() { let x = iTime; }",
		Uniforms: []string{"iTime", "iUnused"},
	})
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	if err := prog.SetUniform("iTime", float32(1.5)); err != nil {
		t.Fatalf("SetUniform iTime: %v", err)
	}
	// Declared but never read by the source.
	if err := prog.SetUniform("iUnused", 0); !errors.Is(err, ErrUnknownUniform) {
		t.Fatalf("unreferenced uniform: got %v, want ErrUnknownUniform", err)
	}
	if err := prog.SetUniform("iNever", 0); !errors.Is(err, ErrUnknownUniform) {
		t.Fatalf("undeclared uniform: got %v, want ErrUnknownUniform", err)
	}
	v, ok := prog.(*trackingProgram).Uniform("iTime")
	if !ok || v.(float32) != 1.5 {
		t.Fatalf("Uniform(iTime) = %v, %v", v, ok)
	}
	prog.Destroy()
	if err := prog.SetUniform("iTime", 0); !errors.Is(err, ErrProgramDestroyed) {
		t.Fatalf("set after destroy: got %v, want ErrProgramDestroyed", err)
	}
	if got := dev.LivePrograms(); got != 0 {
		t.Fatalf("LivePrograms = %d, want 0", got)
	}
}

func TestTrackingDeviceCompileHook(t *testing.T) {
	dev := NewTrackingDevice()
	dev.CompileHook = func(desc ProgramDescriptor) error {
		return fmt.Errorf("syntax error at line 3")
	}
	_, err := dev.CompileProgram(ProgramDescriptor{Label: "broken", Source: "fn"})
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("got %v, want ErrCompile", err)
	}
	if got := dev.LivePrograms(); got != 0 {
		t.Fatalf("failed compile leaked a program: LivePrograms = %d", got)
	}
}

func TestTrackingDeviceDrawCount(t *testing.T) {
	dev := NewTrackingDevice()
	prog, err := dev.CompileProgram(ProgramDescriptor{Label: "p", Source: ""})
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	tex, err := dev.CreateTexture(TextureDescriptor{Width: 1, Height: 1})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := prog.Draw(tex, true); err != nil {
			t.Fatalf("Draw: %v", err)
		}
	}
	if got := dev.Draws(); got != 3 {
		t.Fatalf("Draws = %d, want 3", got)
	}
}
