// Command shaderflow renders a WGSL shader offline and writes raw RGBA
// frames to a file or stdout, ready to pipe into ffmpeg:
//
//	shaderflow -shader demo.wgsl -width 1920 -height 1080 -fps 60 -seconds 10 -output - |
//	  ffmpeg -f rawvideo -pix_fmt rgba -s 1920x1080 -r 60 -i - out.mp4
//
// Without -shader a built-in demo shader renders.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/shaderflow"
	"github.com/gogpu/shaderflow/backend/native"
)

const demoShader = `
#include "colors"
#include "coordinates"

fn main(uv: vec2<f32>) -> vec4<f32> {
	let gluv = stuv2gluv(uv, iAspect);
	let spin = rotate2d(gluv, 0.3 * iTau * TAU);
	let d = length(spin) - 0.5 - 0.1 * sin(iTime * 3.0);
	let color = palette(d + iTime * 0.2,
		vec3<f32>(0.5), vec3<f32>(0.5),
		vec3<f32>(1.0), vec3<f32>(0.0, 0.33, 0.67));
	let edge = smoothstep(0.01, 0.0, abs(d));
	return vec4<f32>(color * edge, 1.0);
}
`

func main() {
	var (
		width   = flag.Uint("width", 1920, "output width in pixels")
		height  = flag.Uint("height", 1080, "output height in pixels")
		fps     = flag.Float64("fps", 60, "output framerate")
		seconds = flag.Float64("seconds", 10, "render duration in seconds")
		ssaa    = flag.Float64("ssaa", 1, "supersampling factor")
		shader  = flag.String("shader", "", "WGSL shader file (empty: built-in demo)")
		output  = flag.String("output", "output.rgba", `output file, "-" for stdout`)
	)
	flag.Parse()

	dev, cleanup, err := native.Open()
	if err != nil {
		log.Fatalf("Failed to open GPU device: %v", err)
	}
	defer cleanup()
	log.Printf("Rendering on %s", dev.Capabilities().DeviceName)

	scene := shaderflow.NewScene(
		shaderflow.WithResolution(uint32(*width), uint32(*height)),
		shaderflow.WithFramerate(*fps),
		shaderflow.WithRuntime(*seconds),
		shaderflow.WithSSAA(*ssaa),
		shaderflow.WithDevice(dev),
	)
	defer scene.Destroy()

	var program *shaderflow.ShaderProgram
	if *shader != "" {
		program = shaderflow.NewShaderProgramFromFile(*shader)
	} else {
		program = shaderflow.NewShaderProgram(demoShader)
	}
	if err := scene.Add("iScreen", program); err != nil {
		log.Fatalf("Failed to add shader: %v", err)
	}

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *output, err)
		}
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := newRawEncoder(out)
	if err := scene.Export(ctx, enc); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	if *output != "-" {
		log.Printf("Wrote %d frames to %s (%dx%d @ %g fps)",
			scene.TotalFrames(), *output, *width, *height, *fps)
	}
}

// rawEncoder streams raw RGBA frames into a writer.
type rawEncoder struct {
	file *os.File
	buf  *bufio.Writer
}

func newRawEncoder(f *os.File) *rawEncoder {
	return &rawEncoder{file: f, buf: bufio.NewWriterSize(f, 1<<20)}
}

func (e *rawEncoder) Write(frame []byte) error {
	_, err := e.buf.Write(frame)
	return err
}

func (e *rawEncoder) Close() error {
	if err := e.buf.Flush(); err != nil {
		return err
	}
	if e.file == os.Stdout {
		return nil
	}
	return e.file.Close()
}
