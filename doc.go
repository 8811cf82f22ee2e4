// Package shaderflow is a real-time and offline rendering engine core for
// fullscreen fragment-shader pipelines.
//
// # Overview
//
// shaderflow composes a graph of stateful modules that produce shader
// uniforms, drives a fullscreen shader pipeline every frame, and can export
// the result deterministically to an external encoder. It is a Pure Go
// engine core built on the GoGPU ecosystem (gogpu/wgpu, gogpu/naga).
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/shaderflow"
//	    "github.com/gogpu/shaderflow/backend/native"
//	)
//
//	// Create a scene on a GPU device
//	dev, cleanup, _ := native.Open()
//	defer cleanup()
//	sc := shaderflow.NewScene(
//	    shaderflow.WithDevice(dev),
//	    shaderflow.WithResolution(1920, 1080),
//	)
//
//	// Attach a fullscreen shader reading the scene's built-in uniforms
//	sc.Add("iScreen", shaderflow.NewShaderProgram(mySource))
//
//	// Run interactively, or export deterministically
//	sc.Run(ctx)
//	sc.Export(ctx, encoder)
//
// # Architecture
//
// The engine is organized into:
//   - Module graph: Scene, Module lifecycle (Build/Setup/Update/Pipeline/Handle/Destroy)
//   - Frame scheduler: realtime (wall-clock) and freewheel (virtual-time) regimes
//   - Texture ring: layer x temporal GPU texture history for shaders
//   - Shader pipeline: include/define preprocessing, content-hash program cache
//   - Camera: quaternion pose and pure projection math (perspective,
//     stereoscopic, equirectangular)
//   - gpu/: the abstract device surface the core consumes
//   - backend/native/: gogpu/wgpu + naga implementation of gpu.Device
//
// # Concurrency
//
// The update/render loop is single-threaded and cooperative: all module
// hooks run sequentially on one goroutine per frame. Only the audio worker
// and the export encoder handoff cross goroutine boundaries, both through
// immutable snapshots or bounded channels.
package shaderflow

// Version is the current version of the engine core.
const Version = "0.3.0"
