// Package gpu defines the abstract GPU capability surface the shaderflow
// engine core consumes.
//
// The engine never creates a GPU context itself: it RECEIVES a Device from
// the host application and uses it to allocate textures and compile shader
// programs. This mirrors the gpucontext integration pattern used across the
// GoGPU ecosystem and keeps the engine core testable without GPU access.
//
// Implementations:
//   - backend/native: gogpu/wgpu HAL device with naga WGSL compilation
//   - TrackingDevice (this package): in-memory device that records resource
//     lifecycles, used by the engine's own tests
package gpu
