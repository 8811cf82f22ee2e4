// Package native implements gpu.Device on top of gogpu/wgpu's hardware
// abstraction layer. The host owns the hal.Device and hal.Queue and
// lends them to the backend; the backend owns the textures, shader
// modules and pipelines it creates on them.
//
// Shader sources arrive fully expanded from the engine's preprocessor.
// The backend appends a fullscreen-triangle vertex stage and a fragment
// entry that calls the user's main(uv) function, compiles the result
// through naga, and derives the bind group layouts from the generated
// declaration header: group 0 holds one uniform buffer per uniform,
// group 1 holds texture/sampler pairs.
package native
