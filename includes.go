package shaderflow

import (
	"embed"
	"strings"
)

// Embedded WGSL snippet library. Every ShaderProgram can pull these in
// with #include "name"; user includes with the same name take priority.

//go:embed shaders/*.wgsl
var builtinFS embed.FS

var builtinIncludes = loadBuiltinIncludes()

func loadBuiltinIncludes() map[string]string {
	entries, err := builtinFS.ReadDir("shaders")
	if err != nil {
		panic(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := builtinFS.ReadFile("shaders/" + e.Name())
		if err != nil {
			panic(err)
		}
		name := strings.TrimSuffix(e.Name(), ".wgsl")
		out[name] = string(data)
	}
	return out
}
