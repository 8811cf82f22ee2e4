package shaderflow

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrMissingInclude is returned for an include directive naming an
	// unregistered snippet.
	ErrMissingInclude = errors.New("shaderflow: include not registered")

	// ErrIncludeCycle is returned when include expansion revisits a
	// snippet already on the expansion stack.
	ErrIncludeCycle = errors.New("shaderflow: include cycle")
)

// includeDirective matches a line of the form: #include "name"
var includeDirective = regexp.MustCompile(`^\s*#include\s+"([^"]+)"\s*$`)

// Preprocessor assembles the final WGSL program a Scene compiles: it
// expands include directives from a snippet registry, prepends generated
// uniform and sampler declarations, and applies textual defines. WGSL
// has no preprocessor of its own, so this runs before the compiler sees
// the source.
type Preprocessor struct {
	includes map[string]string
	defines  map[string]string
}

// NewPreprocessor creates an empty preprocessor.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		includes: make(map[string]string),
		defines:  make(map[string]string),
	}
}

// Include registers a named snippet, replacing any previous one.
func (p *Preprocessor) Include(name, source string) {
	p.includes[name] = source
}

// Define registers a whole-word textual replacement.
func (p *Preprocessor) Define(name, replacement string) {
	p.defines[name] = replacement
}

// Process assembles a complete program from user content: generated
// declarations for the uniforms and samplers, then the content with
// includes expanded, then defines applied to the whole result.
func (p *Preprocessor) Process(content string, uniforms []Uniform, bindings []TextureBinding) (string, error) {
	var b strings.Builder

	for i, u := range uniforms {
		typ, err := u.WGSLType()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<uniform> %s: %s;\n", i, u.Name, typ)
	}
	for i, t := range bindings {
		fmt.Fprintf(&b, "@group(1) @binding(%d) var %s: texture_2d<f32>;\n", 2*i, t.Name)
		fmt.Fprintf(&b, "@group(1) @binding(%d) var %sSampler: sampler;\n", 2*i+1, t.Name)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}

	expanded, err := p.expand(content, nil)
	if err != nil {
		return "", err
	}
	b.WriteString(expanded)

	return p.applyDefines(b.String()), nil
}

// expand replaces include directives line by line, recursing into the
// included snippets. stack holds the names currently being expanded.
func (p *Preprocessor) expand(source string, stack []string) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m := includeDirective.FindStringSubmatch(line)
		if m == nil {
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}
		name := m[1]
		for _, on := range stack {
			if on == name {
				return "", fmt.Errorf("%w: %s", ErrIncludeCycle,
					strings.Join(append(stack, name), " -> "))
			}
		}
		snippet, ok := p.includes[name]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrMissingInclude, name)
		}
		inner, err := p.expand(snippet, append(stack, name))
		if err != nil {
			return "", err
		}
		b.WriteString(inner)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("shaderflow: scan shader source: %w", err)
	}
	return b.String(), nil
}

// applyDefines performs whole-word replacements in name order, longest
// first so that overlapping names cannot shadow each other.
func (p *Preprocessor) applyDefines(source string) string {
	if len(p.defines) == 0 {
		return source
	}
	names := make([]string, 0, len(p.defines))
	for name := range p.defines {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		source = re.ReplaceAllString(source, p.defines[name])
	}
	return source
}
