package shaderflow

import (
	"errors"
	"fmt"
	"math"
)

// ErrResolutionIncomplete is returned when a resize request cannot
// produce both components.
var ErrResolutionIncomplete = errors.New("shaderflow: resolution missing a component")

// ResolutionFit solves one resize request: a surface is at (OldWidth,
// OldHeight), a resize to (NewWidth, NewHeight) was asked, and the final
// size may be constrained by an aspect ratio and a bounding box. Zero
// means "not given" for every field.
//
// Without an aspect ratio, each requested component simply overrides the
// old one and is clamped to the box independently. With an aspect ratio,
// the missing component is derived from the given one; when both are
// given, width changes win. The box then shrinks both components by a
// common factor so the ratio survives the clamp.
type ResolutionFit struct {
	OldWidth, OldHeight uint32
	NewWidth, NewHeight uint32
	MaxWidth, MaxHeight uint32

	// Aspect is the enforced width over height ratio. Zero disables it.
	Aspect float64

	// Scale multiplies the final resolution. Zero means 1.
	Scale float64

	// Multiple rounds each final component to this step. Zero means 2,
	// which keeps sizes friendly to video encoders.
	Multiple uint32
}

// Solve returns the final resolution for the request.
func (f ResolutionFit) Solve() (uint32, uint32, error) {
	scale := f.Scale
	if scale == 0 {
		scale = 1
	}
	multiple := f.Multiple
	if multiple == 0 {
		multiple = 2
	}

	width := float64(f.NewWidth)
	if width == 0 {
		width = float64(f.OldWidth)
	}
	height := float64(f.NewHeight)
	if height == 0 {
		height = float64(f.OldHeight)
	}
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("%w: width=%v height=%v", ErrResolutionIncomplete, width, height)
	}

	if ar := f.Aspect; ar != 0 {
		switch {
		case f.NewHeight == 0:
			height = width / ar
		case f.NewWidth == 0:
			width = height * ar
		case f.NewWidth != f.OldWidth:
			height = width / ar
		case f.NewHeight != f.OldHeight:
			width = height * ar
		default:
			height = width / ar
		}

		// Shrink both components by the largest overflow factor so the
		// result still fits the box at the same ratio.
		reduce := 1.0
		if f.MaxWidth != 0 {
			reduce = math.Max(reduce, width/math.Min(width, float64(f.MaxWidth)))
		}
		if f.MaxHeight != 0 {
			reduce = math.Max(reduce, height/math.Min(height, float64(f.MaxHeight)))
		}
		width /= reduce
		height /= reduce
	} else {
		if f.MaxWidth != 0 {
			width = math.Min(width, float64(f.MaxWidth))
		}
		if f.MaxHeight != 0 {
			height = math.Min(height, float64(f.MaxHeight))
		}
	}

	m := float64(multiple)
	return uint32(m * math.Round(width*scale/m)),
		uint32(m * math.Round(height*scale/m)),
		nil
}
