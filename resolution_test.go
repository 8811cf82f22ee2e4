package shaderflow

import (
	"errors"
	"testing"
)

func TestResolutionFitSolve(t *testing.T) {
	tests := []struct {
		name string
		fit  ResolutionFit
		w, h uint32
	}{
		{
			"keep everything",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080},
			1920, 1080,
		},
		{
			"override width only",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewWidth: 1280},
			1280, 1080,
		},
		{
			"override height only",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewHeight: 720},
			1920, 720,
		},
		{
			"aspect from width",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewWidth: 1280, Aspect: 16.0 / 9},
			1280, 720,
		},
		{
			"aspect from height",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewHeight: 720, Aspect: 16.0 / 9},
			1280, 720,
		},
		{
			"aspect 2 from width",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewWidth: 1000, Aspect: 2},
			1000, 500,
		},
		{
			"aspect 2 from height",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewHeight: 500, Aspect: 2},
			1000, 500,
		},
		{
			"both changed prioritizes width",
			ResolutionFit{OldWidth: 1920, OldHeight: 1080, NewWidth: 1000, NewHeight: 720, Aspect: 2},
			1000, 500,
		},
		{
			"clamp components independently",
			ResolutionFit{OldWidth: 3840, OldHeight: 2160, NewWidth: 3800, NewHeight: 2100, MaxWidth: 1920, MaxHeight: 1080},
			1920, 1080,
		},
		{
			"clamp keeps aspect ratio",
			ResolutionFit{OldWidth: 3000, OldHeight: 3000, NewWidth: 2000, NewHeight: 2000, MaxWidth: 6000, MaxHeight: 720, Aspect: 16.0 / 9},
			1280, 720,
		},
		{
			"scale doubles",
			ResolutionFit{OldWidth: 960, OldHeight: 540, Scale: 2},
			1920, 1080,
		},
		{
			"round to multiple",
			ResolutionFit{OldWidth: 997, OldHeight: 501, Multiple: 4},
			996, 500,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := tt.fit.Solve()
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if w != tt.w || h != tt.h {
				t.Errorf("Solve = %dx%d, want %dx%d", w, h, tt.w, tt.h)
			}
		})
	}
}

func TestResolutionFitMissingComponent(t *testing.T) {
	fits := []ResolutionFit{
		{OldWidth: 1920, NewWidth: 1280},
		{OldHeight: 1080},
	}
	for _, f := range fits {
		if _, _, err := f.Solve(); !errors.Is(err, ErrResolutionIncomplete) {
			t.Errorf("Solve(%+v): got %v, want ErrResolutionIncomplete", f, err)
		}
	}
}
