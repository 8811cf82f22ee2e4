package shaderflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"
)

var (
	// ErrEncoderClosed is returned when the encoder fails or exits
	// while an export is running.
	ErrEncoderClosed = errors.New("shaderflow: encoder closed")

	// ErrEncoderStalled is returned when the encoder stops consuming
	// frames past the handoff timeout.
	ErrEncoderStalled = errors.New("shaderflow: encoder stalled")

	// ErrNoRenderer is returned when an export is started on a scene
	// with no shader module to read frames from.
	ErrNoRenderer = errors.New("shaderflow: no shader module to export")
)

// Encoder receives raw RGBA frames in order at the declared resolution
// and framerate. Implementations typically pipe into a video encoder
// process; Write reports that process's failures. Close may be called
// concurrently with a blocked Write and must unblock it.
type Encoder interface {
	Write(frame []byte) error
	Close() error
}

// ExportOption configures an Export run.
type ExportOption func(*exportConfig)

type exportConfig struct {
	queue int
	stall time.Duration
}

// WithQueueDepth bounds how many rendered frames may wait for the
// encoder. The scheduler blocks once the queue is full, so memory use
// stays flat no matter how slow the encoder is.
func WithQueueDepth(n int) ExportOption {
	return func(c *exportConfig) { c.queue = max(n, 1) }
}

// WithStallTimeout sets how long a full queue may sit unconsumed before
// the encoder is declared dead.
func WithStallTimeout(d time.Duration) ExportOption {
	return func(c *exportConfig) { c.stall = d }
}

// Export renders the scene deterministically and hands every frame to
// the encoder in order: exactly ceil(duration * framerate) ticks, each
// advancing time by 1/framerate regardless of wall clock cost. Frames
// rendered above the output resolution by SSAA are downsampled before
// handoff.
//
// Any error is fatal for the export run: a failed frame, an encoder
// failure, or an encoder that stops consuming. The encoder is always
// closed before returning.
func (s *Scene) Export(ctx context.Context, enc Encoder, opts ...ExportOption) error {
	cfg := exportConfig{queue: 2, stall: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := s.build(); err != nil {
		return err
	}
	programs := FindModules[*ShaderProgram](s)
	if len(programs) == 0 {
		return ErrNoRenderer
	}
	final := programs[len(programs)-1]

	total := s.TotalFrames()
	Logger().Info("export started", "frames", total, "fps", s.fps,
		"width", s.width, "height", s.height, "queue", cfg.queue)

	frameBytes := int(s.width) * int(s.height) * 4
	free := make(chan []byte, cfg.queue)
	for i := 0; i < cfg.queue; i++ {
		free <- make([]byte, frameBytes)
	}
	frames := make(chan []byte, cfg.queue)

	var consumerErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for buf := range frames {
			if err := enc.Write(buf); err != nil {
				consumerErr = fmt.Errorf("%w: %v", ErrEncoderClosed, err)
				return
			}
			free <- buf
		}
	}()

	err := s.exportLoop(ctx, cfg, final, total, free, frames, done)
	close(frames)
	if err != nil {
		// Closing first unblocks a consumer stuck in Write.
		enc.Close()
		<-done
		if errors.Is(err, ErrEncoderClosed) && consumerErr != nil {
			err = consumerErr
		}
		return err
	}
	<-done
	if consumerErr != nil {
		enc.Close()
		return consumerErr
	}
	if closeErr := enc.Close(); closeErr != nil {
		return fmt.Errorf("%w: %v", ErrEncoderClosed, closeErr)
	}
	Logger().Info("export finished", "frames", total)
	return nil
}

func (s *Scene) exportLoop(ctx context.Context, cfg exportConfig, final *ShaderProgram,
	total uint64, free, frames chan []byte, done chan struct{}) error {

	pipe := NewPipeline()
	stall := time.NewTimer(cfg.stall)
	defer stall.Stop()

	for i := uint64(0); i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.step(1/s.fps, pipe); err != nil {
			return fmt.Errorf("shaderflow: export frame %d: %w", i, err)
		}
		pixels, err := final.Ring().Read(0, final.Ring().Layers()-1)
		if err != nil {
			return fmt.Errorf("shaderflow: export frame %d: %w", i, err)
		}
		if s.ssaa != 1 {
			srcW, srcH := final.Ring().size()
			pixels = downsample(pixels, srcW, srcH, s.width, s.height)
		}

		stall.Reset(cfg.stall)
		var buf []byte
		select {
		case buf = <-free:
		case <-done:
			return ErrEncoderClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-stall.C:
			return ErrEncoderStalled
		}
		copy(buf, pixels)

		select {
		case frames <- buf:
		case <-done:
			return ErrEncoderClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-stall.C:
			return ErrEncoderStalled
		}
	}
	return nil
}

// downsample scales a rendered RGBA frame down to the output size.
func downsample(pixels []byte, srcW, srcH, width, height uint32) []byte {
	src := &image.RGBA{
		Pix:    pixels,
		Stride: int(srcW) * 4,
		Rect:   image.Rect(0, 0, int(srcW), int(srcH)),
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst.Pix
}
