package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"go.uber.org/zap"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Encoder turns pixels into an encoded JPEG.
type Encoder interface {
	Name() string
	Encode(ctx context.Context, img image.Image) ([]byte, error)
}

// SyncEncoder encodes directly into an in-memory buffer.
type SyncEncoder struct {
	Quality int
}

func (e SyncEncoder) Name() string { return "sync" }

func (e SyncEncoder) Encode(_ context.Context, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality(e.Quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AsyncEncoder encodes on a separate goroutine into a pipe and reads the
// resulting blob back. It always settles: encoder errors close the pipe.
type AsyncEncoder struct {
	Quality int
}

func (e AsyncEncoder) Name() string { return "async" }

func (e AsyncEncoder) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(jpeg.Encode(pw, img, &jpeg.Options{Quality: quality(e.Quality)}))
	}()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(pr)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		pr.CloseWithError(ctx.Err())
		return nil, ctx.Err()
	}
}

func quality(q int) int {
	if q <= 0 || q > 100 {
		return DefaultQuality
	}
	return q
}

// Pipeline normalizes captured images and applies filters with an ordered
// encoder fallback chain.
type Pipeline struct {
	encoders []Encoder
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEncoders replaces the default sync-then-async encoder chain.
func WithEncoders(encoders ...Encoder) Option {
	return func(p *Pipeline) { p.encoders = encoders }
}

// NewPipeline creates a pipeline encoding at the given JPEG quality.
func NewPipeline(jpegQuality int, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		encoders: []Encoder{SyncEncoder{Quality: jpegQuality}, AsyncEncoder{Quality: jpegQuality}},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Normalize decodes raw gallery or camera data, crops it to fill the target
// canvas and encodes the result.
func (p *Pipeline) Normalize(ctx context.Context, data []byte) (*Image, error) {
	src, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	img, err := src.Decode()
	if err != nil {
		return nil, err
	}
	return p.NormalizeImage(ctx, img)
}

// NormalizeImage crops decoded pixels to fill the target canvas and encodes them.
func (p *Pipeline) NormalizeImage(ctx context.Context, img image.Image) (*Image, error) {
	canvas := CropToFill(img)
	data, ok := p.encode(ctx, canvas)
	if !ok {
		return nil, fmt.Errorf("no encoder produced a valid image")
	}
	return &Image{Data: data, Format: "jpeg", Width: TargetWidth, Height: TargetHeight}, nil
}

// Apply renders src with f and encodes the result. The identity filter
// returns src untouched. Apply never fails: if decoding or every encoder
// fails, the unmodified source is returned.
func (p *Pipeline) Apply(ctx context.Context, src *Image, f Filter) *Image {
	if src == nil || f.IsIdentity() {
		return src
	}

	img, err := src.Decode()
	if err != nil {
		p.logger.Warn("filter source decode failed, keeping original",
			zap.String("filter", f.Name), zap.Error(err))
		return src
	}

	filtered := ApplyFilter(img, f)
	data, ok := p.encode(ctx, filtered)
	if !ok {
		p.logger.Warn("all encoders failed, keeping original", zap.String("filter", f.Name))
		return src
	}

	b := filtered.Bounds()
	return &Image{Data: data, Format: "jpeg", Width: b.Dx(), Height: b.Dy()}
}

// encode returns the first valid output of the encoder chain.
func (p *Pipeline) encode(ctx context.Context, img image.Image) ([]byte, bool) {
	b := img.Bounds()
	for _, enc := range p.encoders {
		data, err := enc.Encode(ctx, img)
		if err != nil {
			p.logger.Debug("encoder failed", zap.String("encoder", enc.Name()), zap.Error(err))
			continue
		}
		if !validJPEG(data, b.Dx(), b.Dy()) {
			p.logger.Debug("encoder produced invalid output",
				zap.String("encoder", enc.Name()), zap.Int("bytes", len(data)))
			continue
		}
		return data, true
	}
	return nil, false
}
