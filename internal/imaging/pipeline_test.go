package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// gradient returns a colorful test image so filters have something to change.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

var still = Filter{Name: "Still", Ops: []Adjustment{
	{Kind: Contrast, Amount: 1.1},
	{Kind: Saturate, Amount: 0.8},
	{Kind: Sepia, Amount: 0.15},
}}

// stubEncoder returns fixed output and counts calls.
type stubEncoder struct {
	name  string
	data  []byte
	err   error
	calls int
}

func (s *stubEncoder) Name() string { return s.name }

func (s *stubEncoder) Encode(_ context.Context, _ image.Image) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

func sourceImage(t *testing.T) *Image {
	t.Helper()
	data := encodeJPEG(t, gradient(TargetWidth, TargetHeight))
	src, err := Inspect(data)
	require.NoError(t, err)
	return src
}

func TestInspect(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(20, 10)))

	img, err := Inspect(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "png", img.Format)
	require.Equal(t, 20, img.Width)
	require.Equal(t, 10, img.Height)

	_, err = Inspect(nil)
	require.Error(t, err)

	_, err = Inspect([]byte("not an image"))
	require.Error(t, err)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGB
// pixels with no image data after it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], w)
	binary.BigEndian.PutUint32(ihdr[8:], h)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestInspect_RejectsOversizeDimensions(t *testing.T) {
	header := pngHeader(60000, 60000)
	require.Len(t, header, 33)

	_, err := Inspect(header)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too large")

	// Declared size at the bound is accepted by Inspect
	img, err := Inspect(pngHeader(8192, 8192))
	require.NoError(t, err)
	require.Equal(t, 8192, img.Width)

	_, err = NewPipeline(85, nil).Normalize(context.Background(), header)
	require.Error(t, err)

	_, err = (&Image{Data: header, Format: "png"}).Decode()
	require.Error(t, err)
}

func TestApply_OversizeSourceIsKept(t *testing.T) {
	src := &Image{Data: pngHeader(60000, 60000), Format: "png", Width: 60000, Height: 60000}
	out := NewPipeline(85, nil).Apply(context.Background(), src, still)
	require.Same(t, src, out)
}

func TestApply_NormalPassesThrough(t *testing.T) {
	src := sourceImage(t)
	p := NewPipeline(90, nil)

	out := p.Apply(context.Background(), src, Filter{Name: NormalFilter})

	require.Same(t, src, out)
	require.Equal(t, src.Data, out.Data)
}

func TestApply_FilterChangesImage(t *testing.T) {
	src := sourceImage(t)
	p := NewPipeline(90, nil)

	out := p.Apply(context.Background(), src, still)

	require.NotEqual(t, src.Data, out.Data)
	require.Equal(t, "jpeg", out.Format)
	require.Equal(t, TargetWidth, out.Width)
	require.Equal(t, TargetHeight, out.Height)
	require.True(t, validJPEG(out.Data, TargetWidth, TargetHeight))
}

func TestApply_UsesFirstValidEncoder(t *testing.T) {
	src := sourceImage(t)
	valid := encodeJPEG(t, gradient(TargetWidth, TargetHeight))
	first := &stubEncoder{name: "first", data: valid}
	second := &stubEncoder{name: "second", data: valid}
	p := NewPipeline(90, nil, WithEncoders(first, second))

	out := p.Apply(context.Background(), src, still)

	require.Equal(t, valid, out.Data)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 0, second.calls)
}

func TestApply_FallsBackToAsyncWhenPrimaryFails(t *testing.T) {
	src := sourceImage(t)
	primary := &stubEncoder{name: "sync", err: fmt.Errorf("canvas tainted")}
	p := NewPipeline(90, nil, WithEncoders(primary, AsyncEncoder{Quality: 90}))

	out := p.Apply(context.Background(), src, still)

	require.Equal(t, 1, primary.calls)
	require.NotEqual(t, src.Data, out.Data)
	require.True(t, validJPEG(out.Data, TargetWidth, TargetHeight))
}

func TestApply_InvalidOutputIsSkipped(t *testing.T) {
	src := sourceImage(t)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not jpeg", []byte("data:,")},
		{"truncated", encodeJPEG(t, gradient(TargetWidth, TargetHeight))[:100]},
		{"wrong size", encodeJPEG(t, gradient(10, 10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := &stubEncoder{name: "bad", data: tt.data}
			p := NewPipeline(90, nil, WithEncoders(bad, SyncEncoder{Quality: 90}))

			out := p.Apply(context.Background(), src, still)

			require.Equal(t, 1, bad.calls)
			require.NotEqual(t, src.Data, out.Data)
			require.True(t, validJPEG(out.Data, TargetWidth, TargetHeight))
		})
	}
}

func TestApply_TotalFailureReturnsSource(t *testing.T) {
	src := sourceImage(t)
	p := NewPipeline(90, nil, WithEncoders(
		&stubEncoder{name: "sync", err: fmt.Errorf("boom")},
		&stubEncoder{name: "async", data: []byte{0xff, 0xd8}},
	))

	out := p.Apply(context.Background(), src, still)

	require.Same(t, src, out)
}

func TestApply_UndecodableSourceReturnsSource(t *testing.T) {
	src := &Image{Data: []byte("garbage"), Format: "jpeg", Width: 1, Height: 1}
	p := NewPipeline(90, nil)

	out := p.Apply(context.Background(), src, still)

	require.Same(t, src, out)
}

func TestApply_NilSource(t *testing.T) {
	p := NewPipeline(90, nil)
	require.Nil(t, p.Apply(context.Background(), nil, still))
}

func TestAsyncEncoder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either branch may win the select; both must settle.
	data, err := AsyncEncoder{}.Encode(ctx, gradient(TargetWidth, TargetHeight))
	if err == nil {
		require.True(t, validJPEG(data, TargetWidth, TargetHeight))
	}
}

func TestNormalize(t *testing.T) {
	p := NewPipeline(85, nil)
	data := encodeJPEG(t, gradient(800, 600))

	out, err := p.Normalize(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, TargetWidth, out.Width)
	require.Equal(t, TargetHeight, out.Height)
	require.True(t, validJPEG(out.Data, TargetWidth, TargetHeight))

	_, err = p.Normalize(context.Background(), []byte("nope"))
	require.Error(t, err)
}

func TestNormalize_AllEncodersFail(t *testing.T) {
	p := NewPipeline(85, nil, WithEncoders(&stubEncoder{name: "x", err: fmt.Errorf("no")}))
	_, err := p.NormalizeImage(context.Background(), gradient(10, 10))
	require.Error(t, err)
}
