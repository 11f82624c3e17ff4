// Package imaging implements the crop-to-fill resize, filter adjustments and
// the fallback encoder chain used by the capture pipeline.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // gallery imports
	"image/jpeg"
	_ "image/png" // gallery imports
)

// JPEG markers used to check that an encoded buffer is complete.
const (
	jpegMarkerSOI = "\xff\xd8"
	jpegMarkerEOI = "\xff\xd9"
)

// MaxSourcePixels bounds the declared size of a source image so a small
// file cannot claim dimensions that would exhaust memory on decode.
const MaxSourcePixels = 64 << 20

// Image is an encoded image handle owned by a capture session.
type Image struct {
	Data   []byte
	Format string // "jpeg", "png", "gif"
	Width  int
	Height int
}

// Inspect reads the format and dimensions of encoded data without decoding pixels.
func Inspect(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return &Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image has no pixels (%dx%d)", w, h)
	}
	if int64(w)*int64(h) > MaxSourcePixels {
		return fmt.Errorf("image too large (%dx%d, max %d pixels)", w, h, MaxSourcePixels)
	}
	return nil
}

// Decode decodes the handle's bytes into pixels. The declared size is
// checked before any pixels are allocated.
func (i *Image) Decode() (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(i.Data))
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}
	return img, nil
}

// validJPEG reports whether data is a complete JPEG of the expected size.
func validJPEG(data []byte, width, height int) bool {
	if len(data) < 4 {
		return false
	}
	if !bytes.HasPrefix(data, []byte(jpegMarkerSOI)) || !bytes.HasSuffix(data, []byte(jpegMarkerEOI)) {
		return false
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return cfg.Width == width && cfg.Height == height
}
