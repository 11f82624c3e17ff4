package imaging

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Output canvas for gallery imports, captures and final posts.
const (
	TargetWidth  = 335
	TargetHeight = 400
)

// TargetAspect is TargetWidth/TargetHeight.
const TargetAspect = float64(TargetWidth) / float64(TargetHeight)

// Placement describes where a source image lands on the target canvas.
// X and Y are zero or negative; overflow past the canvas is clipped.
type Placement struct {
	DrawnWidth  float64
	DrawnHeight float64
	X           float64
	Y           float64
}

// Layout computes the crop-to-fill placement of a srcW x srcH image.
// Sources wider than the target aspect are scaled to the target height and
// centered horizontally; all others are scaled to the target width and
// centered vertically. Non-positive dimensions yield the zero Placement.
func Layout(srcW, srcH int) Placement {
	if srcW <= 0 || srcH <= 0 {
		return Placement{}
	}
	w, h := float64(TargetWidth), float64(TargetHeight)
	sw, sh := float64(srcW), float64(srcH)

	if sw/sh > TargetAspect {
		drawnW := sw * (h / sh)
		return Placement{
			DrawnWidth:  drawnW,
			DrawnHeight: h,
			X:           -(drawnW - w) / 2,
			Y:           0,
		}
	}

	drawnH := sh * (w / sw)
	return Placement{
		DrawnWidth:  w,
		DrawnHeight: drawnH,
		X:           0,
		Y:           -(drawnH - h) / 2,
	}
}

// Rect returns the integer destination rectangle for the placement.
// Rounding keeps the rectangle covering the whole canvas.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(p.X)),
		int(math.Round(p.Y)),
		int(math.Round(p.X+p.DrawnWidth)),
		int(math.Round(p.Y+p.DrawnHeight)),
	)
}

// CropToFill scales src to cover a TargetWidth x TargetHeight canvas,
// clipping overflow. The canvas is filled white first so transparent
// sources do not leave transparent edges.
func CropToFill(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, TargetWidth, TargetHeight))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	sb := src.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return dst
	}

	p := Layout(sb.Dx(), sb.Dy())
	xdraw.CatmullRom.Scale(dst, p.Rect(), src, sb, xdraw.Over, nil)
	return dst
}
