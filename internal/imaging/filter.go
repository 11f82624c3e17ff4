package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// AdjustmentKind names a visual adjustment primitive.
type AdjustmentKind string

const (
	Brightness AdjustmentKind = "brightness"
	Contrast   AdjustmentKind = "contrast"
	Saturate   AdjustmentKind = "saturate"
	HueRotate  AdjustmentKind = "hue-rotate" // degrees
	Grayscale  AdjustmentKind = "grayscale"  // 0..1
	Sepia      AdjustmentKind = "sepia"      // 0..1
	Blur       AdjustmentKind = "blur"       // radius in pixels
)

// NormalFilter is the name of the identity filter.
const NormalFilter = "Normal"

var knownKinds = map[AdjustmentKind]bool{
	Brightness: true, Contrast: true, Saturate: true, HueRotate: true,
	Grayscale: true, Sepia: true, Blur: true,
}

// Adjustment is a single primitive with its magnitude.
type Adjustment struct {
	Kind   AdjustmentKind `yaml:"kind" json:"kind"`
	Amount float64        `yaml:"amount" json:"amount"`
}

// Filter is a named, ordered list of adjustments. An empty list is the identity.
type Filter struct {
	Name string       `yaml:"name" json:"name"`
	Ops  []Adjustment `yaml:"ops" json:"ops"`
}

// IsIdentity reports whether applying f leaves an image unchanged.
func (f Filter) IsIdentity() bool {
	return len(f.Ops) == 0
}

// Validate checks that every adjustment kind is known and its amount is usable.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("filter name is required")
	}
	for _, op := range f.Ops {
		if !knownKinds[op.Kind] {
			return fmt.Errorf("filter %q: unknown adjustment %q", f.Name, op.Kind)
		}
		if math.IsNaN(op.Amount) || math.IsInf(op.Amount, 0) {
			return fmt.Errorf("filter %q: %s amount is not a number", f.Name, op.Kind)
		}
		if op.Kind != HueRotate && op.Amount < 0 {
			return fmt.Errorf("filter %q: %s amount must not be negative", f.Name, op.Kind)
		}
	}
	return nil
}

// Expression renders the adjustments the way a CSS filter property would.
func (f Filter) Expression() string {
	if f.IsIdentity() {
		return "none"
	}
	parts := make([]string, 0, len(f.Ops))
	for _, op := range f.Ops {
		switch op.Kind {
		case HueRotate:
			parts = append(parts, fmt.Sprintf("hue-rotate(%gdeg)", op.Amount))
		case Blur:
			parts = append(parts, fmt.Sprintf("blur(%gpx)", op.Amount))
		default:
			parts = append(parts, fmt.Sprintf("%s(%g)", op.Kind, op.Amount))
		}
	}
	return strings.Join(parts, " ")
}

// surface is a float RGBA working buffer, channels in [0,1], alpha not premultiplied.
type surface struct {
	w, h int
	pix  []float64
}

func newSurface(src image.Image) *surface {
	b := src.Bounds()
	s := &surface{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy()*4)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			if a == 0 {
				s.pix[i], s.pix[i+1], s.pix[i+2], s.pix[i+3] = 0, 0, 0, 0
			} else {
				af := float64(a)
				s.pix[i] = float64(r) / af
				s.pix[i+1] = float64(g) / af
				s.pix[i+2] = float64(bl) / af
				s.pix[i+3] = af / 0xffff
			}
			i += 4
		}
	}
	return s
}

func (s *surface) toNRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, s.w, s.h))
	for i, v := range s.pix {
		dst.Pix[i] = uint8(math.Round(clamp01(v) * 255))
	}
	return dst
}

// ApplyFilter renders src onto a same-size surface with f's adjustments
// applied in order. The source is never modified.
func ApplyFilter(src image.Image, f Filter) *image.NRGBA {
	s := newSurface(src)
	for _, op := range f.Ops {
		switch op.Kind {
		case Brightness:
			s.linear(op.Amount, 0)
		case Contrast:
			s.linear(op.Amount, 0.5-0.5*op.Amount)
		case Saturate:
			s.matrix(saturateMatrix(op.Amount))
		case HueRotate:
			s.matrix(hueRotateMatrix(op.Amount))
		case Grayscale:
			s.matrix(grayscaleMatrix(op.Amount))
		case Sepia:
			s.matrix(sepiaMatrix(op.Amount))
		case Blur:
			s.blur(op.Amount)
		}
	}
	return s.toNRGBA()
}

func (s *surface) linear(slope, intercept float64) {
	for i := 0; i < len(s.pix); i += 4 {
		for c := 0; c < 3; c++ {
			s.pix[i+c] = clamp01(s.pix[i+c]*slope + intercept)
		}
	}
}

type colorMatrix [3][3]float64

func (s *surface) matrix(m colorMatrix) {
	for i := 0; i < len(s.pix); i += 4 {
		r, g, b := s.pix[i], s.pix[i+1], s.pix[i+2]
		for c := 0; c < 3; c++ {
			s.pix[i+c] = clamp01(m[c][0]*r + m[c][1]*g + m[c][2]*b)
		}
	}
}

// Matrices follow the Filter Effects shorthand definitions.

func saturateMatrix(v float64) colorMatrix {
	return colorMatrix{
		{0.213 + 0.787*v, 0.715 - 0.715*v, 0.072 - 0.072*v},
		{0.213 - 0.213*v, 0.715 + 0.285*v, 0.072 - 0.072*v},
		{0.213 - 0.213*v, 0.715 - 0.715*v, 0.072 + 0.928*v},
	}
}

func hueRotateMatrix(deg float64) colorMatrix {
	rad := deg * math.Pi / 180
	c, sn := math.Cos(rad), math.Sin(rad)
	return colorMatrix{
		{0.213 + c*0.787 - sn*0.213, 0.715 - c*0.715 - sn*0.715, 0.072 - c*0.072 + sn*0.928},
		{0.213 - c*0.213 + sn*0.143, 0.715 + c*0.285 + sn*0.140, 0.072 - c*0.072 - sn*0.283},
		{0.213 - c*0.213 - sn*0.787, 0.715 - c*0.715 + sn*0.715, 0.072 + c*0.928 + sn*0.072},
	}
}

func grayscaleMatrix(amount float64) colorMatrix {
	g := 1 - clamp01(amount)
	return colorMatrix{
		{0.2126 + 0.7874*g, 0.7152 - 0.7152*g, 0.0722 - 0.0722*g},
		{0.2126 - 0.2126*g, 0.7152 + 0.2848*g, 0.0722 - 0.0722*g},
		{0.2126 - 0.2126*g, 0.7152 - 0.7152*g, 0.0722 + 0.9278*g},
	}
}

func sepiaMatrix(amount float64) colorMatrix {
	g := 1 - clamp01(amount)
	return colorMatrix{
		{0.393 + 0.607*g, 0.769 - 0.769*g, 0.189 - 0.189*g},
		{0.349 - 0.349*g, 0.686 + 0.314*g, 0.168 - 0.168*g},
		{0.272 - 0.272*g, 0.534 - 0.534*g, 0.131 + 0.869*g},
	}
}

// blur approximates a gaussian with standard deviation sigma by three box passes.
func (s *surface) blur(sigma float64) {
	if sigma <= 0 || s.w == 0 || s.h == 0 {
		return
	}
	tmp := make([]float64, len(s.pix))
	for _, box := range boxSizes(sigma, 3) {
		r := (box - 1) / 2
		if r <= 0 {
			continue
		}
		s.boxPass(s.pix, tmp, r, true)
		s.boxPass(tmp, s.pix, r, false)
	}
}

// boxSizes returns n odd box widths whose successive application approximates
// a gaussian of the given sigma.
func boxSizes(sigma float64, n int) []int {
	wIdeal := math.Sqrt(12*sigma*sigma/float64(n) + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2
	mIdeal := (12*sigma*sigma - float64(n*wl*wl) - float64(4*n*wl) - float64(3*n)) / float64(-4*wl-4)
	m := int(math.Round(mIdeal))

	sizes := make([]int, n)
	for i := range sizes {
		if i < m {
			sizes[i] = wl
		} else {
			sizes[i] = wu
		}
	}
	return sizes
}

// boxPass averages each channel over a 2r+1 window along one axis, clamping at edges.
func (s *surface) boxPass(src, dst []float64, r int, horizontal bool) {
	lines, length := s.h, s.w
	if !horizontal {
		lines, length = s.w, s.h
	}
	idx := func(line, pos int) int {
		if horizontal {
			return (line*s.w + pos) * 4
		}
		return (pos*s.w + line) * 4
	}
	norm := 1 / float64(2*r+1)

	for line := 0; line < lines; line++ {
		for c := 0; c < 4; c++ {
			var acc float64
			for k := -r; k <= r; k++ {
				acc += src[idx(line, clampInt(k, 0, length-1))+c]
			}
			for pos := 0; pos < length; pos++ {
				dst[idx(line, pos)+c] = acc * norm
				out := clampInt(pos-r, 0, length-1)
				in := clampInt(pos+r+1, 0, length-1)
				acc += src[idx(line, in)+c] - src[idx(line, out)+c]
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
