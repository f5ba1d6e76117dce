// Package palette provides an ordered color palette type together with
// the color quantization and palette reduction algorithms used by the
// GIF encoder.
//
// A Palette is an ordered, growable list of 24-bit RGB colors. Insertion
// order is meaningful: an entry's index is the code the GIF color table
// stores it under. Palettes may be shared between images; mutation is
// not synchronized and single-threaded use per palette is assumed.
package palette

import (
	"errors"
	"image/color"
)

// ErrIndexRange is returned by Set for an out-of-range index.
var ErrIndexRange = errors.New("palette: index out of range")

// Palette is an ordered sequence of colors.
type Palette struct {
	colors []color.NRGBA
}

// New creates an empty palette with room for capacity colors.
func New(capacity int) *Palette {
	if capacity < 0 {
		capacity = 0
	}
	return &Palette{colors: make([]color.NRGBA, 0, capacity)}
}

// FromColors creates a palette holding a copy of colors, in order.
func FromColors(colors []color.NRGBA) *Palette {
	p := New(len(colors))
	for _, c := range colors {
		p.Add(c)
	}
	return p
}

// Len returns the number of colors in the palette.
func (p *Palette) Len() int { return len(p.colors) }

// Add appends a color and returns its index. The alpha channel is
// discarded; palette entries are fully opaque.
func (p *Palette) Add(c color.NRGBA) int {
	c.A = 0xFF
	p.colors = append(p.colors, c)
	return len(p.colors) - 1
}

// Set overwrites the color at index i.
func (p *Palette) Set(i int, c color.NRGBA) error {
	if i < 0 || i >= len(p.colors) {
		return ErrIndexRange
	}
	c.A = 0xFF
	p.colors[i] = c
	return nil
}

// Get returns the color at index i, or opaque black when i is out of
// range.
func (p *Palette) Get(i int) color.NRGBA {
	if i < 0 || i >= len(p.colors) {
		return color.NRGBA{A: 0xFF}
	}
	return p.colors[i]
}

// NearestIndex returns the index of the palette color nearest to c
// under the active Distance metric, or -1 for an empty palette.
func (p *Palette) NearestIndex(c color.NRGBA) int {
	best := -1
	var bestDist uint32
	for i, pc := range p.colors {
		d := Distance(c, pc)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
			if d == 0 {
				break
			}
		}
	}
	return best
}

// NearestColor returns the palette color nearest to c. A color already
// in the palette is its own nearest neighbor.
func (p *Palette) NearestColor(c color.NRGBA) color.NRGBA {
	return p.Get(p.NearestIndex(c))
}

// Colors returns the palette entries as a stdlib color.Palette.
func (p *Palette) Colors() color.Palette {
	cp := make(color.Palette, len(p.colors))
	for i, c := range p.colors {
		cp[i] = c
	}
	return cp
}

// DistanceFunc computes a squared distance between two colors. Alpha is
// ignored.
type DistanceFunc func(a, b color.NRGBA) uint32

// Distance is the metric used for all nearest-color decisions. It is
// selected once per run; callers that need a different metric set it
// before any palette work starts.
var Distance DistanceFunc = RedMean

// RedMean computes the perceptually weighted squared distance from the
// compuphase formula: the red and blue terms are scaled by a factor
// that depends on the mean red level of the two colors.
func RedMean(a, b color.NRGBA) uint32 {
	rmean := (int32(a.R) + int32(b.R)) / 2
	dr := int32(a.R) - int32(b.R)
	dg := int32(a.G) - int32(b.G)
	db := int32(a.B) - int32(b.B)
	return uint32(((512+rmean)*dr*dr)>>8) + uint32(4*dg*dg) + uint32(((767-rmean)*db*db)>>8)
}

// Euclidean computes the plain squared RGB distance.
func Euclidean(a, b color.NRGBA) uint32 {
	dr := int32(a.R) - int32(b.R)
	dg := int32(a.G) - int32(b.G)
	db := int32(a.B) - int32(b.B)
	return uint32(dr*dr + dg*dg + db*db)
}
