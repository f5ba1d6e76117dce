package gif

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"

	"github.com/deepteams/gif/internal/container"
	"github.com/deepteams/gif/internal/lzw"
	"github.com/deepteams/gif/internal/pool"
	"github.com/deepteams/gif/palette"
)

// MaxDimension is the maximum width or height a GIF can describe; the
// descriptor fields are 16-bit.
const MaxDimension = 0xFFFF

// Quantizer selects the palette construction algorithm used when the
// image has more distinct colors than the palette can hold.
type Quantizer int

const (
	QuantizerMedianCut Quantizer = iota
	QuantizerKMeans
	QuantizerUniform
	QuantizerRandom
)

// Dither selects the reduction algorithm that maps image colors onto
// the palette before encoding.
type Dither int

const (
	DitherFloydSteinberg Dither = iota
	DitherNone
	DitherOrdered4x4
	DitherOrdered8x8
)

// EncoderOptions controls GIF encoding parameters. The zero value (and
// a nil pointer) selects 256 colors, median-cut quantization and
// Floyd-Steinberg dithering.
type EncoderOptions struct {
	// NumColors is the target palette size (2-256, default 256). The
	// median-cut quantizer additionally requires a power of two.
	NumColors int

	// Quantizer builds the palette when the image does not already fit
	// in NumColors distinct colors.
	Quantizer Quantizer

	// Dither maps image colors onto the palette.
	Dither Dither

	// Palette, when non-nil, is used instead of quantizing. It must
	// have at most 256 entries.
	Palette *palette.Palette

	// Background is looked up in the palette by exact match to pick the
	// background index; when absent, index 0 is used.
	Background color.NRGBA

	// Transparency sets the transparency bit in the graphic control
	// extension, marking the background index transparent. Off by
	// default.
	Transparency bool

	// Interlace writes the image rows in the four-pass interlaced
	// order.
	Interlace bool
}

// Encode writes m to w as a single-image GIF89a file.
func Encode(w io.Writer, m image.Image, opts *EncoderOptions) error {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	n := opts.NumColors
	if n == 0 {
		n = container.MaxColorTableSize
	}
	if n < 2 || n > container.MaxColorTableSize {
		return fmt.Errorf("gif: %d colors out of range 2..256", n)
	}

	b := m.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		return fmt.Errorf("gif: image %dx%d exceeds maximum dimension %d",
			b.Dx(), b.Dy(), MaxDimension)
	}
	if b.Empty() {
		return fmt.Errorf("gif: empty image")
	}

	pal, err := buildPalette(m, n, opts)
	if err != nil {
		return err
	}

	// Dither a copy so written pixel values are guaranteed palette
	// members; the caller's image is left untouched.
	img := toNRGBA(m)
	switch opts.Dither {
	case DitherNone:
		palette.ReduceNearest(img, pal)
	case DitherOrdered4x4:
		palette.ReduceOrdered4x4(img, pal)
	case DitherOrdered8x8:
		palette.ReduceOrdered8x8(img, pal)
	default:
		palette.ReduceFloydSteinberg(img, pal)
	}

	tableSize, litWidth := tableSizeFor(pal.Len())
	lookup := newColorIndex(pal)

	bg, ok := lookup.find(opts.Background)
	if !ok {
		bg = 0
	}

	cw := container.NewWriter(w)
	if err := cw.WriteHeader(container.Version89a); err != nil {
		return err
	}
	err = cw.WriteScreenDescriptor(container.ScreenDescriptor{
		Width:           img.Rect.Dx(),
		Height:          img.Rect.Dy(),
		HasGlobalTable:  true,
		TableSize:       tableSize,
		ColorResolution: 8,
		BackgroundIndex: bg,
	})
	if err != nil {
		return err
	}
	table := make([]color.NRGBA, pal.Len())
	for i := range table {
		table[i] = pal.Get(i)
	}
	if err := cw.WriteColorTable(table, tableSize); err != nil {
		return err
	}
	err = cw.WriteGraphicControl(container.GraphicControl{
		Disposal:         container.DisposalNone,
		HasTransparency:  opts.Transparency,
		TransparentIndex: bg,
		DelayTime:        0,
	})
	if err != nil {
		return err
	}
	err = cw.WriteImageDescriptor(container.ImageDescriptor{
		Width:      img.Rect.Dx(),
		Height:     img.Rect.Dy(),
		Interlaced: opts.Interlace,
	})
	if err != nil {
		return err
	}

	pix, err := indexPixels(img, lookup, opts.Interlace)
	if err != nil {
		return err
	}
	compressed, err := lzw.Encode(pix, litWidth)
	pool.Put(pix)
	if err != nil {
		return err
	}
	if err := cw.WriteImageData(litWidth, compressed); err != nil {
		return err
	}
	return cw.WriteTrailer()
}

// buildPalette returns the caller's palette or constructs one: exact
// extraction when the image already fits, otherwise the configured
// quantizer.
func buildPalette(m image.Image, n int, opts *EncoderOptions) (*palette.Palette, error) {
	if opts.Palette != nil {
		if opts.Palette.Len() > container.MaxColorTableSize {
			return nil, ErrTooManyColors
		}
		if opts.Palette.Len() == 0 {
			return nil, fmt.Errorf("gif: empty palette")
		}
		return opts.Palette, nil
	}

	if p, ok := palette.Exact(m, n); ok {
		return p, nil
	}

	var (
		p   *palette.Palette
		err error
	)
	switch opts.Quantizer {
	case QuantizerKMeans:
		p, err = palette.KMeans(m, n)
	case QuantizerUniform:
		p, err = palette.Uniform(m, n)
	case QuantizerRandom:
		p, err = palette.Random(m, n)
	default:
		p, err = palette.MedianCut(m, n)
	}
	if err != nil {
		return nil, fmt.Errorf("gif: building palette: %w", err)
	}
	return p, nil
}

// tableSizeFor picks the smallest color table (8 to 256 entries) that
// holds count colors, and the matching minimum LZW code size (3-8).
func tableSizeFor(count int) (size, litWidth int) {
	size, litWidth = 8, 3
	for size < count {
		size <<= 1
		litWidth++
	}
	return size, litWidth
}

// indexPixels maps every pixel of img to its palette index, in row
// order or four-pass interlaced order. The returned buffer comes from
// the pool; the caller gives it back once it is compressed.
func indexPixels(img *image.NRGBA, lookup *colorIndex, interlace bool) ([]byte, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pix := pool.Get(w * h)
	pos := 0
	for _, y := range rowOrder(h, interlace) {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			idx, ok := lookup.find(c)
			if !ok {
				// Cannot happen: the image was just reduced to this
				// palette.
				pool.Put(pix)
				return nil, fmt.Errorf("gif: internal: color %v not in palette", c)
			}
			pix[pos] = idx
			pos++
		}
	}
	return pix, nil
}

// colorIndex is a sorted color-to-index table for O(log n) exact-match
// lookups, alpha ignored.
type colorIndex struct {
	keys []uint32
	idx  []byte
}

func newColorIndex(p *palette.Palette) *colorIndex {
	ci := &colorIndex{
		keys: make([]uint32, p.Len()),
		idx:  make([]byte, p.Len()),
	}
	order := make([]int, p.Len())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return packRGB(p.Get(order[a])) < packRGB(p.Get(order[b]))
	})
	for pos, i := range order {
		ci.keys[pos] = packRGB(p.Get(i))
		ci.idx[pos] = byte(i)
	}
	return ci
}

// find returns the palette index of an exact RGB match.
func (ci *colorIndex) find(c color.NRGBA) (byte, bool) {
	key := packRGB(c)
	pos := sort.Search(len(ci.keys), func(i int) bool { return ci.keys[i] >= key })
	if pos < len(ci.keys) && ci.keys[pos] == key {
		return ci.idx[pos], true
	}
	return 0, false
}

func packRGB(c color.NRGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// toNRGBA copies m into a zero-origin *image.NRGBA.
func toNRGBA(m image.Image) *image.NRGBA {
	b := m.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := m.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			srcRow := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(img.Pix[y*img.Stride:y*img.Stride+4*b.Dx()], srcRow)
		}
		return img
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x-b.Min.X, y-b.Min.Y, m.At(x, y))
		}
	}
	return img
}
