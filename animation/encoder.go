package animation

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/deepteams/gif/internal/container"
	"github.com/deepteams/gif/internal/lzw"
	"github.com/deepteams/gif/internal/pool"
	"github.com/deepteams/gif/palette"
)

// EncodeOptions controls animated GIF encoding. The zero value (and a
// nil pointer) selects infinite looping and 256 colors per frame.
type EncodeOptions struct {
	// LoopCount is written as the NETSCAPE2.0 loop count: 0 loops
	// forever, -1 writes no loop extension (play once).
	LoopCount int

	// NumColors is the per-frame palette budget (2-256, default 256).
	// One slot is spent on transparency when a frame needs it. When a
	// frame has more distinct colors than the budget, the quantized
	// palette is rounded down to the nearest power of two.
	NumColors int
}

// Encoder writes an animated GIF frame by frame. Each frame carries its
// own local color table quantized from that frame's pixels.
type Encoder struct {
	w             *container.Writer
	width, height int
	opts          EncodeOptions
	frames        int
	closed        bool
}

// NewEncoder writes the GIF header and logical screen descriptor for a
// canvas of the given size and returns an Encoder ready for AddFrame.
func NewEncoder(w io.Writer, width, height int, opts *EncodeOptions) (*Encoder, error) {
	o := EncodeOptions{}
	if opts != nil {
		o = *opts
	}
	if o.NumColors == 0 {
		o.NumColors = container.MaxColorTableSize
	}
	if o.NumColors < 2 || o.NumColors > container.MaxColorTableSize {
		return nil, fmt.Errorf("gif: %d colors out of range 2..256", o.NumColors)
	}
	if width <= 0 || height <= 0 || width > 0xFFFF || height > 0xFFFF {
		return nil, fmt.Errorf("gif: bad canvas size %dx%d", width, height)
	}

	e := &Encoder{
		w:      container.NewWriter(w),
		width:  width,
		height: height,
		opts:   o,
	}
	if err := e.w.WriteHeader(container.Version89a); err != nil {
		return nil, err
	}
	err := e.w.WriteScreenDescriptor(container.ScreenDescriptor{
		Width:           width,
		Height:          height,
		ColorResolution: 8,
	})
	if err != nil {
		return nil, err
	}
	if o.LoopCount >= 0 {
		if err := e.w.WriteNetscapeLoop(o.LoopCount); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddFrame quantizes and writes one frame. Pixels with zero alpha are
// written as transparent.
func (e *Encoder) AddFrame(f *Frame) error {
	if e.closed {
		return fmt.Errorf("gif: encoder already closed")
	}
	if f.Image == nil {
		return fmt.Errorf("gif: frame has no image")
	}
	canvas := image.Rect(0, 0, e.width, e.height)
	if !f.Bounds().In(canvas) {
		return fmt.Errorf("%w: frame rectangle %v, canvas %v", ErrBounds, f.Bounds(), canvas)
	}

	img := cloneNRGBA(f.Image)
	hasTransparency := anyTransparent(img)

	budget := e.opts.NumColors
	if hasTransparency {
		budget--
	}
	pal, ok := palette.Exact(img, budget)
	if !ok {
		var err error
		pal, err = palette.MedianCut(img, floorPow2(budget))
		if err != nil {
			return fmt.Errorf("gif: building frame palette: %w", err)
		}
	}
	palette.ReduceFloydSteinberg(img, pal)

	transparentIndex := -1
	if hasTransparency {
		transparentIndex = pal.Add(color.NRGBA{A: 0xFF})
	}

	tableSize, litWidth := 8, 3
	for tableSize < pal.Len() {
		tableSize <<= 1
		litWidth++
	}

	err := e.w.WriteGraphicControl(container.GraphicControl{
		Disposal:         byte(f.Dispose),
		HasTransparency:  hasTransparency,
		TransparentIndex: byte(max(transparentIndex, 0)),
		DelayTime:        int(f.Duration.Milliseconds() / 10),
	})
	if err != nil {
		return err
	}
	err = e.w.WriteImageDescriptor(container.ImageDescriptor{
		Left:          f.OffsetX,
		Top:           f.OffsetY,
		Width:         img.Rect.Dx(),
		Height:        img.Rect.Dy(),
		HasLocalTable: true,
		TableSize:     tableSize,
	})
	if err != nil {
		return err
	}
	table := make([]color.NRGBA, pal.Len())
	for i := range table {
		table[i] = pal.Get(i)
	}
	if err := e.w.WriteColorTable(table, tableSize); err != nil {
		return err
	}

	pix := pool.Get(img.Rect.Dx() * img.Rect.Dy())
	pos := 0
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			c := img.NRGBAAt(x, y)
			if c.A == 0 && hasTransparency {
				pix[pos] = byte(transparentIndex)
			} else {
				pix[pos] = byte(pal.NearestIndex(c))
			}
			pos++
		}
	}
	compressed, err := lzw.Encode(pix, litWidth)
	pool.Put(pix)
	if err != nil {
		return err
	}
	if err := e.w.WriteImageData(litWidth, compressed); err != nil {
		return err
	}
	e.frames++
	return nil
}

// Close writes the trailer. At least one frame must have been added.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.frames == 0 {
		return ErrNoFrames
	}
	return e.w.WriteTrailer()
}

// Encode writes anim to w in one call.
func Encode(w io.Writer, anim *Animation, opts *EncodeOptions) error {
	if len(anim.Frames) == 0 {
		return ErrNoFrames
	}
	if opts == nil {
		opts = &EncodeOptions{LoopCount: anim.LoopCount}
	}
	e, err := NewEncoder(w, anim.CanvasWidth, anim.CanvasHeight, opts)
	if err != nil {
		return err
	}
	for i := range anim.Frames {
		if err := e.AddFrame(&anim.Frames[i]); err != nil {
			return err
		}
	}
	return e.Close()
}

// anyTransparent reports whether img holds any zero-alpha pixel.
func anyTransparent(img *image.NRGBA) bool {
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			if img.NRGBAAt(x, y).A == 0 {
				return true
			}
		}
	}
	return false
}

// floorPow2 returns the largest power of two not exceeding n.
func floorPow2(n int) int {
	p := 2
	for p*2 <= n {
		p *= 2
	}
	return p
}
