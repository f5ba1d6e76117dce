package animation

import (
	"image"
	"time"
)

// DisposeMethod specifies how the canvas is treated after a frame's
// duration elapses, per the GIF graphic control extension.
type DisposeMethod int

const (
	// DisposeNone leaves the canvas as drawn.
	DisposeNone DisposeMethod = iota
	// DisposeKeep leaves the canvas as drawn (decoders treat it the
	// same as DisposeNone).
	DisposeKeep
	// DisposeBackground clears the frame's rectangle to transparent.
	DisposeBackground
	// DisposePrevious restores the canvas state from before the frame
	// was drawn.
	DisposePrevious
)

// Frame is one image block of an animated GIF. The Image covers only
// the frame's own rectangle; OffsetX/OffsetY place it on the canvas.
type Frame struct {
	// Image holds the frame's pixels. Transparent source pixels carry
	// zero alpha.
	Image *image.NRGBA

	// Duration is how long the frame is displayed. GIF stores this in
	// hundredths of a second, so sub-10ms values round to zero.
	Duration time.Duration

	// Dispose selects the canvas treatment after the frame.
	Dispose DisposeMethod

	// OffsetX and OffsetY position the frame on the canvas.
	OffsetX int
	OffsetY int
}

// Bounds returns the frame's rectangle in canvas coordinates.
func (f *Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	w := f.Image.Bounds().Dx()
	h := f.Image.Bounds().Dy()
	return image.Rect(f.OffsetX, f.OffsetY, f.OffsetX+w, f.OffsetY+h)
}

// cloneNRGBA copies src into a zero-origin image.
func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*b.Dx()], row)
	}
	return dst
}
