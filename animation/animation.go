// Package animation decodes and encodes multi-frame GIF files.
//
// Decode returns each image block of a file as an independent Frame
// with its own rectangle, duration and disposal method. CanvasDecoder
// replays frames onto a full-size canvas the way a viewer would,
// honoring the disposal methods between frames.
package animation

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/deepteams/gif/internal/container"
	"github.com/deepteams/gif/internal/lzw"
)

// Errors returned by the animation codec.
var (
	ErrNoFrames = errors.New("gif: no image frames found")
	ErrCorrupt  = errors.New("gif: corrupt image data")
	ErrBounds   = errors.New("gif: frame outside canvas")
)

// Animation holds all frames and parameters of an animated GIF.
type Animation struct {
	// Frames holds the ordered animation frames.
	Frames []Frame

	// LoopCount is the NETSCAPE2.0 loop count: 0 means loop forever,
	// -1 means the file carries no loop extension.
	LoopCount int

	// BackgroundColor is the global color table entry named by the
	// background index, or transparent black without a global table.
	BackgroundColor color.NRGBA

	// CanvasWidth is the canvas width in pixels.
	CanvasWidth int

	// CanvasHeight is the canvas height in pixels.
	CanvasHeight int
}

// Decode parses an animated GIF from r. Every image block becomes one
// Frame; a still GIF decodes to a single frame.
func Decode(r io.Reader) (*Animation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gif: reading data: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses an animated GIF from raw bytes.
func DecodeBytes(data []byte) (*Animation, error) {
	cr := container.NewReader(data)
	if _, err := cr.ReadHeader(); err != nil {
		return nil, fmt.Errorf("gif: parsing header: %w", err)
	}
	sd, err := cr.ReadScreenDescriptor()
	if err != nil {
		return nil, fmt.Errorf("gif: parsing screen descriptor: %w", err)
	}

	anim := &Animation{
		CanvasWidth:  sd.Width,
		CanvasHeight: sd.Height,
	}

	var global []color.NRGBA
	if sd.HasGlobalTable {
		global, err = cr.ReadColorTable(sd.TableSize)
		if err != nil {
			return nil, fmt.Errorf("gif: parsing color table: %w", err)
		}
		if int(sd.BackgroundIndex) < len(global) {
			anim.BackgroundColor = global[sd.BackgroundIndex]
		}
	}

	for {
		gc, err := cr.ReadExtensions()
		if err != nil {
			return nil, fmt.Errorf("gif: parsing extensions: %w", err)
		}
		id, err := cr.ReadImageDescriptor()
		if err != nil {
			break
		}
		frame, err := decodeFrame(cr, id, gc, global)
		if err != nil {
			return nil, err
		}
		anim.Frames = append(anim.Frames, *frame)
	}

	if len(anim.Frames) == 0 {
		return nil, ErrNoFrames
	}
	if err := cr.ReadTrailer(); err != nil {
		return nil, fmt.Errorf("gif: parsing trailer: %w", err)
	}
	anim.LoopCount = cr.LoopCount
	return anim, nil
}

// decodeFrame reads one image block's table and data into a Frame.
func decodeFrame(cr *container.Reader, id container.ImageDescriptor, gc *container.GraphicControl, global []color.NRGBA) (*Frame, error) {
	table := global
	if id.HasLocalTable {
		var err error
		table, err = cr.ReadColorTable(id.TableSize)
		if err != nil {
			return nil, fmt.Errorf("gif: parsing local color table: %w", err)
		}
	}

	litWidth, compressed, err := cr.ReadImageData()
	if err != nil {
		return nil, fmt.Errorf("gif: parsing image data: %w", err)
	}
	pix, err := lzw.Decode(compressed, litWidth, id.Width*id.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(pix) != id.Width*id.Height {
		return nil, fmt.Errorf("%w: %d pixels decoded, descriptor says %d",
			ErrCorrupt, len(pix), id.Width*id.Height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, id.Width, id.Height))
	rows := rowOrder(id.Height, id.Interlaced)
	for srcY, dstY := range rows {
		for x := 0; x < id.Width; x++ {
			idx := pix[srcY*id.Width+x]
			if int(idx) >= len(table) {
				return nil, fmt.Errorf("%w: pixel index %d outside color table of %d",
					ErrCorrupt, idx, len(table))
			}
			c := table[idx]
			if gc != nil && gc.HasTransparency && idx == gc.TransparentIndex {
				c.A = 0
			}
			img.SetNRGBA(x, dstY, c)
		}
	}

	f := &Frame{
		Image:   img,
		OffsetX: id.Left,
		OffsetY: id.Top,
	}
	if gc != nil {
		f.Dispose = DisposeMethod(gc.Disposal)
		f.Duration = time.Duration(gc.DelayTime) * 10 * time.Millisecond
	}
	return f, nil
}

// rowOrder maps each source row of a block to its destination row,
// expanding the four interlace passes when flagged.
func rowOrder(height int, interlaced bool) []int {
	rows := make([]int, 0, height)
	if !interlaced {
		for y := 0; y < height; y++ {
			rows = append(rows, y)
		}
		return rows
	}
	passes := [4][2]int{{0, 8}, {4, 8}, {2, 4}, {1, 2}}
	for _, p := range passes {
		for y := p[0]; y < height; y += p[1] {
			rows = append(rows, y)
		}
	}
	return rows
}

// TotalDuration returns the sum of all frame durations.
func (a *Animation) TotalDuration() time.Duration {
	var total time.Duration
	for i := range a.Frames {
		total += a.Frames[i].Duration
	}
	return total
}

// CanvasDecoder replays an Animation's frames onto a full-size canvas,
// applying each frame's disposal method between frames.
type CanvasDecoder struct {
	anim   *Animation
	canvas *image.NRGBA
	pos    int
}

// NewCanvasDecoder creates a CanvasDecoder positioned before the first
// frame. The canvas starts fully transparent.
func NewCanvasDecoder(anim *Animation) *CanvasDecoder {
	return &CanvasDecoder{
		anim:   anim,
		canvas: image.NewNRGBA(image.Rect(0, 0, anim.CanvasWidth, anim.CanvasHeight)),
	}
}

// HasNext reports whether more frames are available.
func (d *CanvasDecoder) HasNext() bool {
	return d.pos < len(d.anim.Frames)
}

// NextFrame composites the next frame onto the canvas and returns a
// snapshot along with the frame's duration. The snapshot is a copy;
// later calls do not mutate it.
func (d *CanvasDecoder) NextFrame() (*image.NRGBA, time.Duration, error) {
	if !d.HasNext() {
		return nil, 0, ErrNoFrames
	}
	f := &d.anim.Frames[d.pos]
	if f.Image == nil {
		return nil, 0, fmt.Errorf("gif: frame %d has no image", d.pos)
	}
	rect := f.Bounds()
	if !rect.In(d.canvas.Bounds()) {
		return nil, 0, fmt.Errorf("%w: frame %d rectangle %v, canvas %v",
			ErrBounds, d.pos, rect, d.canvas.Bounds())
	}

	// Save the covered region first in case the frame restores it.
	var saved *image.NRGBA
	if f.Dispose == DisposePrevious {
		saved = cloneNRGBA(d.canvas.SubImage(rect).(*image.NRGBA))
	}

	// Composite: transparent frame pixels leave the canvas unchanged.
	for y := 0; y < f.Image.Rect.Dy(); y++ {
		for x := 0; x < f.Image.Rect.Dx(); x++ {
			c := f.Image.NRGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			d.canvas.SetNRGBA(f.OffsetX+x, f.OffsetY+y, c)
		}
	}

	snap := cloneNRGBA(d.canvas)

	switch f.Dispose {
	case DisposeBackground:
		clearRect(d.canvas, rect)
	case DisposePrevious:
		for y := 0; y < rect.Dy(); y++ {
			for x := 0; x < rect.Dx(); x++ {
				d.canvas.SetNRGBA(rect.Min.X+x, rect.Min.Y+y, saved.NRGBAAt(x, y))
			}
		}
	}

	d.pos++
	return snap, f.Duration, nil
}

// Reset rewinds the decoder to the first frame and clears the canvas.
func (d *CanvasDecoder) Reset() {
	d.pos = 0
	clearRect(d.canvas, d.canvas.Bounds())
}

// Canvas returns the current canvas state (not a copy).
func (d *CanvasDecoder) Canvas() *image.NRGBA {
	return d.canvas
}

func clearRect(m *image.NRGBA, r image.Rectangle) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.Pix[m.PixOffset(r.Min.X, y):m.PixOffset(r.Max.X, y)]
		for i := range row {
			row[i] = 0
		}
	}
}
