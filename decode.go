package gif

import (
	"fmt"
	"image"
	"image/color"

	"github.com/deepteams/gif/internal/container"
	"github.com/deepteams/gif/internal/lzw"
)

// decoder composites the image blocks of one GIF stream onto a canvas.
type decoder struct {
	r      *container.Reader
	canvas *image.NRGBA
	global []color.NRGBA

	frames int
}

// decodeBytes decodes a complete GIF file from a byte slice.
func decodeBytes(data []byte) (image.Image, error) {
	d := &decoder{r: container.NewReader(data)}

	if _, err := d.r.ReadHeader(); err != nil {
		return nil, formatErr(err)
	}
	sd, err := d.r.ReadScreenDescriptor()
	if err != nil {
		return nil, formatErr(err)
	}
	d.canvas = image.NewNRGBA(image.Rect(0, 0, sd.Width, sd.Height))

	if sd.HasGlobalTable {
		d.global, err = d.r.ReadColorTable(sd.TableSize)
		if err != nil {
			return nil, formatErr(err)
		}
		if int(sd.BackgroundIndex) < len(d.global) {
			fillRect(d.canvas, d.canvas.Bounds(), d.global[sd.BackgroundIndex])
		}
	}

	for {
		more, err := d.decodeBlock()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	if d.frames == 0 {
		return nil, ErrNoImage
	}
	if err := d.r.ReadTrailer(); err != nil {
		return nil, formatErr(err)
	}
	return d.canvas, nil
}

// decodeBlock reads one {extensions, descriptor, data} group and applies
// it to the canvas. It reports false when the stream holds no further
// image descriptor, leaving the read position on the trailer.
func (d *decoder) decodeBlock() (bool, error) {
	gc, err := d.r.ReadExtensions()
	if err != nil {
		return false, formatErr(err)
	}

	id, err := d.r.ReadImageDescriptor()
	if err != nil {
		return false, nil
	}

	rect := image.Rect(id.Left, id.Top, id.Left+id.Width, id.Top+id.Height)
	if !rect.In(d.canvas.Bounds()) {
		return false, fmt.Errorf("%w: image block %v outside canvas %v",
			ErrCorrupt, rect, d.canvas.Bounds())
	}

	table := d.global
	if id.HasLocalTable {
		table, err = d.r.ReadColorTable(id.TableSize)
		if err != nil {
			return false, formatErr(err)
		}
	}

	litWidth, compressed, err := d.r.ReadImageData()
	if err != nil {
		return false, formatErr(err)
	}
	pix, err := lzw.Decode(compressed, litWidth, id.Width*id.Height)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(pix) != id.Width*id.Height {
		return false, fmt.Errorf("%w: %d pixels decoded, descriptor says %d",
			ErrCorrupt, len(pix), id.Width*id.Height)
	}

	d.frames++

	disposal := byte(container.DisposalNone)
	if gc != nil {
		disposal = gc.Disposal
	}
	switch disposal {
	case container.DisposalBackground:
		// Restore-background fills the block's rectangle instead of
		// drawing the decoded pixels. The fill color is the pen, which
		// was reset to transparent black after the canvas was cleared
		// to the background entry, so the rectangle is erased rather
		// than painted with the background color.
		fillRect(d.canvas, rect, color.NRGBA{})
		return true, nil

	case container.DisposalPrevious:
		// Restore-previous keeps the prior canvas contents.
		return true, nil
	}

	return true, d.drawBlock(id, gc, table, pix)
}

// drawBlock writes decoded index data into the block's rectangle,
// honoring interlacing and transparency.
func (d *decoder) drawBlock(id container.ImageDescriptor, gc *container.GraphicControl, table []color.NRGBA, pix []byte) error {
	rows := rowOrder(id.Height, id.Interlaced)
	for srcY, dstY := range rows {
		for x := 0; x < id.Width; x++ {
			idx := pix[srcY*id.Width+x]
			if int(idx) >= len(table) {
				return fmt.Errorf("%w: pixel index %d outside color table of %d",
					ErrCorrupt, idx, len(table))
			}
			c := table[idx]
			if gc != nil && gc.HasTransparency && idx == gc.TransparentIndex {
				c.A = 0
			}
			d.canvas.SetNRGBA(id.Left+x, id.Top+dstY, c)
		}
	}
	return nil
}

// rowOrder maps each source row of a block to its destination row. For
// interlaced blocks the four passes run at offsets 0, 4, 2, 1 with
// steps 8, 8, 4, 2.
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

// fillRect sets every pixel of r within m to c.
func fillRect(m *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetNRGBA(x, y, c)
		}
	}
}
