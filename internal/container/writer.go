package container

import (
	"fmt"
	"image/color"
	"io"
)

// Writer emits GIF blocks to an io.Writer.
type Writer struct {
	w   io.Writer
	buf [32]byte
}

// NewWriter creates a Writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

// WriteHeader writes the 6-byte signature for the given version tag.
func (w *Writer) WriteHeader(version string) error {
	if version != Version87a && version != Version89a {
		return fmt.Errorf("container: bad version %q", version)
	}
	return w.write([]byte("GIF" + version))
}

// WriteScreenDescriptor writes the logical screen descriptor. When a
// global table is present sd.TableSize must be a power of two in 2..256.
func (w *Writer) WriteScreenDescriptor(sd ScreenDescriptor) error {
	b := w.buf[:ScreenDescriptorSize]
	PutLE16(b[0:2], uint16(sd.Width))
	PutLE16(b[2:4], uint16(sd.Height))
	var fields byte
	if sd.HasGlobalTable {
		sizeField, err := tableSizeField(sd.TableSize)
		if err != nil {
			return err
		}
		fields = 0x80 | sizeField
	}
	if sd.ColorResolution > 0 {
		fields |= byte(sd.ColorResolution-1) << 4
	}
	b[4] = fields
	b[5] = sd.BackgroundIndex
	b[6] = sd.AspectRatio
	return w.write(b)
}

// WriteColorTable writes size RGB triplets, zero-padding entries beyond
// len(table).
func (w *Writer) WriteColorTable(table []color.NRGBA, size int) error {
	if len(table) > size {
		return fmt.Errorf("container: color table has %d entries, field says %d", len(table), size)
	}
	b := make([]byte, 3*size)
	for i, c := range table {
		b[3*i] = c.R
		b[3*i+1] = c.G
		b[3*i+2] = c.B
	}
	return w.write(b)
}

// WriteGraphicControl writes a graphic control extension block.
func (w *Writer) WriteGraphicControl(gc GraphicControl) error {
	b := w.buf[:8]
	b[0] = BlockExtension
	b[1] = LabelGraphicControl
	b[2] = GraphicControlSize
	b[3] = gc.Disposal << 2
	if gc.HasTransparency {
		b[3] |= 0x01
	}
	PutLE16(b[4:6], uint16(gc.DelayTime))
	b[6] = gc.TransparentIndex
	b[7] = 0x00
	return w.write(b)
}

// WriteNetscapeLoop writes the NETSCAPE2.0 application extension with
// the given loop count (0 means loop forever).
func (w *Writer) WriteNetscapeLoop(count int) error {
	b := w.buf[:3]
	b[0] = BlockExtension
	b[1] = LabelApplication
	b[2] = byte(len(netscapeID))
	if err := w.write(b); err != nil {
		return err
	}
	if err := w.write([]byte(netscapeID)); err != nil {
		return err
	}
	b = w.buf[:5]
	b[0] = 0x03
	b[1] = 0x01
	PutLE16(b[2:4], uint16(count))
	b[4] = 0x00
	return w.write(b)
}

// WriteImageDescriptor writes the 0x2C separator and descriptor bytes.
func (w *Writer) WriteImageDescriptor(id ImageDescriptor) error {
	b := w.buf[:1+ImageDescriptorSize]
	b[0] = BlockImageDescriptor
	PutLE16(b[1:3], uint16(id.Left))
	PutLE16(b[3:5], uint16(id.Top))
	PutLE16(b[5:7], uint16(id.Width))
	PutLE16(b[7:9], uint16(id.Height))
	var fields byte
	if id.HasLocalTable {
		sizeField, err := tableSizeField(id.TableSize)
		if err != nil {
			return err
		}
		fields = 0x80 | sizeField
	}
	if id.Interlaced {
		fields |= 0x40
	}
	b[9] = fields
	return w.write(b)
}

// WriteImageData writes the minimum code size byte and the compressed
// stream as 255-byte-or-smaller sub-blocks followed by the terminator.
func (w *Writer) WriteImageData(litWidth int, data []byte) error {
	if err := w.write([]byte{byte(litWidth)}); err != nil {
		return err
	}
	return w.WriteSubBlocks(data)
}

// WriteSubBlocks chunks data into length-prefixed sub-blocks and writes
// the zero-length terminator.
func (w *Writer) WriteSubBlocks(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		if err := w.write([]byte{byte(n)}); err != nil {
			return err
		}
		if err := w.write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return w.write([]byte{0x00})
}

// WriteTrailer writes the final 0x3B byte.
func (w *Writer) WriteTrailer() error {
	return w.write([]byte{BlockTrailer})
}

// tableSizeField maps a color table entry count (power of two, 2..256)
// to its 3-bit descriptor field.
func tableSizeField(size int) (byte, error) {
	for n := byte(0); n < 8; n++ {
		if 2<<n == size {
			return n, nil
		}
	}
	return 0, fmt.Errorf("container: invalid color table size %d", size)
}
