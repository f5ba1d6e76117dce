package container

import (
	"errors"
	"fmt"
	"image/color"
)

// Errors returned while parsing the block structure.
var (
	ErrTruncated = errors.New("container: unexpected end of data")
	ErrSignature = errors.New("container: not a GIF file")
	ErrVersion   = errors.New("container: unsupported GIF version")
	ErrSeparator = errors.New("container: missing image separator")
	ErrTrailer   = errors.New("container: missing trailer byte")
)

// ScreenDescriptor holds the logical screen descriptor fields.
type ScreenDescriptor struct {
	Width           int
	Height          int
	HasGlobalTable  bool
	TableSize       int // number of entries, 2..256
	ColorResolution int // bits per primary, informational only
	BackgroundIndex byte
	AspectRatio     byte // parsed but unused downstream
}

// ImageDescriptor holds one image block's descriptor fields.
type ImageDescriptor struct {
	Left          int
	Top           int
	Width         int
	Height        int
	HasLocalTable bool
	Interlaced    bool
	TableSize     int
}

// GraphicControl holds the fields of a graphic control extension.
type GraphicControl struct {
	Disposal         byte
	HasTransparency  bool
	TransparentIndex byte
	DelayTime        int // hundredths of a second; parsed, not acted upon
}

// Reader is a cursor over a complete GIF byte stream. The cursor only
// moves forward except where the grammar requires un-consuming a
// lookahead byte (end of the extension loop, end of the image loop).
type Reader struct {
	data []byte
	pos  int

	// LoopCount is the NETSCAPE2.0 animation loop count, or -1 when no
	// such extension has been seen.
	LoopCount int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, LoopCount: -1}
}

// Pos returns the current byte offset, for error reporting.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) remaining() int { return len(r.data) - r.pos }

func (r *Reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) readSlice(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrTruncated
	}
	s := r.data[r.pos : r.pos+n]
	r.pos += n
	return s, nil
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	return r.data[r.pos], nil
}

// ReadHeader validates the 6-byte signature and returns the version tag
// ("87a" or "89a").
func (r *Reader) ReadHeader() (string, error) {
	hdr, err := r.readSlice(HeaderSize)
	if err != nil {
		return "", err
	}
	if string(hdr[:3]) != "GIF" {
		return "", ErrSignature
	}
	vers := string(hdr[3:])
	if vers != Version87a && vers != Version89a {
		return "", fmt.Errorf("%w: %q", ErrVersion, vers)
	}
	return vers, nil
}

// ReadScreenDescriptor parses the 7-byte logical screen descriptor.
func (r *Reader) ReadScreenDescriptor() (ScreenDescriptor, error) {
	b, err := r.readSlice(ScreenDescriptorSize)
	if err != nil {
		return ScreenDescriptor{}, err
	}
	fields := b[4]
	sd := ScreenDescriptor{
		Width:           int(ReadLE16(b[0:2])),
		Height:          int(ReadLE16(b[2:4])),
		HasGlobalTable:  fields&0x80 != 0,
		ColorResolution: int(fields>>4&0x07) + 1,
		BackgroundIndex: b[5],
		AspectRatio:     b[6],
	}
	if sd.HasGlobalTable {
		sd.TableSize = 2 << (fields & 0x07)
	}
	return sd, nil
}

// ReadColorTable reads n RGB triplets. Entries are returned fully opaque.
func (r *Reader) ReadColorTable(n int) ([]color.NRGBA, error) {
	b, err := r.readSlice(3 * n)
	if err != nil {
		return nil, err
	}
	table := make([]color.NRGBA, n)
	for i := range table {
		table[i] = color.NRGBA{R: b[3*i], G: b[3*i+1], B: b[3*i+2], A: 0xFF}
	}
	return table, nil
}

// ReadExtensions consumes extension blocks until the next byte is not an
// extension introducer. Graphic control extensions are decoded and the
// last one wins; comment, plain-text and application extensions are read
// and discarded through the generic sub-block reader, except for the
// NETSCAPE2.0 loop count which is recorded on the Reader. The lookahead
// byte that ends the loop is not consumed.
func (r *Reader) ReadExtensions() (*GraphicControl, error) {
	var gc *GraphicControl
	for {
		b, err := r.Peek()
		if err != nil {
			// Out of data: the caller decides whether that is an error.
			return gc, nil
		}
		if b != BlockExtension {
			return gc, nil
		}
		r.pos++
		label, err := r.readByte()
		if err != nil {
			return nil, err
		}
		switch label {
		case LabelGraphicControl:
			g, err := r.readGraphicControl()
			if err != nil {
				return nil, err
			}
			gc = g

		case LabelApplication:
			if err := r.readApplication(); err != nil {
				return nil, err
			}

		case LabelComment, LabelPlainText:
			if err := r.SkipSubBlocks(); err != nil {
				return nil, err
			}

		default:
			// Unrecognized label: rewind past the introducer and label so
			// the caller sees the stream exactly as before.
			r.pos -= 2
			return gc, nil
		}
	}
}

func (r *Reader) readGraphicControl() (*GraphicControl, error) {
	size, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if size != GraphicControlSize {
		return nil, fmt.Errorf("container: graphic control block size %d", size)
	}
	b, err := r.readSlice(int(size))
	if err != nil {
		return nil, err
	}
	gc := &GraphicControl{
		Disposal:         b[0] >> 2 & 0x07,
		HasTransparency:  b[0]&0x01 != 0,
		DelayTime:        int(ReadLE16(b[1:3])),
		TransparentIndex: b[3],
	}
	if term, err := r.readByte(); err != nil {
		return nil, err
	} else if term != 0 {
		return nil, fmt.Errorf("container: graphic control terminator 0x%02x", term)
	}
	return gc, nil
}

// readApplication reads an application extension, recording the
// NETSCAPE2.0 loop count and discarding everything else.
func (r *Reader) readApplication() error {
	size, err := r.readByte()
	if err != nil {
		return err
	}
	id, err := r.readSlice(int(size))
	if err != nil {
		return err
	}
	if string(id) != netscapeID {
		return r.SkipSubBlocks()
	}
	for {
		n, err := r.readByte()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		sub, err := r.readSlice(int(n))
		if err != nil {
			return err
		}
		if n == 3 && sub[0] == 1 {
			r.LoopCount = int(ReadLE16(sub[1:3]))
		}
	}
}

// ReadImageDescriptor parses the 0x2C separator and the nine descriptor
// bytes that follow.
func (r *Reader) ReadImageDescriptor() (ImageDescriptor, error) {
	sep, err := r.readByte()
	if err != nil {
		return ImageDescriptor{}, err
	}
	if sep != BlockImageDescriptor {
		r.pos--
		return ImageDescriptor{}, ErrSeparator
	}
	b, err := r.readSlice(ImageDescriptorSize)
	if err != nil {
		return ImageDescriptor{}, err
	}
	fields := b[8]
	id := ImageDescriptor{
		Left:          int(ReadLE16(b[0:2])),
		Top:           int(ReadLE16(b[2:4])),
		Width:         int(ReadLE16(b[4:6])),
		Height:        int(ReadLE16(b[6:8])),
		HasLocalTable: fields&0x80 != 0,
		Interlaced:    fields&0x40 != 0,
	}
	if id.HasLocalTable {
		id.TableSize = 2 << (fields & 0x07)
	}
	return id, nil
}

// ReadImageData reads the minimum LZW code size byte and concatenates
// the length-prefixed sub-blocks that follow, up to and including the
// zero-length terminator.
func (r *Reader) ReadImageData() (litWidth int, data []byte, err error) {
	mcs, err := r.readByte()
	if err != nil {
		return 0, nil, err
	}
	data, err = r.ReadSubBlocks()
	if err != nil {
		return 0, nil, err
	}
	return int(mcs), data, nil
}

// ReadSubBlocks concatenates data sub-blocks until the zero-length
// terminator.
func (r *Reader) ReadSubBlocks() ([]byte, error) {
	var out []byte
	for {
		n, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		sub, err := r.readSlice(int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
}

// SkipSubBlocks discards data sub-blocks until the zero-length
// terminator.
func (r *Reader) SkipSubBlocks() error {
	for {
		n, err := r.readByte()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := r.readSlice(int(n)); err != nil {
			return err
		}
	}
}

// ReadTrailer checks the single trailer byte.
func (r *Reader) ReadTrailer() error {
	b, err := r.readByte()
	if err != nil {
		return ErrTrailer
	}
	if b != BlockTrailer {
		return fmt.Errorf("%w: got 0x%02x", ErrTrailer, b)
	}
	return nil
}
