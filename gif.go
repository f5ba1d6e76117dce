// Package gif implements a decoder and encoder for the GIF image
// format, versions 87a and 89a.
//
// Decoding composites every image block of a file onto a single canvas
// and honors interlacing, transparency and the block disposal methods.
// Encoding quantizes true-color input to a palette of at most 256
// colors, dithers, and writes a GIF89a stream. Multi-frame files are
// handled by the animation subpackage.
//
// This package registers itself with the standard library's image
// package so that image.Decode can transparently read GIF files.
package gif

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/deepteams/gif/internal/container"
)

func init() {
	image.RegisterFormat("gif", "GIF8?a", Decode, DecodeConfig)
}

// Errors returned by the codec.
var (
	// ErrFormat is returned when the stream is not a GIF87a/89a file or
	// its block structure is malformed.
	ErrFormat = errors.New("gif: invalid format")

	// ErrCorrupt is returned when the block structure is intact but the
	// image data inside it cannot be decoded: a bad LZW code, a pixel
	// count that does not match the descriptor, an index outside the
	// active color table, or a block rectangle outside the canvas.
	ErrCorrupt = errors.New("gif: corrupt image data")

	// ErrNoImage is returned for a well-formed stream containing no
	// image blocks.
	ErrNoImage = errors.New("gif: no image data")

	// ErrTooManyColors is returned by Encode when a caller-supplied
	// palette exceeds the format's 256-color limit.
	ErrTooManyColors = errors.New("gif: palette has more than 256 colors")
)

// Features describes a GIF file's properties without decoding pixels.
type Features struct {
	Version         string // "87a" or "89a"
	Width           int
	Height          int
	FrameCount      int
	GlobalTableSize int // 0 when no global color table is present
	BackgroundIndex int
	LoopCount       int // NETSCAPE2.0 loop count, -1 when absent
}

// readAll reads all data from r. If r implements Len() int (e.g.
// *bytes.Reader), a single exact-sized allocation is used instead of
// the repeated doublings that io.ReadAll performs.
func readAll(r io.Reader) ([]byte, error) {
	if lr, ok := r.(interface{ Len() int }); ok {
		n := lr.Len()
		if n > 0 {
			data := make([]byte, n)
			_, err := io.ReadFull(r, data)
			return data, err
		}
	}
	return io.ReadAll(r)
}

// Decode reads a GIF image from r and returns it as an *image.NRGBA.
// Every image block in the file is composited onto one canvas; use the
// animation subpackage to access the blocks as separate frames.
func Decode(r io.Reader) (image.Image, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("gif: reading data: %w", err)
	}
	return decodeBytes(data)
}

// DecodeConfig returns the color model and dimensions of a GIF image
// without decoding the image data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := readAll(r)
	if err != nil {
		return image.Config{}, fmt.Errorf("gif: reading data: %w", err)
	}

	cr := container.NewReader(data)
	if _, err := cr.ReadHeader(); err != nil {
		return image.Config{}, formatErr(err)
	}
	sd, err := cr.ReadScreenDescriptor()
	if err != nil {
		return image.Config{}, formatErr(err)
	}

	cfg := image.Config{
		ColorModel: color.NRGBAModel,
		Width:      sd.Width,
		Height:     sd.Height,
	}
	if sd.HasGlobalTable {
		table, err := cr.ReadColorTable(sd.TableSize)
		if err != nil {
			return image.Config{}, formatErr(err)
		}
		cp := make(color.Palette, len(table))
		for i, c := range table {
			cp[i] = c
		}
		cfg.ColorModel = cp
	}
	return cfg, nil
}

// GetFeatures reads GIF features without decoding pixel data.
func GetFeatures(r io.Reader) (*Features, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("gif: reading data: %w", err)
	}

	cr := container.NewReader(data)
	vers, err := cr.ReadHeader()
	if err != nil {
		return nil, formatErr(err)
	}
	sd, err := cr.ReadScreenDescriptor()
	if err != nil {
		return nil, formatErr(err)
	}
	f := &Features{
		Version:         vers,
		Width:           sd.Width,
		Height:          sd.Height,
		BackgroundIndex: int(sd.BackgroundIndex),
	}
	if sd.HasGlobalTable {
		if _, err := cr.ReadColorTable(sd.TableSize); err != nil {
			return nil, formatErr(err)
		}
		f.GlobalTableSize = sd.TableSize
	}

	// Walk the image blocks without decompressing them.
	for {
		if _, err := cr.ReadExtensions(); err != nil {
			return nil, formatErr(err)
		}
		id, err := cr.ReadImageDescriptor()
		if err != nil {
			break
		}
		if id.HasLocalTable {
			if _, err := cr.ReadColorTable(id.TableSize); err != nil {
				return nil, formatErr(err)
			}
		}
		if _, _, err := cr.ReadImageData(); err != nil {
			return nil, formatErr(err)
		}
		f.FrameCount++
	}
	f.LoopCount = cr.LoopCount
	return f, nil
}

// formatErr wraps a container-level error as ErrFormat, except for
// truncation which keeps its own message.
func formatErr(err error) error {
	if errors.Is(err, container.ErrTruncated) {
		return fmt.Errorf("%w: %v", ErrFormat, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("%w: %v", ErrFormat, err)
}
