package gif

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/deepteams/gif/internal/container"
	"github.com/deepteams/gif/internal/lzw"
	"github.com/deepteams/gif/palette"
)

var (
	red   = color.NRGBA{R: 0xFF, A: 0xFF}
	green = color.NRGBA{G: 0xFF, A: 0xFF}
	blue  = color.NRGBA{B: 0xFF, A: 0xFF}
	black = color.NRGBA{A: 0xFF}
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, c)
		}
	}
	return m
}

func TestRoundTripSolidRed(t *testing.T) {
	src := solidImage(2, 2, red)
	var buf bytes.Buffer
	if err := Encode(&buf, src, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	img, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("decoded type %T, want *image.NRGBA", img)
	}
	if got.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds = %v, want 2x2", got.Bounds())
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if c := got.NRGBAAt(x, y); c != red {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, c, red)
			}
		}
	}
}

func TestRoundTripFewColors(t *testing.T) {
	// Few enough distinct colors that the exact palette is used and the
	// round trip is pixel-perfect.
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	colors := []color.NRGBA{red, green, blue, black}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, colors[(x+y)%len(colors)])
		}
	}

	for _, interlace := range []bool{false, true} {
		var buf bytes.Buffer
		err := Encode(&buf, src, &EncoderOptions{Interlace: interlace})
		if err != nil {
			t.Fatalf("Encode(interlace=%v): %v", interlace, err)
		}
		img, err := Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("Decode(interlace=%v): %v", interlace, err)
		}
		if diff := cmp.Diff(src, img); diff != "" {
			t.Errorf("interlace=%v round trip mismatch (-want +got):\n%s", interlace, diff)
		}
	}
}

func TestBadTrailerIsFormatError(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, solidImage(2, 2, red), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()
	data[len(data)-1] = 0x00

	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrFormat) {
		t.Errorf("error = %v, want ErrFormat", err)
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("NOTAGIF-AT-ALL")))
	if !errors.Is(err, ErrFormat) {
		t.Errorf("error = %v, want ErrFormat", err)
	}
}

func TestDecodeConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, solidImage(5, 3, red), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cfg, err := DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 5 || cfg.Height != 3 {
		t.Errorf("config = %dx%d, want 5x3", cfg.Width, cfg.Height)
	}
	if _, ok := cfg.ColorModel.(color.Palette); !ok {
		t.Errorf("color model %T, want color.Palette", cfg.ColorModel)
	}
}

func TestRegisteredWithImagePackage(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, solidImage(2, 2, red), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, format, err := image.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("image.Decode: %v", err)
	}
	if format != "gif" {
		t.Errorf("format = %q, want %q", format, "gif")
	}
}

func TestEncodeQuantizes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.SetNRGBA(x, y, color.NRGBA{
				R: byte(x * 8), G: byte(y * 8), B: byte((x ^ y) * 8), A: 0xFF,
			})
		}
	}

	for _, q := range []Quantizer{QuantizerMedianCut, QuantizerKMeans, QuantizerUniform, QuantizerRandom} {
		var buf bytes.Buffer
		err := Encode(&buf, src, &EncoderOptions{NumColors: 16, Quantizer: q})
		if err != nil {
			t.Fatalf("Encode(quantizer=%d): %v", q, err)
		}
		img, err := Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("Decode(quantizer=%d): %v", q, err)
		}
		distinct := make(map[color.NRGBA]bool)
		nrgba := img.(*image.NRGBA)
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				distinct[nrgba.NRGBAAt(x, y)] = true
			}
		}
		if len(distinct) > 16 {
			t.Errorf("quantizer %d: %d distinct colors after decode, want at most 16", q, len(distinct))
		}
	}
}

func TestEncodeRejectsBadOptions(t *testing.T) {
	src := solidImage(2, 2, red)

	var buf bytes.Buffer
	if err := Encode(&buf, src, &EncoderOptions{NumColors: 300}); err == nil {
		t.Error("NumColors=300: expected error")
	}
	if err := Encode(&buf, src, &EncoderOptions{NumColors: 1}); err == nil {
		t.Error("NumColors=1: expected error")
	}
	if err := Encode(&buf, image.NewNRGBA(image.Rectangle{}), nil); err == nil {
		t.Error("empty image: expected error")
	}

	big := palette.New(300)
	for i := 0; i < 300; i++ {
		big.Add(color.NRGBA{R: byte(i), G: byte(i >> 8), A: 0xFF})
	}
	err := Encode(&buf, src, &EncoderOptions{Palette: big})
	if !errors.Is(err, ErrTooManyColors) {
		t.Errorf("oversized palette error = %v, want ErrTooManyColors", err)
	}
}

func TestTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, red)
	src.SetNRGBA(1, 0, black)

	var buf bytes.Buffer
	err := Encode(&buf, src, &EncoderOptions{
		Transparency: true,
		Background:   black,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nrgba := img.(*image.NRGBA)
	if got := nrgba.NRGBAAt(0, 0); got != red {
		t.Errorf("pixel (0,0) = %v, want %v", got, red)
	}
	if got := nrgba.NRGBAAt(1, 0).A; got != 0 {
		t.Errorf("background pixel alpha = %d, want 0", got)
	}
}

func TestRowOrder(t *testing.T) {
	want := []int{0, 4, 2, 6, 1, 3, 5, 7}
	if diff := cmp.Diff(want, rowOrder(8, true)); diff != "" {
		t.Errorf("interlaced order mismatch (-want +got):\n%s", diff)
	}
	// Heights that end mid-pass still cover every row exactly once.
	for _, h := range []int{1, 2, 3, 5, 7, 11} {
		rows := rowOrder(h, true)
		if len(rows) != h {
			t.Fatalf("height %d: %d rows", h, len(rows))
		}
		seen := make(map[int]bool)
		for _, y := range rows {
			if y < 0 || y >= h || seen[y] {
				t.Fatalf("height %d: bad row sequence %v", h, rows)
			}
			seen[y] = true
		}
	}
}

// craftGIF assembles a GIF stream block by block for decoder tests the
// encoder cannot produce.
type craftGIF struct {
	buf bytes.Buffer
	w   *container.Writer
	t   *testing.T
}

func newCraftGIF(t *testing.T, width, height int, table []color.NRGBA, bg byte) *craftGIF {
	t.Helper()
	c := &craftGIF{t: t}
	c.w = container.NewWriter(&c.buf)
	c.check(c.w.WriteHeader(container.Version89a))
	c.check(c.w.WriteScreenDescriptor(container.ScreenDescriptor{
		Width:           width,
		Height:          height,
		HasGlobalTable:  true,
		TableSize:       tableLen(table),
		ColorResolution: 8,
		BackgroundIndex: bg,
	}))
	c.check(c.w.WriteColorTable(table, tableLen(table)))
	return c
}

func tableLen(table []color.NRGBA) int {
	n := 2
	for n < len(table) {
		n *= 2
	}
	return n
}

func (c *craftGIF) check(err error) {
	c.t.Helper()
	if err != nil {
		c.t.Fatal(err)
	}
}

func (c *craftGIF) block(id container.ImageDescriptor, gc *container.GraphicControl, pix []byte) {
	c.t.Helper()
	if gc != nil {
		c.check(c.w.WriteGraphicControl(*gc))
	}
	c.check(c.w.WriteImageDescriptor(id))
	compressed, err := lzw.Encode(pix, 2)
	c.check(err)
	c.check(c.w.WriteImageData(2, compressed))
}

func (c *craftGIF) bytes(withTrailer bool) []byte {
	c.t.Helper()
	if withTrailer {
		c.check(c.w.WriteTrailer())
	}
	return c.buf.Bytes()
}

func TestDisposalBackgroundFillsRect(t *testing.T) {
	table := []color.NRGBA{black, red, green, blue}
	c := newCraftGIF(t, 2, 2, table, 0)
	// First block paints the canvas red.
	c.block(container.ImageDescriptor{Width: 2, Height: 2}, nil, []byte{1, 1, 1, 1})
	// Second block has disposal 2: its pixels are ignored and its 1x1
	// rectangle is erased instead.
	c.block(container.ImageDescriptor{Width: 1, Height: 1},
		&container.GraphicControl{Disposal: container.DisposalBackground},
		[]byte{2})

	img, err := Decode(bytes.NewReader(c.bytes(true)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nrgba := img.(*image.NRGBA)
	if got := nrgba.NRGBAAt(0, 0); got != (color.NRGBA{}) {
		t.Errorf("pixel (0,0) = %v, want transparent black", got)
	}
	for _, pt := range []image.Point{{1, 0}, {0, 1}, {1, 1}} {
		if got := nrgba.NRGBAAt(pt.X, pt.Y); got != red {
			t.Errorf("pixel %v = %v, want %v", pt, got, red)
		}
	}
}

func TestDisposalPreviousSkipsDrawing(t *testing.T) {
	table := []color.NRGBA{black, red, green, blue}
	c := newCraftGIF(t, 2, 1, table, 0)
	c.block(container.ImageDescriptor{Width: 2, Height: 1}, nil, []byte{1, 1})
	// Disposal 3 leaves the prior contents untouched.
	c.block(container.ImageDescriptor{Width: 2, Height: 1},
		&container.GraphicControl{Disposal: container.DisposalPrevious},
		[]byte{2, 2})

	img, err := Decode(bytes.NewReader(c.bytes(true)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nrgba := img.(*image.NRGBA)
	for x := 0; x < 2; x++ {
		if got := nrgba.NRGBAAt(x, 0); got != red {
			t.Errorf("pixel (%d,0) = %v, want %v", x, got, red)
		}
	}
}

func TestDecodeRejectsBlockOutsideCanvas(t *testing.T) {
	table := []color.NRGBA{black, red}
	c := newCraftGIF(t, 2, 2, table, 0)
	c.block(container.ImageDescriptor{Left: 1, Top: 1, Width: 2, Height: 2}, nil,
		[]byte{1, 1, 1, 1})

	_, err := Decode(bytes.NewReader(c.bytes(true)))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt", err)
	}
}

func TestDecodeRejectsPixelCountMismatch(t *testing.T) {
	table := []color.NRGBA{black, red}
	c := newCraftGIF(t, 2, 2, table, 0)
	// Declared 2x2 but only three pixels of data.
	c.block(container.ImageDescriptor{Width: 2, Height: 2}, nil, []byte{1, 1, 1})

	_, err := Decode(bytes.NewReader(c.bytes(true)))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt", err)
	}
}

func TestDecodeRejectsIndexOutsideTable(t *testing.T) {
	table := []color.NRGBA{black, red}
	c := newCraftGIF(t, 2, 1, table, 0)
	// Index 3 is representable at litWidth 2 but the table only has two
	// entries.
	c.block(container.ImageDescriptor{Width: 2, Height: 1}, nil, []byte{3, 3})

	_, err := Decode(bytes.NewReader(c.bytes(true)))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("error = %v, want ErrCorrupt", err)
	}
}

func TestDecodeRequiresImageBlock(t *testing.T) {
	table := []color.NRGBA{black, red}
	c := newCraftGIF(t, 2, 2, table, 0)

	_, err := Decode(bytes.NewReader(c.bytes(true)))
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("error = %v, want ErrNoImage", err)
	}
}

func TestInterlacedDecode(t *testing.T) {
	// A 1x8 column whose source rows are 0..7 in stream order; with the
	// interlace flag set they land on rows 0,4,2,6,1,3,5,7.
	table := make([]color.NRGBA, 8)
	for i := range table {
		table[i] = color.NRGBA{R: byte(i * 30), A: 0xFF}
	}
	c := &craftGIF{t: t}
	c.w = container.NewWriter(&c.buf)
	c.check(c.w.WriteHeader(container.Version89a))
	c.check(c.w.WriteScreenDescriptor(container.ScreenDescriptor{
		Width: 1, Height: 8,
		HasGlobalTable: true, TableSize: 8, ColorResolution: 8,
	}))
	c.check(c.w.WriteColorTable(table, 8))
	c.check(c.w.WriteImageDescriptor(container.ImageDescriptor{
		Width: 1, Height: 8, Interlaced: true,
	}))
	compressed, err := lzw.Encode([]byte{0, 1, 2, 3, 4, 5, 6, 7}, 3)
	c.check(err)
	c.check(c.w.WriteImageData(3, compressed))

	img, err := Decode(bytes.NewReader(c.bytes(true)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nrgba := img.(*image.NRGBA)
	wantRows := []int{0, 4, 2, 6, 1, 3, 5, 7}
	for src, dst := range wantRows {
		if got := nrgba.NRGBAAt(0, dst); got != table[src] {
			t.Errorf("row %d = %v, want source row %d (%v)", dst, got, src, table[src])
		}
	}
}

func TestGetFeatures(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, solidImage(6, 4, red), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := GetFeatures(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("GetFeatures: %v", err)
	}
	want := &Features{
		Version:         "89a",
		Width:           6,
		Height:          4,
		FrameCount:      1,
		GlobalTableSize: 8,
		LoopCount:       -1,
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
}
