package palette

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

var (
	red   = color.NRGBA{R: 0xFF, A: 0xFF}
	green = color.NRGBA{G: 0xFF, A: 0xFF}
	blue  = color.NRGBA{B: 0xFF, A: 0xFF}
	white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	black = color.NRGBA{A: 0xFF}
)

func TestPaletteAddSetGet(t *testing.T) {
	p := New(4)
	if got := p.Add(red); got != 0 {
		t.Errorf("first Add returned index %d, want 0", got)
	}
	if got := p.Add(green); got != 1 {
		t.Errorf("second Add returned index %d, want 1", got)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	if err := p.Set(1, blue); err != nil {
		t.Fatalf("Set(1): %v", err)
	}
	if got := p.Get(1); got != blue {
		t.Errorf("Get(1) = %v, want %v", got, blue)
	}
	if err := p.Set(2, white); !errors.Is(err, ErrIndexRange) {
		t.Errorf("Set(2) error = %v, want ErrIndexRange", err)
	}
	if err := p.Set(-1, white); !errors.Is(err, ErrIndexRange) {
		t.Errorf("Set(-1) error = %v, want ErrIndexRange", err)
	}
}

func TestPaletteAddDropsAlpha(t *testing.T) {
	p := New(1)
	p.Add(color.NRGBA{R: 10, G: 20, B: 30, A: 5})
	if got := p.Get(0); got.A != 0xFF {
		t.Errorf("stored alpha = %d, want 255", got.A)
	}
}

func TestNearestSelf(t *testing.T) {
	p := FromColors([]color.NRGBA{red, green, blue, white, black})
	for i := 0; i < p.Len(); i++ {
		c := p.Get(i)
		if got := p.NearestColor(c); got != c {
			t.Errorf("NearestColor(%v) = %v, want itself", c, got)
		}
		if got := p.NearestIndex(c); got < 0 || got >= p.Len() {
			t.Errorf("NearestIndex(%v) = %d, out of range", c, got)
		}
	}
}

func TestNearestIndex(t *testing.T) {
	p := FromColors([]color.NRGBA{black, white})
	tests := []struct {
		in   color.NRGBA
		want int
	}{
		{color.NRGBA{R: 10, G: 10, B: 10, A: 0xFF}, 0},
		{color.NRGBA{R: 250, G: 240, B: 230, A: 0xFF}, 1},
	}
	for _, tt := range tests {
		if got := p.NearestIndex(tt.in); got != tt.want {
			t.Errorf("NearestIndex(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if got := New(0).NearestIndex(red); got != -1 {
		t.Errorf("empty palette NearestIndex = %d, want -1", got)
	}
}

func TestDistanceMetrics(t *testing.T) {
	if got := Euclidean(red, red); got != 0 {
		t.Errorf("Euclidean(red, red) = %d, want 0", got)
	}
	if got := RedMean(red, red); got != 0 {
		t.Errorf("RedMean(red, red) = %d, want 0", got)
	}
	if Euclidean(red, green) != Euclidean(green, red) {
		t.Error("Euclidean is not symmetric")
	}
	if RedMean(red, blue) != RedMean(blue, red) {
		t.Error("RedMean is not symmetric")
	}
	// The red-mean weighting scales the red term by (512+rmean)/256 and
	// the blue term by (767-rmean)/256, so at low red levels a blue step
	// costs more than the same step in red, and the ordering flips once
	// the red level is high.
	a := color.NRGBA{A: 0xFF}
	dr := RedMean(a, color.NRGBA{R: 0x40, A: 0xFF})
	db := RedMean(a, color.NRGBA{B: 0x40, A: 0xFF})
	if db <= dr {
		t.Errorf("RedMean blue step %d not heavier than red step %d at low red", db, dr)
	}
	hi := color.NRGBA{R: 0xBF, A: 0xFF}
	dr = RedMean(hi, color.NRGBA{R: 0xFF, A: 0xFF})
	db = RedMean(hi, color.NRGBA{R: 0xBF, B: 0x40, A: 0xFF})
	if dr <= db {
		t.Errorf("RedMean red step %d not heavier than blue step %d at high red", dr, db)
	}
}

// testImage builds a small image cycling through the given colors.
func testImage(w, h int, colors ...color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, colors[i%len(colors)])
			i++
		}
	}
	return m
}

// gradientImage builds an image with smoothly varying channels so
// quantizers have plenty of distinct colors to work with.
func gradientImage(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{
				R: byte(x * 255 / (w - 1)),
				G: byte(y * 255 / (h - 1)),
				B: byte((x + y) * 255 / (w + h - 2)),
				A: 0xFF,
			})
		}
	}
	return m
}

func TestMedianCutSize(t *testing.T) {
	p, err := MedianCut(gradientImage(32, 32), 16)
	if err != nil {
		t.Fatalf("MedianCut: %v", err)
	}
	if p.Len() != 16 {
		t.Errorf("palette size = %d, want 16", p.Len())
	}
}

func TestMedianCutFewDistinctColors(t *testing.T) {
	// Three distinct colors, four requested: the requested count is
	// authoritative, so the result still has four entries.
	m := testImage(2, 2, red, green, blue, red)
	p, err := MedianCut(m, 4)
	if err != nil {
		t.Fatalf("MedianCut: %v", err)
	}
	if p.Len() != 4 {
		t.Errorf("palette size = %d, want 4", p.Len())
	}
}

func TestMedianCutRejectsBadCounts(t *testing.T) {
	m := testImage(2, 2, red)
	if _, err := MedianCut(m, 12); !errors.Is(err, ErrPowerOfTwo) {
		t.Errorf("n=12 error = %v, want ErrPowerOfTwo", err)
	}
	for _, n := range []int{0, 1, 512} {
		if _, err := MedianCut(m, n); !errors.Is(err, ErrColorCount) {
			t.Errorf("n=%d error = %v, want ErrColorCount", n, err)
		}
	}
}

func TestKMeansSize(t *testing.T) {
	p, err := KMeans(gradientImage(32, 32), 8)
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	if p.Len() < 1 || p.Len() > 8 {
		t.Errorf("palette size = %d, want 1..8", p.Len())
	}
}

func TestKMeansDropsEmptyClusters(t *testing.T) {
	// Two distinct colors but eight clusters requested: at most two
	// clusters can be populated.
	m := testImage(4, 4, red, blue)
	p, err := KMeans(m, 8)
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	if p.Len() > 2 {
		t.Errorf("palette size = %d, want at most 2", p.Len())
	}
}

func TestUniformSize(t *testing.T) {
	p, err := Uniform(gradientImage(16, 16), 10)
	if err != nil {
		t.Fatalf("Uniform: %v", err)
	}
	if p.Len() != 10 {
		t.Errorf("palette size = %d, want 10", p.Len())
	}
}

func TestRandomSize(t *testing.T) {
	m := testImage(4, 4, red, green, blue)
	p, err := Random(m, 5)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if p.Len() != 5 {
		t.Errorf("palette size = %d, want 5", p.Len())
	}
	// Every sampled color must come from the image.
	for i := 0; i < p.Len(); i++ {
		c := p.Get(i)
		if c != red && c != green && c != blue {
			t.Errorf("sampled color %v not in source image", c)
		}
	}
}

func TestQuantizerCountValidation(t *testing.T) {
	m := testImage(2, 2, red)
	for name, q := range map[string]func(image.Image, int) (*Palette, error){
		"KMeans":  KMeans,
		"Uniform": Uniform,
		"Random":  Random,
	} {
		for _, k := range []int{1, 257} {
			if _, err := q(m, k); !errors.Is(err, ErrColorCount) {
				t.Errorf("%s(k=%d) error = %v, want ErrColorCount", name, k, err)
			}
		}
	}
}

func TestExact(t *testing.T) {
	m := testImage(2, 2, red, green, blue, red)
	p, ok := Exact(m, 256)
	if !ok {
		t.Fatal("Exact reported too many colors")
	}
	if p.Len() != 3 {
		t.Errorf("distinct colors = %d, want 3", p.Len())
	}
	// First-seen order.
	if p.Get(0) != red || p.Get(1) != green || p.Get(2) != blue {
		t.Errorf("colors out of order: %v %v %v", p.Get(0), p.Get(1), p.Get(2))
	}

	if _, ok := Exact(m, 2); ok {
		t.Error("Exact(max=2) should report too many colors")
	}
}

func paletteSet(p *Palette) map[color.NRGBA]bool {
	set := make(map[color.NRGBA]bool, p.Len())
	for i := 0; i < p.Len(); i++ {
		set[p.Get(i)] = true
	}
	return set
}

func TestReducersProducePaletteMembers(t *testing.T) {
	p := FromColors([]color.NRGBA{black, red, green, blue, white})
	set := paletteSet(p)

	reducers := map[string]func(*image.NRGBA, *Palette){
		"Nearest":        ReduceNearest,
		"FloydSteinberg": ReduceFloydSteinberg,
		"Ordered4x4":     ReduceOrdered4x4,
		"Ordered8x8":     ReduceOrdered8x8,
	}
	for name, reduce := range reducers {
		m := gradientImage(16, 16)
		reduce(m, p)
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				c := m.NRGBAAt(x, y)
				c.A = 0xFF
				if !set[c] {
					t.Fatalf("%s: pixel (%d,%d) = %v not in palette", name, x, y, c)
				}
			}
		}
	}
}

func TestReduceNearestExactColors(t *testing.T) {
	p := FromColors([]color.NRGBA{red, blue})
	m := testImage(2, 2,
		color.NRGBA{R: 0xF0, G: 0x10, B: 0x10, A: 0xFF},
		color.NRGBA{R: 0x10, G: 0x10, B: 0xF0, A: 0xFF})
	ReduceNearest(m, p)
	if got := m.NRGBAAt(0, 0); got != red {
		t.Errorf("pixel (0,0) = %v, want %v", got, red)
	}
	if got := m.NRGBAAt(1, 0); got != blue {
		t.Errorf("pixel (1,0) = %v, want %v", got, blue)
	}
}

func TestReducersPreserveAlpha(t *testing.T) {
	p := FromColors([]color.NRGBA{black, white})
	m := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	m.SetNRGBA(0, 0, color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x42})
	m.SetNRGBA(1, 0, color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0x00})
	ReduceFloydSteinberg(m, p)
	if got := m.NRGBAAt(0, 0).A; got != 0x42 {
		t.Errorf("alpha at (0,0) = 0x%02x, want 0x42", got)
	}
	if got := m.NRGBAAt(1, 0).A; got != 0x00 {
		t.Errorf("alpha at (1,0) = 0x%02x, want 0x00", got)
	}
}
