package palette

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"sort"
)

// Errors returned by the quantizers for invalid target counts.
var (
	ErrColorCount = errors.New("palette: color count must be between 2 and 256")
	ErrPowerOfTwo = errors.New("palette: median cut needs a power-of-two color count")
)

// kmeansMaxIterations bounds the refinement loop; most images converge
// long before this.
const kmeansMaxIterations = 128

// MedianCut builds an n-color palette by recursively bisecting the
// pixel list along the channel with the widest spread and averaging the
// final partitions. n must be a power of two between 2 and 256; the
// bisection always produces exactly n partitions, so the palette has
// exactly n entries even when the image holds fewer distinct colors.
func MedianCut(m image.Image, n int) (*Palette, error) {
	if n < 2 || n > 256 {
		return nil, ErrColorCount
	}
	if n&(n-1) != 0 {
		return nil, ErrPowerOfTwo
	}
	px := collectPixels(m)
	p := New(n)
	medianCut(px, n, p)
	return p, nil
}

func medianCut(px []color.NRGBA, n int, p *Palette) {
	if n == 1 {
		p.Add(averageColor(px))
		return
	}

	ch := widestChannel(px)
	sort.Slice(px, func(i, j int) bool {
		return channel(px[i], ch) < channel(px[j], ch)
	})

	half := (len(px) + 1) / 2
	medianCut(px[:half], n/2, p)
	medianCut(px[half:], n/2, p)
}

// widestChannel returns 0, 1 or 2 for whichever of R, G, B spans the
// largest range over px.
func widestChannel(px []color.NRGBA) int {
	var lo, hi [3]byte
	for i := range lo {
		lo[i] = 0xFF
	}
	for _, c := range px {
		for i, v := range [3]byte{c.R, c.G, c.B} {
			if v < lo[i] {
				lo[i] = v
			}
			if v > hi[i] {
				hi[i] = v
			}
		}
	}
	widest, spread := 0, -1
	for i := range lo {
		if s := int(hi[i]) - int(lo[i]); s > spread {
			widest, spread = i, s
		}
	}
	return widest
}

func channel(c color.NRGBA, ch int) byte {
	switch ch {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

func averageColor(px []color.NRGBA) color.NRGBA {
	if len(px) == 0 {
		return color.NRGBA{A: 0xFF}
	}
	var r, g, b uint64
	for _, c := range px {
		r += uint64(c.R)
		g += uint64(c.G)
		b += uint64(c.B)
	}
	n := uint64(len(px))
	return color.NRGBA{R: byte(r / n), G: byte(g / n), B: byte(b / n), A: 0xFF}
}

// KMeans builds a palette of at most k colors by Lloyd's algorithm:
// centers start as randomly sampled pixels, pixels are reassigned by
// squared Euclidean RGB distance, and centers move to their cluster
// means until assignments stop changing or the iteration cap is hit.
// Clusters that end up empty are dropped and the survivors are ordered
// by descending population, so the most common color gets index 0.
func KMeans(m image.Image, k int) (*Palette, error) {
	if k < 2 || k > 256 {
		return nil, ErrColorCount
	}
	px := collectPixels(m)
	if len(px) == 0 {
		return New(0), nil
	}

	centers := make([]color.NRGBA, k)
	for i := range centers {
		centers[i] = px[rand.Intn(len(px))]
	}

	assign := make([]int, len(px))
	for i := range assign {
		assign[i] = -1
	}

	counts := make([]int, k)
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, c := range px {
			best, bestDist := 0, Euclidean(c, centers[0])
			for j := 1; j < k; j++ {
				if d := Euclidean(c, centers[j]); d < bestDist {
					best, bestDist = j, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		var sums [256][3]uint64
		for j := range counts {
			counts[j] = 0
		}
		for i, c := range px {
			j := assign[i]
			sums[j][0] += uint64(c.R)
			sums[j][1] += uint64(c.G)
			sums[j][2] += uint64(c.B)
			counts[j]++
		}
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			n := uint64(counts[j])
			centers[j] = color.NRGBA{
				R: byte(sums[j][0] / n),
				G: byte(sums[j][1] / n),
				B: byte(sums[j][2] / n),
				A: 0xFF,
			}
		}
	}

	for j := range counts {
		counts[j] = 0
	}
	for i := range px {
		counts[assign[i]]++
	}

	order := make([]int, k)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	p := New(k)
	for _, j := range order {
		if counts[j] == 0 {
			continue
		}
		p.Add(centers[j])
	}
	return p, nil
}

// Uniform builds a k-color palette by sorting every pixel numerically
// by packed RGB value and sampling k evenly spaced entries.
func Uniform(m image.Image, k int) (*Palette, error) {
	if k < 2 || k > 256 {
		return nil, ErrColorCount
	}
	px := collectPixels(m)
	if len(px) == 0 {
		return New(0), nil
	}
	sort.Slice(px, func(i, j int) bool {
		return packRGB(px[i]) < packRGB(px[j])
	})
	p := New(k)
	for i := 0; i < k; i++ {
		p.Add(px[i*(len(px)-1)/(k-1)])
	}
	return p, nil
}

// Random builds a k-color palette from k pixels sampled uniformly at
// random, with replacement.
func Random(m image.Image, k int) (*Palette, error) {
	if k < 2 || k > 256 {
		return nil, ErrColorCount
	}
	px := collectPixels(m)
	if len(px) == 0 {
		return New(0), nil
	}
	p := New(k)
	for i := 0; i < k; i++ {
		p.Add(px[rand.Intn(len(px))])
	}
	return p, nil
}

// Exact collects the distinct colors of m in first-seen order. It
// reports false as soon as more than max distinct colors are found,
// which lets an encoder fall back to a quantizer.
func Exact(m image.Image, max int) (*Palette, bool) {
	seen := make(map[uint32]bool, max)
	p := New(max)
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := nrgbaAt(m, x, y)
			key := packRGB(c)
			if seen[key] {
				continue
			}
			if p.Len() == max {
				return nil, false
			}
			seen[key] = true
			p.Add(c)
		}
	}
	return p, true
}

func packRGB(c color.NRGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// collectPixels flattens m into a slice of NRGBA values, one per pixel.
func collectPixels(m image.Image) []color.NRGBA {
	b := m.Bounds()
	px := make([]color.NRGBA, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px = append(px, nrgbaAt(m, x, y))
		}
	}
	return px
}

// nrgbaAt reads a pixel as non-premultiplied RGBA, using the fast path
// for *image.NRGBA sources.
func nrgbaAt(m image.Image, x, y int) color.NRGBA {
	if n, ok := m.(*image.NRGBA); ok {
		return n.NRGBAAt(x, y)
	}
	return color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
}
