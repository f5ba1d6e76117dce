package palette

import "image"

// Reducers rewrite an image's pixels in place so every color is a
// member of the given palette. Callers that need the original must copy
// it first. Alpha channels are preserved.

// ReduceNearest replaces every pixel with its nearest palette color.
func ReduceNearest(m *image.NRGBA, p *Palette) {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := m.NRGBAAt(x, y)
			n := p.NearestColor(c)
			n.A = c.A
			m.SetNRGBA(x, y, n)
		}
	}
}

// ReduceFloydSteinberg replaces every pixel with its nearest palette
// color and diffuses the per-channel quantization error to the
// unprocessed neighbors: 7/16 right, 3/16 below-left, 5/16 below and
// 1/16 below-right.
func ReduceFloydSteinberg(m *image.NRGBA, p *Palette) {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := m.NRGBAAt(x, y)
			n := p.NearestColor(c)

			er := int(c.R) - int(n.R)
			eg := int(c.G) - int(n.G)
			eb := int(c.B) - int(n.B)

			n.A = c.A
			m.SetNRGBA(x, y, n)

			diffuse(m, x+1, y, er, eg, eb, 7)
			diffuse(m, x-1, y+1, er, eg, eb, 3)
			diffuse(m, x, y+1, er, eg, eb, 5)
			diffuse(m, x+1, y+1, er, eg, eb, 1)
		}
	}
}

// diffuse adds weight/16 of the error to the pixel at (x, y), clamping
// each channel.
func diffuse(m *image.NRGBA, x, y, er, eg, eb, weight int) {
	if !image.Pt(x, y).In(m.Bounds()) {
		return
	}
	c := m.NRGBAAt(x, y)
	c.R = clampByte(int(c.R) + er*weight>>4)
	c.G = clampByte(int(c.G) + eg*weight>>4)
	c.B = clampByte(int(c.B) + eb*weight>>4)
	m.SetNRGBA(x, y, c)
}

// Bayer threshold matrices. Tiled over the image by pixel position, so
// reduction is purely positional with no error carried between pixels.
var bayer4 = [4][4]int{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

var bayer8 = [8][8]int{
	{0, 32, 8, 40, 2, 34, 10, 42},
	{48, 16, 56, 24, 50, 18, 58, 26},
	{12, 44, 4, 36, 14, 46, 6, 38},
	{60, 28, 52, 20, 62, 30, 54, 22},
	{3, 35, 11, 43, 1, 33, 9, 41},
	{51, 19, 59, 27, 49, 17, 57, 25},
	{15, 47, 7, 39, 13, 45, 5, 37},
	{63, 31, 55, 23, 61, 29, 53, 21},
}

// ReduceOrdered4x4 applies ordered dithering with the 4x4 Bayer matrix.
func ReduceOrdered4x4(m *image.NRGBA, p *Palette) {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			reduceOrdered(m, p, x, y, bayer4[y&3][x&3], 16)
		}
	}
}

// ReduceOrdered8x8 applies ordered dithering with the 8x8 Bayer matrix.
func ReduceOrdered8x8(m *image.NRGBA, p *Palette) {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			reduceOrdered(m, p, x, y, bayer8[y&7][x&7], 64)
		}
	}
}

// reduceOrdered perturbs each channel by its share of the positional
// threshold, clamps, and snaps to the nearest palette color.
func reduceOrdered(m *image.NRGBA, p *Palette, x, y, threshold, max int) {
	c := m.NRGBAAt(x, y)
	c.R = clampByte(int(c.R) + int(c.R)*threshold/max - max/2)
	c.G = clampByte(int(c.G) + int(c.G)*threshold/max - max/2)
	c.B = clampByte(int(c.B) + int(c.B)*threshold/max - max/2)
	n := p.NearestColor(c)
	n.A = c.A
	m.SetNRGBA(x, y, n)
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
