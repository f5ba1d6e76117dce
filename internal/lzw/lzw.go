// Package lzw implements the variable-width LZW codec used by GIF
// table-based image data.
//
// Codes are packed least-significant-bit first and grow from litWidth+1
// up to 12 bits. The first two non-literal codes are the clear code and
// the end-of-information code, matching GIF89a Appendix F. The dictionary
// is kept as a growable arena of parent-pointer records addressed by
// integer index, so decoding a code is a walk up the prefix chain.
package lzw

import (
	"errors"
	"fmt"
)

const (
	// maxWidth is the widest code the format allows.
	maxWidth = 12
	// maxCodes is the dictionary capacity implied by maxWidth.
	maxCodes = 1 << maxWidth

	invalidCode = -1
)

var (
	// ErrCorrupt is returned when the compressed stream references a
	// dictionary slot that has not been assigned yet, or ends without an
	// end-of-information code while data is still expected.
	ErrCorrupt = errors.New("lzw: corrupt compressed stream")
)

// entry is one dictionary record. Walking prev links from a leaf to a
// root (prev < 0) reconstructs the byte string the entry stands for,
// last byte first.
type entry struct {
	prev int32
	code byte
}

// dict is the decoder dictionary: an arena of entries indexed by code.
type dict struct {
	entries  []entry
	litWidth int
	clear    int
	eof      int
	hi       int // code implied by the most recently read data code
}

func newDict(litWidth int) *dict {
	d := &dict{
		entries:  make([]entry, 1<<(litWidth+1), maxCodes),
		litWidth: litWidth,
		clear:    1 << litWidth,
	}
	d.eof = d.clear + 1
	d.reset()
	return d
}

// reset restores the dictionary to its root-only state: one entry per
// literal byte value, each its own single-byte string.
func (d *dict) reset() {
	d.entries = d.entries[:1<<(d.litWidth+1)]
	for i := range d.entries {
		d.entries[i] = entry{prev: invalidCode, code: byte(i)}
	}
	d.hi = d.eof
}

// add writes a record for prev extended by code at index hi, doubling
// the arena when the index would not fit.
func (d *dict) add(prev int, code byte) {
	if d.hi >= len(d.entries) {
		d.entries = append(d.entries, make([]entry, len(d.entries))...)
	}
	d.entries[d.hi] = entry{prev: int32(prev), code: code}
}

// firstByte walks the prefix chain to the root and returns the first
// byte of the string code expands to.
func (d *dict) firstByte(code int) byte {
	for d.entries[code].prev >= 0 {
		code = int(d.entries[code].prev)
	}
	return d.entries[code].code
}

// Decode decompresses a GIF LZW stream. litWidth is the minimum code
// size from the image data block; sizeHint, when positive, pre-sizes the
// output buffer (typically width*height of the image).
//
// A code referencing an unassigned dictionary slot means the stream is
// corrupt and ErrCorrupt is returned.
func Decode(data []byte, litWidth int, sizeHint int) ([]byte, error) {
	if litWidth < 2 || litWidth > 8 {
		return nil, fmt.Errorf("lzw: litWidth %d out of range", litWidth)
	}

	br := newBitReader(data)
	d := newDict(litWidth)
	width := litWidth + 1
	overflow := 1 << width
	last := invalidCode

	if sizeHint < 0 {
		sizeHint = 0
	}
	out := make([]byte, 0, sizeHint)

	// Scratch stack for reversing a prefix chain. A chain is at most
	// maxCodes long.
	var stack [maxCodes]byte

	for {
		code, ok := br.read(width)
		if !ok {
			return nil, ErrCorrupt
		}

		switch {
		case code == d.clear:
			d.reset()
			width = litWidth + 1
			overflow = 1 << width
			last = invalidCode
			continue

		case code == d.eof:
			return out, nil

		case code > d.hi:
			return nil, ErrCorrupt
		}

		// Expand the code's string onto the stack, leaf to root.
		c := code
		sp := len(stack)
		if code == d.hi && last != invalidCode {
			// Classic not-yet-in-table case: the string is the previous
			// string followed by its own first byte.
			sp--
			stack[sp] = d.firstByte(last)
			c = last
		}
		for d.entries[c].prev >= 0 {
			sp--
			stack[sp] = d.entries[c].code
			c = int(d.entries[c].prev)
		}
		sp--
		stack[sp] = d.entries[c].code
		out = append(out, stack[sp:]...)

		if last != invalidCode {
			d.add(last, stack[sp])
		}
		last = code
		d.hi++
		if d.hi >= overflow {
			if width == maxWidth {
				// Table is full; stay at 12 bits until a clear code.
				last = invalidCode
				d.hi--
			} else {
				width++
				overflow <<= 1
			}
		}
	}
}

// Encode compresses pix as a GIF LZW stream. Every byte of pix must be
// below 1<<litWidth. The stream begins with a clear code and ends with
// the end-of-information code; when the dictionary fills its 12-bit
// space a clear code is emitted and the dictionary restarts.
func Encode(pix []byte, litWidth int) ([]byte, error) {
	if litWidth < 2 || litWidth > 8 {
		return nil, fmt.Errorf("lzw: litWidth %d out of range", litWidth)
	}
	if max := byte(1<<litWidth - 1); max != 0xff {
		for _, b := range pix {
			if b > max {
				return nil, fmt.Errorf("lzw: input byte 0x%02x too large for litWidth %d", b, litWidth)
			}
		}
	}

	clear := 1 << litWidth
	eof := clear + 1
	width := litWidth + 1
	overflow := 1 << width
	hi := eof

	// Dictionary of strings built so far, keyed by prefix-code<<8 | byte.
	table := make(map[uint32]int, 1<<(litWidth+2))

	bw := newBitWriter(len(pix)/2 + 16)
	bw.write(clear, width)

	if len(pix) == 0 {
		bw.write(eof, width)
		return bw.finish(), nil
	}

	code := int(pix[0])
	for _, b := range pix[1:] {
		key := uint32(code)<<8 | uint32(b)
		if next, ok := table[key]; ok {
			code = next
			continue
		}

		bw.write(code, width)
		code = int(b)

		hi++
		if hi == overflow {
			width++
			overflow <<= 1
		}
		if hi == maxCodes-1 {
			// Out of codes: restart the dictionary so the next entry fits.
			bw.write(clear, width)
			width = litWidth + 1
			overflow = 1 << width
			hi = eof
			clearMap(table)
			continue
		}
		table[key] = hi
	}

	bw.write(code, width)
	hi++
	if hi == overflow && width < maxWidth {
		width++
	}
	bw.write(eof, width)
	return bw.finish(), nil
}

func clearMap(m map[uint32]int) {
	for k := range m {
		delete(m, k)
	}
}

// bitReader reads variable-width codes LSB-first from a byte slice.
type bitReader struct {
	data  []byte
	pos   int
	bits  uint32
	nBits int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// read returns the next width-bit code, or ok=false when the stream is
// exhausted before a full code is available.
func (br *bitReader) read(width int) (code int, ok bool) {
	for br.nBits < width {
		if br.pos >= len(br.data) {
			return 0, false
		}
		br.bits |= uint32(br.data[br.pos]) << br.nBits
		br.pos++
		br.nBits += 8
	}
	code = int(br.bits & (1<<width - 1))
	br.bits >>= width
	br.nBits -= width
	return code, true
}

// bitWriter packs variable-width codes LSB-first into a byte buffer.
type bitWriter struct {
	buf   []byte
	bits  uint32
	nBits int
}

func newBitWriter(sizeHint int) *bitWriter {
	if sizeHint < 16 {
		sizeHint = 16
	}
	return &bitWriter{buf: make([]byte, 0, sizeHint)}
}

func (bw *bitWriter) write(code, width int) {
	bw.bits |= uint32(code) << bw.nBits
	bw.nBits += width
	for bw.nBits >= 8 {
		bw.buf = append(bw.buf, byte(bw.bits))
		bw.bits >>= 8
		bw.nBits -= 8
	}
}

// finish flushes any partial byte and returns the packed stream.
func (bw *bitWriter) finish() []byte {
	if bw.nBits > 0 {
		bw.buf = append(bw.buf, byte(bw.bits))
		bw.bits = 0
		bw.nBits = 0
	}
	return bw.buf
}
