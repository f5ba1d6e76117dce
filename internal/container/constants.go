// Package container implements the GIF87a/89a block grammar: header,
// logical screen descriptor, color tables, extension blocks, image
// descriptors and length-prefixed data sub-blocks.
package container

import "encoding/binary"

// Block introducers and labels.
const (
	BlockExtension       = 0x21 // extension introducer
	BlockImageDescriptor = 0x2C // image separator
	BlockTrailer         = 0x3B

	LabelGraphicControl = 0xF9
	LabelComment        = 0xFE
	LabelPlainText      = 0x01
	LabelApplication    = 0xFF
)

// Disposal methods carried in the graphic control extension.
const (
	DisposalNone       = 0
	DisposalKeep       = 1
	DisposalBackground = 2
	DisposalPrevious   = 3
)

// Structure sizes.
const (
	HeaderSize           = 6 // "GIF" + version
	ScreenDescriptorSize = 7
	ImageDescriptorSize  = 9 // after the 0x2C separator
	GraphicControlSize   = 4 // block-size field of the GCE
)

// MaxColorTableSize is the largest color table the format can describe.
const MaxColorTableSize = 256

// Versions accepted in the header.
const (
	Version87a = "87a"
	Version89a = "89a"
)

// netscapeID is the application extension identifier carrying the
// animation loop count.
const netscapeID = "NETSCAPE2.0"

// ReadLE16 reads a little-endian uint16 from data.
func ReadLE16(data []byte) uint16 {
	return binary.LittleEndian.Uint16(data)
}

// PutLE16 writes a little-endian uint16 to data.
func PutLE16(data []byte, v uint16) {
	binary.LittleEndian.PutUint16(data, v)
}
