package png

// interlaceMethod is the tagged variant spec §9 calls for
// ({Null, Adam7}) in place of the original's InterlaceType/
// InterlaceTypeAdam7 class hierarchy (png.cpp). The Null case delegates
// to a single pass; Adam7 iterates seven passes from adam7Passes.
type interlaceMethod uint8

const (
	interlaceNone interlaceMethod = iota
	interlaceAdam7
)

// adam7Pass describes one Adam7 sub-grid, grounded on
// 928799934-go-png-cgbi/util.go's interlacing table (xFactor/yFactor/
// xOffset/yOffset), reused verbatim for the seven-pass geometry that
// spec §4.6 also specifies.
type adam7Pass struct {
	colOffset, colStep int
	rowOffset, rowStep int
}

var adam7Passes = [7]adam7Pass{
	{0, 8, 0, 8},
	{4, 8, 0, 8},
	{0, 4, 4, 8},
	{2, 4, 0, 4},
	{0, 2, 2, 4},
	{1, 2, 0, 2},
	{0, 1, 1, 2},
}

// ceilDiv computes ceil(a/b) for non-negative a and positive b. Used for
// both Adam7 sub-image dimensions and byte-per-row computation. spec §9
// flags the original's pass-line-length computation as containing an
// operator-precedence bug; this is the corrected formula used
// throughout (see SPEC_FULL.md item 6).
func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// rasterLayout captures the per-image facts the interlace expander and
// scanline filters need: encoding channel count (for filter-unit and
// bytes-per-row purposes) and bit depth.
type rasterLayout struct {
	width, height int
	bitDepth      int
	colorType     int
	channels      int // samples per pixel as encoded in the PNG stream
}

func channelsForColorType(colorType int) (int, error) {
	switch colorType {
	case ctGrayscale:
		return 1, nil
	case ctTrueColor:
		return 3, nil
	case ctPaletted:
		return 1, nil
	case ctGrayscaleAlpha:
		return 2, nil
	case ctTrueColorAlpha:
		return 4, nil
	}
	return 0, FormatError("invalid color type")
}

func (rl rasterLayout) filterUnit() int {
	u := ceilDiv(rl.bitDepth*rl.channels, 8)
	if u < 1 {
		u = 1
	}
	return u
}

func (rl rasterLayout) bytesPerRow(width int) int {
	return ceilDiv(width*rl.bitDepth*rl.channels, 8)
}

// sampleAt extracts sample x (0-based) from a packed row at the given
// bit depth, using PNG's MSB-first packing within each byte.
func sampleAt(row []byte, x, bitDepth int) uint8 {
	if bitDepth == 8 {
		return row[x]
	}
	samplesPerByte := 8 / bitDepth
	byteIdx := x / samplesPerByte
	shift := 8 - bitDepth - (x%samplesPerByte)*bitDepth
	mask := uint8((1 << uint(bitDepth)) - 1)
	return (row[byteIdx] >> uint(shift)) & mask
}

// packSample writes an n-bit sample into a packed row at position x,
// using PNG's MSB-first packing within each byte.
func packSample(row []byte, x, bitDepth int, v uint8) {
	if bitDepth == 8 {
		row[x] = v
		return
	}
	samplesPerByte := 8 / bitDepth
	byteIdx := x / samplesPerByte
	shift := 8 - bitDepth - (x%samplesPerByte)*bitDepth
	mask := uint8((1 << uint(bitDepth)) - 1)
	row[byteIdx] = (row[byteIdx] &^ (mask << uint(shift))) | ((v & mask) << uint(shift))
}

// byteCursor sequentially reads fixed-size records (filter byte +
// scanline data) out of the inflater's concatenated output, the way the
// original's Deinterlace walks its linedata buffer with an inpos cursor.
type byteCursor struct {
	data []byte
	pos  int
}

func (c *byteCursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, FormatError("truncated scanline data")
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *byteCursor) readN(n int) ([]byte, error) {
	if c.pos+n > len(c.data) {
		return nil, FormatError("truncated scanline data")
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// interlaceExpander reconstructs scanlines from the inflater's output and
// scatters them into the destination PixelBuffer, per spec §4.6. It owns
// no pixel-buffer reference outside of the call to expand — ownership
// note in spec §9: "The interlace expander borrows the pixel buffer only
// while writing."
type interlaceExpander struct {
	method interlaceMethod
	layout rasterLayout
	dec    *decoder // for palette/transparency lookups on color type 3
}

func (ie *interlaceExpander) expand(data []byte, pb PixelBuffer) error {
	buf := pb.LockWrite()
	if buf == nil {
		return BufferError("lock_write returned nil")
	}
	defer pb.UnlockWrite()

	cur := byteCursor{data: data}
	pitch := pb.Pitch()

	if ie.method == interlaceNone {
		return ie.expandPass(&cur, buf, pitch, ie.layout.width, ie.layout.height, 0, 1, 0, 1)
	}
	for _, p := range adam7Passes {
		pw := ceilDiv(ie.layout.width-p.colOffset, p.colStep)
		ph := ceilDiv(ie.layout.height-p.rowOffset, p.rowStep)
		if pw <= 0 || ph <= 0 {
			continue
		}
		if err := ie.expandPass(&cur, buf, pitch, pw, ph, p.colOffset, p.colStep, p.rowOffset, p.rowStep); err != nil {
			return err
		}
	}
	return nil
}

// expandPass reconstructs and scatters one pass (the whole image, for the
// null method) of passWidth x passHeight sub-sampled pixels, placed at
// destination coordinates (colOffset+i*colStep, rowOffset+j*rowStep).
func (ie *interlaceExpander) expandPass(cur *byteCursor, dest []byte, pitch, passWidth, passHeight, colOffset, colStep, rowOffset, rowStep int) error {
	unit := ie.layout.filterUnit()
	rowBytes := ie.layout.bytesPerRow(passWidth)
	above := make([]byte, rowBytes)
	recon := make([]byte, rowBytes)

	for j := 0; j < passHeight; j++ {
		ftByte, err := cur.readByte()
		if err != nil {
			return err
		}
		if ftByte > byte(maxFilterType) {
			return FormatError("invalid scanline filter type")
		}
		raw, err := cur.readN(rowBytes)
		if err != nil {
			return err
		}
		if err := reconstructScanline(filterType(ftByte), raw, above, unit, recon); err != nil {
			return err
		}

		destY := rowOffset + j*rowStep
		if destY >= ie.layout.height {
			return FormatError("interlace pass row out of bounds")
		}
		destRow := dest[destY*pitch : destY*pitch+pitch]
		if err := ie.writeRow(recon, destRow, passWidth, colOffset, colStep); err != nil {
			return err
		}

		copy(above, recon)
	}
	return nil
}

// writeRow expands one reconstructed scanline into the destination pixel
// buffer row, dispatching on color type the way spec §9 calls for a
// small switch instead of virtual dispatch.
func (ie *interlaceExpander) writeRow(row, destRow []byte, passWidth, colOffset, colStep int) error {
	depth := ie.layout.bitDepth
	switch ie.layout.colorType {
	case ctGrayscale:
		if depth < 8 {
			for x := 0; x < passWidth; x++ {
				v := sampleAt(row, x, depth)
				packSample(destRow, colOffset+x*colStep, depth, v)
			}
			return nil
		}
		return writeDirectBytes(row, destRow, passWidth, 1, depth, colOffset, colStep)
	case ctTrueColor:
		return writeDirectBytes(row, destRow, passWidth, 3, depth, colOffset, colStep)
	case ctGrayscaleAlpha:
		return writeDirectBytes(row, destRow, passWidth, 2, depth, colOffset, colStep)
	case ctTrueColorAlpha:
		return writeDirectBytes(row, destRow, passWidth, 4, depth, colOffset, colStep)
	case ctPaletted:
		return ie.writeIndexedRow(row, destRow, passWidth, colOffset, colStep)
	}
	return FormatError("invalid color type")
}

// writeDirectBytes copies channels*(depth/8)-byte pixels straight from
// the reconstructed row into the destination at stride colStep, for the
// color types whose destination layout mirrors the PNG sample layout
// exactly (bit depth preserved, per spec §4.7).
func writeDirectBytes(row, destRow []byte, passWidth, channels, depth, colOffset, colStep int) error {
	bps := depth / 8
	pixelBytes := channels * bps
	for x := 0; x < passWidth; x++ {
		srcOff := x * pixelBytes
		destOff := (colOffset + x*colStep) * pixelBytes
		if srcOff+pixelBytes > len(row) || destOff+pixelBytes > len(destRow) {
			return FormatError("pixel write out of bounds")
		}
		copy(destRow[destOff:destOff+pixelBytes], row[srcOff:srcOff+pixelBytes])
	}
	return nil
}

// writeIndexedRow resolves palette indices to RGB/RGBA, per spec §9's
// open question on palette storage (array of up to 256 RGB triplets,
// looked up during reconstruction write-out) and SPEC_FULL.md item 2.
func (ie *interlaceExpander) writeIndexedRow(row, destRow []byte, passWidth, colOffset, colStep int) error {
	depth := ie.layout.bitDepth
	pal := ie.dec.palette
	hasAlpha := ie.dec.hasTRNS
	destPixelBytes := 3
	if hasAlpha {
		destPixelBytes = 4
	}
	for x := 0; x < passWidth; x++ {
		idx := sampleAt(row, x, depth)
		if int(idx) >= pal.count {
			return FormatError("palette index out of range")
		}
		c := pal.entries[idx]
		destOff := (colOffset + x*colStep) * destPixelBytes
		if destOff+destPixelBytes > len(destRow) {
			return FormatError("pixel write out of bounds")
		}
		destRow[destOff+0] = c.r
		destRow[destOff+1] = c.g
		destRow[destOff+2] = c.b
		if hasAlpha {
			a := byte(255)
			if int(idx) < len(ie.dec.trnsAlpha) {
				a = ie.dec.trnsAlpha[idx]
			}
			destRow[destOff+3] = a
		}
	}
	return nil
}
