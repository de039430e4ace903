package png

import (
	"encoding/binary"
)

// Color type, as per the PNG spec. Adapted from
// 928799934-go-png-cgbi/util.go's ct* constants.
const (
	ctGrayscale      = 0
	ctTrueColor      = 2
	ctPaletted       = 3
	ctGrayscaleAlpha = 4
	ctTrueColorAlpha = 6
)

// Interlace method, as per the PNG spec. Adapted from util.go's it*
// constants.
const (
	itNone  = 0
	itAdam7 = 1
)

const maxDimension = 1 << 23 // spec §3/§4.7 size bound

var pngMagic = [8]byte{137, 80, 78, 71, 13, 10, 26, 10}

// decoder stage, tracking chunk ordering (spec §4.7). Adapted from
// 928799934-go-png-cgbi/reader.go's ds* stage enum, generalized from
// CgBI rewriting to full ordering enforcement.
const (
	dsStart = iota
	dsHeader
	dsData
	dsEnd
)

// rgb24 is one palette entry.
type rgb24 struct{ r, g, b byte }

// Palette holds up to 256 RGB entries, per spec §9's open question
// ("array of up to 256 RGB triplets, looked up during reconstruction
// write-out").
type Palette struct {
	entries [256]rgb24
	count   int
}

// Time is the tIME chunk's last-modification timestamp (SPEC_FULL.md
// item 5).
type Time struct {
	Year                 int
	Month, Day           int
	Hour, Minute, Second int
}

// Header is the decoded IHDR plus the ancillary metadata chunks that
// take effect before pixel data (spec §5's ordering guarantee).
type Header struct {
	Width, Height int
	BitDepth      int
	ColorType     int
	Interlace     int

	HasGamma bool
	Gamma    uint32 // raw gAMA value, *100000 per the PNG spec; not interpreted (SPEC_FULL.md item 4)

	HasPhys          bool
	PhysX, PhysY     uint32
	PhysUnitIsMeter  bool

	HasTime bool
	Time    Time

	HasBackground bool
	// BackgroundGray/BackgroundRGB/BackgroundPaletteIndex hold whichever
	// of bKGD's three encodings applies to ColorType; the others are zero.
	BackgroundGray         uint16
	BackgroundRGB          [3]uint16
	BackgroundPaletteIndex int

	HasTransparency  bool
	TransparentGray  uint16   // color type 0
	TransparentRGB   [3]uint16 // color type 2
	// TrnsAlpha holds per-palette-index alpha for color type 3.
	TrnsAlpha []byte

	Palette Palette
}

// decoder is the chunk-processing state machine, generalized from
// 928799934-go-png-cgbi/reader.go's decoder struct: same tmp-scratch /
// io.ReadFull-per-field style, different purpose (materializing pixels
// instead of rewriting CgBI chunks into standard PNG).
type decoder struct {
	src ByteSource
	pb  PixelBuffer

	crc   pngCRC
	stage int

	header Header
	// palette/trnsAlpha mirrored here for interlaceExpander's direct
	// field access (it holds a *decoder, see interlace.go).
	palette   Palette
	hasTRNS   bool
	trnsAlpha []byte

	layout   rasterLayout
	expander *interlaceExpander

	inf *inflater
}

func (d *decoder) readExact(n int) ([]byte, error) {
	b, err := readFull(d.src, n)
	if err != nil {
		return nil, asUnexpectedEOF(err)
	}
	return b, nil
}

func (d *decoder) checkMagic() error {
	b, err := d.readExact(8)
	if err != nil {
		return err
	}
	for i, want := range pngMagic {
		if b[i] != want {
			return errBadMagic
		}
	}
	return nil
}

// readChunkHeader reads the 4-byte length and 4-byte type tag, and
// starts the running CRC over the type tag, per spec §4.7.
func (d *decoder) readChunkHeader() (length uint32, typ string, err error) {
	b, err := d.readExact(8)
	if err != nil {
		return 0, "", err
	}
	length = binary.BigEndian.Uint32(b[:4])
	typ = string(b[4:8])
	d.crc.reset()
	d.crc.update(b[4:8])
	return length, typ, nil
}

// verifyChecksum reads the trailing 4-byte CRC and compares it against
// the running checksum, per spec §4.1/§4.7.
func (d *decoder) verifyChecksum() error {
	b, err := d.readExact(4)
	if err != nil {
		return err
	}
	want := binary.BigEndian.Uint32(b)
	if want != d.crc.finalize() {
		return errCRCMismatch
	}
	return nil
}

// isCriticalChunk reports whether tag's first letter is uppercase, per
// spec §3's chunk-tag flag encoding.
func isCriticalChunk(tag string) bool {
	c := tag[0]
	return c >= 'A' && c <= 'Z'
}

// Load decodes a PNG image from src into pb, per spec §6's
// load(byte_source, pixel_buffer) -> error_value library entry point.
// Grounded on 928799934-go-png-cgbi/reader.go's decode()/Decode().
func Load(src ByteSource, pb PixelBuffer) error {
	d := &decoder{src: src, pb: pb}
	if err := d.checkMagic(); err != nil {
		return err
	}
	for d.stage != dsEnd {
		if err := d.parseChunk(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) parseChunk() error {
	length, typ, err := d.readChunkHeader()
	if err != nil {
		return err
	}
	if length > 0x7fffffff {
		return FormatError("chunk length out of range")
	}

	switch typ {
	case "IHDR":
		if d.stage != dsStart {
			return errChunkOrder
		}
		if err := d.parseIHDR(length); err != nil {
			return err
		}
		d.stage = dsHeader
		return nil
	case "PLTE":
		if d.stage != dsHeader {
			return errChunkOrder
		}
		return d.parsePLTE(length)
	case "tRNS":
		if d.stage != dsHeader || d.hasTRNS {
			return errChunkOrder
		}
		return d.parseTRNS(length)
	case "gAMA":
		if d.stage != dsHeader || d.header.HasGamma {
			return errChunkOrder
		}
		return d.parseGAMA(length)
	case "pHYs":
		if d.stage != dsHeader || d.header.HasPhys {
			return errChunkOrder
		}
		return d.parsePHYs(length)
	case "tIME":
		if d.stage != dsHeader || d.header.HasTime {
			return errChunkOrder
		}
		return d.parseTIME(length)
	case "bKGD":
		if d.stage != dsHeader || d.header.HasBackground {
			return errChunkOrder
		}
		return d.parseBKGD(length)
	case "IDAT":
		if d.stage != dsHeader && d.stage != dsData {
			return errChunkOrder
		}
		if d.stage == dsHeader {
			if d.header.ColorType == ctPaletted {
				if d.palette.count == 0 {
					return FormatError("indexed image has no PLTE chunk")
				}
				mode := ColorRGB
				if d.hasTRNS {
					mode = ColorRGBA
				}
				if !d.pb.Create(d.header.Width, d.header.Height, 8, mode) {
					return BufferError("pixel buffer create failed")
				}
			}
			d.inf = newInflater()
			d.stage = dsData
		}
		return d.parseIDAT(length)
	case "IEND":
		if d.stage != dsData {
			return errChunkOrder
		}
		if err := d.parseIEND(length); err != nil {
			return err
		}
		d.stage = dsEnd
		return nil
	}

	if d.stage == dsData {
		return FormatError("non-IDAT chunk interrupts image data")
	}
	if isCriticalChunk(typ) {
		return UnsupportedError("unknown critical chunk " + typ)
	}
	return d.skipChunk(length)
}

func (d *decoder) skipChunk(length uint32) error {
	const chunkSize = 4096
	remaining := int(length)
	for remaining > 0 {
		n := remaining
		if n > chunkSize {
			n = chunkSize
		}
		b, err := d.readExact(n)
		if err != nil {
			return err
		}
		d.crc.update(b)
		remaining -= n
	}
	return d.verifyChecksum()
}

func (d *decoder) parseIHDR(length uint32) error {
	if length != 13 {
		return FormatError("bad IHDR length")
	}
	b, err := d.readExact(13)
	if err != nil {
		return err
	}
	d.crc.update(b)

	width := binary.BigEndian.Uint32(b[0:4])
	height := binary.BigEndian.Uint32(b[4:8])
	bitDepth := int(b[8])
	colorType := int(b[9])
	compression := b[10]
	filterMethod := b[11]
	interlace := b[12]

	if err := d.verifyChecksum(); err != nil {
		return err
	}

	if width == 0 || height == 0 || width > maxDimension || height > maxDimension {
		return FormatError("image dimensions out of range")
	}
	if compression != 0 {
		return UnsupportedError("compression method")
	}
	if filterMethod != 0 {
		return UnsupportedError("filter method")
	}
	if interlace != itNone && interlace != itAdam7 {
		return UnsupportedError("interlace method")
	}
	if !validDepthForColorType(bitDepth, colorType) {
		return FormatError("invalid bit depth for color type")
	}

	d.header.Width = int(width)
	d.header.Height = int(height)
	d.header.BitDepth = bitDepth
	d.header.ColorType = colorType
	d.header.Interlace = int(interlace)

	channels, err := channelsForColorType(colorType)
	if err != nil {
		return err
	}
	d.layout = rasterLayout{
		width: int(width), height: int(height),
		bitDepth: bitDepth, colorType: colorType, channels: channels,
	}
	method := interlaceNone
	if interlace == itAdam7 {
		method = interlaceAdam7
	}
	d.expander = &interlaceExpander{method: method, layout: d.layout, dec: d}

	if colorType != ctPaletted {
		mode := colorModeFor(colorType)
		if !d.pb.Create(d.header.Width, d.header.Height, bitDepth, mode) {
			return BufferError("pixel buffer create failed")
		}
	}
	return nil
}

func validDepthForColorType(depth, colorType int) bool {
	switch colorType {
	case ctGrayscale:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case ctTrueColor, ctGrayscaleAlpha, ctTrueColorAlpha:
		return depth == 8 || depth == 16
	case ctPaletted:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	}
	return false
}

func colorModeFor(colorType int) ColorMode {
	switch colorType {
	case ctGrayscale:
		return ColorGray
	case ctTrueColor:
		return ColorRGB
	case ctGrayscaleAlpha:
		return ColorGrayAlpha
	case ctTrueColorAlpha:
		return ColorRGBA
	}
	return ColorRGB
}

func (d *decoder) parsePLTE(length uint32) error {
	if d.header.ColorType != ctPaletted {
		// Suggested palette for a non-indexed image: harmless, not used
		// by reconstruction. Validate and discard.
		return d.skipChunk(length)
	}
	if length == 0 || length%3 != 0 || length > 256*3 {
		return FormatError("bad PLTE length")
	}
	b, err := d.readExact(int(length))
	if err != nil {
		return err
	}
	d.crc.update(b)
	if err := d.verifyChecksum(); err != nil {
		return err
	}
	count := int(length) / 3
	for i := 0; i < count; i++ {
		d.palette.entries[i] = rgb24{r: b[3*i], g: b[3*i+1], b: b[3*i+2]}
	}
	d.palette.count = count
	d.header.Palette = d.palette
	// Buffer creation is deferred to the first IDAT: whether the
	// destination needs an alpha channel depends on tRNS, which may
	// still follow this chunk (spec §4.7 ordering: PLTE, [tRNS], IDAT).
	return nil
}

func (d *decoder) parseTRNS(length uint32) error {
	b, err := d.readExact(int(length))
	if err != nil {
		return err
	}
	d.crc.update(b)
	if err := d.verifyChecksum(); err != nil {
		return err
	}

	switch d.header.ColorType {
	case ctPaletted:
		if int(length) > d.palette.count {
			return FormatError("tRNS longer than palette")
		}
		alpha := make([]byte, d.palette.count)
		for i := range alpha {
			alpha[i] = 255
		}
		copy(alpha, b)
		d.trnsAlpha = alpha
		d.header.TrnsAlpha = alpha
	case ctGrayscale:
		if length != 2 {
			return FormatError("bad tRNS length for grayscale")
		}
		d.header.TransparentGray = binary.BigEndian.Uint16(b)
	case ctTrueColor:
		if length != 6 {
			return FormatError("bad tRNS length for truecolor")
		}
		d.header.TransparentRGB[0] = binary.BigEndian.Uint16(b[0:2])
		d.header.TransparentRGB[1] = binary.BigEndian.Uint16(b[2:4])
		d.header.TransparentRGB[2] = binary.BigEndian.Uint16(b[4:6])
	default:
		return FormatError("tRNS not allowed for this color type")
	}
	d.hasTRNS = true
	d.header.HasTransparency = true
	return nil
}

func (d *decoder) parseGAMA(length uint32) error {
	if length != 4 {
		return FormatError("bad gAMA length")
	}
	b, err := d.readExact(4)
	if err != nil {
		return err
	}
	d.crc.update(b)
	if err := d.verifyChecksum(); err != nil {
		return err
	}
	d.header.Gamma = binary.BigEndian.Uint32(b)
	d.header.HasGamma = true
	return nil
}

func (d *decoder) parsePHYs(length uint32) error {
	if length != 9 {
		return FormatError("bad pHYs length")
	}
	b, err := d.readExact(9)
	if err != nil {
		return err
	}
	d.crc.update(b)
	if err := d.verifyChecksum(); err != nil {
		return err
	}
	d.header.PhysX = binary.BigEndian.Uint32(b[0:4])
	d.header.PhysY = binary.BigEndian.Uint32(b[4:8])
	d.header.PhysUnitIsMeter = b[8] == 1
	d.header.HasPhys = true
	return nil
}

func (d *decoder) parseTIME(length uint32) error {
	if length != 7 {
		return FormatError("bad tIME length")
	}
	b, err := d.readExact(7)
	if err != nil {
		return err
	}
	d.crc.update(b)
	if err := d.verifyChecksum(); err != nil {
		return err
	}
	d.header.Time = Time{
		Year:   int(binary.BigEndian.Uint16(b[0:2])),
		Month:  int(b[2]),
		Day:    int(b[3]),
		Hour:   int(b[4]),
		Minute: int(b[5]),
		Second: int(b[6]),
	}
	d.header.HasTime = true
	return nil
}

// parseBKGD parses the bKGD chunk, whose payload shape depends on
// ColorType, per SPEC_FULL.md item 1's per-tag chunk tracking.
func (d *decoder) parseBKGD(length uint32) error {
	var want uint32
	switch d.header.ColorType {
	case ctGrayscale, ctGrayscaleAlpha:
		want = 2
	case ctTrueColor, ctTrueColorAlpha:
		want = 6
	case ctPaletted:
		want = 1
	}
	if length != want {
		return FormatError("bad bKGD length")
	}
	b, err := d.readExact(int(length))
	if err != nil {
		return err
	}
	d.crc.update(b)
	if err := d.verifyChecksum(); err != nil {
		return err
	}

	switch d.header.ColorType {
	case ctGrayscale, ctGrayscaleAlpha:
		d.header.BackgroundGray = binary.BigEndian.Uint16(b)
	case ctTrueColor, ctTrueColorAlpha:
		d.header.BackgroundRGB[0] = binary.BigEndian.Uint16(b[0:2])
		d.header.BackgroundRGB[1] = binary.BigEndian.Uint16(b[2:4])
		d.header.BackgroundRGB[2] = binary.BigEndian.Uint16(b[4:6])
	case ctPaletted:
		if int(b[0]) >= d.palette.count {
			return FormatError("bKGD palette index out of range")
		}
		d.header.BackgroundPaletteIndex = int(b[0])
	}
	d.header.HasBackground = true
	return nil
}

func (d *decoder) parseIDAT(length uint32) error {
	remaining := int(length)
	const chunkSize = 4096
	// An inflate error is held until the chunk's CRC has been checked, so
	// a corrupted chunk is reported as a checksum error.
	var infErr error
	for remaining > 0 {
		n := remaining
		if n > chunkSize {
			n = chunkSize
		}
		b, err := d.readExact(n)
		if err != nil {
			return err
		}
		d.crc.update(b)
		if infErr == nil {
			if err := d.inf.feed(b); err != nil && err != errNeedsMoreInput {
				infErr = err
			}
		}
		remaining -= n
	}
	if err := d.verifyChecksum(); err != nil {
		return err
	}
	return infErr
}

func (d *decoder) parseIEND(length uint32) error {
	if length != 0 {
		return FormatError("bad IEND length")
	}
	if err := d.verifyChecksum(); err != nil {
		return err
	}
	if err := d.inf.end(); err != nil {
		return err
	}
	data := d.inf.output(true)
	return d.expander.expand(data, d.pb)
}
