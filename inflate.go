package png

// inflater implements the zlib-framed DEFLATE decompressor described in
// spec §4.4, re-architected per spec §9's design note as an explicit
// state machine with a single feed entry point, instead of the
// original's nested-loop, return-based suspension style
// (Compression.cpp's Inflate::DecompressData).
type inflateState int

const (
	stateZlibHeader inflateState = iota
	stateBlockHeader
	stateUncompressedHeader
	stateUncompressedBody
	stateDynamicLengths
	stateHuffmanBody
	stateTrailer
	stateDone
	stateError
)

// deflate length/distance extra-bits tables, RFC 1951 §3.2.5.
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}
var lengthExtra = [29]uint{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}
var distBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}
var distExtra = [30]uint{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// codeLengthOrder is the permutation the dynamic-block header lists its
// HCLEN code lengths in (spec §4.4).
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

const (
	maxWindow   = 32768
	maxLitLen   = 286
	maxDistCode = 30
)

type inflater struct {
	bits  bitReader
	state inflateState
	err   error

	blockFinal bool
	blockType  uint32

	lit, dist huffTable

	uncompHeader  [4]byte
	uncompHeaderN int
	uncompRemain  int

	// dynamic-block header construction, §4.4.
	dynSub     int
	nlit       int
	ndist      int
	nclen      int
	clenLens   [19]uint8
	clenFilled int
	clenTable  huffTable
	lenCodes   []uint8
	lenFilled  int
	repPending bool
	repSymbol  uint16

	// symbol engine, §4.4's "Symbol engine" / back-reference copy.
	hbSub      int
	curLenSym  uint16
	curLength  int
	curDistSym uint16

	out   []byte
	adlerA, adlerB uint32
	adlerExpected  uint32
	trailer        [4]byte
	trailerFilled  int
}

func newInflater() *inflater {
	inf := &inflater{}
	inf.adlerA, inf.adlerB = 1, 0
	return inf
}

func (inf *inflater) emit(b byte) {
	inf.out = append(inf.out, b)
	inf.adlerA = (inf.adlerA + uint32(b)) % 65521
	inf.adlerB = (inf.adlerB + inf.adlerA) % 65521
}

func (inf *inflater) fail(err error) error {
	inf.state = stateError
	inf.err = err
	return err
}

// feed appends newly available bytes and drives the state machine until
// it stalls on errNeedsMoreInput, reaches stateDone, or hits a fatal
// error (spec §4.4's decompress_feed contract).
func (inf *inflater) feed(data []byte) error {
	if inf.state == stateError {
		return inf.err
	}
	if len(data) > 0 {
		inf.bits.append(data)
	}
	for {
		var err error
		switch inf.state {
		case stateZlibHeader:
			err = inf.stepZlibHeader()
		case stateBlockHeader:
			err = inf.stepBlockHeader()
		case stateUncompressedHeader:
			err = inf.stepUncompressedHeader()
		case stateUncompressedBody:
			err = inf.stepUncompressedBody()
		case stateDynamicLengths:
			err = inf.stepDynamicLengths()
		case stateHuffmanBody:
			err = inf.stepHuffmanBody()
		case stateTrailer:
			err = inf.stepTrailer()
		case stateDone:
			return nil
		case stateError:
			return inf.err
		}
		if err == errNeedsMoreInput {
			return errNeedsMoreInput
		}
		if err != nil {
			return inf.fail(err)
		}
	}
}

func (inf *inflater) stepZlibHeader() error {
	hdr, err := inf.bits.getBits(16)
	if err != nil {
		return err
	}
	cmf := byte(hdr & 0xff)
	flg := byte((hdr >> 8) & 0xff)
	if cmf&0x0f != 8 {
		return UnsupportedError("zlib compression method")
	}
	if cmf>>4 > 7 {
		return UnsupportedError("zlib window size")
	}
	composite := uint16(cmf)<<8 | uint16(flg)
	if composite%31 != 0 {
		return FormatError("bad zlib header checksum")
	}
	if flg&0x20 != 0 {
		return UnsupportedError("zlib preset dictionary")
	}
	inf.state = stateBlockHeader
	return nil
}

func (inf *inflater) stepBlockHeader() error {
	if err := inf.bits.require(3); err != nil {
		return err
	}
	v, err := inf.bits.getBits(3)
	if err != nil {
		return err
	}
	inf.blockFinal = v&1 != 0
	inf.blockType = (v >> 1) & 3
	switch inf.blockType {
	case 0:
		inf.bits.alignToByte()
		inf.uncompHeaderN = 0
		inf.state = stateUncompressedHeader
	case 1:
		if err := buildFixedTables(&inf.lit, &inf.dist); err != nil {
			return err
		}
		inf.hbSub = 0
		inf.state = stateHuffmanBody
	case 2:
		inf.dynSub = 0
		inf.state = stateDynamicLengths
	default:
		return FormatError("reserved block type 3")
	}
	return nil
}

func buildFixedTables(lit, dist *huffTable) error {
	var litLens [288]uint8
	for i := 0; i < 144; i++ {
		litLens[i] = 8
	}
	for i := 144; i < 256; i++ {
		litLens[i] = 9
	}
	for i := 256; i < 280; i++ {
		litLens[i] = 7
	}
	for i := 280; i < 288; i++ {
		litLens[i] = 8
	}
	if err := buildHuffman(lit, litLens[:]); err != nil {
		return err
	}
	var distLens [30]uint8
	for i := range distLens {
		distLens[i] = 5
	}
	return buildHuffman(dist, distLens[:])
}

func (inf *inflater) stepUncompressedHeader() error {
	for inf.uncompHeaderN < 4 {
		b, err := inf.bits.readRawByte()
		if err != nil {
			return err
		}
		inf.uncompHeader[inf.uncompHeaderN] = b
		inf.uncompHeaderN++
	}
	n := uint16(inf.uncompHeader[0]) | uint16(inf.uncompHeader[1])<<8
	nn := uint16(inf.uncompHeader[2]) | uint16(inf.uncompHeader[3])<<8
	if nn != ^n {
		return FormatError("uncompressed block length complement mismatch")
	}
	inf.uncompRemain = int(n)
	inf.state = stateUncompressedBody
	return nil
}

func (inf *inflater) stepUncompressedBody() error {
	for inf.uncompRemain > 0 {
		b, err := inf.bits.readRawByte()
		if err != nil {
			return err
		}
		inf.emit(b)
		inf.uncompRemain--
	}
	return inf.endOfBlock()
}

func (inf *inflater) stepDynamicLengths() error {
	switch inf.dynSub {
	case 0:
		if err := inf.bits.require(14); err != nil {
			return err
		}
		v, _ := inf.bits.getBits(5)
		inf.nlit = int(v) + 257
		v, _ = inf.bits.getBits(5)
		inf.ndist = int(v) + 1
		v, _ = inf.bits.getBits(4)
		inf.nclen = int(v) + 4
		if inf.nlit > maxLitLen || inf.ndist > maxDistCode {
			return FormatError("bad HLIT/HDIST count")
		}
		for i := range inf.clenLens {
			inf.clenLens[i] = 0
		}
		inf.clenFilled = 0
		inf.dynSub = 1
		fallthrough
	case 1:
		for inf.clenFilled < inf.nclen {
			if err := inf.bits.require(3); err != nil {
				return err
			}
			v, _ := inf.bits.getBits(3)
			inf.clenLens[codeLengthOrder[inf.clenFilled]] = uint8(v)
			inf.clenFilled++
		}
		if err := buildHuffman(&inf.clenTable, inf.clenLens[:]); err != nil {
			return err
		}
		inf.lenCodes = make([]uint8, inf.nlit+inf.ndist)
		inf.lenFilled = 0
		inf.repPending = false
		inf.dynSub = 2
		fallthrough
	case 2:
		total := inf.nlit + inf.ndist
		for inf.lenFilled < total {
			if !inf.repPending {
				sym, err := decodeSymbol(&inf.bits, &inf.clenTable)
				if err != nil {
					return err
				}
				if sym >= 19 {
					return FormatError("invalid code-length symbol")
				}
				if sym < 16 {
					inf.lenCodes[inf.lenFilled] = uint8(sym)
					inf.lenFilled++
					continue
				}
				inf.repPending = true
				inf.repSymbol = sym
			}
			var rep int
			var nb uint
			var fill uint8
			switch inf.repSymbol {
			case 16:
				nb = 2
				rep = 3
				if inf.lenFilled == 0 {
					return FormatError("repeat code 16 with no previous length")
				}
				fill = inf.lenCodes[inf.lenFilled-1]
			case 17:
				nb = 3
				rep = 3
				fill = 0
			default: // 18
				nb = 7
				rep = 11
				fill = 0
			}
			extra, err := inf.bits.getBits(nb)
			if err != nil {
				return err
			}
			rep += int(extra)
			if inf.lenFilled+rep > total {
				return FormatError("code-length repeat overruns table")
			}
			for i := 0; i < rep; i++ {
				inf.lenCodes[inf.lenFilled] = fill
				inf.lenFilled++
			}
			inf.repPending = false
		}
		if err := buildHuffman(&inf.lit, inf.lenCodes[:inf.nlit]); err != nil {
			return err
		}
		if err := buildHuffman(&inf.dist, inf.lenCodes[inf.nlit:inf.nlit+inf.ndist]); err != nil {
			return err
		}
		inf.hbSub = 0
		inf.state = stateHuffmanBody
		return nil
	}
	return nil
}

func (inf *inflater) stepHuffmanBody() error {
	for {
		switch inf.hbSub {
		case 0:
			sym, err := decodeSymbol(&inf.bits, &inf.lit)
			if err != nil {
				return err
			}
			if sym < 256 {
				inf.emit(byte(sym))
				continue
			}
			if sym == 256 {
				return inf.endOfBlock()
			}
			idx := int(sym) - 257
			if idx >= len(lengthBase) {
				return FormatError("invalid length symbol")
			}
			inf.curLenSym = sym
			inf.curLength = lengthBase[idx]
			inf.hbSub = 1
		case 1:
			idx := int(inf.curLenSym) - 257
			n := lengthExtra[idx]
			if n > 0 {
				extra, err := inf.bits.getBits(n)
				if err != nil {
					return err
				}
				inf.curLength += int(extra)
			}
			inf.hbSub = 2
		case 2:
			sym, err := decodeSymbol(&inf.bits, &inf.dist)
			if err != nil {
				return err
			}
			if int(sym) >= len(distBase) {
				return FormatError("invalid distance symbol")
			}
			inf.curDistSym = sym
			inf.hbSub = 3
		case 3:
			idx := int(inf.curDistSym)
			dist := distBase[idx]
			n := distExtra[idx]
			if n > 0 {
				extra, err := inf.bits.getBits(n)
				if err != nil {
					return err
				}
				dist += int(extra)
			}
			if dist > len(inf.out) || dist > maxWindow {
				return FormatError("distance exceeds available history")
			}
			start := len(inf.out) - dist
			for i := 0; i < inf.curLength; i++ {
				inf.emit(inf.out[start+i])
			}
			inf.hbSub = 0
		}
	}
}

func (inf *inflater) endOfBlock() error {
	if inf.blockFinal {
		inf.trailerFilled = 0
		inf.state = stateTrailer
		return nil
	}
	inf.state = stateBlockHeader
	return nil
}

func (inf *inflater) stepTrailer() error {
	inf.bits.alignToByte()
	for inf.trailerFilled < 4 {
		b, err := inf.bits.readRawByte()
		if err != nil {
			return err
		}
		inf.trailer[inf.trailerFilled] = b
		inf.trailerFilled++
	}
	inf.adlerExpected = uint32(inf.trailer[0])<<24 | uint32(inf.trailer[1])<<16 |
		uint32(inf.trailer[2])<<8 | uint32(inf.trailer[3])
	inf.state = stateDone
	return nil
}

// output returns the buffered decompressed output. drain, if true,
// releases it from the inflater's internal buffer (spec §4.4:
// "decompress_get_output() returns (and optionally drains)"). Draining
// is only safe once no further back-reference can reach the drained
// bytes; callers that need streaming output before a decode completes
// should not drain.
func (inf *inflater) output(drain bool) []byte {
	out := inf.out
	if drain {
		inf.out = nil
	}
	return out
}

// end verifies the Adler-32 trailer against the running checksum over
// all emitted bytes (spec §4.4's decompress_end).
func (inf *inflater) end() error {
	if inf.state != stateDone {
		return FormatError("inflate ended before trailer was read")
	}
	computed := inf.adlerB<<16 | inf.adlerA
	if computed != inf.adlerExpected {
		return errAdlerMismatch
	}
	return nil
}
