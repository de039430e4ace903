package png

import "io"

// A FormatError reports that the input is not a valid PNG, or is
// structurally malformed: bad magic, chunks out of order, or a header
// with a disallowed field combination.
type FormatError string

func (e FormatError) Error() string { return "png: invalid format: " + string(e) }

var errChunkOrder = FormatError("chunk out of order")
var errBadMagic = FormatError("not a PNG file")

// An UnsupportedError reports a valid but unimplemented PNG feature, such
// as a compression or filter method other than 0, or an unknown critical
// chunk.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "png: unsupported feature: " + string(e) }

// A ChecksumError reports that a chunk's CRC-32, or the zlib stream's
// Adler-32 trailer, did not match the computed value.
type ChecksumError string

func (e ChecksumError) Error() string { return "png: checksum mismatch: " + string(e) }

var errCRCMismatch = ChecksumError("chunk CRC does not match")
var errAdlerMismatch = ChecksumError("zlib adler-32 trailer does not match")

// A BufferError reports that the caller-supplied PixelBuffer refused to
// allocate or lock, per the §6 external-interface contract.
type BufferError string

func (e BufferError) Error() string { return "png: pixel buffer failure: " + string(e) }

// errNeedsMoreInput is the sentinel the bit reader and inflater use
// internally for the suspend-and-resume protocol described in spec
// §4.2/§4.4. It is never returned to a caller of Decode/Load: parseIDAT
// absorbs it between chunks, and a byte source that ends mid-chunk is
// reported as io.ErrUnexpectedEOF.
var errNeedsMoreInput = FormatError("needs more input")

// asUnexpectedEOF turns io.EOF (a clean end-of-stream signal from a byte
// source) into io.ErrUnexpectedEOF when seen in the middle of a decode,
// matching the teacher's decode()/parseChunk() EOF handling.
func asUnexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
