// Package png decodes PNG images incrementally from an abstract byte
// source into an abstract pixel buffer, without depending on the
// standard library's image or compress/zlib packages for the core
// decode path: CRC-32, DEFLATE inflation and Adler-32, scanline
// filters, and Adam7 deinterlacing are all implemented here as the
// components under test.
//
// Generalized from 928799934-go-png-cgbi, which wraps image/png to
// rewrite Apple's CgBI PNG variant back into standard PNG; this
// package instead owns the full decode pipeline itself.
package png

// Decode reads a complete PNG image from data and returns it as a
// MemoryPixelBuffer, for callers that don't need to supply their own
// PixelBuffer implementation.
func Decode(data []byte) (*MemoryPixelBuffer, error) {
	pb := &MemoryPixelBuffer{}
	src := NewSliceByteSource(data)
	if err := Load(src, pb); err != nil {
		return nil, err
	}
	return pb, nil
}
