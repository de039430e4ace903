package png

import (
	"bytes"
	"encoding/binary"
)

// pngBuilder assembles a well-formed PNG byte stream for tests, chunk by
// chunk, computing each CRC the way the decoder verifies it.
type pngBuilder struct {
	buf bytes.Buffer
}

func newPNGBuilder() *pngBuilder {
	b := &pngBuilder{}
	b.buf.Write(pngMagic[:])
	return b
}

func (b *pngBuilder) chunk(typ string, data []byte) *pngBuilder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	b.buf.Write(lenBuf[:])

	c := newPNGCRC()
	c.update([]byte(typ))
	c.update(data)

	b.buf.WriteString(typ)
	b.buf.Write(data)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], c.finalize())
	b.buf.Write(crcBuf[:])
	return b
}

func (b *pngBuilder) ihdr(width, height, bitDepth, colorType, interlace int) *pngBuilder {
	data := make([]byte, 13)
	binary.BigEndian.PutUint32(data[0:4], uint32(width))
	binary.BigEndian.PutUint32(data[4:8], uint32(height))
	data[8] = byte(bitDepth)
	data[9] = byte(colorType)
	data[10] = 0 // compression
	data[11] = 0 // filter method
	data[12] = byte(interlace)
	return b.chunk("IHDR", data)
}

func (b *pngBuilder) idat(rawScanlines []byte) *pngBuilder {
	return b.chunk("IDAT", buildZlibStored(rawScanlines))
}

// idatSplit emits the compressed scanline stream across n IDAT chunks of
// roughly equal size, exercising the decoder's chunk-spanning resumption.
func (b *pngBuilder) idatSplit(rawScanlines []byte, n int) *pngBuilder {
	data := buildZlibStored(rawScanlines)
	chunkLen := (len(data) + n - 1) / n
	for i := 0; i < len(data); i += chunkLen {
		end := i + chunkLen
		if end > len(data) {
			end = len(data)
		}
		b.chunk("IDAT", data[i:end])
	}
	return b
}

func (b *pngBuilder) iend() *pngBuilder {
	return b.chunk("IEND", nil)
}

func (b *pngBuilder) bytes() []byte {
	return b.buf.Bytes()
}
