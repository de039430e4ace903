package png

import "io"

// ByteSource is the external byte-source collaborator from spec §6: a
// sequential, non-seekable source of bytes with end-of-stream detection.
// The decoder never holds a concrete type, only this interface — the
// PNG chunk processor is the decoder's sole owner of any state derived
// from it.
type ByteSource interface {
	// ReadByte returns the next byte and true, or (0, false) once the
	// source is exhausted.
	ReadByte() (byte, bool)
	// End reports whether the source has been exhausted.
	End() bool
}

// readerByteSource adapts a standard io.Reader to ByteSource, the way
// the teacher's decoder is built directly on io.Reader (reader.go);
// generalized here since spec §6 calls for the narrower read()/end()
// collaborator contract instead of io.Reader directly.
type readerByteSource struct {
	r    io.Reader
	buf  [1]byte
	done bool
}

// NewReaderByteSource wraps r as a ByteSource.
func NewReaderByteSource(r io.Reader) ByteSource {
	return &readerByteSource{r: r}
}

func (s *readerByteSource) ReadByte() (byte, bool) {
	if s.done {
		return 0, false
	}
	n, err := s.r.Read(s.buf[:])
	if n == 1 {
		if err != nil && err != io.EOF {
			s.done = true
		}
		return s.buf[0], true
	}
	s.done = true
	return 0, false
}

func (s *readerByteSource) End() bool {
	return s.done
}

// sliceByteSource is a minimal in-memory ByteSource, used by tests and
// suitable for callers that already have the whole PNG in memory.
type sliceByteSource struct {
	data []byte
	pos  int
}

// NewSliceByteSource wraps data as a ByteSource.
func NewSliceByteSource(data []byte) ByteSource {
	return &sliceByteSource{data: data}
}

func (s *sliceByteSource) ReadByte() (byte, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	b := s.data[s.pos]
	s.pos++
	return b, true
}

func (s *sliceByteSource) End() bool {
	return s.pos >= len(s.data)
}

// readFull reads exactly n bytes from src, returning io.ErrUnexpectedEOF
// if the source ends first — the chunk processor's equivalent of the
// teacher's io.ReadFull(d.r, ...) calls (reader.go).
func readFull(src ByteSource, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := src.ReadByte()
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		out[i] = b
	}
	return out, nil
}
