package png

import (
	"bytes"
	"testing"
)

func TestLoad8BitRGBA2x2(t *testing.T) {
	scanlines := []byte{
		byte(filterNone), 1, 2, 3, 255, 4, 5, 6, 255,
		byte(filterNone), 7, 8, 9, 255, 10, 11, 12, 255,
	}
	data := newPNGBuilder().
		ihdr(2, 2, 8, ctTrueColorAlpha, itNone).
		idat(scanlines).
		iend().
		bytes()

	pb, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255, 7, 8, 9, 255, 10, 11, 12, 255}
	if !bytes.Equal(pb.Bytes(), want) {
		t.Errorf("pixels = %v, want %v", pb.Bytes(), want)
	}
	if pb.Width() != 2 || pb.Height() != 2 || pb.Mode() != ColorRGBA {
		t.Errorf("buffer shape = %dx%d mode=%v", pb.Width(), pb.Height(), pb.Mode())
	}
}

func TestLoad8BitGrayscaleSubFilter(t *testing.T) {
	// 3x1 grayscale; raw bytes 10, 5, 5 filtered with Sub: first byte
	// unfiltered, rest are deltas from the left neighbor.
	scanlines := []byte{byte(filterSub), 10, 5, 5}
	data := newPNGBuilder().
		ihdr(3, 1, 8, ctGrayscale, itNone).
		idat(scanlines).
		iend().
		bytes()

	pb, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{10, 15, 20}
	if !bytes.Equal(pb.Bytes(), want) {
		t.Errorf("pixels = %v, want %v", pb.Bytes(), want)
	}
}

func TestLoad8BitGrayscaleUpFilter(t *testing.T) {
	// 1x3 grayscale: row0 raw 10, row1 Up-filtered delta 5 -> 15, row2
	// Up-filtered delta -3 (253 mod 256) -> 12.
	scanlines := []byte{
		byte(filterNone), 10,
		byte(filterUp), 5,
		byte(filterUp), 253,
	}
	data := newPNGBuilder().
		ihdr(1, 3, 8, ctGrayscale, itNone).
		idat(scanlines).
		iend().
		bytes()

	pb, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{10, 15, 12}
	if !bytes.Equal(pb.Bytes(), want) {
		t.Errorf("pixels = %v, want %v", pb.Bytes(), want)
	}
}

func TestLoadAdam7MatchesNonInterlaced(t *testing.T) {
	// 8x8 grayscale checkerboard, built once without interlacing and once
	// with Adam7, both from identical unfiltered scanlines; both must
	// decode to the same pixel grid (spec's interlace/non-interlace
	// equivalence law).
	const w, h = 8, 8
	pixel := func(x, y int) byte {
		if (x+y)%2 == 0 {
			return 0
		}
		return 255
	}

	var flat bytes.Buffer
	for y := 0; y < h; y++ {
		flat.WriteByte(byte(filterNone))
		for x := 0; x < w; x++ {
			flat.WriteByte(pixel(x, y))
		}
	}
	plain := newPNGBuilder().
		ihdr(w, h, 8, ctGrayscale, itNone).
		idat(flat.Bytes()).
		iend().
		bytes()

	var adam bytes.Buffer
	for _, p := range adam7Passes {
		pw := ceilDiv(w-p.colOffset, p.colStep)
		ph := ceilDiv(h-p.rowOffset, p.rowStep)
		for j := 0; j < ph; j++ {
			adam.WriteByte(byte(filterNone))
			for i := 0; i < pw; i++ {
				x := p.colOffset + i*p.colStep
				y := p.rowOffset + j*p.rowStep
				adam.WriteByte(pixel(x, y))
			}
		}
	}
	interlaced := newPNGBuilder().
		ihdr(w, h, 8, ctGrayscale, itAdam7).
		idat(adam.Bytes()).
		iend().
		bytes()

	plainPB, err := Decode(plain)
	if err != nil {
		t.Fatalf("Decode(plain): %v", err)
	}
	adamPB, err := Decode(interlaced)
	if err != nil {
		t.Fatalf("Decode(interlaced): %v", err)
	}
	if !bytes.Equal(plainPB.Bytes(), adamPB.Bytes()) {
		t.Errorf("interlaced decode = %v, want %v (non-interlaced)", adamPB.Bytes(), plainPB.Bytes())
	}
}

func TestLoadRejectsCorruptedChunkCRC(t *testing.T) {
	scanlines := []byte{byte(filterNone), 1}
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		idat(scanlines).
		iend().
		bytes()

	// Flip every bit of the first IDAT payload byte without touching its CRC.
	idatPayloadStart := 8 + 8 + 13 + 4 + 8 // magic + IHDR header/CRC + IDAT header
	data[idatPayloadStart] ^= 0xff

	_, err := Decode(data)
	if _, ok := err.(ChecksumError); !ok {
		t.Fatalf("Decode() error = %v (%T), want ChecksumError", err, err)
	}
}

func TestLoadTruncatedIDATAcrossChunksResumes(t *testing.T) {
	// Same 3x1 grayscale image as the Sub-filter test, but the compressed
	// stream is split across five small IDAT chunks, and delivered one
	// byte at a time through a ByteSource.
	scanlines := []byte{byte(filterSub), 10, 5, 5}
	data := newPNGBuilder().
		ihdr(3, 1, 8, ctGrayscale, itNone).
		idatSplit(scanlines, 5).
		iend().
		bytes()

	pb := &MemoryPixelBuffer{}
	src := NewReaderByteSource(bytes.NewReader(data))
	if err := Load(src, pb); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []byte{10, 15, 20}
	if !bytes.Equal(pb.Bytes(), want) {
		t.Errorf("pixels = %v, want %v", pb.Bytes(), want)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		idat([]byte{byte(filterNone), 0}).
		iend().
		bytes()
	copy(data[:8], []byte{0, 1, 2, 3, 4, 5, 6, 7})

	if _, err := Decode(data); err != errBadMagic {
		t.Fatalf("Decode() error = %v, want errBadMagic", err)
	}
}

func TestLoadIndexedRequiresPalette(t *testing.T) {
	scanlines := []byte{byte(filterNone), 0}
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctPaletted, itNone).
		idat(scanlines).
		iend().
		bytes()
	if _, err := Decode(data); err == nil {
		t.Fatal("expected indexed image with no PLTE to be rejected")
	}
}

func TestLoadIndexedWithPaletteAndTRNS(t *testing.T) {
	plte := []byte{10, 20, 30, 40, 50, 60}
	trns := []byte{0, 255}
	scanlines := []byte{byte(filterNone), 0, 1}
	data := newPNGBuilder().
		ihdr(2, 1, 8, ctPaletted, itNone).
		chunk("PLTE", plte).
		chunk("tRNS", trns).
		idat(scanlines).
		iend().
		bytes()

	pb, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{10, 20, 30, 0, 40, 50, 60, 255}
	if !bytes.Equal(pb.Bytes(), want) {
		t.Errorf("pixels = %v, want %v", pb.Bytes(), want)
	}
	if pb.Mode() != ColorRGBA {
		t.Errorf("mode = %v, want ColorRGBA (tRNS present)", pb.Mode())
	}
}
