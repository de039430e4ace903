package png

import "testing"

func TestParseChunkRejectsIDATBeforeIHDR(t *testing.T) {
	data := newPNGBuilder().
		idat([]byte{byte(filterNone), 0}).
		bytes()
	if _, err := Decode(data); err != errChunkOrder {
		t.Fatalf("Decode() error = %v, want errChunkOrder", err)
	}
}

func TestParseChunkRejectsDuplicateIHDR(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		ihdr(1, 1, 8, ctGrayscale, itNone).
		bytes()
	if _, err := Decode(data); err != errChunkOrder {
		t.Fatalf("Decode() error = %v, want errChunkOrder", err)
	}
}

func TestParseChunkRejectsUnknownCriticalChunk(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		chunk("FOOB", []byte{1, 2, 3}).
		idat([]byte{byte(filterNone), 0}).
		iend().
		bytes()
	if _, err := Decode(data); err == nil {
		t.Fatal("expected unknown critical chunk to be rejected")
	} else if _, ok := err.(UnsupportedError); !ok {
		t.Errorf("error = %v (%T), want UnsupportedError", err, err)
	}
}

func TestParseChunkSkipsUnknownAncillaryChunk(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		chunk("foOb", []byte{1, 2, 3}).
		idat([]byte{byte(filterNone), 0}).
		iend().
		bytes()
	if _, err := Decode(data); err != nil {
		t.Fatalf("Decode() with unknown ancillary chunk: %v", err)
	}
}

func TestParseChunkRejectsNonIDATInterruptingImageData(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		idat([]byte{byte(filterNone), 0}).
		chunk("tEXt", []byte("hi")).
		idat(nil).
		iend().
		bytes()
	if _, err := Decode(data); err == nil {
		t.Fatal("expected chunk interrupting IDAT run to be rejected")
	}
}

func TestParseIHDRRejectsInvalidBitDepthForColorType(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 3, ctGrayscale, itNone). // 3 is not a valid grayscale bit depth
		bytes()
	if _, err := Decode(data); err == nil {
		t.Fatal("expected invalid bit depth to be rejected")
	}
}

func TestParseIHDRRejectsOversizedDimensions(t *testing.T) {
	data := newPNGBuilder().
		ihdr(maxDimension+1, 1, 8, ctGrayscale, itNone).
		bytes()
	if _, err := Decode(data); err == nil {
		t.Fatal("expected oversized dimension to be rejected")
	}
}

func TestParseIHDRAcceptsBoundaryDimension(t *testing.T) {
	// height 1 keeps the resulting pixel buffer allocation (width bytes)
	// modest while still exercising the exact size-bound boundary.
	b := newPNGBuilder()
	b.ihdr(maxDimension, 1, 8, ctGrayscale, itNone)
	d := &decoder{src: NewSliceByteSource(b.bytes())}
	if err := d.checkMagic(); err != nil {
		t.Fatal(err)
	}
	pb := &MemoryPixelBuffer{}
	d.pb = pb
	if err := d.parseChunk(); err != nil {
		t.Fatalf("parseChunk(IHDR at max dimension): %v", err)
	}
}

func TestParseGAMAPHYsTIME(t *testing.T) {
	gama := make([]byte, 4)
	gama[3] = 100 // arbitrary non-zero value, parsed not interpreted
	phys := []byte{0, 0, 0x0b, 0x13, 0, 0, 0x0b, 0x13, 1}
	time := []byte{0x07, 0xe6, 6, 15, 12, 30, 45} // 2022-06-15 12:30:45

	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		chunk("gAMA", gama).
		chunk("pHYs", phys).
		chunk("tIME", time).
		idat([]byte{byte(filterNone), 0}).
		iend().
		bytes()

	d := &decoder{src: NewSliceByteSource(data), pb: &MemoryPixelBuffer{}}
	if err := d.checkMagic(); err != nil {
		t.Fatal(err)
	}
	for d.stage != dsEnd {
		if err := d.parseChunk(); err != nil {
			t.Fatalf("parseChunk: %v", err)
		}
	}

	if !d.header.HasGamma || d.header.Gamma != 100 {
		t.Errorf("gamma = %v %d, want true 100", d.header.HasGamma, d.header.Gamma)
	}
	if !d.header.HasPhys || d.header.PhysX != 0x0b13 || !d.header.PhysUnitIsMeter {
		t.Errorf("phys = %+v", d.header)
	}
	if !d.header.HasTime || d.header.Time.Year != 2022 || d.header.Time.Month != 6 || d.header.Time.Day != 15 {
		t.Errorf("time = %+v", d.header.Time)
	}
}

func TestParseBKGD(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctGrayscale, itNone).
		chunk("bKGD", []byte{0, 200}).
		idat([]byte{byte(filterNone), 0}).
		iend().
		bytes()

	d := &decoder{src: NewSliceByteSource(data), pb: &MemoryPixelBuffer{}}
	if err := d.checkMagic(); err != nil {
		t.Fatal(err)
	}
	for d.stage != dsEnd {
		if err := d.parseChunk(); err != nil {
			t.Fatalf("parseChunk: %v", err)
		}
	}
	if !d.header.HasBackground || d.header.BackgroundGray != 200 {
		t.Errorf("background = %v %d, want true 200", d.header.HasBackground, d.header.BackgroundGray)
	}
}

func TestParseTRNSRejectedForAlphaColorTypes(t *testing.T) {
	data := newPNGBuilder().
		ihdr(1, 1, 8, ctTrueColorAlpha, itNone).
		chunk("tRNS", []byte{1, 2}).
		bytes()
	if _, err := Decode(data); err == nil {
		t.Fatal("expected tRNS on an alpha color type to be rejected")
	}
}
