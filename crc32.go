package png

// crc32Table is the standard reflected CRC-32 table for the PNG
// polynomial 0xEDB88320, built once at package init the way the teacher
// builds its chunk checksums with hash/crc32.NewIEEE — except here the
// table and the update loop are hand-built, since this spec assigns
// CRC-32 to the decoder itself (see SPEC_FULL.md's DOMAIN STACK section for
// why hash/crc32 is not reused for this one component).
var crc32Table [256]uint32

func init() {
	const poly = 0xEDB88320
	for n := uint32(0); n < 256; n++ {
		c := n
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		crc32Table[n] = c
	}
}

// pngCRC accumulates a running PNG chunk CRC-32: reflected input and
// output, init 0xFFFFFFFF, final XOR 0xFFFFFFFF (spec §4.1).
type pngCRC struct {
	crc uint32
}

func newPNGCRC() pngCRC {
	return pngCRC{crc: 0xFFFFFFFF}
}

func (c *pngCRC) reset() {
	c.crc = 0xFFFFFFFF
}

func (c *pngCRC) updateByte(b byte) {
	c.crc = crc32Table[byte(c.crc)^b] ^ (c.crc >> 8)
}

func (c *pngCRC) update(data []byte) {
	crc := c.crc
	for _, b := range data {
		crc = crc32Table[byte(crc)^b] ^ (crc >> 8)
	}
	c.crc = crc
}

func (c *pngCRC) finalize() uint32 {
	return c.crc ^ 0xFFFFFFFF
}
