package tag

// CRC-32 with the 0x04C11DB7 polynomial in non-reflected bit order.
// The standard library crc32 package processes bits in the reflected
// order and produces different sums, so the table is built here.

const crcPoly = 0x04c11db7

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ crcPoly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}

// Checksum accumulates the file checksum written in the tag line.
// The zero value is ready to use.
type Checksum struct {
	sum uint32
}

func (c *Checksum) Reset() { c.sum = 0 }

// Write feeds bytes into the checksum. It never fails; the error return
// satisfies io.Writer so a Checksum can sit in an io.MultiWriter.
func (c *Checksum) Write(p []byte) (int, error) {
	crc := c.sum ^ 0xffffffff
	for _, b := range p {
		crc = crc<<8 ^ crcTable[crc>>24^uint32(b)]
	}
	c.sum = crc ^ 0xffffffff
	return len(p), nil
}

func (c *Checksum) Sum32() uint32 { return c.sum }
