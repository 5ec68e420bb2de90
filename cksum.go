// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

import "hash/crc32"

// checksum is the running integrity state for one covered byte range.
// The zero value is not ready for use; call reset with a kind first.
type checksum struct {
	kind CksumKind
	acc  uint32
}

// crc16Table is the reflected CRC-16/ARC table for poly 0x8005.
var crc16Table [256]uint16

func init() {
	for i := range crc16Table {
		crc := uint16(i)
		for b := 0; b < 8; b++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
		crc16Table[i] = crc
	}
}

func (c *checksum) reset(kind CksumKind) {
	c.kind = kind
	switch kind {
	case CksumCRC32:
		c.acc = 0xFFFFFFFF
	default:
		c.acc = 0
	}
}

func (c *checksum) update(b byte) {
	switch c.kind {
	case CksumXOR8:
		c.acc ^= uint32(b)
	case CksumCRC16:
		c.acc = uint32(crc16Table[byte(c.acc)^b]) ^ c.acc>>8
	case CksumCRC32:
		c.acc = crc32.IEEETable[byte(c.acc)^b] ^ c.acc>>8
	}
}

func (c *checksum) updateBytes(p []byte) {
	for _, b := range p {
		c.update(b)
	}
}

// sum returns the on-wire checksum value for the bytes fed so far.
func (c *checksum) sum() uint32 {
	switch c.kind {
	case CksumXOR8:
		return ^c.acc & 0xFF
	case CksumCRC32:
		return ^c.acc
	default:
		return c.acc
	}
}
