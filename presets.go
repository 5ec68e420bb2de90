// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

// Wiring profile helpers and mapping.
//
// Single source of truth — profile → (widths, checksum, SOF):
//   - UART    → ID 1, LEN 2, TYPE 1, CRC-16, SOF 0x01
//   - Compact → ID 1, LEN 1, TYPE 1, XOR-8,  no SOF
//   - Wide    → ID 4, LEN 4, TYPE 4, CRC-32, SOF 0x01
//
// Profile policy:
//   - UART is the classic point-to-point wiring for byte-oriented links.
//   - Compact trims every field to one byte for slow or byte-expensive links.
//   - Wide carries large payloads and wide id/type spaces on host-to-host pipes.
//
// A profile sets the wire-format fields and lowers the payload caps to
// what the LEN field can express; table capacities and the watchdog keep
// their current values. Later options override.

type profileKind uint8

const (
	profileUART profileKind = iota
	profileCompact
	profileWide
)

func profileFor(kind profileKind) (id, ln, typ int, cksum CksumKind, useSOF bool, sof byte) {
	switch kind {
	case profileCompact:
		return 1, 1, 1, CksumXOR8, false, 0
	case profileWide:
		return 4, 4, 4, CksumCRC32, true, 0x01
	default:
		return 1, 2, 1, CksumCRC16, true, 0x01
	}
}

func applyProfile(o *Options, kind profileKind) {
	id, ln, typ, ck, useSOF, sof := profileFor(kind)
	o.IDBytes = id
	o.LenBytes = ln
	o.TypeBytes = typ
	o.Cksum = ck
	o.UseSOF = useSOF
	o.SOFByte = sof
	if max := lenFieldMax(ln); o.MaxPayloadRx > max {
		o.MaxPayloadRx = max
	}
	if max := lenFieldMax(ln); o.MaxPayloadTx > max {
		o.MaxPayloadTx = max
	}
}

// WithUARTProfile configures the classic UART wiring: one-byte id and type,
// two-byte length, CRC-16 checksums, SOF sentinel 0x01.
func WithUARTProfile() Option {
	return func(o *Options) { applyProfile(o, profileUART) }
}

// WithCompactProfile configures a byte-lean wiring: all fields one byte,
// XOR-8 checksums, no SOF sentinel.
func WithCompactProfile() Option {
	return func(o *Options) { applyProfile(o, profileCompact) }
}

// WithWideProfile configures a wide wiring: four-byte id, length, and type,
// CRC-32 checksums, SOF sentinel 0x01.
func WithWideProfile() Option {
	return func(o *Options) { applyProfile(o, profileWide) }
}
