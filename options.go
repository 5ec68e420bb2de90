// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

import "time"

// CksumKind selects the integrity algorithm applied to the frame header
// and to the payload. Both peers must use the same kind.
type CksumKind uint8

const (
	// CksumNone omits both checksum fields from the wire entirely.
	CksumNone CksumKind = iota
	// CksumXOR8 is the XOR of all covered bytes, inverted. One byte on the wire.
	CksumXOR8
	// CksumCRC16 is CRC-16/ARC (poly 0x8005 reflected, init 0). Two bytes.
	CksumCRC16
	// CksumCRC32 is CRC-32/ISO-HDLC (poly 0xEDB88320, init and xorout 0xFFFFFFFF). Four bytes.
	CksumCRC32
)

// width returns the on-wire size of one checksum field in bytes.
func (k CksumKind) width() int {
	switch k {
	case CksumXOR8:
		return 1
	case CksumCRC16:
		return 2
	case CksumCRC32:
		return 4
	default:
		return 0
	}
}

func (k CksumKind) valid() bool { return k <= CksumCRC32 }

// Peer selects which endpoint of the link this engine is. The role fixes
// the high bit of every locally allocated frame id, so the two endpoints
// can never allocate colliding ids.
type Peer uint8

const (
	PeerSlave  Peer = 0
	PeerMaster Peer = 1
)

// Options configures an Engine and, where noted, a Port.
//
// The field widths, checksum kind, start byte, and payload caps define the
// wire format and must match on both peers byte for byte.
type Options struct {
	// IDBytes, LenBytes, and TypeBytes are the widths of the frame id,
	// payload length, and type fields. Each must be 1, 2, or 4.
	IDBytes   int
	LenBytes  int
	TypeBytes int

	// Cksum is the integrity algorithm for the header and payload checksums.
	Cksum CksumKind

	// UseSOF prefixes every frame with the SOFByte sentinel. Without it the
	// receiver has no resynchronization point after corruption; the stream
	// realigns only once the bytes happen to present a valid frame, or via
	// the parser watchdog.
	UseSOF  bool
	SOFByte byte

	// MaxPayloadRx and MaxPayloadTx cap accepted and produced payloads.
	// Both must be positive and representable in the LEN field.
	MaxPayloadRx int
	MaxPayloadTx int

	// Listener table capacities. All must be positive.
	MaxIDListeners      int
	MaxTypeListeners    int
	MaxGenericListeners int

	// ParserTimeoutTicks is the number of consecutive ticks a mid-frame
	// parse may sit without input before the parser resets. Zero disables
	// the watchdog.
	ParserTimeoutTicks int

	// RetryDelay controls how a Port handles iox.ErrWouldBlock from the
	// underlying transport (the Engine itself never blocks):
	//   - negative: nonblock, return ErrWouldBlock immediately
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	RetryDelay time.Duration
}

var defaultOptions = Options{
	IDBytes:   1,
	LenBytes:  2,
	TypeBytes: 1,

	Cksum: CksumCRC16,

	UseSOF:  true,
	SOFByte: 0x01,

	MaxPayloadRx: 1024,
	MaxPayloadTx: 1024,

	MaxIDListeners:      10,
	MaxTypeListeners:    10,
	MaxGenericListeners: 5,

	ParserTimeoutTicks: 10,

	RetryDelay: -1, // default: nonblock
}

type Option func(*Options)

func WithIDBytes(n int) Option   { return func(o *Options) { o.IDBytes = n } }
func WithLenBytes(n int) Option  { return func(o *Options) { o.LenBytes = n } }
func WithTypeBytes(n int) Option { return func(o *Options) { o.TypeBytes = n } }

func WithCksum(kind CksumKind) Option { return func(o *Options) { o.Cksum = kind } }

// WithStartByte enables the start-of-frame sentinel with the given value.
func WithStartByte(b byte) Option {
	return func(o *Options) {
		o.UseSOF = true
		o.SOFByte = b
	}
}

// WithoutStartByte disables the start-of-frame sentinel. After corruption
// the stream realigns only once the bytes happen to present a valid frame,
// or via the parser watchdog.
func WithoutStartByte() Option {
	return func(o *Options) { o.UseSOF = false }
}

func WithMaxPayload(rx, tx int) Option {
	return func(o *Options) {
		o.MaxPayloadRx = rx
		o.MaxPayloadTx = tx
	}
}

func WithListenerCapacity(id, typ, generic int) Option {
	return func(o *Options) {
		o.MaxIDListeners = id
		o.MaxTypeListeners = typ
		o.MaxGenericListeners = generic
	}
}

// WithParserTimeout sets the mid-frame watchdog budget in ticks. Zero
// disables the watchdog.
func WithParserTimeout(ticks int) Option {
	return func(o *Options) { o.ParserTimeoutTicks = ticks }
}

// WithRetryDelay sets the retry/wait policy used by a Port when the
// underlying transport returns iox.ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on iox.ErrWouldBlock.
func WithBlock() Option {
	return func(o *Options) { o.RetryDelay = 0 }
}

// WithNonblock forces non-blocking behavior (return iox.ErrWouldBlock immediately).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}

func fieldWidthValid(n int) bool { return n == 1 || n == 2 || n == 4 }

// lenFieldMax returns the largest payload length the LEN field can carry;
// a four-byte field is capped at 1<<31 - 1 rather than its full range.
func lenFieldMax(lenBytes int) int {
	if lenBytes >= 4 {
		return 1<<31 - 1
	}
	return 1<<(8*lenBytes) - 1
}

func (o *Options) validate() error {
	if !fieldWidthValid(o.IDBytes) || !fieldWidthValid(o.LenBytes) || !fieldWidthValid(o.TypeBytes) {
		return ErrInvalidArgument
	}
	if !o.Cksum.valid() {
		return ErrInvalidArgument
	}
	if o.MaxPayloadRx <= 0 || o.MaxPayloadTx <= 0 {
		return ErrInvalidArgument
	}
	if o.MaxPayloadRx > lenFieldMax(o.LenBytes) || o.MaxPayloadTx > lenFieldMax(o.LenBytes) {
		return ErrInvalidArgument
	}
	if o.MaxIDListeners <= 0 || o.MaxTypeListeners <= 0 || o.MaxGenericListeners <= 0 {
		return ErrInvalidArgument
	}
	if o.ParserTimeoutTicks < 0 {
		return ErrInvalidArgument
	}
	return nil
}

// peerBit returns the mask of the high bit of the id field.
func (o *Options) peerBit() uint32 {
	return 1 << (8*o.IDBytes - 1)
}

// frameOverhead returns the on-wire size of everything except the payload.
func (o *Options) frameOverhead() int {
	n := o.IDBytes + o.LenBytes + o.TypeBytes + 2*o.Cksum.width()
	if o.UseSOF {
		n++
	}
	return n
}
