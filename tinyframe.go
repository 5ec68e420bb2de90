// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tinyframe implements a compact framing codec for point-to-point
// binary message transport over byte-oriented links such as UARTs.
//
// Semantics and design:
//   - Typed, identified messages: every frame carries an id, a type, and a
//     payload. Completed frames are dispatched to registered listeners in a
//     fixed priority order (id, then type, then generic).
//   - Request/response correlation: Query sends a frame and registers a
//     listener for the reply id; Respond reuses the inbound id so the peer's
//     listener matches. The high bit of the id field is fixed per endpoint
//     role (master 1, slave 0), so concurrent allocations cannot collide.
//   - Byte-stream tolerant: the receive side is a byte-at-a-time state
//     machine; frames may arrive in any fragmentation. A tick-driven
//     watchdog reaps stalled parses, and per-listener timeouts report
//     abandoned requests.
//   - Static storage: all buffers and listener tables are sized at
//     construction. The steady-state receive and send paths allocate nothing.
//
// Wire format: [SOF?] [ID] [LEN] [TYPE] [HEAD_CKSUM] [PAYLOAD...] [PAYLOAD_CKSUM].
// All multi-byte fields are big-endian; field widths and the checksum kind
// are configuration and must match on both peers. HEAD_CKSUM covers the
// bytes before it as they appear on the wire (including the SOF sentinel
// when enabled); PAYLOAD_CKSUM covers the payload bytes only. With
// CksumNone both checksum fields are absent.
//
// The Engine is not thread-safe: the host must serialize Accept, Send,
// Tick, and listener registration on one goroutine, typically by draining
// a receive channel and a time.Ticker in a single loop. Two engines on
// different links are fully independent.
package tinyframe

import "io"

// Msg is the in-memory representation of one frame, handed to listeners on
// receive and accepted by the send path.
type Msg struct {
	// FrameID correlates a response to its request. The send path assigns
	// it unless IsResponse is set.
	FrameID uint32
	// Type selects the application-level meaning of the payload.
	Type uint32
	// Payload is the message body. On receive it aliases the engine's
	// buffer and is valid only until the listener returns; a nil Payload
	// on an id listener callback signals listener timeout.
	Payload []byte
	// IsResponse instructs the send path to keep FrameID instead of
	// allocating a fresh id.
	IsResponse bool
	// UserData is an opaque handle. The engine stores it verbatim on Query
	// and returns it verbatim to the id listener's callback; it is never
	// inspected.
	UserData any
}

// Listener receives a completed message. Returning true consumes the frame
// and stops dispatch. A listener may send, respond, and register or remove
// listeners from inside the callback.
type Listener func(e *Engine, msg *Msg) bool

// Sink consumes one complete outbound frame. The byte range is only valid
// for the duration of the call. Transport errors are invisible to the
// engine; hosts that need delivery guarantees layer them above.
type Sink func(frame []byte)

// WriterSink adapts an io.Writer into a Sink. Write errors and short
// writes are discarded, matching the sink contract.
func WriterSink(w io.Writer) Sink {
	return func(frame []byte) { _, _ = w.Write(frame) }
}

// Engine is one endpoint of a framed link. Construct with New; the zero
// value is not usable.
type Engine struct {
	opt      Options
	role     Peer
	localBit uint32
	sink     Sink

	nextID uint32

	// receive parser
	state     parseState
	need      int
	collected int
	field     uint32
	rxID      uint32
	rxType    uint32
	rxLen     uint32
	rxCur     int
	rxBuf     []byte
	hcks      checksum
	pcks      checksum
	idle      int

	txBuf []byte

	idTab   []idListener
	typeTab []typeListener
	genTab  []genericListener
}

// New returns an Engine for the given endpoint role. The sink receives
// every outbound frame; it may be nil when the engine is driven through a
// Port or used receive-only. Construction fails with ErrInvalidArgument
// when the configuration is inconsistent.
func New(role Peer, sink Sink, opts ...Option) (*Engine, error) {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if role != PeerMaster && role != PeerSlave {
		return nil, ErrInvalidArgument
	}

	e := &Engine{
		opt:     o,
		role:    role,
		sink:    sink,
		rxBuf:   make([]byte, o.MaxPayloadRx),
		txBuf:   make([]byte, o.frameOverhead()+o.MaxPayloadTx),
		idTab:   make([]idListener, o.MaxIDListeners),
		typeTab: make([]typeListener, o.MaxTypeListeners),
		genTab:  make([]genericListener, o.MaxGenericListeners),
	}
	if role == PeerMaster {
		e.localBit = o.peerBit()
	}
	e.ResetParser()
	return e, nil
}

// Role returns the endpoint role the engine was constructed with.
func (e *Engine) Role() Peer { return e.role }

// Tick advances the engine's time base by one unit. It ages every id
// listener with a non-zero timeout, delivering a nil-payload timeout
// message when one expires, and runs the mid-frame parser watchdog.
// The tick unit is abstract; the host chooses the rate.
func (e *Engine) Tick() {
	e.tickListeners()
	e.tickParser()
}
