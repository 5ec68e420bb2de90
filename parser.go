// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

// parseState enumerates the receive state machine. States advance in wire
// order; checksum states are skipped entirely under CksumNone.
type parseState uint8

const (
	stateSOF parseState = iota
	stateID
	stateLen
	stateType
	stateHeadCksum
	statePayload
	statePayloadCksum
)

// startState is the idle state: hunting for the sentinel when SOF is
// enabled, otherwise collecting the first id byte directly.
func (e *Engine) startState() parseState {
	if e.opt.UseSOF {
		return stateSOF
	}
	return stateID
}

// ResetParser abandons any in-flight parse and returns the receive state
// machine to idle. Registered listeners are unaffected. Hosts call this on
// transport-level errors (framing errors, break conditions).
func (e *Engine) ResetParser() {
	e.state = e.startState()
	e.need = e.opt.IDBytes
	e.collected = 0
	e.field = 0
	e.rxCur = 0
	e.idle = 0
	e.hcks.reset(e.opt.Cksum)
	e.pcks.reset(e.opt.Cksum)
}

// Accept feeds a chunk of received bytes to the parser. Chunking is
// irrelevant: any partition of a frame's bytes dispatches identically.
func (e *Engine) Accept(p []byte) {
	for _, b := range p {
		e.AcceptByte(b)
	}
}

// AcceptByte feeds one received byte to the parser. Listener callbacks for
// a completed frame run before AcceptByte returns.
func (e *Engine) AcceptByte(b byte) {
	e.idle = 0
	switch e.state {
	case stateSOF:
		if b != e.opt.SOFByte {
			return
		}
		e.hcks.update(b)
		e.enter(stateID, e.opt.IDBytes)
	case stateID:
		e.hcks.update(b)
		if !e.collect(b) {
			return
		}
		e.rxID = e.field
		e.enter(stateLen, e.opt.LenBytes)
	case stateLen:
		e.hcks.update(b)
		if !e.collect(b) {
			return
		}
		if e.field > uint32(e.opt.MaxPayloadRx) {
			// Oversized length is indistinguishable from corruption.
			e.ResetParser()
			return
		}
		e.rxLen = e.field
		e.enter(stateType, e.opt.TypeBytes)
	case stateType:
		e.hcks.update(b)
		if !e.collect(b) {
			return
		}
		e.rxType = e.field
		if e.opt.Cksum == CksumNone {
			e.enterPayload()
			return
		}
		e.enter(stateHeadCksum, e.opt.Cksum.width())
	case stateHeadCksum:
		if !e.collect(b) {
			return
		}
		if e.field != e.hcks.sum() {
			e.ResetParser()
			return
		}
		e.enterPayload()
	case statePayload:
		e.rxBuf[e.rxCur] = b
		e.rxCur++
		e.pcks.update(b)
		if e.rxCur < int(e.rxLen) {
			return
		}
		if e.opt.Cksum == CksumNone {
			e.complete()
			return
		}
		e.enter(statePayloadCksum, e.opt.Cksum.width())
	case statePayloadCksum:
		if !e.collect(b) {
			return
		}
		if e.field != e.pcks.sum() {
			e.ResetParser()
			return
		}
		e.complete()
	}
}

// collect accumulates one byte of a big-endian field; it reports whether
// the field is complete.
func (e *Engine) collect(b byte) bool {
	e.field = e.field<<8 | uint32(b)
	e.collected++
	return e.collected == e.need
}

func (e *Engine) enter(s parseState, width int) {
	e.state = s
	e.need = width
	e.collected = 0
	e.field = 0
}

// enterPayload routes past the payload for empty frames: straight to the
// payload checksum, or to completion when checksums are off.
func (e *Engine) enterPayload() {
	if e.rxLen > 0 {
		e.state = statePayload
		e.rxCur = 0
		return
	}
	if e.opt.Cksum == CksumNone {
		e.complete()
		return
	}
	e.enter(statePayloadCksum, e.opt.Cksum.width())
}

// complete rearms the parser, then dispatches the fully-parsed frame. The
// payload handed to listeners aliases the receive buffer and is only valid
// until the callback returns.
func (e *Engine) complete() {
	msg := Msg{
		FrameID: e.rxID,
		Type:    e.rxType,
		Payload: e.rxBuf[:e.rxLen],
	}
	e.ResetParser()
	e.dispatch(&msg)
}

// tickParser ages a mid-frame parse and resets it once it has sat idle for
// the configured budget. A zero budget disables the watchdog.
func (e *Engine) tickParser() {
	if e.state == e.startState() && e.collected == 0 {
		return
	}
	if e.opt.ParserTimeoutTicks == 0 {
		return
	}
	e.idle++
	if e.idle >= e.opt.ParserTimeoutTicks {
		e.ResetParser()
	}
}
