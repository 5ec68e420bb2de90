// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

// Send assembles msg into one frame and emits it to the sink. Unless
// msg.IsResponse is set, a fresh frame id is allocated and written back to
// msg.FrameID.
func (e *Engine) Send(msg *Msg) error {
	return e.sendFrame(msg, nil, 0)
}

// Query sends msg and registers cb as an id listener for the reply. The
// allocated id is written back to msg.FrameID, and msg.UserData rides
// along to the callback. A timeout of zero waits forever; otherwise the
// listener expires after timeoutTicks ticks with a nil-payload message.
// When the listener table is full, nothing is sent.
func (e *Engine) Query(msg *Msg, cb Listener, timeoutTicks int) error {
	if cb == nil {
		return ErrInvalidArgument
	}
	return e.sendFrame(msg, cb, timeoutTicks)
}

// Respond sends msg back to the peer reusing msg.FrameID, so the peer's
// id listener for the original query matches. With renew set, the local
// listener awaiting that id (if any) has its timeout restarted, which
// keeps a multi-part response alive.
func (e *Engine) Respond(msg *Msg, renew bool) error {
	msg.IsResponse = true
	if renew {
		// Nothing awaiting the id is not an error for a responder.
		_ = e.RenewIDListener(msg.FrameID)
	}
	return e.sendFrame(msg, nil, 0)
}

func (e *Engine) sendFrame(msg *Msg, cb Listener, timeoutTicks int) error {
	if len(msg.Payload) > e.opt.MaxPayloadTx {
		return ErrTooLong
	}
	if !msg.IsResponse {
		msg.FrameID = e.claimID()
	}
	if cb != nil {
		// Register before emitting: on a full table the send must fail
		// with no bytes on the wire.
		if err := e.AddIDListener(msg.FrameID, cb, msg.UserData, timeoutTicks); err != nil {
			return err
		}
	}
	n := e.encode(e.txBuf, msg)
	if e.sink != nil {
		e.sink(e.txBuf[:n])
	}
	return nil
}

// claimID returns the next outbound frame id. The counter covers every
// bit below the peer bit and wraps there; the peer bit itself is forced
// to the local role, so the two endpoints allocate from disjoint sets.
func (e *Engine) claimID() uint32 {
	id := e.nextID | e.localBit
	e.nextID = (e.nextID + 1) & (e.opt.peerBit() - 1)
	return id
}

// encode serializes msg into buf, computing both checksums as fields are
// emitted, and returns the frame length. buf is sized for the worst case
// at construction.
func (e *Engine) encode(buf []byte, msg *Msg) int {
	var hcks, pcks checksum
	hcks.reset(e.opt.Cksum)
	pcks.reset(e.opt.Cksum)

	n := 0
	putField := func(v uint32, width int, cks *checksum) {
		for shift := 8 * (width - 1); shift >= 0; shift -= 8 {
			b := byte(v >> shift)
			buf[n] = b
			n++
			if cks != nil {
				cks.update(b)
			}
		}
	}

	if e.opt.UseSOF {
		buf[n] = e.opt.SOFByte
		hcks.update(e.opt.SOFByte)
		n++
	}
	putField(msg.FrameID, e.opt.IDBytes, &hcks)
	putField(uint32(len(msg.Payload)), e.opt.LenBytes, &hcks)
	putField(msg.Type, e.opt.TypeBytes, &hcks)
	if w := e.opt.Cksum.width(); w > 0 {
		putField(hcks.sum(), w, nil)
	}

	pcks.updateBytes(msg.Payload)
	n += copy(buf[n:], msg.Payload)
	if w := e.opt.Cksum.width(); w > 0 {
		putField(pcks.sum(), w, nil)
	}
	return n
}
