// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

import (
	"io"
	"runtime"
	"time"

	"code.hybscloud.com/iox"
)

// Port binds an Engine to Go io interfaces: inbound bytes are pumped from
// an io.Reader into the engine's parser, and the engine's outbound frames
// are written to an io.Writer.
//
// Non-blocking semantics: iox.ErrWouldBlock and iox.ErrMore from the
// underlying transport are surfaced as control-flow signals (re-exposed as
// ErrWouldBlock / ErrMore), subject to the WithRetryDelay policy. A frame
// the transport could not take in full is retained and drained first on
// the next Pump or Flush, so frame bytes are never interleaved or lost.
//
// The Port shares the engine's serialization domain: Pump, Flush, and Run
// must not race with direct engine calls from another goroutine.
type Port struct {
	e  *Engine
	rd io.Reader
	wr io.Writer

	retryDelay time.Duration

	rbuf []byte

	// Outbound resume state: pend[pendOff:] is the unwritten tail of
	// frames the transport has not yet taken.
	pend    []byte
	pendOff int
}

// NewPort returns a Port pumping r into e and draining e's frames into w.
// The engine's sink is replaced. Either side may be nil for a one-way
// link; the corresponding operations then fail with ErrInvalidArgument.
func NewPort(e *Engine, r io.Reader, w io.Writer, opts ...Option) *Port {
	o := e.opt
	for _, fn := range opts {
		fn(&o)
	}
	p := &Port{
		e:          e,
		rd:         r,
		wr:         w,
		retryDelay: o.RetryDelay,
		rbuf:       make([]byte, e.opt.frameOverhead()+e.opt.MaxPayloadRx),
		pend:       make([]byte, 0, 2*(e.opt.frameOverhead()+e.opt.MaxPayloadTx)),
	}
	e.sink = p.emit
	return p
}

// NewPipe returns two engines cross-connected in memory: every frame one
// sends is parsed by the other synchronously. Useful for tests and for
// exercising protocol logic without a transport.
func NewPipe(opts ...Option) (master, slave *Engine, err error) {
	master, err = New(PeerMaster, nil, opts...)
	if err != nil {
		return nil, nil, err
	}
	slave, err = New(PeerSlave, nil, opts...)
	if err != nil {
		return nil, nil, err
	}
	master.sink = slave.Accept
	slave.sink = master.Accept
	return master, slave, nil
}

// emit is the engine's sink: queue the frame, then push as much as the
// transport takes under the retry policy. Under nonblock the unwritten
// tail stays pending and drains on the next Pump or Flush.
func (p *Port) emit(frame []byte) {
	p.pend = append(p.pend, frame...)
	for {
		err := p.Flush()
		if err != ErrWouldBlock && err != ErrMore {
			return
		}
		if !p.waitOnceOnWouldBlock() {
			return
		}
	}
}

// Flush drains the pending outbound bytes. It returns nil when nothing is
// left, ErrWouldBlock/ErrMore when the transport stalled mid-frame under
// a nonblock policy, or the transport's error.
func (p *Port) Flush() error {
	if p.wr == nil {
		if len(p.pend) > 0 {
			return ErrInvalidArgument
		}
		return nil
	}
	for p.pendOff < len(p.pend) {
		n, err := p.writeOnce(p.pend[p.pendOff:])
		p.pendOff += n
		if err != nil {
			return err
		}
	}
	p.pend = p.pend[:0]
	p.pendOff = 0
	return nil
}

// Pump drains pending output, then reads once from the transport and
// feeds the engine. It returns the number of bytes accepted; io.EOF at
// end of stream, ErrWouldBlock/ErrMore when the transport has nothing
// right now under a nonblock policy.
func (p *Port) Pump() (int, error) {
	if err := p.Flush(); err != nil {
		return 0, err
	}
	if p.rd == nil {
		return 0, ErrInvalidArgument
	}
	n, err := p.readOnce(p.rbuf)
	if n > 0 {
		p.e.Accept(p.rbuf[:n])
	}
	return n, err
}

// Run pumps until the stream ends or the transport fails. A clean io.EOF
// returns nil. With a nonblock retry policy, ErrWouldBlock surfaces to
// the caller instead of spinning.
func (p *Port) Run() error {
	for {
		_, err := p.Pump()
		if err == nil || err == ErrMore {
			continue
		}
		if err == io.EOF {
			return nil
		}
		return err
	}
}

func (p *Port) waitOnceOnWouldBlock() bool {
	// returns whether the caller should retry
	if p.retryDelay < 0 {
		return false
	}
	if p.retryDelay == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(p.retryDelay)
	return true
}

func (p *Port) readOnce(buf []byte) (n int, err error) {
	for {
		n, err = p.rd.Read(buf)
		// Guard against broken Readers that violate the io.Reader contract by
		// returning (0, nil) on a non-empty buffer. Without this, Run can
		// spin indefinitely.
		if len(buf) != 0 && n == 0 && err == nil {
			return 0, io.ErrNoProgress
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !p.waitOnceOnWouldBlock() {
			return n, err
		}
	}
}

func (p *Port) writeOnce(buf []byte) (n int, err error) {
	for {
		n, err = p.wr.Write(buf)
		// Guard against broken Writers that violate the io.Writer contract by
		// returning (0, nil) on a non-empty buffer.
		if len(buf) != 0 && n == 0 && err == nil {
			return 0, io.ErrShortWrite
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !p.waitOnceOnWouldBlock() {
			return n, err
		}
	}
}

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly.
var (
	// ErrWouldBlock means “no further progress without waiting”.
	//
	// It is an expected, non-failure control-flow signal for non-blocking I/O.
	// Any returned byte count (n) still represents real progress.
	//
	// Caller action: stop the current attempt and retry later (after readiness/event),
	// or configure RetryDelay to emulate cooperative blocking on top of a non-blocking transport.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means “this completion is usable and more completions will follow”.
	//
	// It is not io.EOF and not “try later”. The operation remains active and additional
	// data/results are expected from the same ongoing operation.
	//
	// Caller action: process the returned bytes/result, then call again to obtain the next chunk.
	ErrMore = iox.ErrMore
)
