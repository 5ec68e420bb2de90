// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

import "reflect"

// sameListener reports whether two callbacks are the same registration
// identity. Identity is the callback's code pointer: distinct closures
// over the same function literal compare equal, so callers that need
// several generic listeners must use distinct functions.
func sameListener(a, b Listener) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// Listener tables are fixed-capacity flat arrays; a slot is active while
// its callback is non-nil. Dispatch and ticking iterate by index and
// recheck occupancy, so callbacks may mutate the tables freely.

type idListener struct {
	id        uint32
	cb        Listener
	userData  any
	remaining int
	initial   int // 0 means the slot never expires
}

type typeListener struct {
	typ uint32
	cb  Listener
}

type genericListener struct {
	cb Listener
}

// AddIDListener registers cb for frames whose id equals id. A timeout of
// zero never expires; otherwise the listener is reaped after timeoutTicks
// ticks with a nil-payload timeout message carrying userData. Registering
// an id that is already awaited fails with ErrDuplicate.
func (e *Engine) AddIDListener(id uint32, cb Listener, userData any, timeoutTicks int) error {
	if cb == nil || timeoutTicks < 0 {
		return ErrInvalidArgument
	}
	for i := range e.idTab {
		if e.idTab[i].cb != nil && e.idTab[i].id == id {
			return ErrDuplicate
		}
	}
	for i := range e.idTab {
		if e.idTab[i].cb != nil {
			continue
		}
		e.idTab[i] = idListener{
			id:        id,
			cb:        cb,
			userData:  userData,
			remaining: timeoutTicks,
			initial:   timeoutTicks,
		}
		return nil
	}
	return ErrTableFull
}

// RemoveIDListener frees the listener awaiting id.
func (e *Engine) RemoveIDListener(id uint32) error {
	for i := range e.idTab {
		if e.idTab[i].cb != nil && e.idTab[i].id == id {
			e.idTab[i] = idListener{}
			return nil
		}
	}
	return ErrNotFound
}

// RenewIDListener restarts the timeout of the listener awaiting id.
func (e *Engine) RenewIDListener(id uint32) error {
	for i := range e.idTab {
		if e.idTab[i].cb != nil && e.idTab[i].id == id {
			e.idTab[i].remaining = e.idTab[i].initial
			return nil
		}
	}
	return ErrNotFound
}

// AddTypeListener registers cb for frames of the given type.
func (e *Engine) AddTypeListener(typ uint32, cb Listener) error {
	if cb == nil {
		return ErrInvalidArgument
	}
	for i := range e.typeTab {
		if e.typeTab[i].cb != nil && e.typeTab[i].typ == typ {
			return ErrDuplicate
		}
	}
	for i := range e.typeTab {
		if e.typeTab[i].cb != nil {
			continue
		}
		e.typeTab[i] = typeListener{typ: typ, cb: cb}
		return nil
	}
	return ErrTableFull
}

// RemoveTypeListener frees the listener for the given type.
func (e *Engine) RemoveTypeListener(typ uint32) error {
	for i := range e.typeTab {
		if e.typeTab[i].cb != nil && e.typeTab[i].typ == typ {
			e.typeTab[i] = typeListener{}
			return nil
		}
	}
	return ErrNotFound
}

// AddGenericListener registers cb for every frame no other listener
// consumed. The same callback may be registered at most once.
func (e *Engine) AddGenericListener(cb Listener) error {
	if cb == nil {
		return ErrInvalidArgument
	}
	for i := range e.genTab {
		if e.genTab[i].cb != nil && sameListener(e.genTab[i].cb, cb) {
			return ErrDuplicate
		}
	}
	for i := range e.genTab {
		if e.genTab[i].cb != nil {
			continue
		}
		e.genTab[i] = genericListener{cb: cb}
		return nil
	}
	return ErrTableFull
}

// RemoveGenericListener frees the slot holding cb.
func (e *Engine) RemoveGenericListener(cb Listener) error {
	if cb == nil {
		return ErrInvalidArgument
	}
	for i := range e.genTab {
		if e.genTab[i].cb != nil && sameListener(e.genTab[i].cb, cb) {
			e.genTab[i] = genericListener{}
			return nil
		}
	}
	return ErrNotFound
}

// ClearListeners empties all three tables without notifying callbacks.
func (e *Engine) ClearListeners() {
	for i := range e.idTab {
		e.idTab[i] = idListener{}
	}
	for i := range e.typeTab {
		e.typeTab[i] = typeListener{}
	}
	for i := range e.genTab {
		e.genTab[i] = genericListener{}
	}
}

// dispatch routes one completed inbound frame: id match first, then type,
// then generic, slot order within a table. An id listener is freed after
// one matching frame whether or not it consumes; its slot is cleared
// before the callback runs so the callback may re-register the same id.
func (e *Engine) dispatch(msg *Msg) {
	for i := range e.idTab {
		s := &e.idTab[i]
		if s.cb == nil || s.id != msg.FrameID {
			continue
		}
		cb, ud := s.cb, s.userData
		*s = idListener{}
		msg.UserData = ud
		if cb(e, msg) {
			return
		}
		msg.UserData = nil
		break
	}
	for i := range e.typeTab {
		s := &e.typeTab[i]
		if s.cb == nil || s.typ != msg.Type {
			continue
		}
		if s.cb(e, msg) {
			return
		}
		break
	}
	for i := range e.genTab {
		if e.genTab[i].cb == nil {
			continue
		}
		if e.genTab[i].cb(e, msg) {
			return
		}
	}
}

// tickListeners ages every expiring id listener and reaps the ones whose
// budget ran out. The timeout notification is a nil-payload message with
// the slot's id and user data; the slot is cleared before the callback so
// it may re-register, and it stays freed regardless of the return value.
func (e *Engine) tickListeners() {
	for i := range e.idTab {
		s := &e.idTab[i]
		if s.cb == nil || s.initial == 0 {
			continue
		}
		s.remaining--
		if s.remaining > 0 {
			continue
		}
		cb, msg := s.cb, Msg{FrameID: s.id, UserData: s.userData}
		*s = idListener{}
		cb(e, &msg)
	}
}
