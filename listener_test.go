// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe_test

import (
	"testing"

	"code.hybscloud.com/tinyframe"
)

func consume(e *tinyframe.Engine, m *tinyframe.Msg) bool { return true }
func decline(e *tinyframe.Engine, m *tinyframe.Msg) bool { return false }

func TestIDListenerPriorityOverType(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	var order []string
	if err := e.AddTypeListener(0x33, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "type")
		return true
	}); err != nil {
		t.Fatalf("add type listener: %v", err)
	}
	if err := e.AddIDListener(0x81, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "id")
		return true
	}, nil, 0); err != nil {
		t.Fatalf("add id listener: %v", err)
	}

	e.Accept(uartFrame(0x81, 0x33, nil))
	if len(order) != 1 || order[0] != "id" {
		t.Fatalf("order=%v want=[id]", order)
	}
}

func TestDispatchCascadeOnDecline(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	var order []string
	if err := e.AddIDListener(0x81, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "id")
		return false
	}, nil, 0); err != nil {
		t.Fatalf("add id listener: %v", err)
	}
	if err := e.AddTypeListener(0x33, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "type")
		return false
	}); err != nil {
		t.Fatalf("add type listener: %v", err)
	}
	if err := e.AddGenericListener(func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "generic")
		return true
	}); err != nil {
		t.Fatalf("add generic listener: %v", err)
	}

	e.Accept(uartFrame(0x81, 0x33, nil))
	if len(order) != 3 || order[0] != "id" || order[1] != "type" || order[2] != "generic" {
		t.Fatalf("order=%v want=[id type generic]", order)
	}
}

func TestIDListenerFreedAfterOneFrame(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	calls := 0
	if err := e.AddIDListener(0x81, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		calls++
		return false // declining still frees the slot
	}, nil, 0); err != nil {
		t.Fatalf("add id listener: %v", err)
	}

	frame := uartFrame(0x81, 0x33, nil)
	e.Accept(frame)
	e.Accept(frame)
	if calls != 1 {
		t.Fatalf("calls=%d want=1", calls)
	}
	// The slot is free again.
	if err := e.AddIDListener(0x81, consume, nil, 0); err != nil {
		t.Fatalf("re-add after dispatch: %v", err)
	}
}

func TestCallbackMayReRegisterSameID(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	calls := 0
	var keepWaiting tinyframe.Listener
	keepWaiting = func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		calls++
		if err := e.AddIDListener(0x81, keepWaiting, nil, 0); err != nil {
			t.Errorf("re-register: %v", err)
		}
		return true
	}
	if err := e.AddIDListener(0x81, keepWaiting, nil, 0); err != nil {
		t.Fatalf("add id listener: %v", err)
	}

	frame := uartFrame(0x81, 0x33, nil)
	e.Accept(frame)
	e.Accept(frame)
	e.Accept(frame)
	if calls != 3 {
		t.Fatalf("calls=%d want=3", calls)
	}
}

func TestIDListenerTimeout(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	var timeouts []*tinyframe.Msg
	if err := e.AddIDListener(0x80, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		timeouts = append(timeouts, &tinyframe.Msg{FrameID: m.FrameID, Payload: m.Payload, IsResponse: m.IsResponse, UserData: m.UserData})
		return true
	}, "ctx", 5); err != nil {
		t.Fatalf("add id listener: %v", err)
	}

	for i := 0; i < 4; i++ {
		e.Tick()
	}
	if len(timeouts) != 0 {
		t.Fatalf("fired early after 4 ticks")
	}
	e.Tick()
	if len(timeouts) != 1 {
		t.Fatalf("fired=%d want=1 after 5 ticks", len(timeouts))
	}
	m := timeouts[0]
	if m.Payload != nil || m.IsResponse || m.FrameID != 0x80 || m.UserData != "ctx" {
		t.Fatalf("timeout msg={id=%#x payload=%v resp=%v ud=%v}", m.FrameID, m.Payload, m.IsResponse, m.UserData)
	}
	// A sixth tick does nothing.
	e.Tick()
	if len(timeouts) != 1 {
		t.Fatalf("fired again after expiry")
	}
}

func TestZeroTimeoutNeverExpires(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	calls := 0
	if err := e.AddIDListener(0x80, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		calls++
		return true
	}, nil, 0); err != nil {
		t.Fatalf("add id listener: %v", err)
	}
	for i := 0; i < 1000; i++ {
		e.Tick()
	}
	if calls != 0 {
		t.Fatalf("zero-timeout listener expired")
	}
	e.Accept(uartFrame(0x80, 0x01, nil))
	if calls != 1 {
		t.Fatalf("calls=%d want=1", calls)
	}
}

func TestRenewIDListener(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	calls := 0
	if err := e.AddIDListener(0x80, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		calls++
		return true
	}, nil, 4); err != nil {
		t.Fatalf("add id listener: %v", err)
	}
	e.Tick()
	e.Tick()
	e.Tick()
	if err := e.RenewIDListener(0x80); err != nil {
		t.Fatalf("renew: %v", err)
	}
	e.Tick()
	e.Tick()
	e.Tick()
	if calls != 0 {
		t.Fatalf("fired despite renewal")
	}
	e.Tick()
	if calls != 1 {
		t.Fatalf("calls=%d want=1", calls)
	}
	if err := e.RenewIDListener(0x80); err != tinyframe.ErrNotFound {
		t.Fatalf("renew after expiry: err=%v want=ErrNotFound", err)
	}
}

func TestDuplicateRegistrations(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	if err := e.AddIDListener(7, consume, nil, 0); err != nil {
		t.Fatalf("add id listener: %v", err)
	}
	if err := e.AddIDListener(7, decline, nil, 0); err != tinyframe.ErrDuplicate {
		t.Fatalf("duplicate id: err=%v want=ErrDuplicate", err)
	}

	if err := e.AddTypeListener(9, consume); err != nil {
		t.Fatalf("add type listener: %v", err)
	}
	if err := e.AddTypeListener(9, decline); err != tinyframe.ErrDuplicate {
		t.Fatalf("duplicate type: err=%v want=ErrDuplicate", err)
	}

	if err := e.AddGenericListener(consume); err != nil {
		t.Fatalf("add generic listener: %v", err)
	}
	if err := e.AddGenericListener(consume); err != tinyframe.ErrDuplicate {
		t.Fatalf("duplicate generic: err=%v want=ErrDuplicate", err)
	}
	// A different callback is not a duplicate.
	if err := e.AddGenericListener(decline); err != nil {
		t.Fatalf("second generic listener: %v", err)
	}
}

func TestTableCapacity(t *testing.T) {
	t.Parallel()

	e := newSlave(t, tinyframe.WithListenerCapacity(2, 2, 1))
	if err := e.AddIDListener(1, consume, nil, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddIDListener(2, consume, nil, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddIDListener(3, consume, nil, 0); err != tinyframe.ErrTableFull {
		t.Fatalf("err=%v want=ErrTableFull", err)
	}
	// Removal frees a slot for reuse.
	if err := e.RemoveIDListener(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := e.AddIDListener(3, consume, nil, 0); err != nil {
		t.Fatalf("add after remove: %v", err)
	}
	if err := e.RemoveIDListener(42); err != tinyframe.ErrNotFound {
		t.Fatalf("remove missing: err=%v want=ErrNotFound", err)
	}
}

func TestRemoveTypeAndGenericListeners(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	if err := e.AddTypeListener(5, consume); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.RemoveTypeListener(5); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := e.RemoveTypeListener(5); err != tinyframe.ErrNotFound {
		t.Fatalf("err=%v want=ErrNotFound", err)
	}

	if err := e.AddGenericListener(consume); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.RemoveGenericListener(consume); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := e.RemoveGenericListener(consume); err != tinyframe.ErrNotFound {
		t.Fatalf("err=%v want=ErrNotFound", err)
	}
}

func TestClearListeners(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	if err := e.AddIDListener(1, consume, nil, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddTypeListener(2, consume); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddGenericListener(consume); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.ClearListeners()
	if err := e.RemoveIDListener(1); err != tinyframe.ErrNotFound {
		t.Fatalf("id table not cleared")
	}
	if err := e.RemoveTypeListener(2); err != tinyframe.ErrNotFound {
		t.Fatalf("type table not cleared")
	}
	if err := e.RemoveGenericListener(consume); err != tinyframe.ErrNotFound {
		t.Fatalf("generic table not cleared")
	}
}

func TestOnlyFirstTypeListenerRuns(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	var order []string
	if err := e.AddTypeListener(0x33, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "first")
		return false
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// A second listener for a different type never matches this frame; the
	// declined dispatch falls through to the generic tier, not to other
	// type slots.
	if err := e.AddTypeListener(0x34, func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "other")
		return true
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddGenericListener(func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		order = append(order, "generic")
		return true
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.Accept(uartFrame(0x90, 0x33, nil))
	if len(order) != 2 || order[0] != "first" || order[1] != "generic" {
		t.Fatalf("order=%v want=[first generic]", order)
	}
}

func TestUnmatchedFrameSilentlyDropped(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	// No listeners at all: the frame must vanish without disturbing the
	// parser.
	e.Accept(uartFrame(0x80, 0x77, []byte("drop")))
	got := capture(t, e)
	e.Accept(uartFrame(0x80, 0x77, []byte("keep")))
	if len(*got) != 1 || string((*got)[0].Payload) != "keep" {
		t.Fatalf("got=%v", got)
	}
}

func TestTimeoutCallbackMayReRegister(t *testing.T) {
	t.Parallel()

	e := newSlave(t)
	fires := 0
	var again tinyframe.Listener
	again = func(e *tinyframe.Engine, m *tinyframe.Msg) bool {
		fires++
		if fires < 3 {
			if err := e.AddIDListener(0x80, again, nil, 2); err != nil {
				t.Errorf("re-register from timeout: %v", err)
			}
		}
		return true
	}
	if err := e.AddIDListener(0x80, again, nil, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	for i := 0; i < 10; i++ {
		e.Tick()
	}
	if fires != 3 {
		t.Fatalf("fires=%d want=3", fires)
	}
}
