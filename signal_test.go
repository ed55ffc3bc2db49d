package primeros

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionSignal_TriggerCoalescing_BurstReconciliation(t *testing.T) {
	k := New()
	p, err := NewProcess(k, ProcessConfig{Priority: 1}, func(p *Process) Signal { return SignalSuccess })
	require.NoError(t, err)

	var calls int
	sig := NewActionSignal(k, p, nil, func(_ any, _ Signal) bool {
		calls++
		return calls < 3
	}, ScheduleConfig{})

	k.mu.Lock()
	sig.Trigger(SignalSuccess)
	sig.Trigger(SignalSuccess)
	sig.Trigger(SignalSuccess)
	assert.Equal(t, uint16(3), sig.unhandledTriggerCount)
	k.mu.Unlock()

	got := p.Wait(nil, nil)
	assert.Equal(t, SignalSuccess, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint16(0), sig.unhandledTriggerCount)
}

// TestActionSignal_KeepPriorityWhileHandled_Ratchet pins the open-question
// resolution recorded in DESIGN.md: once a signal with
// keepPriorityWhileHandled set has been handled, its execution context's
// priority floor does not drop back down even after the signal itself has
// left the pending queue.
func TestActionSignal_KeepPriorityWhileHandled_Ratchet(t *testing.T) {
	k := New()
	p, err := NewProcess(k, ProcessConfig{Priority: 2}, func(p *Process) Signal { return p.Wait(nil, nil) })
	require.NoError(t, err)

	sig := NewActionSignal(k, p, nil, func(_ any, _ Signal) bool { return false }, ScheduleConfig{Priority: 5})
	sig.SetKeepPriorityWhileHandled(true)

	k.mu.Lock()
	sig.Trigger(SignalSuccess)
	assert.Equal(t, Priority(5), p.action.Priority) // inherited from the pending queue's head
	k.mu.Unlock()

	got := p.Wait(nil, nil)
	assert.Equal(t, SignalSuccess, got)
	assert.Equal(t, Priority(5), p.Priority())
}

func TestActionSignal_OnReleased_DecrementsOnDirectRemoval(t *testing.T) {
	k := New()
	p, err := NewProcess(k, ProcessConfig{Priority: 1}, func(p *Process) Signal { return SignalSuccess })
	require.NoError(t, err)

	sig := NewActionSignal(k, p, nil, func(_ any, _ Signal) bool { return true }, ScheduleConfig{})

	k.mu.Lock()
	sig.Trigger(SignalSuccess)
	assert.Equal(t, uint16(1), sig.unhandledTriggerCount)
	p.pending.Remove(sig.Action()) // released before ever being handled
	assert.Equal(t, uint16(0), sig.unhandledTriggerCount)
	k.mu.Unlock()
}
