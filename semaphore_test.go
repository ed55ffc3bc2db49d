package primeros

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore_TryAcquire_BanksAndDrainsPermits(t *testing.T) {
	k := New()
	ctx, err := NewProcess(k, ProcessConfig{Priority: 1}, func(p *Process) Signal { return SignalSuccess })
	require.NoError(t, err)
	s := NewSemaphore(k, ctx, 2)

	assert.Equal(t, uint16(2), s.Permits())
	assert.Equal(t, SemaphoreSuccess, s.TryAcquire())
	assert.Equal(t, SemaphoreSuccess, s.TryAcquire())
	assert.Equal(t, SemaphoreNoPermits, s.TryAcquire())
	assert.Equal(t, uint16(0), s.Permits())
}

// TestSemaphore_AsyncAcquire_PriorityOrdering reproduces the testable
// ordering property: three async acquirers queued at priorities 4, 6, 4 (in
// that insertion order) against a semaphore starting at zero permits, then
// three releases in a row, must release them in order pri-6, then the
// earlier-inserted pri-4, then the later pri-4.
func TestSemaphore_AsyncAcquire_PriorityOrdering(t *testing.T) {
	k, _ := startTestKernel(t, nil)
	s := NewSemaphore(k, k.SignalProcessor(), 0)

	order := make(chan string, 3)
	newWaiter := func(name string, priority Priority) *Action {
		a, err := NewAction(defaultTrigger, nil)
		require.NoError(t, err)
		a.Priority = priority
		a.Trigger = func(a *Action, signal Signal) Signal {
			order <- name
			a.releaseFromQueue()
			return SignalSuccess
		}
		return a
	}

	lowFirst := newWaiter("low-first", 4)
	high := newWaiter("high", 6)
	lowSecond := newWaiter("low-second", 4)

	assert.True(t, s.AcquireAsync(lowFirst))
	assert.True(t, s.AcquireAsync(high))
	assert.True(t, s.AcquireAsync(lowSecond))

	assert.Equal(t, SemaphoreSuccess, s.Signal(SemaphoreSuccess))
	assert.Equal(t, SemaphoreSuccess, s.Signal(SemaphoreSuccess))
	assert.Equal(t, SemaphoreSuccess, s.Signal(SemaphoreSuccess))

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case name := <-order:
			got = append(got, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 3 waiters released", i)
		}
	}
	assert.Equal(t, []string{"high", "low-first", "low-second"}, got)
}

func TestSemaphore_AcquireAsync_RejectsAlreadyQueuedAction(t *testing.T) {
	k := New()
	ctx, err := NewProcess(k, ProcessConfig{Priority: 1}, func(p *Process) Signal { return SignalSuccess })
	require.NoError(t, err)
	s := NewSemaphore(k, ctx, 0)

	a, err := NewAction(defaultTrigger, nil)
	require.NoError(t, err)

	assert.True(t, s.AcquireAsync(a)) // queued, no permit available

	var got Signal = -100
	a.Trigger = func(_ *Action, signal Signal) Signal { got = signal; return SignalSuccess }
	q := NewSortedActionQueue(k, true)
	q.Insert(a) // belongs to a different queue now

	assert.False(t, s.AcquireAsync(a))
	assert.Equal(t, SignalInvalidArgument, got)
}

func TestSemaphore_Acquire_BlocksAndWakesOnSignal(t *testing.T) {
	k, _ := startTestKernel(t, nil)
	s := NewSemaphore(k, k.SignalProcessor(), 0)

	result := make(chan Signal, 1)
	waiter, err := NewProcess(k, ProcessConfig{Priority: 3}, func(p *Process) Signal {
		return s.Acquire(p, nil, nil)
	})
	require.NoError(t, err)
	waiter.exitHook = func(code Signal) { result <- code }
	k.Schedule(waiter)

	requireEventually(t, 2*time.Second, func() bool { return !s.queue.Empty() })

	assert.Equal(t, SemaphoreSuccess, s.Signal(SemaphoreSuccess))

	select {
	case code := <-result:
		assert.Equal(t, SemaphoreSuccess, code)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woken by Signal")
	}
}

func TestSemaphore_SignalAll_WakesEveryWaiterWithoutTouchingPermits(t *testing.T) {
	k, _ := startTestKernel(t, nil)
	s := NewSemaphore(k, k.SignalProcessor(), 0)

	results := make(chan Signal, 2)
	for i := 0; i < 2; i++ {
		waiter, err := NewProcess(k, ProcessConfig{Priority: Priority(3 + i)}, func(p *Process) Signal {
			return s.Acquire(p, nil, nil)
		})
		require.NoError(t, err)
		waiter.exitHook = func(code Signal) { results <- code }
		k.Schedule(waiter)
	}

	requireEventually(t, 2*time.Second, func() bool { return s.queue.Empty() == false })
	requireEventually(t, 2*time.Second, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		n := 0
		for a := s.queue.Head(); a != nil; a = a.queueNext {
			n++
		}
		return n == 2
	})

	assert.Equal(t, SemaphoreSuccess, s.SignalAll(SemaphoreSuccess))

	for i := 0; i < 2; i++ {
		select {
		case code := <-results:
			assert.Equal(t, SemaphoreSuccess, code)
		case <-time.After(2 * time.Second):
			t.Fatal("a waiter was never woken by SignalAll")
		}
	}
	assert.Equal(t, uint16(0), s.Permits())
}

func TestSemaphore_Dispose_ReleasesWaitersWithDisposedSignal(t *testing.T) {
	k, _ := startTestKernel(t, nil)
	s := NewSemaphore(k, k.SignalProcessor(), 0)

	result := make(chan Signal, 1)
	waiter, err := NewProcess(k, ProcessConfig{Priority: 3}, func(p *Process) Signal {
		return s.Acquire(p, nil, nil)
	})
	require.NoError(t, err)
	waiter.exitHook = func(code Signal) { result <- code }
	k.Schedule(waiter)

	requireEventually(t, 2*time.Second, func() bool { return !s.queue.Empty() })

	s.Dispose()

	select {
	case code := <-result:
		assert.Equal(t, SignalDisposedResourceAccess, code)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woken by Dispose")
	}

	assert.Equal(t, SignalDisposedResourceAccess, s.TryAcquire())
}
