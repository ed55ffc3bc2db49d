package primeros

// Semaphore is a counting semaphore built directly on top of ActionSignal
// (spec.md §4.6): its permit count is the very same field ActionSignal uses
// to coalesce bursts of triggers (unhandledTriggerCount), and releasing a
// waiter is driven by the signal's own handler/on_handled dispatch rather
// than a bespoke release path. Unlike Mutex, a Semaphore does not track or
// propagate priority inheritance onto anything — acquiring a permit confers
// no ownership.
type Semaphore struct {
	*ActionSignal

	k *Kernel

	queue *ActionQueue // waiters, sorted + strict

	disposed bool
}

// NewSemaphore registers a semaphore seeded with initialPermits, whose
// internal bookkeeping action dispatches in context (conventionally the
// kernel's signal processor process).
func NewSemaphore(k *Kernel, context *Process, initialPermits uint16) *Semaphore {
	s := &Semaphore{k: k}
	s.queue = NewSortedActionQueue(k, true, WithOwner(s))
	s.ActionSignal = NewActionSignal(k, context, s, s.dispatch, ScheduleConfig{})

	// Semaphore owns its own permits/queue reconciliation in full; the base
	// ActionSignal's on_released decrement assumes "removed from pending" ==
	// "fully caught up", which does not hold here (a trigger that finds no
	// waiter to release banks its permit rather than vanishing).
	s.Action().OnReleased = nil
	s.ActionSignal.OnHandled = s.onHandled
	s.Action().Trigger = s.onTrigger

	s.unhandledTriggerCount = initialPermits
	return s
}

// onTrigger replaces the base ActionSignal trigger (spec.md §4.6): if the
// waiter queue is empty there is nothing to wake, so the permit is simply
// banked; otherwise the trigger is delegated to the signal machinery, which
// will dispatch to a waiter via dispatch/onHandled once this context's Wait
// loop gets to it.
func (s *Semaphore) onTrigger(_ *Action, signal Signal) Signal {
	if s.queue.Empty() {
		s.unhandledTriggerCount++
	} else {
		s.ActionSignal.trigger(signal)
	}
	return SemaphoreSuccess
}

// dispatch is the signal's handler: pop one waiter and release it, banking
// the permit instead if the queue has since drained (a burst of signals can
// outrun the waiters actually present by the time the handler runs).
func (s *Semaphore) dispatch(_ any, signal Signal) bool {
	if a := s.queue.Pop(); a != nil {
		s.releaseWaiter(a, signal)
		s.unhandledTriggerCount--
	}
	return true
}

// onHandled keeps dispatching (without touching the permit count itself —
// dispatch already reconciled it) as long as there is both an acknowledged
// trigger outstanding and a waiter left to give it to.
func (s *Semaphore) onHandled(_ *ActionSignal) bool {
	return s.unhandledTriggerCount > 0 && !s.queue.Empty()
}

// releaseWaiter wakes a queued waiter with signal: a process blocked in
// Acquire is rescheduled directly (mirroring scheduleHandler), while a bare
// Action registered via AcquireAsync is triggered through its own Trigger.
func (s *Semaphore) releaseWaiter(a *Action, signal Signal) {
	if p, ok := a.ArgOwner.(*Process); ok {
		s.k.scheduleHandler(p, signal)
		return
	}
	a.doTrigger(signal)
}

func (s *Semaphore) tryAcquireLocked() Signal {
	if s.disposed {
		return SignalDisposedResourceAccess
	}
	if s.unhandledTriggerCount == 0 {
		return SemaphoreNoPermits
	}
	s.unhandledTriggerCount--
	return SemaphoreSuccess
}

// TryAcquire claims a permit without blocking, returning SemaphoreNoPermits
// if none are available.
func (s *Semaphore) TryAcquire() Signal {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.tryAcquireLocked()
}

// Acquire claims a permit, blocking p until one is available (or timeout
// elapses, or the semaphore is disposed while waiting).
func (s *Semaphore) Acquire(p *Process, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	res := s.tryAcquireLocked()
	if res != SemaphoreNoPermits {
		return res
	}
	return k.suspendLocked(p, true, s.queue, timeout, cfg)
}

// AcquireAsync registers action to be triggered once a permit becomes
// available, without blocking the caller: if a permit is already banked, one
// waiter (not necessarily action itself, if a higher-priority waiter is
// already queued) is released immediately. action must not already belong to
// another queue. Returns true once action has been accepted into the waiter
// queue, and false if it was rejected (nil, already queued, or the semaphore
// is disposed).
func (s *Semaphore) AcquireAsync(action *Action) bool {
	if action == nil {
		return false
	}
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if action.InQueue() {
		action.doTrigger(SignalInvalidArgument)
		return false
	}
	if s.disposed {
		action.doTrigger(SignalDisposedResourceAccess)
		return false
	}

	s.queue.Insert(action)
	if s.unhandledTriggerCount == 0 {
		return true
	}
	s.unhandledTriggerCount--
	released := s.queue.Pop()
	s.releaseWaiter(released, SemaphoreSuccess)
	return true
}

// Signal releases one permit: if no process is waiting, the permit is
// banked; otherwise the highest-priority waiter is woken with signal once
// this semaphore's execution context dispatches it.
func (s *Semaphore) Signal(signal Signal) Signal {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.disposed {
		return SignalDisposedResourceAccess
	}
	return s.Action().doTrigger(signal)
}

// SignalAll immediately wakes every waiting process/action with signal,
// without affecting the permit count (the original's signal_all, carried
// forward as a synchronous bulk wakeup distinct from Signal's banking
// behavior).
func (s *Semaphore) SignalAll(signal Signal) Signal {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.disposed {
		return SignalDisposedResourceAccess
	}
	for {
		a := s.queue.Pop()
		if a == nil {
			break
		}
		s.releaseWaiter(a, signal)
	}
	return SemaphoreSuccess
}

// Permits returns the current (banked) permit count.
func (s *Semaphore) Permits() uint16 {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.unhandledTriggerCount
}

// Dispose permanently invalidates the semaphore, releasing every waiter
// (queued process or async action) with SignalDisposedResourceAccess.
func (s *Semaphore) Dispose() {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true

	s.queue.Close(SignalDisposedResourceAccess)
	s.ActionSignal.Dispose()
}
