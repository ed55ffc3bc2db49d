package primeros

// Event is a signal multiplexer built on Action Signal (spec.md §4.7): its
// handler is trigger_all over a subscription list rather than a single
// receiver. Event inherits priority from its subscription list's head, the
// same transitive mechanism Mutex uses for its waiter queue, and the
// keep_priority_while_handled ratchet (signal.go) keeps that inherited floor
// from dropping the instant a subscriber's delivery is acknowledged.
type Event struct {
	*ActionSignal

	k    *Kernel
	subs *ActionQueue // sorted, lax — subscription list

	disposed bool
}

// NewEvent registers a new Event whose dispatch runs in context.
func NewEvent(k *Kernel, context *Process) *Event {
	e := &Event{k: k}
	e.subs = NewSortedActionQueue(k, false,
		WithOwner(e),
		WithOnHeadPriorityChanged(func(p Priority) { k.setPriority(e.Action(), p) }),
	)

	e.ActionSignal = NewActionSignal(k, context, e, e.dispatch, ScheduleConfig{})
	e.ActionSignal.SetKeepPriorityWhileHandled(true)
	e.Action().Trigger = e.onTrigger

	return e
}

// onTrigger: while nobody is subscribed there is nothing to wake, so the
// trigger is a dummy (original_source's event.c swaps the Action's trigger
// function pointer at subscribe time to the same effect; branching here on
// every call is simpler and equally correct under Kernel.mu).
func (e *Event) onTrigger(_ *Action, signal Signal) Signal {
	if e.subs.Empty() {
		return SignalSuccess
	}
	e.ActionSignal.trigger(signal)
	return SignalSuccess
}

// dispatch is the signal's handler: deliver to every current subscriber.
func (e *Event) dispatch(_ any, signal Signal) bool {
	e.subs.TriggerAll(signal)
	return true
}

// Subscribe registers action to be triggered on every future Signal call,
// until it is Unsubscribed, disposed itself, or the event is disposed.
func (e *Event) Subscribe(action *Action) {
	k := e.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if e.disposed {
		action.doTrigger(SignalDisposedResourceAccess)
		return
	}
	e.subs.Insert(action)
}

// Unsubscribe removes action from the subscription list, if present.
func (e *Event) Unsubscribe(action *Action) {
	k := e.k
	k.mu.Lock()
	defer k.mu.Unlock()
	e.subs.Remove(action)
}

// Wait blocks p as a one-shot subscriber until the event is signaled (or
// timeout elapses, or the event is disposed while waiting).
func (e *Event) Wait(p *Process, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	k := e.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if e.disposed {
		return SignalDisposedResourceAccess
	}
	return k.suspendLocked(p, true, e.subs, timeout, cfg)
}

// Signal delivers signal to every current subscriber.
func (e *Event) Signal(signal Signal) Signal {
	k := e.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if e.disposed {
		return SignalDisposedResourceAccess
	}
	return e.Action().doTrigger(signal)
}

// Dispose permanently invalidates the event, releasing every subscriber
// (including any process blocked in Wait) with SignalDisposedResourceAccess.
func (e *Event) Dispose() {
	k := e.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if e.disposed {
		return
	}
	e.disposed = true

	e.subs.DisableHeadPriorityInheritance()
	e.subs.Close(SignalDisposedResourceAccess)
	e.ActionSignal.Dispose()
}

// NewActionProxy returns an Action whose Trigger forwards the received
// signal unmodified to target.Trigger. Subscribing a proxy to an Event (or
// registering one with Semaphore.AcquireAsync / Process.WaitForAsync) lets a
// process receive the delivery inside its own context — typically by
// pointing target at a Signal it owns — with its own priority, rather than
// the publisher's.
func NewActionProxy(target *Action) *Action {
	a, _ := NewAction(func(_ *Action, signal Signal) Signal {
		return target.doTrigger(signal)
	}, nil)
	return a
}
