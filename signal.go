package primeros

// SignalHandler is invoked with the action's conventional owner and the
// latest signal it was triggered with. Returning false tells the process
// currently dispatching its pending-signal queue (process.go's Wait) to stop
// waiting and return that signal to its caller; returning true keeps the
// process waiting for further signals.
type SignalHandler func(owner any, signal Signal) bool

// ActionSignal is a cross-context signal: triggering it enqueues it into its
// execution context's pending-signal queue (scheduling that process if it is
// currently blocked waiting), coalescing repeat triggers that arrive faster
// than they are handled via an unhandled-trigger count. Grounded on
// original_source/include/action/signal.h and src/action/signal.c.
type ActionSignal struct {
	k *Kernel

	action *Action

	unhandledTriggerCount uint16
	executionContext      *Process

	// keepPriorityWhileHandled: if the signal's priority changes, or it
	// removes itself from the pending queue, while its handler is running,
	// the execution context's priority must not drop below the priority the
	// signal had when its handler was invoked.
	keepPriorityWhileHandled bool

	scheduleConfig ScheduleConfig

	owner   any
	handler SignalHandler

	// OnHandled is invoked after handler returns, with interrupts (mu)
	// still held, to decide whether the signal should remain in the pending
	// queue (true) or be removed (false). Defaults to the trigger-count
	// reconciliation behavior of the original; override for Semaphore/Event
	// specializations.
	OnHandled func(s *ActionSignal) bool
}

// NewActionSignal registers a new ActionSignal processed within context.
// owner defaults to the signal itself (matching action_owner(signal) =
// signal in action_signal_register) when nil.
func NewActionSignal(k *Kernel, context *Process, owner any, handler SignalHandler, cfg ScheduleConfig) *ActionSignal {
	s := &ActionSignal{
		k:                k,
		executionContext: context,
		scheduleConfig:   cfg,
		handler:          handler,
	}
	if owner != nil {
		s.owner = owner
	} else {
		s.owner = s
	}
	s.OnHandled = s.defaultOnHandled

	priority := context.originalPriority
	if cfg.Priority > priority {
		priority = cfg.Priority
	}

	a, _ := NewAction(func(a *Action, signal Signal) Signal {
		s.trigger(signal)
		return SignalSuccess
	}, nil)
	a.Priority = priority
	a.ArgOwner = s.owner
	a.OnReleased = s.onReleased
	a.signalOwner = s

	s.action = a
	return s
}

// Action exposes the underlying Action, e.g. so callers can Dispose it.
func (s *ActionSignal) Action() *Action { return s.action }

// SetKeepPriorityWhileHandled controls whether Process.Wait's dispatch loop
// ratchets its execution context's schedule-config priority floor up to this
// signal's priority every time it is handled (see process.go's waitLocked).
// Event uses this so a waiter's inherited priority cannot silently drop the
// instant its signal leaves the pending queue.
func (s *ActionSignal) SetKeepPriorityWhileHandled(v bool) { s.keepPriorityWhileHandled = v }

// Trigger enqueues the signal to its execution context's pending-signal
// queue and schedules that context if it is currently blocked in Wait.
func (s *ActionSignal) Trigger(signal Signal) {
	s.action.doTrigger(signal)
}

func (s *ActionSignal) trigger(signal Signal) {
	s.action.ArgAux = signal
	s.unhandledTriggerCount++

	ctx := s.executionContext
	if s.action.queue != ctx.pending {
		ctx.pending.Insert(s.action)
	}

	if ctx.waiting {
		ctx.blockedStateSignal = SignalSuccess
		s.k.scheduleLocked(ctx)
	}
}

// onReleased keeps unhandledTriggerCount consistent whenever the signal
// leaves its execution context's pending queue, whether because its handler
// finished and declined to keep it, or because user code released it
// directly (src/action/signal.c's _on_signal_released).
func (s *ActionSignal) onReleased(_ *Action, origin *ActionQueue) {
	if origin != s.executionContext.pending {
		return
	}
	s.unhandledTriggerCount--
}

// defaultOnHandled implements _on_signal_handled: stop staying in the
// pending queue once the handler has caught up with every trigger so far.
func (s *ActionSignal) defaultOnHandled(_ *ActionSignal) bool {
	if s.unhandledTriggerCount == 1 {
		return false
	}
	s.unhandledTriggerCount--
	return true
}

// setPriorityLocked implements priorityTarget: the signal's priority is
// floored by its own schedule config before the underlying Action is
// repositioned (src/action/signal.c's signal_set_priority).
func (s *ActionSignal) setPriorityLocked(k *Kernel, priorityLowest Priority) {
	if priorityLowest < s.scheduleConfig.Priority {
		priorityLowest = s.scheduleConfig.Priority
	}
	s.action.setPriorityLocked(k, priorityLowest)
}

// Dispose releases the signal, removing it from any queue it is a member
// of.
func (s *ActionSignal) Dispose() { s.action.Dispose() }
