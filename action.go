package primeros

// ActionHandler is invoked in its owning process's context (i.e. from inside
// that process's Wait loop). Returning false breaks the caller's wait loop.
type ActionHandler func(a *Action, signal Signal) bool

// ActionTrigger is invoked either inline (from interrupt/ISR-equivalent
// context) or as the action taken when inserting into some queue.
type ActionTrigger func(a *Action, signal Signal) Signal

// Action is the kernel's central polymorphic descriptor (spec.md §3). An
// Action belongs to at most one ActionQueue at a time; the invariant
// `queue == nil ⇔ queuePrev == nil && queueNext == nil` holds for every
// reachable state and is the Go rendering of the original's intrusive
// doubly-linked membership (original_source/include/action.h).
type Action struct {
	// intrusive queue membership (circular doubly-linked list)
	queuePrev, queueNext *Action
	queue                *ActionQueue

	Priority Priority

	// ArgOwner/ArgAux are the two conventional argument words: owner and
	// auxiliary payload.
	ArgOwner any
	ArgAux   Signal

	Handler    ActionHandler
	Trigger    ActionTrigger
	// OnReleased is called whenever the action is unlinked from whatever
	// queue it was a member of, with that queue as an argument so the hook
	// can distinguish "released from my pending-signal queue" from "released
	// by user code" (original_source/include/action.h's
	// action_released_callback(action, queue)).
	OnReleased func(a *Action, fromQueue *ActionQueue)

	dispose func()

	// signalOwner is set when this Action backs an ActionSignal, letting
	// Process.Wait's pending-queue dispatch loop recover signal-level
	// handler/on_handled behavior from a bare *Action.
	signalOwner *ActionSignal
}

// NewAction registers a new Action with the given trigger and optional
// handler. trigger must not be nil.
func NewAction(trigger ActionTrigger, handler ActionHandler) (*Action, error) {
	if trigger == nil {
		return nil, argErr("NewAction", "trigger must not be nil")
	}
	return &Action{Trigger: trigger, Handler: handler}, nil
}

// InQueue reports whether the action currently belongs to some queue.
func (a *Action) InQueue() bool {
	return a.queue != nil
}

// Queue returns the queue the action currently belongs to, or nil.
func (a *Action) Queue() *ActionQueue {
	return a.queue
}

// doTrigger invokes the action's trigger function, or the disposed
// resource-access stub if the action has been disposed.
func (a *Action) doTrigger(signal Signal) Signal {
	if a.Trigger == nil {
		return SignalDisposedResourceAccess
	}
	return a.Trigger(a, signal)
}

// defaultTrigger is the release-from-queue trigger Mutex uses for its own
// Action (Semaphore and Event install their own triggers): it simply
// detaches the action from whatever queue it is in.
func defaultTrigger(a *Action, _ Signal) Signal {
	a.releaseFromQueue()
	return SignalSuccess
}

// releaseFromQueue detaches a from its queue (if any), invoking the queue's
// on-released hook and re-deriving cached head priority / head-priority-
// changed hook as needed. Must be called with Kernel.mu held (every caller is
// itself a kernel-entry-point or is already running under the lock via
// ActionQueue's own methods).
func (a *Action) releaseFromQueue() {
	q := a.queue
	if q == nil {
		return
	}
	q.removeLocked(a)
}

// Dispose permanently detaches the action from any queue and clears its
// operation pointers so that any further use is detectable and non-fatal: it
// returns SignalDisposedResourceAccess instead of panicking or corrupting
// state. Per spec.md §9's conservative resolution of the on_released lifetime
// question, OnReleased is cleared here (before the stub swap) so no hook can
// run against already-disposed caller state.
func (a *Action) Dispose() {
	a.releaseFromQueue()
	a.OnReleased = nil
	a.Handler = nil
	a.Trigger = func(*Action, Signal) Signal { return SignalDisposedResourceAccess }
	if a.dispose != nil {
		d := a.dispose
		a.dispose = nil
		d()
	}
}

// setPriorityLocked implements priorityTarget for a bare Action: it just
// re-positions the action within its current queue, if any.
func (a *Action) setPriorityLocked(_ *Kernel, p Priority) {
	if a.queue == nil {
		a.Priority = p
		return
	}
	a.queue.setActionPriorityLocked(a, p)
}
