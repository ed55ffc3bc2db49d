package primeros

// Priority is an unsigned sortable priority level. Higher value means higher
// priority; 0 is lowest.
type Priority uint16

// PriorityReset is a reserved sentinel meaning "place this item last among
// equals" when passed to Kernel.SchedulableStateReset (Yield passes it too).
const PriorityReset Priority = 0xFFFF

func maxPriority(values ...Priority) Priority {
	var m Priority
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// priorityTarget is anything whose priority can be changed via the
// trampolined set-priority protocol: an Action sitting in a queue, or a
// Process (whose "priority" is derived, see process.go).
type priorityTarget interface {
	setPriorityLocked(k *Kernel, p Priority)
}

// priorityRequest is the single pending trampoline slot.
type priorityRequest struct {
	target priorityTarget
	value  Priority
	valid  bool
}

// priorityTrampoline bounds the stack depth of the priority-change cascade
// described in spec.md §4.2: a mutex's priority change can ripple into its
// owner's on-exit queue, which can change the owner's effective priority,
// which can ripple into whatever queue the owner itself is waiting in, and so
// on. Rather than recursing, the first call to setPriority takes the reentry
// guard and executes the change directly; any set-priority request issued
// from within a hook run during that change is *not* executed recursively —
// it is written into this one-slot buffer and drained by the outer caller's
// loop. This is the same trampoline shape used by any bounded-depth cascade
// of this kind; there is no equivalent pattern in the teacher's stack (its
// priority-like concerns, e.g. timer heap reordering, are never recursive),
// so this file has no teacher grounding beyond the general technique named in
// spec.md's own Design Notes.
type priorityTrampoline struct {
	active  bool
	pending priorityRequest
}

// setPriority is the sole entry point of the trampoline. Must be called with
// Kernel.mu held. It is safe to call reentrantly (from within a hook that the
// outer call is currently running) any number of times, but the protocol
// invariant (spec.md §4.2) is that at most one further request may be issued
// per hook invocation; issuing more than one overwrites the pending slot,
// which is a programming error the caller is responsible for avoiding.
func (k *Kernel) setPriority(target priorityTarget, value Priority) {
	t := &k.trampoline
	if t.active {
		t.pending = priorityRequest{target: target, value: value, valid: true}
		return
	}
	t.active = true
	defer func() { t.active = false }()

	target.setPriorityLocked(k, value)

	for t.pending.valid {
		req := t.pending
		t.pending = priorityRequest{}
		req.target.setPriorityLocked(k, req.value)
	}
}
