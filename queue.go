package primeros

// ActionQueue is an interrupt-safe (in this module: Kernel.mu-protected)
// queue of Actions. Two variants are selected at construction:
//
//   - sorted: orders descending by Action.Priority, FIFO among equals
//     (insertion among equals appends after the existing run).
//   - FIFO: appends unconditionally, ignoring priority.
//
// Sorted queues additionally choose strict vs lax re-sorting behavior for
// SetActionPriority calls made while TriggerAll is iterating (spec.md §4.1).
type ActionQueue struct {
	k *Kernel

	head, tail *Action
	iterator   *Action
	closed     bool

	sorted bool
	strict bool

	owner any

	// onHeadPriorityChanged fires whenever the queue's cached head priority
	// changes (insert/pop/SetActionPriority). Only meaningful for sorted
	// queues; never invoked for FIFO queues.
	onHeadPriorityChanged func(p Priority)
	// onActionReleased fires whenever any action is unlinked from this
	// queue, after the action's own OnReleased hook has run.
	onActionReleased func(a *Action)

	cachedHeadPriority Priority
}

// ActionQueueOption configures an ActionQueue at construction time.
type ActionQueueOption func(*ActionQueue)

// WithOwner attaches an owner back-reference to the queue (e.g. the Process
// or Mutex this queue belongs to).
func WithOwner(owner any) ActionQueueOption {
	return func(q *ActionQueue) { q.owner = owner }
}

// WithOnHeadPriorityChanged installs the queue's head-priority-changed hook.
func WithOnHeadPriorityChanged(fn func(p Priority)) ActionQueueOption {
	return func(q *ActionQueue) { q.onHeadPriorityChanged = fn }
}

// WithOnActionReleased installs the queue's on-action-released hook.
func WithOnActionReleased(fn func(a *Action)) ActionQueueOption {
	return func(q *ActionQueue) { q.onActionReleased = fn }
}

// NewSortedActionQueue creates a priority-sorted queue. strict selects the
// strict (vs lax) re-sorting policy for SetActionPriority during TriggerAll —
// see spec.md §4.1 for the exact tradeoff.
func NewSortedActionQueue(k *Kernel, strict bool, opts ...ActionQueueOption) *ActionQueue {
	q := &ActionQueue{k: k, sorted: true, strict: strict}
	for _, o := range opts {
		o(q)
	}
	return q
}

// NewFIFOActionQueue creates an unconditionally-appending queue.
func NewFIFOActionQueue(k *Kernel, opts ...ActionQueueOption) *ActionQueue {
	q := &ActionQueue{k: k}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Empty reports whether the queue currently has no members.
func (q *ActionQueue) Empty() bool { return q.head == nil }

// Owner returns the owner back-reference set via WithOwner, or nil.
func (q *ActionQueue) Owner() any { return q.owner }

// HeadPriority returns the cached head priority: the head action's priority,
// or 0 if the queue is empty (spec.md invariant 5).
func (q *ActionQueue) HeadPriority() Priority {
	if q.head == nil {
		return 0
	}
	return q.cachedHeadPriority
}

// Head returns the current head action without removing it, or nil.
func (q *ActionQueue) Head() *Action { return q.head }

// Insert links action into the queue at the correct position, releasing it
// from any prior queue first. Returns true iff the action became the new
// head. Must be called with Kernel.mu held.
func (q *ActionQueue) Insert(a *Action) bool {
	if a.queue != nil {
		a.queue.removeLocked(a)
	}
	if q.closed {
		return false
	}

	a.queue = q

	if q.head == nil {
		a.queuePrev, a.queueNext = nil, nil
		q.head, q.tail = a, a
	} else if !q.sorted {
		// FIFO: append unconditionally.
		a.queuePrev, a.queueNext = q.tail, nil
		q.tail.queueNext = a
		q.tail = a
	} else {
		q.linkSortedLocked(a)
	}

	q.refreshHeadPriority()
	return q.head == a
}

// linkSortedLocked splices a into a sorted queue's linked list at the correct
// descending position (FIFO among equals), assuming a is not currently linked
// anywhere. It does not touch a.queue, fire any hooks, or refresh the cached
// head priority — callers do that.
func (q *ActionQueue) linkSortedLocked(a *Action) {
	if q.head == nil {
		a.queuePrev, a.queueNext = nil, nil
		q.head, q.tail = a, a
		return
	}
	cur := q.head
	for cur != nil && cur.Priority >= a.Priority {
		cur = cur.queueNext
	}
	if cur == nil {
		a.queuePrev, a.queueNext = q.tail, nil
		q.tail.queueNext = a
		q.tail = a
	} else if cur == q.head {
		a.queuePrev, a.queueNext = nil, cur
		cur.queuePrev = a
		q.head = a
	} else {
		prev := cur.queuePrev
		a.queuePrev, a.queueNext = prev, cur
		prev.queueNext = a
		cur.queuePrev = a
	}
}

// unlinkLocked detaches a from the queue's linked list, advancing the
// iterator as removeLocked does, but without clearing a.queue or firing any
// release hooks — used when a is being repositioned within this same queue
// rather than actually leaving it.
func (q *ActionQueue) unlinkLocked(a *Action) {
	if q.iterator == a {
		q.iterator = a.queueNext
	}

	prev, next := a.queuePrev, a.queueNext
	if prev != nil {
		prev.queueNext = next
	} else {
		q.head = next
	}
	if next != nil {
		next.queuePrev = prev
	} else {
		q.tail = prev
	}
	a.queuePrev, a.queueNext = nil, nil
}

// Pop detaches and returns the head action, or nil if the queue is empty.
func (q *ActionQueue) Pop() *Action {
	a := q.head
	if a == nil {
		return nil
	}
	q.removeLocked(a)
	return a
}

// Remove detaches action from q, doing nothing if action is not a member of
// q (including when it belongs to some other queue).
func (q *ActionQueue) Remove(a *Action) {
	if a.queue == q {
		q.removeLocked(a)
	}
}

// removeLocked unlinks a from q, fixing up the iterator (so an in-progress
// TriggerAll continues from the removed action's original next neighbor),
// updating cached head priority, and invoking the release hooks.
func (q *ActionQueue) removeLocked(a *Action) {
	if q.iterator == a {
		q.iterator = a.queueNext
	}

	prev, next := a.queuePrev, a.queueNext
	if prev != nil {
		prev.queueNext = next
	} else {
		q.head = next
	}
	if next != nil {
		next.queuePrev = prev
	} else {
		q.tail = prev
	}
	a.queuePrev, a.queueNext, a.queue = nil, nil, nil

	q.refreshHeadPriority()

	if a.OnReleased != nil {
		hook := a.OnReleased
		hook(a, q)
	}
	if q.onActionReleased != nil {
		q.onActionReleased(a)
	}
}

// refreshHeadPriority recomputes cachedHeadPriority and fires
// onHeadPriorityChanged iff it changed. No-op for FIFO queues (they carry no
// priority ordering, per spec.md §4.1 the hook only applies to sorted
// queues).
func (q *ActionQueue) refreshHeadPriority() {
	if !q.sorted {
		return
	}
	newPriority := Priority(0)
	if q.head != nil {
		newPriority = q.head.Priority
	}
	if newPriority == q.cachedHeadPriority {
		return
	}
	q.cachedHeadPriority = newPriority
	if q.onHeadPriorityChanged != nil {
		q.onHeadPriorityChanged(newPriority)
	}
}

// setActionPriorityLocked changes a's priority in place, honoring the
// queue's strict/lax policy (spec.md §4.1). Returns true iff a is (still, or
// now) the head.
func (q *ActionQueue) setActionPriorityLocked(a *Action, p Priority) bool {
	if q.sorted && q.strict {
		// Strict: reposition within the linked list, possibly
		// skipping/re-visiting during TriggerAll (unlinkLocked advances the
		// iterator as if a were removed). This is a repositioning, not a
		// release: original_source's sorted_set_item_set_priority never
		// calls _release on a priority change, so OnReleased/
		// onActionReleased must not fire here — they fire solely from
		// pop()/explicit removal.
		q.unlinkLocked(a)
		a.Priority = p
		q.linkSortedLocked(a)
		q.refreshHeadPriority()
		return a == q.head
	}

	// Lax sorted, or FIFO: update in place without touching links, so the
	// action is visited exactly once by an in-progress TriggerAll even
	// though the queue may transiently violate sort order.
	a.Priority = p
	if a == q.head {
		q.refreshHeadPriority()
	}
	return a == q.head
}

// SetActionPriority changes the action's priority, preserving the queue's
// sorting policy. Returns true iff the action is the queue's head.
func (q *ActionQueue) SetActionPriority(a *Action, p Priority) bool {
	return q.setActionPriorityLocked(a, p)
}

// DisableHeadPriorityInheritance permanently clears the head-priority-changed
// hook, used during teardown (mutex/event/process disposal) once the queue's
// owner no longer exists to inherit anything.
func (q *ActionQueue) DisableHeadPriorityInheritance() {
	q.onHeadPriorityChanged = nil
}

// TriggerAll iterates from head to tail invoking each action's trigger with
// signal. Safe under concurrent mutation (spec.md §4.1): the iterator
// advances one step ahead of the action about to be triggered, so a trigger
// that removes its own action leaves the iterator pointing at the correct
// next neighbor, and no action already visited is re-triggered. An action
// inserted during iteration may or may not be visited depending on its
// position relative to the iterator.
func (q *ActionQueue) TriggerAll(signal Signal) {
	q.iterator = q.head
	for q.iterator != nil {
		cur := q.iterator
		q.iterator = cur.queueNext
		cur.doTrigger(signal)
	}
	q.iterator = nil
}

// Close performs a destructive final TriggerAll: Insert is permanently
// disabled first, then the head is repeatedly triggered until the queue is
// empty, forcibly removing any action whose trigger did not release it.
func (q *ActionQueue) Close(signal Signal) {
	q.closed = true
	for q.head != nil {
		a := q.head
		a.doTrigger(signal)
		if a.queue == q {
			q.removeLocked(a)
		}
	}
}
