package primeros

// Mutex is a reentrant lock with priority inheritance (original_source
// /include/sync/mutex.h): the current owner's effective priority is raised to
// at least the priority of the highest-priority waiter, by placing the
// mutex's own Action into the owner's on-exit queue (the same queue that
// holds processes waiting for the owner to exit — see process.go's doc
// comment on Process.onExit). Releasing the mutex hands it directly to the
// highest-priority waiter, never back to the scheduler in between.
type Mutex struct {
	k *Kernel

	action *Action
	queue  *ActionQueue // waiters, sorted + strict

	owner    *Process
	nesting  uint16
	disposed bool
}

// NewMutex registers a new, initially-unlocked Mutex.
func NewMutex(k *Kernel) *Mutex {
	m := &Mutex{k: k}

	a, _ := NewAction(defaultTrigger, nil)
	a.OnReleased = func(*Action, *ActionQueue) { m.onReleased() }
	m.action = a

	m.queue = NewSortedActionQueue(k, true,
		WithOwner(m),
		WithOnHeadPriorityChanged(func(p Priority) { k.setPriority(m.action, p) }),
	)

	return m
}

// onReleased runs whenever the mutex's own Action is unlinked from an
// owner's on-exit queue (src/sync/mutex.c's _on_mutex_released): it hands the
// mutex directly to the highest-priority waiter, if any, or resets to the
// unlocked state.
func (m *Mutex) onReleased() {
	if m.disposed {
		return
	}

	next := m.queue.Pop()
	if next == nil {
		m.owner = nil
		m.nesting = 0
		return
	}

	p := next.ArgOwner.(*Process)
	m.owner = p
	m.nesting = 1
	p.onExit.Insert(m.action)
	m.k.scheduleHandler(p, MutexSuccess)
}

// tryLockLocked implements try_lock. Must be called with Kernel.mu held.
func (m *Mutex) tryLockLocked(p *Process) Signal {
	if m.disposed {
		return SignalDisposedResourceAccess
	}
	switch {
	case m.owner == nil:
		m.owner = p
		m.nesting = 1
		p.onExit.Insert(m.action)
	case m.owner == p:
		m.nesting++
	default:
		return MutexLocked
	}
	return MutexSuccess
}

// TryLock acquires the mutex without blocking, returning MutexLocked if some
// other process currently owns it and SignalDisposedResourceAccess if the
// mutex has been disposed.
func (m *Mutex) TryLock(p *Process) Signal {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.tryLockLocked(p)
}

// Lock acquires the mutex, blocking until available (or timeout elapses, or
// the mutex is disposed while waiting). cfg seeds the waiting process's
// schedule config before it joins the wait queue, per mutex.h's lock() doc:
// if this process ends up highest priority in the queue, the mutex (and
// transitively its owner) inherits that priority.
func (m *Mutex) Lock(p *Process, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()

	res := m.tryLockLocked(p)
	if res != MutexLocked {
		// acquired immediately, or the mutex is disposed — either way there
		// is nothing to wait for.
		return res
	}

	return k.suspendLocked(p, true, m.queue, timeout, cfg)
}

// Unlock releases one nesting level of the calling process's ownership,
// handing the mutex to the next waiter once the nesting count reaches zero.
// Returns MutexInvalidOwner if p does not currently own the mutex.
func (m *Mutex) Unlock(p *Process) Signal {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if m.disposed {
		return SignalDisposedResourceAccess
	}
	if m.owner != p {
		return MutexInvalidOwner
	}

	m.nesting--
	if m.nesting == 0 {
		m.action.releaseFromQueue()
		k.schedulableStateResetLocked(p, PriorityReset)
	}
	return MutexSuccess
}

// Owner returns the mutex's current owner, or nil if unlocked.
func (m *Mutex) Owner() *Process {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.owner
}

// Priority returns the mutex's current (inherited) priority: the priority of
// the highest-priority waiter, or 0 if its wait queue is empty.
func (m *Mutex) Priority() Priority {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.action.Priority
}

// Dispose permanently invalidates the mutex, releasing every waiting process
// with SignalDisposedResourceAccess and detaching it from its owner's on-exit
// queue. Further Lock/TryLock/Unlock calls return SignalDisposedResourceAccess.
func (m *Mutex) Dispose() {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true

	m.queue.DisableHeadPriorityInheritance()
	m.queue.Close(SignalDisposedResourceAccess)

	m.action.Dispose()
}
