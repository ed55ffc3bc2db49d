package primeros

import "sync/atomic"

var processIDSeq atomic.Int64

// ProcessConfig configures a new Process at creation, mirroring
// Process_create_config_t (original_source/include/process.h) minus the
// stack-allocation fields, which Go's goroutine stacks make moot.
type ProcessConfig struct {
	// Priority is the process's original (resting) priority.
	Priority Priority
	// ScheduleConfig seeds the process's schedule config (a floor applied
	// until the next blocking call or Yield).
	ScheduleConfig ScheduleConfig
	// ExitHook runs after the process has fully exited (after its on-exit
	// and pending-signal queues have been closed), mirroring
	// process_current_set_exit_hook.
	ExitHook func(code Signal)
}

// Process is the kernel's unit of scheduling: the Go rendering of
// Process_control_block_t. Its entry function runs on its own goroutine,
// gated by resume so that only one process notionally "holds the CPU" at a
// time (SPEC_FULL §2's token protocol — not true preemption).
type Process struct {
	k  *Kernel
	id int64

	action *Action

	entry func(p *Process) Signal

	originalPriority Priority
	scheduleConfig   ScheduleConfig

	exitCode Signal
	alive    bool

	waiting            bool
	blockedStateSignal Signal

	onExit  *ActionQueue // mutexes owned + processes waiting on this process's exit
	pending *ActionQueue // pending ActionSignals awaiting dispatch in Wait

	resume chan struct{}

	ownedResources []func()

	exitHook func(code Signal)
}

// NewProcess registers a new process and starts its goroutine, which blocks
// immediately until the process is first scheduled (via Kernel.Schedule) and
// granted the CPU token. entry must not be nil.
func NewProcess(k *Kernel, cfg ProcessConfig, entry func(p *Process) Signal) (*Process, error) {
	if entry == nil {
		return nil, argErr("NewProcess", "entry must not be nil")
	}

	p := &Process{
		k:                k,
		id:               processIDSeq.Add(1),
		entry:            entry,
		originalPriority: cfg.Priority,
		scheduleConfig:   cfg.ScheduleConfig,
		exitCode:         SignalExit,
		alive:            true,
		resume:           make(chan struct{}, 1),
		exitHook:         cfg.ExitHook,
	}

	a, _ := NewAction(func(a *Action, signal Signal) Signal {
		k.scheduleHandler(p, signal)
		return SignalSuccess
	}, nil)
	a.Priority = cfg.Priority
	a.ArgOwner = p
	p.action = a

	p.onExit = NewSortedActionQueue(k, true,
		WithOwner(p),
		WithOnHeadPriorityChanged(func(newPriority Priority) {
			k.schedulableStateResetLocked(p, newPriority)
		}),
	)
	p.pending = NewSortedActionQueue(k, true,
		WithOwner(p),
		WithOnHeadPriorityChanged(func(newPriority Priority) {
			k.schedulableStateResetLocked(p, newPriority)
		}),
	)

	go p.run()

	return p, nil
}

func (p *Process) run() {
	<-p.resume
	code := p.entry(p)
	p.Exit(code)
}

// ID returns a unique, process-lifetime-stable identifier, useful for
// logging/test assertions; it carries no scheduling significance.
func (p *Process) ID() int64 { return p.id }

// Alive reports whether the process has not yet exited.
func (p *Process) Alive() bool {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.alive
}

// Priority returns the process's current effective (sortable) priority.
func (p *Process) Priority() Priority {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.action.Priority
}

// OriginalPriority returns the priority the process was created with.
func (p *Process) OriginalPriority() Priority { return p.originalPriority }

// AddResource registers a cleanup function to be run, in reverse-
// registration order, when the process exits. A no-op unless resource
// management is enabled on the Kernel (WithResourceManagement).
func (p *Process) AddResource(dispose func()) {
	if dispose == nil {
		return
	}
	k := p.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.resourceManagement || !p.alive {
		return
	}
	p.ownedResources = append(p.ownedResources, dispose)
}

// setPriorityLocked implements priorityTarget for Process, delegating to
// whatever queue the process's action currently occupies (runnable, a
// mutex's wait queue, another process's on-exit queue, an event's
// subscription list, ...).
func (p *Process) setPriorityLocked(_ *Kernel, priority Priority) {
	p.action.setPriorityLocked(p.k, priority)
}

// Wait is the scheduler's central dispatch loop (original_source/include
// /scheduler.h's wait()): it drains the process's pending-signal queue,
// invoking each signal's handler and on_handled hook in turn, and returns as
// soon as any handler returns false. If the pending queue is empty it blocks
// until a signal arrives or timeout elapses. A nil timeout blocks
// indefinitely.
func (p *Process) Wait(timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	k := p.k
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.waitLocked(p, timeout, cfg)
}

func (k *Kernel) waitLocked(p *Process, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	if timeout != nil && k.timing == nil {
		return SignalInvalidState
	}
	if cfg != nil {
		p.scheduleConfig = *cfg
	}

	var timeoutAction *Action
	if timeout != nil {
		timeoutAction = k.timing.armLocked(p, *timeout)
	}
	defer func() {
		if timeoutAction != nil {
			timeoutAction.Dispose()
		}
	}()

	for {
		for {
			a := p.pending.Head()
			if a == nil {
				break
			}
			sig := a.signalOwner
			input := a.ArgAux
			priority := a.Priority

			var keepWaiting bool
			if sig != nil && sig.handler != nil {
				keepWaiting = sig.handler(sig.owner, input)
			} else {
				keepWaiting = true
			}

			keepPending := true
			if sig != nil && sig.OnHandled != nil {
				keepPending = sig.OnHandled(sig)
			}

			// keep_priority_while_handled ratchet: raise the schedule-config
			// floor before releasing the action, so the head-priority-changed
			// hook triggered by the release below already sees it.
			if sig != nil && sig.keepPriorityWhileHandled && priority > p.scheduleConfig.Priority {
				p.scheduleConfig.Priority = priority
			}

			if !keepPending {
				p.pending.Remove(a)
			}

			if !keepWaiting {
				return input
			}
		}

		p.waiting = true
		k.runnable.Remove(p.action)
		k.contextSwitchTriggerLocked()
		k.blockLocked(p)
		p.waiting = false

		if p.blockedStateSignal == SignalTimeout {
			return SignalTimeout
		}
	}
}

// blockLocked releases mu, blocks the calling goroutine on p's CPU token,
// then reacquires mu. The caller's critical section resumes exactly where
// it left off; this is the sole point at which Kernel.mu is released while a
// kernel operation is logically "in progress" (SPEC_FULL §2).
func (k *Kernel) blockLocked(p *Process) {
	k.mu.Unlock()
	<-p.resume
	k.mu.Lock()
}

// WaitFor blocks until target exits (or timeout elapses), returning target's
// exit code (or the exit code under which it was killed). If target has
// already exited, it returns SignalExit without blocking.
func (p *Process) WaitFor(target *Process, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	if target == p {
		return SignalInvalidArgument
	}
	k := p.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !target.alive {
		return SignalExit
	}
	if cfg != nil {
		p.scheduleConfig = *cfg
	}
	return k.suspendLocked(p, true, target.onExit, timeout, cfg)
}

// WaitForAsync registers action to be triggered (with target's exit code)
// when target exits, without blocking the calling process. Returns false if
// target has already exited (action is triggered synchronously with
// SignalDisposedResourceAccess in that case).
func (p *Process) WaitForAsync(target *Process, action *Action) bool {
	k := p.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !target.alive {
		action.doTrigger(SignalDisposedResourceAccess)
		return false
	}
	target.onExit.Insert(action)
	return true
}

// Kill forcibly terminates target (running any owned-resource cleanup and
// releasing anything it held) and blocks the calling process until the kill
// has fully completed.
func (p *Process) Kill(target *Process) {
	k := p.k
	k.mu.Lock()
	if target.alive {
		target.exitCode = SignalDisposedResourceAccess
		k.disposeProcessLocked(target)
	}
	k.mu.Unlock()
	p.WaitFor(target, nil, nil)
}

// Exit terminates the calling process with the given exit code, waking
// everything waiting on its on-exit and pending-signal queues. Exit returns
// to its caller once that cascade has run; the process's own goroutine calls
// it when the entry function returns, and then terminates.
func (p *Process) Exit(code Signal) {
	k := p.k
	k.mu.Lock()
	p.exitCode = code
	k.disposeProcessLocked(p)
	k.mu.Unlock()
}

// disposeProcessLocked performs the full exit cascade (src/process.c's
// _process_release): release owned resources (reverse order), close the
// on-exit queue (auto-unlocking owned mutexes and waking processes blocked
// in WaitFor), close the pending-signal queue, detach from whatever queue
// the process itself occupies, and finally hand off the CPU token.
func (k *Kernel) disposeProcessLocked(p *Process) {
	if !p.alive {
		return
	}
	p.alive = false

	for i := len(p.ownedResources) - 1; i >= 0; i-- {
		p.ownedResources[i]()
	}
	p.ownedResources = nil

	p.onExit.DisableHeadPriorityInheritance()
	p.onExit.Close(p.exitCode)
	p.pending.DisableHeadPriorityInheritance()
	p.pending.Close(p.exitCode)

	p.action.Trigger = func(*Action, Signal) Signal { return SignalDisposedResourceAccess }
	p.action.releaseFromQueue()

	if k.running == p {
		k.running = nil
	}
	k.contextSwitchTriggerLocked()

	if p.exitHook != nil {
		p.exitHook(p.exitCode)
	}
}

// suspendLocked is the scheduler's generic blocking primitive (scheduler.h's
// suspend()): if condition holds, p is moved from the runnable queue into
// queue, blocked on its CPU token until released (by queue-specific wakeup
// or timeout), and p.blockedStateSignal is returned. If condition is false,
// SignalSuccess is returned immediately without blocking.
func (k *Kernel) suspendLocked(p *Process, condition bool, queue *ActionQueue, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	if !condition {
		return SignalSuccess
	}
	if timeout != nil && k.timing == nil {
		return SignalInvalidState
	}
	if cfg != nil {
		p.scheduleConfig = *cfg
	}

	queue.Insert(p.action)

	var timeoutAction *Action
	if timeout != nil {
		timeoutAction = k.timing.armLocked(p, *timeout)
	}

	k.contextSwitchTriggerLocked()
	k.blockLocked(p)

	if timeoutAction != nil {
		timeoutAction.Dispose()
	}

	return p.blockedStateSignal
}

// Suspend is suspendLocked's exported, self-locking form.
func (k *Kernel) Suspend(p *Process, condition bool, queue *ActionQueue, timeout *TimeUnit, cfg *ScheduleConfig) Signal {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.suspendLocked(p, condition, queue, timeout, cfg)
}
