package primeros

// ScheduleConfig carries the "lowest priority to apply while scheduled"
// hint threaded through Wait/Suspend/Lock/Acquire calls, mirroring
// Schedule_config_t (original_source/include/scheduler.h).
type ScheduleConfig struct {
	Priority Priority
}

func scheduleConfigPriority(cfg *ScheduleConfig) Priority {
	if cfg == nil {
		return 0
	}
	return cfg.Priority
}

// Schedule inserts process into the runnable queue (removing it from
// whatever queue it currently occupies first) and triggers a context switch
// if it becomes more eligible to run than the currently running process.
// Grounded on scheduler.c's schedule(): "insert process to runnable process
// queue, initiate context switch if process has higher priority than running
// process". No-op if the process has already exited.
func (k *Kernel) Schedule(p *Process) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.scheduleLocked(p)
}

func (k *Kernel) scheduleLocked(p *Process) {
	if !p.alive {
		return
	}
	k.runnable.Insert(p.action)
	k.contextSwitchTriggerLocked()
}

// scheduleHandler is the generic "wake up target process with signal"
// primitive (original_source/include/scheduler.h's schedule_handler,
// documented there as usable as either an action handler or an action
// trigger). It is called from the Trigger of any Action whose sole purpose
// is to resume a specific suspended process — each process's own action, and
// the TimedSignal action armed by Wait/Suspend when a timeout is given.
func (k *Kernel) scheduleHandler(target *Process, signal Signal) bool {
	target.blockedStateSignal = signal
	k.scheduleLocked(target)
	return false
}

// Yield clears the running process's schedule config, resets its priority
// to its resting level (original priority or inherited priority from its
// on-exit/pending-signal queues — whichever is highest) and places it
// behind every other runnable process of the same resulting priority. If
// some other process is now head of the runnable queue, the CPU token passes
// to it and Yield blocks until the caller is granted the token again.
// Grounded on scheduler.h's yield()/schedulable_state_reset().
func (k *Kernel) Yield() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running == nil {
		return
	}
	p := k.running
	k.schedulableStateResetLocked(p, PriorityReset)
	if k.running != p {
		k.blockLocked(p)
	}
}

// SchedulableStateReset is schedulableStateResetLocked's exported form (the
// locked form is what process.go's exit-action/pending-signal queue hooks and
// Yield call). priorityLowest is either a concrete floor or the PriorityReset
// sentinel (meaning: drop any schedule-config override and force
// last-among-equals placement).
func (k *Kernel) SchedulableStateReset(p *Process, priorityLowest Priority) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.schedulableStateResetLocked(p, priorityLowest)
}

func (k *Kernel) schedulableStateResetLocked(p *Process, priorityLowest Priority) {
	newPriority := p.originalPriority

	if priorityLowest == PriorityReset {
		p.scheduleConfig = ScheduleConfig{}
	} else if p.scheduleConfig.Priority > newPriority {
		newPriority = p.scheduleConfig.Priority
	}

	if priorityLowest != PriorityReset && priorityLowest > newPriority {
		newPriority = priorityLowest
	}

	// always inherit priority of the highest-priority mutex owned, and of
	// the highest-priority unhandled pending signal.
	if !p.onExit.Empty() && p.onExit.HeadPriority() > newPriority {
		newPriority = p.onExit.HeadPriority()
	}
	if !p.pending.Empty() && p.pending.HeadPriority() > newPriority {
		newPriority = p.pending.HeadPriority()
	}

	if priorityLowest == PriorityReset || newPriority != p.action.Priority {
		k.setPriority(p.action, newPriority)
	}

	k.contextSwitchTriggerLocked()
}
