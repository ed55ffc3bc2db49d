package primeros

import "sync"

// Kernel is the process-wide kernel context: the Go rendering of the
// original's module-global mutable state (running_process, the runnable
// queue, the signal processor, the time-tracking refcount, ...), wrapped in a
// single struct per spec.md's Design Notes ("Global mutable state").
//
// Kernel.mu is the single critical section standing in for
// interrupt_suspend/interrupt_restore (SPEC_FULL §2): every exported kernel
// operation acquires it once at the top and releases it before returning or
// before blocking on a process's resume channel.
type Kernel struct {
	mu sync.Mutex

	trampoline priorityTrampoline

	runnable *ActionQueue // sorted, strict — the scheduler's runnable queue
	running  *Process

	signalProcessor *Process

	timing *TimingWheel

	wakeupEvent        *Event
	wakeupEventEnabled bool

	resourceManagement bool

	logger Logger

	state runState
}

// KernelOption configures a Kernel at construction (options.go).
type KernelOption func(*kernelOptions)

// New constructs a Kernel. The kernel is inert until Start is called.
func New(opts ...KernelOption) *Kernel {
	o := resolveKernelOptions(opts)
	k := &Kernel{
		resourceManagement: o.resourceManagement,
		logger:             o.logger,
		wakeupEventEnabled: o.wakeupEventEnabled,
	}
	k.runnable = NewSortedActionQueue(k, true, WithOwner("runnable"))
	if k.logger == nil {
		k.logger = defaultLogger
	}
	if o.timingEnabled {
		k.timing = newTimingWheel(k, o.timerChannel)
	}
	return k
}

// StartConfig configures the cold-boot composition performed by Start,
// mirroring kernel_start's parameter list (spec.md §6).
type StartConfig struct {
	// InitPriority is the priority the init process is registered with.
	InitPriority Priority
	// InitEntry is the init process's entry point, run with the init
	// process as the running process.
	InitEntry func(p *Process) Signal
	// SysInit runs synchronously before the init process's own entry point
	// is scheduled to run.
	SysInit func(k *Kernel) error
	// SignalProcessorBufferSize is vestigial: Start does not read it, and
	// the signal processor's pending-signal queue has no capacity bound.
	SignalProcessorBufferSize int
	// Wakeup, when true, performs the "resuming persistent state" path
	// instead of a full cold boot: the wakeup event (if configured) is
	// triggered and nothing else is re-initialized.
	Wakeup bool
}

// Start performs the kernel_start composition root (spec.md §6): on cold
// boot it brings up and schedules the signal processor, registers the init
// process, runs SysInit, starts the timing subsystem (if configured) and
// finally schedules the init process. SysInit is a plain call: objects it
// creates are not registered as resources of the init process. A second
// cold-boot Start returns an error. On Wakeup it only re-triggers the
// wakeup event, and is accepted whether or not the kernel has already been
// started. Unlike kernel_start, Start returns once the relevant
// goroutines are launched rather than blocking forever — the caller's own
// goroutine already plays the role of "never returns on cold boot" by
// calling Process.Wait on whatever process it cares to observe.
func (k *Kernel) Start(cfg StartConfig) (*Process, error) {
	if cfg.Wakeup {
		k.mu.Lock()
		wakeupEvent := k.wakeupEvent
		k.mu.Unlock()
		if wakeupEvent != nil {
			wakeupEvent.Signal(SignalSuccess)
		}
		return nil, nil
	}

	if !k.state.TryTransition(kernelNotStarted, kernelRunning) {
		return nil, argErr("Start", "kernel already started")
	}

	signalProc, err := NewProcess(k, ProcessConfig{Priority: 1}, func(p *Process) Signal {
		return p.Wait(nil, nil)
	})
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.signalProcessor = signalProc
	if k.wakeupEventEnabled {
		k.wakeupEvent = NewEvent(k, signalProc)
	}
	k.mu.Unlock()
	k.Schedule(signalProc)

	initProc, err := NewProcess(k, ProcessConfig{Priority: cfg.InitPriority}, cfg.InitEntry)
	if err != nil {
		return nil, err
	}

	if cfg.SysInit != nil {
		if err := cfg.SysInit(k); err != nil {
			return nil, err
		}
	}

	if k.timing != nil {
		k.timing.start()
	}

	k.Schedule(initProc)

	return initProc, nil
}

// Halt marks the kernel stopped. Nothing inside the kernel calls it: the
// exit or disposal of the init process does not halt the kernel by itself.
// Halt does not terminate the Go process either, since a library has no
// business calling os.Exit — callers observing Halt should treat it as a
// panic-worthy condition in their own main.
func (k *Kernel) Halt() {
	k.state.Store(kernelStopped)
}

// Stopped reports whether Halt has been called.
func (k *Kernel) Stopped() bool {
	return k.state.Load() == kernelStopped
}

// Running returns the currently running process, or nil if none.
func (k *Kernel) Running() *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// SignalProcessor returns the kernel's general-purpose execution context,
// brought up by Start, used by convention as the dispatch context for
// bookkeeping signals (Semaphore and Event construction when a caller has no
// more specific context of its own, and the wakeup event). Returns nil
// before Start has run.
func (k *Kernel) SignalProcessor() *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.signalProcessor
}

// WakeupEvent returns the kernel's wakeup event if WithWakeupEvent was
// supplied to New and Start has run, or nil otherwise.
func (k *Kernel) WakeupEvent() *Event {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.wakeupEvent
}

// contextSwitchTriggerLocked hands the CPU token to the runnable queue's
// head if it differs from the process currently holding it. Must be called
// with mu held; safe to call even while mu is about to be released, since it
// never blocks (the token channel has capacity 1 and is drained only by the
// owning process's own goroutine).
func (k *Kernel) contextSwitchTriggerLocked() {
	var newHead *Process
	if a := k.runnable.Head(); a != nil {
		newHead = a.ArgOwner.(*Process)
	}
	if newHead == k.running {
		return
	}
	k.running = newHead
	if newHead != nil {
		select {
		case newHead.resume <- struct{}{}:
		default:
		}
	}
}
