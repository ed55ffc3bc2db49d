package primeros

// kernelOptions holds resolved Kernel construction configuration. The
// functional-options pattern below is copied structurally from
// eventloop/options.go's LoopOption/loopOptionImpl.
type kernelOptions struct {
	resourceManagement bool
	logger             Logger
	timingEnabled      bool
	timerChannel       TimerChannel
	wakeupEventEnabled bool
}

func resolveKernelOptions(opts []KernelOption) *kernelOptions {
	o := &kernelOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(o)
	}
	return o
}

// WithResourceManagement enables the per-process owned-resource list so that
// resources registered under a process are automatically disposed, in
// reverse-allocation order, on that process's exit (spec.md §5 "Resource
// model").
func WithResourceManagement(enabled bool) KernelOption {
	return func(o *kernelOptions) { o.resourceManagement = enabled }
}

// WithLogger installs a structured Logger (see logging.go). If not supplied,
// New installs the package's defaultLogger.
func WithLogger(logger Logger) KernelOption {
	return func(o *kernelOptions) { o.logger = logger }
}

// WithTiming brings up the timed-signal subsystem (timedsignal.go) on the
// given hardware timer channel (a nil channel selects
// NewSystemTimerChannel). Without this option, any API built on timeouts
// (Wait/Suspend and the calls built on them, with a non-nil timeout) returns
// SignalInvalidState, per spec.md §5's "Cancellation and timeout", and a
// TimedSignal has no wheel to be armed on.
func WithTiming(timer TimerChannel) KernelOption {
	return func(o *kernelOptions) {
		o.timingEnabled = true
		o.timerChannel = timer
	}
}

// WithWakeupEvent mirrors the original's __WAKEUP_EVENT_ENABLE__ build
// switch: Start constructs the kernel's wakeup event (against the signal
// processor) as part of cold boot, and a subsequent Start(StartConfig{Wakeup:
// true}) call triggers it instead of performing a full cold boot. Without
// this option, Kernel.WakeupEvent returns nil and a Wakeup-mode Start is a
// no-op.
func WithWakeupEvent() KernelOption {
	return func(o *kernelOptions) { o.wakeupEventEnabled = true }
}
