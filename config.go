package primeros

// Named constants carried over from the original's compile-time
// configuration header (original_source's platform config), kept as runtime
// constants since this module has no build-time configuration story.
const (
	// TimingQueueHandlerPriority is the original's reserved priority for its
	// timing-queue handler, near the top of the priority space. The timing
	// wheel in this module has no dispatch action of its own and does not
	// use this value: expired signals are triggered directly from the timer
	// callback.
	TimingQueueHandlerPriority Priority = 0xFF00

	// MaxSignalDelayHours is the original's bound on how far into the future
	// a TimedSignal may be armed, its guard against the 15-bit hour
	// wraparound (TimeUnit.Hours) being ambiguous across more than this span.
	// TimedSignal.SetDelay and Schedule do not check delays against it.
	MaxSignalDelayHours uint16 = 0x7F00

	// DefaultSignalProcessorBufferSize is vestigial: nothing reads it, and
	// the signal processor's pending-signal queue has no capacity bound.
	DefaultSignalProcessorBufferSize = 32
)
