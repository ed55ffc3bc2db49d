package primeros

import "sync/atomic"

// kernelState is the Kernel's own coarse lifecycle state machine, adapted
// from eventloop/state.go's FastState: a small atomic CAS state machine
// rather than a mutex-guarded enum, since lifecycle transitions (NotStarted →
// Running → Stopped) are far rarer and simpler than the interrupt-disable
// critical sections Kernel.mu protects, but still benefit from lock-free
// transition checks from arbitrary goroutines (e.g. Kernel.Halt called from
// any process's goroutine).
type kernelState uint32

const (
	kernelNotStarted kernelState = iota
	kernelRunning
	kernelStopped
)

func (s kernelState) String() string {
	switch s {
	case kernelNotStarted:
		return "NotStarted"
	case kernelRunning:
		return "Running"
	case kernelStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type runState struct {
	v atomic.Uint32
}

func (s *runState) Load() kernelState { return kernelState(s.v.Load()) }

func (s *runState) Store(v kernelState) { s.v.Store(uint32(v)) }

func (s *runState) TryTransition(from, to kernelState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
