package primeros

import "fmt"

// Signal is a word-sized value passed between triggers and handlers. It also
// serves as a process exit code and as the kernel's general return-code space.
type Signal int32

// Well-known signal values (spec.md §3, §6).
const (
	SignalSuccess                Signal = 0x0000
	SignalInvalidArgument        Signal = 0x4000
	SignalInvalidState           Signal = 0x2000
	SignalDisposedResourceAccess Signal = -9
	SignalTimeout                Signal = -8

	// SignalExit is returned by Process.WaitFor when the target had already
	// terminated before the call was made.
	SignalExit Signal = -1
)

// Per-module specific return codes (spec.md §6).
const (
	MutexSuccess       Signal = SignalSuccess
	MutexLocked        Signal = 1
	MutexInvalidOwner  Signal = 2
	SemaphoreSuccess   Signal = SignalSuccess
	SemaphoreNoPermits Signal = 1
)

// ArgumentError is returned by New*/Register constructors when called with an
// invalid argument. Construction happens outside interrupt context, so unlike
// runtime kernel operations (which return a Signal, never an error) it is
// idiomatic Go for constructors to return an error.
type ArgumentError struct {
	Op      string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("primeros: %s: %s", e.Op, e.Message)
}

func argErr(op, format string, a ...any) error {
	return &ArgumentError{Op: op, Message: fmt.Sprintf(format, a...)}
}
