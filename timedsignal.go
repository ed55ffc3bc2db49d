package primeros

import "container/heap"

// TimedSignal is a delayed or periodic ActionSignal (original_source/include
// /time.h's Timed_signal_t): scheduling it arms it against the Kernel's
// TimingWheel, which triggers it with SignalTimeout once its trigger time
// arrives. A periodic signal is automatically rearmed (trigger time += delay)
// each time it is handled, with a constant delay between triggers regardless
// of scheduling overhead.
type TimedSignal struct {
	*ActionSignal

	k     *Kernel
	wheel *TimingWheel

	delay       TimeUnit
	triggerTime TimeUnit
	periodic    bool

	heapIndex int // index in the wheel's heap, -1 when not armed
}

// NewTimedSignal registers a timed signal processed within context. It is
// inert until Schedule is called at least once (the delay must be set via
// SetDelay first).
func NewTimedSignal(k *Kernel, context *Process, handler SignalHandler, cfg ScheduleConfig, periodic bool) *TimedSignal {
	ts := &TimedSignal{k: k, wheel: k.timing, periodic: periodic, heapIndex: -1}
	ts.ActionSignal = NewActionSignal(k, context, nil, handler, cfg)

	baseReleased := ts.Action().OnReleased
	ts.Action().OnReleased = func(a *Action, origin *ActionQueue) {
		if baseReleased != nil {
			baseReleased(a, origin)
		}
		ts.onReleased(origin)
	}
	ts.ActionSignal.OnHandled = ts.onHandled
	ts.Action().dispose = func() {
		if ts.wheel != nil {
			ts.wheel.cancelLocked(ts)
		}
	}

	return ts
}

// SetDelay sets the (fixed) delay applied each time the signal is scheduled.
func (ts *TimedSignal) SetDelay(d TimeUnit) { ts.delay = d }

// Delay returns the signal's current delay.
func (ts *TimedSignal) Delay() TimeUnit { return ts.delay }

// TriggerTime returns the absolute time the signal is next due to fire. Only
// meaningful while the signal is armed.
func (ts *TimedSignal) TriggerTime() TimeUnit { return ts.triggerTime }

// Periodic reports whether the signal rearms itself on every handling.
func (ts *TimedSignal) Periodic() bool { return ts.periodic }

// SetPeriodic changes whether the signal rearms itself once handled,
// adjusting the wheel's time-tracking refcount if the signal is currently
// sitting in its context's pending queue awaiting handling (src/time.c's
// _set_periodic).
func (ts *TimedSignal) SetPeriodic(periodic bool) {
	if periodic == ts.periodic {
		return
	}
	if ts.Action().queue == ts.executionContext.pending {
		ts.wheel.trackCurrentTimeLocked(periodic)
	}
	ts.periodic = periodic
}

// Schedule (re)arms the signal: trigger time is set to now + delay, and any
// previous armed occurrence is replaced. Must be called with Kernel.mu held.
func (ts *TimedSignal) Schedule() {
	ts.triggerTime = ts.wheel.now().Add(ts.delay)
	ts.wheel.insertLocked(ts)
}

// onHandled implements the default ActionSignal.OnHandled for timed signals
// (src/time.c's _on_timed_signal_handled): one-shot signals are simply
// removed from the pending queue; periodic signals are rearmed for
// triggerTime + delay and likewise removed from the pending queue, since the
// wheel now owns them until the next fire.
func (ts *TimedSignal) onHandled(_ *ActionSignal) bool {
	if !ts.periodic {
		return false
	}
	ts.triggerTime = ts.triggerTime.Add(ts.delay)
	ts.wheel.insertLocked(ts)
	return false
}

// onReleased keeps the wheel's time-tracking refcount consistent: a periodic
// signal pulled out of its context's pending queue (handled, or released by
// user code before being handled) no longer requires the clock to be kept
// live on its behalf (src/time.c's _on_timed_signal_released).
func (ts *TimedSignal) onReleased(origin *ActionQueue) {
	if !ts.periodic || origin != ts.executionContext.pending {
		return
	}
	ts.wheel.trackCurrentTimeLocked(false)
}

// -------------------------------------------------------------------------------------

// timingHeap is a min-heap of armed TimedSignals ordered by trigger time,
// structured the same way as eventloop/loop.go's timerHeap, with index
// tracking added so an early-cancelled signal can be evicted in place.
type timingHeap []*TimedSignal

func (h timingHeap) Len() int { return len(h) }

func (h timingHeap) Less(i, j int) bool { return h[i].triggerTime.Before(h[j].triggerTime) }

func (h timingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *timingHeap) Push(x any) {
	ts := x.(*TimedSignal)
	ts.heapIndex = len(*h)
	*h = append(*h, ts)
}

func (h *timingHeap) Pop() any {
	old := *h
	n := len(old)
	ts := old[n-1]
	old[n-1] = nil
	ts.heapIndex = -1
	*h = old[:n-1]
	return ts
}

// TimingWheel is the Kernel's timing subsystem (original_source/src/time.c):
// it owns every armed TimedSignal, keeps exactly one real timer callback
// scheduled against the soonest one, and fires due signals when that
// callback runs.
type TimingWheel struct {
	k       *Kernel
	channel TimerChannel

	heap timingHeap

	armedCancel func()
	trackCount  int

	started bool
}

func newTimingWheel(k *Kernel, channel TimerChannel) *TimingWheel {
	if channel == nil {
		channel = NewSystemTimerChannel()
	}
	return &TimingWheel{k: k, channel: channel}
}

// start brings the wheel up; idempotent. Mirrors timing_reinit's role in
// kernel_start, minus the hardware-handle bookkeeping that has no Go
// equivalent (a TimerChannel is always "active").
func (w *TimingWheel) start() {
	w.started = true
}

func (w *TimingWheel) now() TimeUnit { return w.channel.Now() }

// armLocked arms a transient, one-shot TimedSignal that wakes p with
// SignalTimeout after timeout elapses, returning its Action so the caller
// (Process.Wait/Suspend) can Dispose it to cancel the timeout on early wake.
//
// This bypasses ActionSignal's own pending-queue delivery (which only wakes a
// context currently inside its own Wait dispatch loop): Suspend's callers
// block directly on their CPU token outside of any Wait loop, so the fired
// trigger must schedule p the same direct way a process's own action does,
// rather than assume p will later drain its pending queue.
func (w *TimingWheel) armLocked(p *Process, timeout TimeUnit) *Action {
	ts := NewTimedSignal(w.k, p, nil, ScheduleConfig{}, false)
	ts.Action().Trigger = func(_ *Action, signal Signal) Signal {
		w.k.scheduleHandler(p, signal)
		return SignalSuccess
	}
	ts.SetDelay(timeout)
	ts.Schedule()
	return ts.Action()
}

// insertLocked (re)places ts in the heap at its current triggerTime and
// re-arms the real timer if ts is now the soonest entry (or was, before
// moving). Must be called with Kernel.mu held.
func (w *TimingWheel) insertLocked(ts *TimedSignal) {
	if ts.heapIndex >= 0 {
		heap.Fix(&w.heap, ts.heapIndex)
	} else {
		heap.Push(&w.heap, ts)
	}
	w.rearmLocked()
}

// cancelLocked evicts ts from the heap ahead of its trigger time (called via
// Action.Dispose's dispose hook). Must be called with Kernel.mu held.
func (w *TimingWheel) cancelLocked(ts *TimedSignal) {
	if ts.heapIndex < 0 {
		return
	}
	heap.Remove(&w.heap, ts.heapIndex)
	w.rearmLocked()
}

// rearmLocked cancels any previously-scheduled real timer callback and, if
// the heap is non-empty, schedules a fresh one against the new soonest
// trigger time. Must be called with Kernel.mu held.
func (w *TimingWheel) rearmLocked() {
	if w.armedCancel != nil {
		w.armedCancel()
		w.armedCancel = nil
	}
	if len(w.heap) == 0 {
		return
	}
	delay := w.heap[0].triggerTime.sub(w.now())
	w.armedCancel = w.channel.Schedule(delay, w.fire)
}

// fire is invoked from the TimerChannel's own goroutine once the soonest
// armed signal is due. It pops and triggers every signal whose trigger time
// has arrived (original_source's _check_upcoming_signal_queue loop), then
// re-arms for whatever remains.
func (w *TimingWheel) fire() {
	w.k.mu.Lock()
	defer w.k.mu.Unlock()

	w.armedCancel = nil
	now := w.now()

	for len(w.heap) > 0 && !now.Before(w.heap[0].triggerTime) {
		ts := heap.Pop(&w.heap).(*TimedSignal)
		if ts.periodic {
			w.trackCount++
		}
		ts.Trigger(SignalTimeout)
	}

	w.rearmLocked()
}

// trackCurrentTimeLocked adjusts the refcount keeping GetCurrentTime
// meaningful even while no signal is armed (set_track_current_time). Must be
// called with Kernel.mu held.
func (w *TimingWheel) trackCurrentTimeLocked(track bool) {
	if track {
		w.trackCount++
	} else {
		w.trackCount--
	}
}

// TrackCurrentTime enables or disables current-time tracking independent of
// any armed TimedSignal; each enabling call must be balanced by a disabling
// call (set_track_current_time's refcount contract). A no-op if timing is
// not configured on this Kernel.
func (k *Kernel) TrackCurrentTime(track bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timing == nil {
		return
	}
	k.timing.trackCurrentTimeLocked(track)
}

// GetCurrentTime reports the kernel's current absolute time, and whether
// timing is active at all (get_current_time): false if no TimedSignal is
// armed and TrackCurrentTime tracking is not enabled.
func (k *Kernel) GetCurrentTime() (TimeUnit, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timing == nil || (len(k.timing.heap) == 0 && k.timing.trackCount <= 0) {
		return TimeUnit{}, false
	}
	return k.timing.now(), true
}

// UpcomingEventTime reports the trigger time of the soonest armed
// TimedSignal, and false if none is armed (get_upcoming_event_time).
func (k *Kernel) UpcomingEventTime() (TimeUnit, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timing == nil || len(k.timing.heap) == 0 {
		return TimeUnit{}, false
	}
	return k.timing.heap[0].triggerTime, true
}
