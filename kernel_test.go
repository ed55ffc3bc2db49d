package primeros

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernel_Start_SchedulesInitAndSignalProcessor(t *testing.T) {
	k := New()

	var sysInitRan bool
	initProc, err := k.Start(StartConfig{
		InitPriority: 3,
		InitEntry:    func(p *Process) Signal { return p.Wait(nil, nil) },
		SysInit: func(k *Kernel) error {
			sysInitRan = true
			return nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, initProc)
	assert.True(t, sysInitRan)
	assert.NotNil(t, k.SignalProcessor())
	assert.NotSame(t, initProc, k.SignalProcessor())
}

func TestKernel_Start_TwiceFails(t *testing.T) {
	k := New()
	_, err := k.Start(StartConfig{InitPriority: 1, InitEntry: func(p *Process) Signal { return p.Wait(nil, nil) }})
	require.NoError(t, err)

	_, err = k.Start(StartConfig{InitPriority: 1, InitEntry: func(p *Process) Signal { return p.Wait(nil, nil) }})
	assert.Error(t, err)
}

func TestKernel_Start_SysInitError_AbortsBoot(t *testing.T) {
	k := New()
	boom := argErr("SysInit", "boom")
	initProc, err := k.Start(StartConfig{
		InitPriority: 1,
		InitEntry:    func(p *Process) Signal { return p.Wait(nil, nil) },
		SysInit:      func(k *Kernel) error { return boom },
	})
	assert.Nil(t, initProc)
	assert.Equal(t, boom, err)
}

func TestKernel_Start_Wakeup_RequiresWakeupEventOption(t *testing.T) {
	k := New(WithWakeupEvent())
	_, err := k.Start(StartConfig{InitPriority: 1, InitEntry: func(p *Process) Signal { return p.Wait(nil, nil) }})
	require.NoError(t, err)
	require.NotNil(t, k.WakeupEvent())

	fired := make(chan struct{}, 1)
	sub, err := NewAction(func(a *Action, _ Signal) Signal {
		select {
		case fired <- struct{}{}:
		default:
		}
		return SignalSuccess
	}, nil)
	require.NoError(t, err)
	k.WakeupEvent().Subscribe(sub)

	_, err = k.Start(StartConfig{Wakeup: true})
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("wakeup event never fired")
	}
}

func TestKernel_Start_Wakeup_WithoutWakeupEventOption_IsNoOp(t *testing.T) {
	k := New()
	_, err := k.Start(StartConfig{InitPriority: 1, InitEntry: func(p *Process) Signal { return p.Wait(nil, nil) }})
	require.NoError(t, err)
	assert.Nil(t, k.WakeupEvent())

	initProc, err := k.Start(StartConfig{Wakeup: true})
	require.NoError(t, err)
	assert.Nil(t, initProc)
}

func TestKernel_Halt_StopsKernel(t *testing.T) {
	k := New()
	assert.False(t, k.Stopped())
	k.Halt()
	assert.True(t, k.Stopped())
}

func TestKernel_Running_ReflectsCurrentProcess(t *testing.T) {
	k := New()
	assert.Nil(t, k.Running())

	initProc, err := k.Start(StartConfig{InitPriority: 5, InitEntry: func(p *Process) Signal { return p.Wait(nil, nil) }})
	require.NoError(t, err)

	requireEventually(t, time.Second, func() bool { return k.Running() == initProc })
}

func TestKernel_Schedule_HigherPriorityPreemptsRunning(t *testing.T) {
	k := New()

	lowDone := make(chan struct{})
	low, err := NewProcess(k, ProcessConfig{Priority: 1}, func(p *Process) Signal {
		<-lowDone
		return SignalSuccess
	})
	require.NoError(t, err)
	k.Schedule(low)

	requireEventually(t, time.Second, func() bool { return k.Running() == low })

	high, err := NewProcess(k, ProcessConfig{Priority: 9}, func(p *Process) Signal { return SignalSuccess })
	require.NoError(t, err)
	k.Schedule(high)

	requireEventually(t, time.Second, func() bool { return k.Running() == high })
	close(lowDone)
}

func TestKernel_Yield_PlacesRunningProcessBehindEqualPriorityPeers(t *testing.T) {
	k := New()

	order := make(chan string, 2)
	aReady := make(chan struct{})
	bReady := make(chan struct{})

	a, err := NewProcess(k, ProcessConfig{Priority: 3}, func(p *Process) Signal {
		<-aReady
		p.k.Yield()
		order <- "a"
		return SignalSuccess
	})
	require.NoError(t, err)

	b, err := NewProcess(k, ProcessConfig{Priority: 3}, func(p *Process) Signal {
		<-bReady
		order <- "b"
		return SignalSuccess
	})
	require.NoError(t, err)

	k.Schedule(a)
	requireEventually(t, time.Second, func() bool { return k.Running() == a })
	k.Schedule(b)
	close(aReady)

	requireEventually(t, time.Second, func() bool { return k.Running() == b })
	close(bReady)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case name := <-order:
			got = append(got, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("only got %d of 2 completions", i)
		}
	}
	assert.Equal(t, []string{"b", "a"}, got)
}

func TestKernel_InitProcessCallingHalt_StopsKernel(t *testing.T) {
	k := New()
	halted := make(chan struct{})

	_, err := k.Start(StartConfig{
		InitPriority: 1,
		InitEntry: func(p *Process) Signal {
			k.Halt()
			close(halted)
			return SignalExit
		},
	})
	require.NoError(t, err)

	select {
	case <-halted:
	case <-time.After(2 * time.Second):
		t.Fatal("init process never ran to completion")
	}
	assert.True(t, k.Stopped())
}
