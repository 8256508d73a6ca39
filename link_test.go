// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// inProcessSlots are high enough not to clash with descriptors of the test process.
var inProcessSlots = SlotsFrom(900)

// fakeProcess is a child, which exits when signaled.
type fakeProcess struct {
	once    sync.Once
	done    chan struct{}
	signals chan os.Signal
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{}), signals: make(chan os.Signal, 4)}
}

func (p *fakeProcess) Pid() int {
	return 4242
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

func (p *fakeProcess) exit() {
	p.once.Do(func() { close(p.done) })
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.signals <- sig
	p.exit()
	return nil
}

func (p *fakeProcess) Kill() error {
	return p.Signal(os.Kill)
}

// fakeLauncher places the resources at their slots in the current process,
// so that a Peer can be built in the same process.
type fakeLauncher struct {
	err  error
	spec LaunchSpec
	proc *fakeProcess
}

func (l *fakeLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	l.spec = spec
	if l.err != nil {
		return nil, l.err
	}
	if _, err := assignSlots(spec.Assignments); err != nil {
		return nil, err
	}
	for _, a := range spec.Assignments {
		if err := unix.Dup3(int(a.File.Fd()), a.Slot, unix.O_CLOEXEC); err != nil {
			return nil, err
		}
	}
	l.proc = newFakeProcess()
	return l.proc, nil
}

func newInProcessLink(t *testing.T, size int, opts ...Option) (*Link, *Peer, *fakeLauncher) {
	launcher := &fakeLauncher{}
	opts = append([]Option{
		WithLauncher(launcher),
		WithSlots(inProcessSlots),
		WithBufferSize(size),
	}, opts...)
	prepared, err := NewBuilder("fake", opts...).Prepare()
	require.NoError(t, err)
	link, err := prepared.Spawn(context.Background())
	require.NoError(t, err)
	peer, err := NewPeer(inProcessSlots, size)
	require.NoError(t, err)
	t.Cleanup(func() {
		link.Close()
		peer.Close()
	})
	return link, peer, launcher
}

func TestLinkLaunchSpec(t *testing.T) {
	a := assert.New(t)
	link, _, launcher := newInProcessLink(t, 128, WithArgs("-mode", "child"))
	a.Equal(4242, link.Pid())
	a.Equal("fake", launcher.spec.Program)
	a.Equal(append([]string{"-mode", "child"}, inProcessSlots.Args(128)...), launcher.spec.Args)
	slots := make(map[int]bool)
	for _, assignment := range launcher.spec.Assignments {
		slots[assignment.Slot] = true
	}
	for _, slot := range inProcessSlots.slots() {
		a.True(slots[slot], "slot %d is not assigned", slot)
	}
}

func TestLinkInProcessExchange(t *testing.T) {
	a := assert.New(t)
	link, peer, _ := newInProcessLink(t, 256)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		msg := fmt.Sprintf("A%d", i)
		done := make(chan error, 1)
		go func() { done <- link.Send([]byte(msg)) }()
		data, err := peer.Receive(ctx)
		require.NoError(t, err)
		a.Equal(msg, string(data))
		require.NoError(t, <-done)

		reply := fmt.Sprintf("B%d", i)
		go func() { done <- peer.Send([]byte(reply)) }()
		data, err = link.Receive(ctx)
		require.NoError(t, err)
		a.Equal(reply, string(data))
		require.NoError(t, <-done)
	}
}

func TestLinkPayloadTooLarge(t *testing.T) {
	a := assert.New(t)
	link, peer, _ := newInProcessLink(t, 16)
	err := link.Send(make([]byte, 17))
	a.True(errors.Is(err, ErrPayloadTooLarge))
	a.True(errors.Is(peer.Send(make([]byte, 17)), ErrPayloadTooLarge))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = peer.Receive(ctx)
	a.Equal(context.DeadlineExceeded, err)
}

func TestLinkChildExitEndsListen(t *testing.T) {
	a := assert.New(t)
	link, _, launcher := newInProcessLink(t, 64)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- link.Listen(context.Background(), func([]byte) {})
	}()
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- link.Send([]byte("nobody listens"))
	}()
	time.Sleep(20 * time.Millisecond)
	launcher.proc.exit()
	select {
	case <-link.Exited():
	case <-time.After(time.Second):
		t.Fatal("exit was not observed")
	}
	a.NoError(link.ExitErr())
	for _, ch := range []chan error{listenErr, sendErr} {
		select {
		case err := <-ch:
			a.True(errors.Is(err, ErrClosed), "unexpected error %v", err)
		case <-time.After(time.Second):
			t.Fatal("operation was not interrupted")
		}
	}
	a.NoError(link.Close())
	a.Empty(launcher.proc.signals)
}

func TestLinkCloseTerminatesChild(t *testing.T) {
	a := assert.New(t)
	link, _, launcher := newInProcessLink(t, 64)
	a.NoError(link.Close())
	a.NoError(link.Close())
	select {
	case <-link.Exited():
	default:
		t.Fatal("child was not reaped")
	}
	a.Equal(unix.SIGTERM, <-launcher.proc.signals)
	a.True(errors.Is(link.Send([]byte("x")), ErrClosed))
	_, err := link.Receive(context.Background())
	a.True(errors.Is(err, ErrClosed))
}

func TestLinkRunInProcess(t *testing.T) {
	a := assert.New(t)
	const count = 10
	link, peer, _ := newInProcessLink(t, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	peerOut := make(chan []byte, count)
	peerErr := make(chan error, 1)
	go func() {
		peerErr <- peer.Run(ctx, peerOut, func(payload []byte) {
			peerOut <- append([]byte("echo "), payload...)
		})
	}()

	linkOut := make(chan []byte)
	var got []string
	go func() {
		defer close(linkOut)
		for i := 0; i < count; i++ {
			linkOut <- []byte(fmt.Sprintf("%d", i))
		}
	}()
	err := link.Run(ctx, linkOut, func(payload []byte) {
		got = append(got, string(payload))
		if len(got) == count {
			cancel()
		}
	})
	a.Equal(context.Canceled, err)
	a.Equal(context.Canceled, <-peerErr)
	require.Len(t, got, count)
	for i, s := range got {
		a.Equal(fmt.Sprintf("echo %d", i), s)
	}
}

func TestLinkMetrics(t *testing.T) {
	a := assert.New(t)
	m := NewMetrics(prometheus.NewRegistry())
	link, peer, _ := newInProcessLink(t, 64, WithMetrics(m))
	done := make(chan error, 1)
	go func() { done <- link.Send([]byte("12345")) }()
	_, err := peer.Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-done)
	a.Equal(1.0, promtest.ToFloat64(m.messages.WithLabelValues(DirectionP2C, "send")))
	a.Equal(5.0, promtest.ToFloat64(m.bytes.WithLabelValues(DirectionP2C, "send")))
}

func TestPeerLazyAttach(t *testing.T) {
	a := assert.New(t)
	launcher := &fakeLauncher{}
	prepared, err := NewBuilder("fake", WithLauncher(launcher), WithSlots(inProcessSlots), WithBufferSize(32)).Prepare()
	require.NoError(t, err)
	link, err := prepared.Spawn(context.Background())
	require.NoError(t, err)
	defer link.Close()
	peer, err := NewPeer(inProcessSlots, 32, WithLazyAttach())
	require.NoError(t, err)
	defer peer.Close()
	a.False(peer.Receiver().Attached())
	a.False(peer.Sender().Attached())
	done := make(chan error, 1)
	go func() { done <- link.Send([]byte("lazy")) }()
	data, err := peer.Receive(context.Background())
	require.NoError(t, err)
	a.Equal([]byte("lazy"), data)
	a.NoError(<-done)
	a.True(peer.Receiver().Attached())
}

func TestPeerInvalidArgs(t *testing.T) {
	a := assert.New(t)
	_, err := NewPeer(SlotsFrom(1), 64)
	a.True(errors.Is(err, ErrInvalidSlots))
	_, err = NewPeer(DefaultSlots(), 0)
	a.Error(err)
	_, err = PeerFromArgs([]string{"-fd-p2c-send", "notanumber"})
	a.Error(err)
	// nothing is open at these slots.
	_, err = NewPeer(SlotsFrom(MaxSlot-5), 64)
	a.Error(err)
}

func TestPeerFailureClosesInheritedDescriptors(t *testing.T) {
	a := assert.New(t)
	table := SlotsFrom(940)
	place := func(fd, slot int) {
		require.NoError(t, unix.Dup3(fd, slot, unix.O_CLOEXEC))
		require.NoError(t, unix.Close(fd))
	}
	newEventfd := func() int {
		fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
		require.NoError(t, err)
		return fd
	}
	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer wr.Close()
	pipeFd, err := unix.Dup(int(rd.Fd()))
	require.NoError(t, err)
	rd.Close()
	memFd, err := unix.MemfdCreate("efdstream-test", unix.MFD_CLOEXEC)
	require.NoError(t, err)
	require.NoError(t, unix.Ftruncate(memFd, 64))

	place(newEventfd(), table.P2CSend)
	place(newEventfd(), table.P2CAck)
	// a pipe is not a memory object, so adoption stops here.
	place(pipeFd, table.P2CMem)
	place(newEventfd(), table.C2PSend)
	place(newEventfd(), table.C2PAck)
	place(memFd, table.C2PMem)

	_, err = NewPeer(table, 64)
	require.Error(t, err)
	for _, slot := range table.slots() {
		_, err := unix.FcntlInt(uintptr(slot), unix.F_GETFD, 0)
		a.Equal(unix.EBADF, err, "slot %d is still open", slot)
	}
}

func TestSpawnOnce(t *testing.T) {
	a := assert.New(t)
	launcher := &fakeLauncher{}
	prepared, err := NewBuilder("fake", WithLauncher(launcher), WithSlots(inProcessSlots)).Prepare()
	require.NoError(t, err)
	link, err := prepared.Spawn(context.Background())
	require.NoError(t, err)
	defer link.Close()
	_, err = prepared.Spawn(context.Background())
	a.Equal(ErrAlreadySpawned, err)
	a.NoError(prepared.Close())
}

func TestSpawnFailureReleasesResources(t *testing.T) {
	a := assert.New(t)
	launcher := &fakeLauncher{err: errors.New("launch failed")}
	prepared, err := NewBuilder("fake", WithLauncher(launcher)).Prepare()
	require.NoError(t, err)
	_, err = prepared.Spawn(context.Background())
	a.EqualError(err, "launch failed")
	a.True(errors.Is(prepared.p2c.data.Raise(1), ErrClosed))
	a.True(errors.Is(prepared.c2p.ack.Raise(1), ErrClosed))
	a.Nil(prepared.p2c.region.Data())
	a.NoError(prepared.Close())
	_, err = prepared.Spawn(context.Background())
	a.Equal(ErrAlreadySpawned, err)
}

func TestSpawnMissingProgram(t *testing.T) {
	prepared, err := NewBuilder("/nonexistent/efdstream-child").Prepare()
	require.NoError(t, err)
	_, err = prepared.Spawn(context.Background())
	assert.Error(t, err)
}

func TestPrepareClose(t *testing.T) {
	a := assert.New(t)
	prepared, err := NewBuilder("fake").Prepare()
	require.NoError(t, err)
	a.NotEmpty(prepared.ID())
	a.Equal(DefaultSlots(), prepared.Slots())
	a.NoError(prepared.Close())
	a.NoError(prepared.Close())
	_, err = prepared.Spawn(context.Background())
	a.True(errors.Is(err, ErrClosed))
}

func TestPrepareInvalidOptions(t *testing.T) {
	a := assert.New(t)
	_, err := NewBuilder("fake", WithSlots(SlotTable{})).Prepare()
	a.True(errors.Is(err, ErrInvalidSlots))
	_, err = NewBuilder("fake", WithBufferSize(0)).Prepare()
	a.Error(err)
}

func TestSpawnCancelledContext(t *testing.T) {
	prepared, err := NewBuilder(os.Args[0]).Prepare()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = prepared.Spawn(ctx)
	assert.Equal(t, context.Canceled, err)
}
