// Copyright 2015 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	testutil "github.com/nxgtw/efdstream/internal/test"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peerModeEnv selects the behavior of the test binary, when it runs as a child.
const peerModeEnv = "EFDSTREAM_TEST_PEER"

// child behaviors
const (
	peerEcho     = "echo"     // replies "echo: <payload>" to every message
	peerHex      = "hex"      // replies with the hex representation of every message
	peerExit     = "exit"     // receives one message and exits
	peerRun      = "run"      // echoes every message using Run
	peerStubborn = "stubborn" // ignores SIGTERM, sends "ready" and sleeps
)

// TestPeerProcess is not a real test. It is the child side of cross-process tests.
func TestPeerProcess(t *testing.T) {
	mode := os.Getenv(peerModeEnv)
	if mode == "" {
		t.Skip("not a child process")
	}
	if err := runTestPeer(mode); err != nil {
		fmt.Fprintf(os.Stderr, "peer %s: %v\n", mode, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func runTestPeer(mode string) error {
	if mode == peerStubborn {
		signal.Ignore(syscall.SIGTERM)
	}
	peer, err := PeerFromArgs(testutil.HelperArgs())
	if err != nil {
		return err
	}
	defer peer.Close()
	ctx := context.Background()
	switch mode {
	case peerExit:
		_, err := peer.Receive(ctx)
		return err
	case peerRun:
		out := make(chan []byte, 16)
		return peer.Run(ctx, out, func(payload []byte) {
			out <- append([]byte("echo: "), payload...)
		})
	case peerStubborn:
		if err := peer.Send([]byte("ready")); err != nil {
			return err
		}
		time.Sleep(time.Hour)
		return nil
	}
	for {
		data, err := peer.Receive(ctx)
		if err != nil {
			return err
		}
		var reply []byte
		if mode == peerHex {
			reply = []byte(testutil.BytesToString(data))
		} else {
			reply = append([]byte("echo: "), data...)
		}
		if err := peer.Send(reply); err != nil {
			return err
		}
	}
}

func startTestPeer(t *testing.T, mode string, opts ...Option) *Link {
	launcher := ExecLauncher{Env: append(os.Environ(), peerModeEnv+"="+mode)}
	opts = append([]Option{
		WithLauncher(launcher),
		WithArgs(testutil.HelperTestArgs("TestPeerProcess")...),
		WithBufferSize(1024),
	}, opts...)
	prepared, err := NewBuilder(os.Args[0], opts...).Prepare()
	require.NoError(t, err)
	link, err := prepared.Spawn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		link.Close()
	})
	return link
}

func waitExited(t *testing.T, link *Link) {
	select {
	case <-link.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
}

func TestProcessPingPong(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerEcho)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		msg := fmt.Sprintf("ping %d", i)
		require.NoError(t, link.Send([]byte(msg)))
		reply, err := link.Receive(ctx)
		require.NoError(t, err)
		a.Equal("echo: "+msg, string(reply))
	}
}

func TestProcessCustomSlots(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerEcho, WithSlots(SlotsFrom(10)), WithBufferSize(64))
	require.NoError(t, link.Send([]byte("A")))
	reply, err := link.Receive(context.Background())
	require.NoError(t, err)
	a.Equal("echo: A", string(reply))
}

func TestProcessBinaryPayload(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerHex)
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, link.Send(payload))
	reply, err := link.Receive(context.Background())
	require.NoError(t, err)
	a.True(testutil.IsHexString(string(reply)))
	decoded, err := testutil.StringToBytes(string(reply))
	require.NoError(t, err)
	a.Equal(payload, decoded)
}

func TestProcessOversizeRejected(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerEcho, WithBufferSize(16))
	err := link.Send(make([]byte, 17))
	a.True(errors.Is(err, ErrPayloadTooLarge))
	require.NoError(t, link.Send([]byte("0123456789abcdef")[:10]))
	reply, err := link.Receive(context.Background())
	require.NoError(t, err)
	a.Equal("echo: 0123456789", string(reply))
}

func TestProcessChildExit(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerExit)
	require.NoError(t, link.Send([]byte("bye")))
	err := link.Listen(context.Background(), func([]byte) {})
	a.True(errors.Is(err, ErrClosed), "unexpected error %v", err)
	waitExited(t, link)
	a.NoError(link.ExitErr())
}

func TestProcessCloseTerminatesChild(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerEcho)
	a.NoError(link.Close())
	waitExited(t, link)
	a.Error(link.ExitErr())
}

func TestProcessCloseKillsStubbornChild(t *testing.T) {
	a := assert.New(t)
	link := startTestPeer(t, peerStubborn, WithTerminateTimeout(200*time.Millisecond))
	ready, err := link.Receive(context.Background())
	require.NoError(t, err)
	a.Equal("ready", string(ready))
	start := time.Now()
	a.NoError(link.Close())
	waitExited(t, link)
	a.Error(link.ExitErr())
	a.True(time.Since(start) >= 200*time.Millisecond)
}

func TestProcessRun(t *testing.T) {
	a := assert.New(t)
	const count = 20
	link := startTestPeer(t, peerRun)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out := make(chan []byte)
	go func() {
		defer close(out)
		for i := 0; i < count; i++ {
			select {
			case out <- []byte(fmt.Sprintf("B%d", i)):
			case <-ctx.Done():
				return
			}
		}
	}()
	var got []string
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	err := link.Run(runCtx, out, func(payload []byte) {
		got = append(got, string(payload))
		if len(got) == count {
			stop()
		}
	})
	a.Equal(context.Canceled, err)
	require.Len(t, got, count)
	for i, s := range got {
		a.Equal(fmt.Sprintf("echo: B%d", i), s)
	}
}
