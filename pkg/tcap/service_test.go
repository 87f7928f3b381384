package tcap

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capnode/tcapd/internal/address"
	"github.com/capnode/tcapd/internal/wire"
)

// freePort asks the OS for an unused loopback UDP port.
func freePort(t *testing.T) uint16 {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()
	return uint16(conn.LocalAddr().(*net.UDPAddr).Port)
}

// startNode constructs and runs a Service bound to loopback, returning it
// along with a cleanup func that terminates it and waits for Run to exit.
func startNode(t *testing.T) *Service {
	t.Helper()
	port := freePort(t)
	addr := address.New(127, 0, 0, 1, port)
	switchAddr := address.New(127, 0, 0, 1, 1)

	svc, err := New(Config{Address: addr, SwitchAddr: switchAddr})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	t.Cleanup(func() {
		svc.Terminate(context.Background())
		cancel()
		<-done
	})

	return svc
}

// eventually polls cond until it returns true or the deadline elapses.
func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// S1 - Delegation.
func TestDelegation(t *testing.T) {
	a := startNode(t)
	b := startNode(t)

	cap := a.CreateCapability()
	require.NoError(t, cap.Delegate(context.Background(), b.Address()))

	require.True(t, eventually(t, 2*time.Second, func() bool {
		return b.Table().Contains(cap.ID())
	}), "B never received the delegated capability")

	bCap, ok := b.Table().Get(cap.ID())
	require.True(t, ok)
	require.True(t, bCap.Owner().Equal(a.Address()))
}

// S2 - Revocation.
func TestRevocation(t *testing.T) {
	a := startNode(t)
	b := startNode(t)

	cap := a.CreateCapability()
	require.NoError(t, cap.Delegate(context.Background(), b.Address()))
	require.True(t, eventually(t, 2*time.Second, func() bool {
		return b.Table().Contains(cap.ID())
	}))

	require.NoError(t, cap.Revoke(context.Background()))

	require.True(t, eventually(t, 2*time.Second, func() bool {
		return !b.Table().Contains(cap.ID())
	}), "B still holds the revoked capability")
	require.False(t, a.Table().Contains(cap.ID()))
}

// Idempotence: revoke on an already-removed capability is a no-op.
func TestRevokeIdempotent(t *testing.T) {
	a := startNode(t)
	cap := a.CreateCapability()
	require.NoError(t, cap.Revoke(context.Background()))
	require.NoError(t, cap.Revoke(context.Background()))
}

// Idempotence: double-delegate to the same peer leaves one table entry.
func TestDoubleDelegateSingleEntry(t *testing.T) {
	a := startNode(t)
	b := startNode(t)

	cap := a.CreateCapability()
	require.NoError(t, cap.Delegate(context.Background(), b.Address()))
	require.NoError(t, cap.Delegate(context.Background(), b.Address()))

	require.True(t, eventually(t, 2*time.Second, func() bool {
		return b.Table().Contains(cap.ID())
	}))
	require.Len(t, b.Table().ListIDs(), 1)
}

// S3 - Local invocation.
func TestLocalInvocation(t *testing.T) {
	a := startNode(t)

	var calls int32
	cap := a.CreateCapability()
	require.NoError(t, cap.BindReq(func(conts []*Capability) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	code, err := cap.RequestInvoke(context.Background(), nil, true)
	require.NoError(t, err)
	require.Equal(t, wire.ResponseCodeSuccess, code)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// S4 - Remote invocation with response.
func TestRemoteInvocationWithResponse(t *testing.T) {
	a := startNode(t)
	b := startNode(t)

	var calls int32
	cap := a.CreateCapability()
	require.NoError(t, cap.BindReq(func(conts []*Capability) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, cap.Delegate(context.Background(), b.Address()))
	require.True(t, eventually(t, 2*time.Second, func() bool {
		return b.Table().Contains(cap.ID())
	}))

	bCap, ok := b.Table().Get(cap.ID())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	code, err := bCap.RequestInvoke(ctx, nil, true)
	require.NoError(t, err)
	require.Equal(t, wire.ResponseCodeSuccess, code)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// S5 - Unknown capability.
func TestUnknownCapabilityInvoke(t *testing.T) {
	a := startNode(t)
	b := startNode(t)

	fakeID := wire.NewCapabilityID()
	phantom := b.CreateRemoteCapabilityWithID(a.Address(), fakeID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := phantom.RequestInvoke(ctx, nil, true)
	require.ErrorIs(t, err, ErrInvokeRefused)
}

// S6 / invariant 5 - memory copy across chunk boundaries, out-of-order
// tolerant reassembly.
func TestMemoryCopyAcrossChunks(t *testing.T) {
	a := startNode(t)
	b := startNode(t)

	buf := make([]byte, 3*wire.MaxChunkSize+37)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	cap := a.CreateCapability()
	require.NoError(t, cap.BindMem(buf))
	require.NoError(t, cap.Delegate(context.Background(), b.Address()))
	require.True(t, eventually(t, 2*time.Second, func() bool {
		return b.Table().Contains(cap.ID())
	}))

	bCap, ok := b.Table().Get(cap.ID())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := bCap.GetBuffer(ctx)
	require.NoError(t, err)
	require.Equal(t, buf, got)
}

// invariant 4: request_invoke(wait=true) calls the bound handler exactly
// once per invocation, across repeated local calls.
func TestLocalInvocationCallsHandlerOncePerInvocation(t *testing.T) {
	a := startNode(t)

	var calls int32
	cap := a.CreateCapability()
	require.NoError(t, cap.BindReq(func(conts []*Capability) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		_, err := cap.RequestInvoke(context.Background(), nil, true)
		require.NoError(t, err, fmt.Sprintf("invocation %d", i))
	}
	require.Equal(t, int32(5), atomic.LoadInt32(&calls))
}
