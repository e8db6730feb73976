package singleinstance

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// privateRange returns a one-port range on a free loopback port.
func privateRange(t *testing.T) PortRange {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return PortRange{Start: port, End: port}
}

func TestServerClientRoundTrip(t *testing.T) {
	r := privateRange(t)
	port := r.Start
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer(r)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback listener unavailable in this environment: %v", err)
	}
	defer srv.Close()
	assert.Equal(t, port, srv.Port())

	got, ok := DetectResidentPort(ctx, r)
	require.True(t, ok)
	assert.Equal(t, port, got)

	client := NewClient(r)
	type reply struct {
		delegated bool
		text      string
		err       error
	}
	replyCh := make(chan reply, 1)
	go func() {
		delegated, text, err := client.TryRunOnce(ctx, true)
		replyCh <- reply{delegated, text, err}
	}()

	conn, err := srv.Next(ctx)
	require.NoError(t, err)
	assert.True(t, conn.Request().OutputToStdout)
	require.NoError(t, conn.RespondSuccess("recognized text"))
	require.NoError(t, conn.Close())

	rep := <-replyCh
	require.NoError(t, rep.err)
	assert.True(t, rep.delegated)
	assert.Equal(t, "recognized text", rep.text)
}

func TestClientReceivesError(t *testing.T) {
	r := privateRange(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer(r)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback listener unavailable in this environment: %v", err)
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		delegated, _, err := NewClient(r).TryRunOnce(ctx, false)
		assert.True(t, delegated)
		errCh <- err
	}()

	conn, err := srv.Next(ctx)
	require.NoError(t, err)
	assert.False(t, conn.Request().OutputToStdout)
	require.NoError(t, conn.RespondError("Busy, please retry"))
	require.NoError(t, conn.Close())

	err = <-errCh
	var resident *ResidentError
	require.ErrorAs(t, err, &resident)
	assert.Equal(t, "Busy, please retry", resident.Message)
}

func TestNoResident(t *testing.T) {
	r := privateRange(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	delegated, text, err := NewClient(r).TryRunOnce(ctx, true)
	assert.NoError(t, err)
	assert.False(t, delegated)
	assert.Empty(t, text)

	_, ok := DetectResidentPort(ctx, r)
	assert.False(t, ok)
}

func TestNextAfterClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv := NewServer(privateRange(t))
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback listener unavailable in this environment: %v", err)
	}
	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())

	_, err := srv.Next(ctx)
	assert.ErrorIs(t, err, ErrServerClosed)
}

func TestPortRangeNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   PortRange
		want PortRange
	}{
		{"in range", PortRange{Start: 49500, End: 49550}, PortRange{Start: 49500, End: 49550}},
		{"clamped", PortRange{Start: 80, End: 70000}, PortRange{Start: 1024, End: 65535}},
		{"reversed", PortRange{Start: 50000, End: 40000}, PortRange{Start: 40000, End: 50000}},
		{"zero", PortRange{}, PortRange{Start: 1024, End: 1024}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}

func TestServerBindsNormalizedStart(t *testing.T) {
	r := privateRange(t)
	srv := NewServer(PortRange{Start: r.Start + 5, End: r.Start})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback listener unavailable in this environment: %v", err)
	}
	defer srv.Close()
	assert.Equal(t, r.Start, srv.Port())
}
