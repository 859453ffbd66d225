package realm

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellDaemon(t *testing.T, script string) *managedProcess {
	t.Helper()
	p, err := startDaemon("test", []string{"/bin/sh", "-c", script}, os.Environ())
	require.NoError(t, err)
	t.Cleanup(func() { p.stop(time.Second) })
	return p
}

func TestStartDaemon(t *testing.T) {
	t.Run("missing binary fails with bootstrap error", func(t *testing.T) {
		_, err := startDaemon("test", []string{"/nonexistent/daemon"}, nil)
		require.Error(t, err)
		var berr *BootstrapError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, "start-test", berr.Stage)
		assert.Equal(t, -1, berr.ExitCode)
	})

	t.Run("running process reports a pid", func(t *testing.T) {
		p := shellDaemon(t, "sleep 30")
		assert.Greater(t, p.pid(), 0)
		assert.True(t, p.running())
	})
}

func TestWaitReady(t *testing.T) {
	ctx := context.Background()

	t.Run("probe success", func(t *testing.T) {
		p := shellDaemon(t, "sleep 30")
		ready := func() bool { return true }

		require.NoError(t, p.waitReady(ctx, ready, 5*time.Second))
		assert.True(t, p.running())
	})

	t.Run("early exit surfaces output and exit code", func(t *testing.T) {
		p := shellDaemon(t, "echo boom >&2; exit 3")
		never := func() bool { return false }

		err := p.waitReady(ctx, never, 5*time.Second)
		require.Error(t, err)
		var berr *BootstrapError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, "start-test", berr.Stage)
		assert.Equal(t, 3, berr.ExitCode)
		assert.Contains(t, berr.Output, "boom")
	})

	t.Run("timeout kills the process", func(t *testing.T) {
		p := shellDaemon(t, "sleep 30")
		never := func() bool { return false }

		err := p.waitReady(ctx, never, 300*time.Millisecond)
		require.Error(t, err)
		var berr *BootstrapError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, StageDaemonStartTimeout, berr.Stage)
		assert.False(t, p.running())
	})

	t.Run("context cancellation kills the process", func(t *testing.T) {
		p := shellDaemon(t, "sleep 30")
		never := func() bool { return false }

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := p.waitReady(cancelled, never, 5*time.Second)
		require.Error(t, err)
		var berr *BootstrapError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, StageDaemonStartTimeout, berr.Stage)
		assert.False(t, p.running())
	})
}

func TestStopDaemon(t *testing.T) {
	t.Run("sigterm stops a cooperative process", func(t *testing.T) {
		p := shellDaemon(t, "trap 'exit 0' TERM; while true; do sleep 0.1; done")
		require.NoError(t, p.waitReady(context.Background(), func() bool { return true }, time.Second))

		p.stop(5 * time.Second)
		assert.False(t, p.running())
	})

	t.Run("idempotent and safe after exit", func(t *testing.T) {
		p := shellDaemon(t, "exit 0")
		<-p.done

		p.stop(time.Second)
		p.stop(time.Second)
		assert.False(t, p.running())
	})
}

func TestProbes(t *testing.T) {
	t.Run("tcp probe", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		assert.True(t, tcpProbe(l.Addr().String())())

		addr := l.Addr().String()
		l.Close()
		assert.False(t, tcpProbe(addr)())
	})

	t.Run("file sentinel probe", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "kdc.log")
		probe := fileSentinelProbe(logPath, "KDC started")

		assert.False(t, probe(), "missing file")

		require.NoError(t, os.WriteFile(logPath, []byte("listening on 1088\n"), 0o600))
		assert.False(t, probe(), "sentinel absent")

		require.NoError(t, os.WriteFile(logPath, []byte("listening on 1088\nKDC started\n"), 0o600))
		assert.True(t, probe())
	})
}
