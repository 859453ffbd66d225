package realm

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/marmos91/krb5test/internal/logger"
)

// readyProbe reports whether a starting daemon is accepting work. Probes
// must be cheap; they are polled until the daemon start timeout elapses.
type readyProbe func() bool

// tcpProbe is satisfied when a TCP connection to addr succeeds.
func tcpProbe(addr string) readyProbe {
	return func() bool {
		conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// fileSentinelProbe is satisfied when the file at path contains sentinel.
// Used for daemons that only announce readiness in their log file.
func fileSentinelProbe(path, sentinel string) readyProbe {
	return func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		return strings.Contains(string(data), sentinel)
	}
}

// outputBuffer captures a daemon's combined output for diagnostics,
// bounded so a chatty daemon cannot grow memory without limit.
type outputBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const outputBufferLimit = 64 * 1024

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) < outputBufferLimit {
		remaining := outputBufferLimit - len(b.buf)
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// managedProcess supervises one external daemon owned by a Realm: start,
// bounded readiness polling, and graceful-then-forced stop. Each daemon
// belongs to exactly one Realm; processes are never shared.
type managedProcess struct {
	name    string
	cmdline string
	cmd     *exec.Cmd
	out     *outputBuffer
	done    chan struct{}
	waitErr error
	stopped atomic.Bool
}

// startDaemon launches argv with the given environment. The process's
// combined output is captured for error reporting. The returned process is
// running but not necessarily ready; follow with waitReady.
func startDaemon(name string, argv, env []string) (*managedProcess, error) {
	out := &outputBuffer{}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out

	p := &managedProcess{
		name:    name,
		cmdline: strings.Join(argv, " "),
		cmd:     cmd,
		out:     out,
		done:    make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, &BootstrapError{
			Stage:    "start-" + name,
			Cmd:      p.cmdline,
			ExitCode: -1,
			Err:      err,
		}
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	logger.Debug("Daemon started", "daemon", name, logger.KeyPID, cmd.Process.Pid, logger.KeyCommand, p.cmdline)
	return p, nil
}

// waitReady polls probe until it reports ready, the daemon exits, the
// timeout elapses, or ctx is cancelled. On timeout or early exit the
// process is killed before the error is returned, so a failed start never
// leaks a daemon.
func (p *managedProcess) waitReady(ctx context.Context, probe readyProbe, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-p.done:
			return &BootstrapError{
				Stage:    "start-" + p.name,
				Cmd:      p.cmdline,
				ExitCode: p.exitCode(),
				Output:   strings.TrimSpace(p.out.String()),
				Err:      p.waitErr,
			}
		case <-ctx.Done():
			p.kill()
			return &BootstrapError{
				Stage: StageDaemonStartTimeout,
				Cmd:   p.cmdline,
				Err:   ctx.Err(),
			}
		case <-deadline.C:
			p.kill()
			return &BootstrapError{
				Stage:  StageDaemonStartTimeout,
				Cmd:    p.cmdline,
				Output: strings.TrimSpace(p.out.String()),
			}
		case <-tick.C:
			if probe() {
				logger.Debug("Daemon ready", "daemon", p.name, logger.KeyPID, p.pid())
				return nil
			}
		}
	}
}

// stop terminates the daemon: SIGTERM first, SIGKILL after the grace
// period. It is idempotent and safe to call on an already-exited process.
func (p *managedProcess) stop(grace time.Duration) {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}

	select {
	case <-p.done:
		return // already exited
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Warn("Failed to signal daemon", "daemon", p.name, logger.KeyPID, p.pid(), logger.KeyError, err)
	}

	select {
	case <-p.done:
	case <-time.After(grace):
		logger.Warn("Daemon did not exit in grace period, killing", "daemon", p.name, logger.KeyPID, p.pid())
		p.kill()
		<-p.done
	}
	logger.Debug("Daemon stopped", "daemon", p.name, logger.KeyPID, p.pid())
}

func (p *managedProcess) kill() {
	_ = p.cmd.Process.Kill()
	<-p.done
}

func (p *managedProcess) pid() int { return p.cmd.Process.Pid }

// running reports whether the process has not yet exited.
func (p *managedProcess) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *managedProcess) exitCode() int {
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}
