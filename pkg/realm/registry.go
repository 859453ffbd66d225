package realm

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/marmos91/krb5test/internal/logger"
)

// Package-level registry of live realms, used for best-effort orphan
// reaping when a process is torn down abruptly.
var (
	registryMu sync.Mutex
	registry   = make(map[*Realm]struct{})

	signalHookOnce sync.Once
)

func register(r *Realm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[r] = struct{}{}
}

func unregister(r *Realm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, r)
}

// liveRealms snapshots the registry so Stop can run without the lock held
// (Stop unregisters, which needs the lock).
func liveRealms() []*Realm {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]*Realm, 0, len(registry))
	for r := range registry {
		out = append(out, r)
	}
	return out
}

// CleanupAll tears down every live realm in this process. Safe to call
// concurrently with individual Stop calls; realms already stopped are
// skipped by Stop's own idempotence.
func CleanupAll() {
	for _, r := range liveRealms() {
		r.Stop()
	}
}

// HandleSignals installs a process-wide hook that tears down all live
// realms on SIGINT or SIGTERM, then re-raises the signal with default
// disposition so the process still dies with the conventional status.
// Installing the hook more than once is a no-op.
func HandleSignals() {
	signalHookOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-ch
			logger.Warn("Signal received, tearing down live realms", "signal", sig.String())
			CleanupAll()
			signal.Reset(sig)
			if s, ok := sig.(syscall.Signal); ok {
				_ = syscall.Kill(os.Getpid(), s)
			}
		}()
	})
}
