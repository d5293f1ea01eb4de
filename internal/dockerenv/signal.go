package dockerenv

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// guard is the one piece of deliberately process-wide state in this package.
// Resource reclamation on abrupt termination cannot be expressed as ordinary
// call-return control flow, so live managers register here and a single
// signal handler sweeps them all.
var guard = struct {
	mu         sync.Mutex
	registered bool
	managers   map[*EnvironmentManager]struct{}
}{
	managers: make(map[*EnvironmentManager]struct{}),
}

// RegisterSignalHandlers installs SIGINT/SIGTERM handlers that reclaim every
// live EnvironmentManager's resources before the process exits. Idempotent:
// calling it again never double-registers.
func RegisterSignalHandlers() {
	guard.mu.Lock()
	defer guard.mu.Unlock()

	if guard.registered {
		return
	}
	guard.registered = true

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-ch
		signal.Stop(ch)
		CleanupOnExit()
		if s, ok := sig.(syscall.Signal); ok {
			os.Exit(128 + int(s))
		}
		os.Exit(1)
	}()
}

// CleanupOnExit sweeps every live manager. Invoked by the signal handler;
// callers wiring their own exit paths may also call it directly.
func CleanupOnExit() {
	guard.mu.Lock()
	managers := make([]*EnvironmentManager, 0, len(guard.managers))
	for m := range guard.managers {
		managers = append(managers, m)
	}
	guard.mu.Unlock()

	for _, m := range managers {
		m.CleanupAll(context.Background())
	}
}

func registerManager(m *EnvironmentManager) {
	guard.mu.Lock()
	defer guard.mu.Unlock()
	guard.managers[m] = struct{}{}
}

func unregisterManager(m *EnvironmentManager) {
	guard.mu.Lock()
	defer guard.mu.Unlock()
	delete(guard.managers, m)
}
