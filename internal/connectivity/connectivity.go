// Package connectivity tracks whether the backend is reachable.
//
// The reconciliation engine consults a Signal before every pass. Two
// implementations are provided: Flag, a manually toggled switch for
// embedding and tests, and Monitor, which probes the backend's health
// endpoint on an interval and can trigger a callback when connectivity
// returns.
package connectivity

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// Signal reports the current connectivity state.
type Signal interface {
	// Online reports whether the backend is believed reachable right now.
	Online() bool
}

// SignalFunc adapts a function to the Signal interface.
type SignalFunc func() bool

// Online implements Signal.
func (f SignalFunc) Online() bool { return f() }

// Flag is a manually toggled Signal. The zero value reports offline.
type Flag struct {
	mu     sync.RWMutex
	online bool
}

// NewFlag creates a Flag with an initial state.
func NewFlag(online bool) *Flag {
	return &Flag{online: online}
}

// Online implements Signal.
func (f *Flag) Online() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.online
}

// Set updates the connectivity state.
func (f *Flag) Set(online bool) {
	f.mu.Lock()
	f.online = online
	f.mu.Unlock()
}

// Prober is the health check a Monitor runs on each tick. A nil error
// means the backend answered.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor probes the backend periodically and implements Signal.
//
// The monitor must be started with Start() before it reports anything
// other than its initial offline state.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *log.Logger
	onOnline func()

	mu      sync.Mutex
	online  bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	// Interval between probes. Defaults to 15 seconds.
	Interval time.Duration
	// OnOnline runs (on the monitor goroutine) each time connectivity
	// transitions from offline to online. May be nil.
	OnOnline func()
	// Logger for state transitions. If nil, a default logger writing to
	// stderr is used.
	Logger *log.Logger
}

// NewMonitor creates a Monitor probing the given backend.
func NewMonitor(prober Prober, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	return &Monitor{
		prober:   prober,
		interval: opts.Interval,
		logger:   opts.Logger,
		onOnline: opts.OnOnline,
	}
}

// Online implements Signal.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start begins probing. An immediate probe runs before the first tick so
// callers get a state without waiting a full interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.wg.Add(1)
	go m.loop(ctx)
	return nil
}

// Stop halts probing and blocks until the probe goroutine has exited.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.prober.Health(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	online := err == nil

	m.mu.Lock()
	was := m.online
	m.online = online
	m.mu.Unlock()

	switch {
	case online && !was:
		m.logger.Printf("Backend reachable")
		if m.onOnline != nil {
			m.onOnline()
		}
	case !online && was:
		m.logger.Printf("Backend unreachable: %v", err)
	}
}
