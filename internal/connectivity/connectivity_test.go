package connectivity

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"
)

func TestFlag(t *testing.T) {
	f := NewFlag(false)
	if f.Online() {
		t.Error("Flag should start offline")
	}
	f.Set(true)
	if !f.Online() {
		t.Error("Flag should report online after Set(true)")
	}
}

// fakeProber scripts the health probe outcomes in order, sticking on the
// last one.
type fakeProber struct {
	mu      sync.Mutex
	results []error
	calls   int
	probed  chan struct{}
}

func (p *fakeProber) Health(ctx context.Context) error {
	p.mu.Lock()
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	err := p.results[i]
	p.calls++
	p.mu.Unlock()

	select {
	case p.probed <- struct{}{}:
	default:
	}
	return err
}

func TestMonitorFiresOnOfflineToOnlineEdge(t *testing.T) {
	down := errors.New("connection refused")
	prober := &fakeProber{
		results: []error{down, nil, nil},
		probed:  make(chan struct{}, 16),
	}

	onlineEvents := make(chan struct{}, 16)
	m := NewMonitor(prober, MonitorOptions{
		Interval: 10 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[test] ", log.LstdFlags),
		OnOnline: func() { onlineEvents <- struct{}{} },
	})

	if m.Online() {
		t.Error("Monitor should start offline")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	select {
	case <-onlineEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("OnOnline never fired after the backend recovered")
	}
	if !m.Online() {
		t.Error("Monitor should report online after a successful probe")
	}

	// Staying online must not refire the edge callback. Let several more
	// probes run and check no further events arrived.
	for i := 0; i < 5; i++ {
		select {
		case <-prober.probed:
		case <-time.After(2 * time.Second):
			t.Fatal("Probes stopped")
		}
	}
	select {
	case <-onlineEvents:
		t.Error("OnOnline fired again without an offline transition")
	default:
	}
}

func TestMonitorStopHaltsProbing(t *testing.T) {
	prober := &fakeProber{results: []error{nil}, probed: make(chan struct{}, 16)}
	m := NewMonitor(prober, MonitorOptions{
		Interval: 5 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-prober.probed:
	case <-time.After(2 * time.Second):
		t.Fatal("No probe ran")
	}

	m.Stop()
	prober.mu.Lock()
	after := prober.calls
	prober.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	prober.mu.Lock()
	final := prober.calls
	prober.mu.Unlock()
	if final != after {
		t.Errorf("Probing continued after Stop: %d then %d calls", after, final)
	}
}
