// Package service is the entity-level API the rest of the program talks
// to. It owns the mutation façade, the sorted in-memory projections of
// every collection, and the observer registry, and it wraps the
// reconciliation engine behind a trigger that never leaks replay errors
// to callers.
//
// All mutation paths funnel through here or through the engine; nothing
// else writes the store.
package service

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/eventcompass/eventcompass/internal/connectivity"
	"github.com/eventcompass/eventcompass/internal/engine"
	"github.com/eventcompass/eventcompass/internal/model"
	"github.com/eventcompass/eventcompass/internal/remote"
	"github.com/eventcompass/eventcompass/internal/store"
)

// EventType classifies observer notifications.
type EventType string

const (
	// EventEntityChanged fires after any local write to a collection.
	EventEntityChanged EventType = "entity_changed"
	// EventSyncState fires on every engine state transition.
	EventSyncState EventType = "sync_state"
	// EventSyncComplete fires after a successful reconciliation pass.
	EventSyncComplete EventType = "sync_complete"
)

// Event is one observer notification. Kind is set for EventEntityChanged,
// SyncState for EventSyncState, Duration for EventSyncComplete.
type Event struct {
	Type      EventType    `json:"type"`
	Kind      model.Kind   `json:"kind,omitempty"`
	SyncState engine.State `json:"sync_state,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Config assembles a Service.
type Config struct {
	Store  *store.Store
	Client *remote.Client
	Signal connectivity.Signal
	// Logger for façade and sync activity. If nil, a default logger
	// writing to stderr is used.
	Logger *log.Logger
}

// Service exposes create/update/delete per entity kind, sorted read
// views, and the sync trigger. Create one with New, then call Reload once
// to populate the views from the store.
type Service struct {
	store  *store.Store
	client *remote.Client
	signal connectivity.Signal
	engine *engine.Engine
	logger *log.Logger

	mu        sync.RWMutex
	members   []model.MemberRecord
	materials []model.MaterialRecord
	schedules []model.Schedule
	tasks     []model.Task
	todos     []model.Todo

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

// New creates a Service and its engine. The store is not read until
// Reload is called.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[service] ", log.LstdFlags)
	}
	s := &Service{
		store:     cfg.Store,
		client:    cfg.Client,
		signal:    cfg.Signal,
		logger:    cfg.Logger,
		observers: make(map[int]func(Event)),
	}
	s.engine = engine.New(engine.Config{
		Store:  cfg.Store,
		Client: cfg.Client,
		Signal: cfg.Signal,
		Logger: cfg.Logger,
		Reload: s.reloadAndNotifyAll,
		OnState: func(state engine.State) {
			s.notify(Event{Type: EventSyncState, SyncState: state})
		},
	})
	return s
}

// Subscribe registers an observer and returns its unsubscribe function.
// Observers run synchronously on the mutating goroutine and must not call
// back into the service.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Service) notify(event Event) {
	s.obsMu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// SyncState returns the engine's current state.
func (s *Service) SyncState() engine.State {
	return s.engine.State()
}

// LastSync returns the completion time of the last successful pass, or
// the zero time.
func (s *Service) LastSync() time.Time {
	return s.engine.LastSync()
}

// PendingOperations returns the number of queued mutations.
func (s *Service) PendingOperations(ctx context.Context) (int, error) {
	return s.store.CountOperations(ctx)
}

// Online reports the current connectivity signal.
func (s *Service) Online() bool {
	return s.signal.Online()
}

// SyncNow triggers a reconciliation pass (or joins the one in flight).
// Replay and pull failures are expressed only through the sync state;
// callers observe state, not errors.
func (s *Service) SyncNow(ctx context.Context) {
	started := time.Now()
	if err := s.engine.Sync(ctx); err != nil {
		s.logger.Printf("Sync failed: %v", err)
		return
	}
	if s.engine.State() == engine.StateIdle {
		s.notify(Event{Type: EventSyncComplete, Duration: time.Since(started)})
	}
}

// Reset wipes the backend and then the local store. Fail-closed: a remote
// failure leaves all local data intact.
func (s *Service) Reset(ctx context.Context) error {
	return s.engine.Reset(ctx)
}
