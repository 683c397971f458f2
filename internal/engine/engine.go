// Package engine implements the reconciliation pass that drains the
// operation log against the backend and then rebuilds the local store
// from the backend's canonical collections.
//
// A pass moves through the states Idle -> Syncing -> {Idle, Error}. Passes
// are serialized: a Sync call arriving while one is in flight coalesces
// onto it and receives its outcome. Running two replay phases at once
// would race to delete the same log entries and could double-submit
// creates, so the single-flight guarantee is load-bearing, not cosmetic.
package engine

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/eventcompass/eventcompass/internal/connectivity"
	"github.com/eventcompass/eventcompass/internal/remote"
	"github.com/eventcompass/eventcompass/internal/store"
)

// State is the externally observable phase of the engine.
type State string

const (
	// StateIdle means no pass is running and the last one (if any) succeeded.
	StateIdle State = "idle"
	// StateSyncing means a pass is in flight.
	StateSyncing State = "syncing"
	// StateError means the last pass aborted; queued operations are intact.
	StateError State = "error"
)

// Config assembles an Engine.
type Config struct {
	Store  *store.Store
	Client *remote.Client
	Signal connectivity.Signal

	// Reload refreshes whatever projection layer sits on top of the store.
	// Called after every phase that changes local state, including aborts.
	// May be nil.
	Reload func(ctx context.Context) error

	// OnState observes state transitions. May be nil.
	OnState func(State)

	// Logger for pass progress. If nil, a default logger writing to stderr
	// is used.
	Logger *log.Logger
}

// Engine runs reconciliation passes. Create one with New; the zero value
// is not usable.
type Engine struct {
	store   *store.Store
	client  *remote.Client
	signal  connectivity.Signal
	reload  func(ctx context.Context) error
	onState func(State)
	logger  *log.Logger

	mu       sync.Mutex
	state    State
	lastSync time.Time
	inflight *pass
}

// pass is one in-flight reconciliation; waiters block on done and read err
// afterwards.
type pass struct {
	done chan struct{}
	err  error
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{
		store:   cfg.Store,
		client:  cfg.Client,
		signal:  cfg.Signal,
		reload:  cfg.Reload,
		onState: cfg.OnState,
		logger:  cfg.Logger,
		state:   StateIdle,
	}
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastSync returns the completion time of the last successful pass, or the
// zero time if none has completed.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	notify := e.onState
	e.mu.Unlock()
	if notify != nil {
		notify(s)
	}
}

// Sync runs one reconciliation pass, or joins the pass already in flight
// and returns its outcome.
//
// The returned error describes why a pass aborted (network, unresolved
// reference, storage); callers presenting sync results to users should
// surface only the engine state, which is already Error by the time the
// error is returned. An offline pass is not an error: it reloads local
// state, parks in Error, and returns nil.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if p := e.inflight; p != nil {
		e.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p := &pass{done: make(chan struct{})}
	e.inflight = p
	e.mu.Unlock()

	p.err = e.runPass(ctx)

	e.mu.Lock()
	e.inflight = nil
	e.mu.Unlock()
	close(p.done)
	return p.err
}

func (e *Engine) runPass(ctx context.Context) error {
	if !e.signal.Online() {
		e.logger.Printf("Offline, skipping pass")
		e.reloadLocal(ctx)
		e.setState(StateError)
		return nil
	}

	e.setState(StateSyncing)
	started := time.Now()

	replayed, err := e.replayAll(ctx)
	if err != nil {
		e.logger.Printf("Replay aborted after %d operations: %v", replayed, err)
		return e.abort(ctx, err)
	}

	if err := e.pull(ctx); err != nil {
		e.logger.Printf("Pull failed: %v", err)
		return e.abort(ctx, err)
	}

	e.reloadLocal(ctx)

	e.mu.Lock()
	e.lastSync = time.Now()
	e.mu.Unlock()
	e.setState(StateIdle)

	e.logger.Printf("Pass complete: %d operations replayed in %s", replayed, time.Since(started).Round(time.Millisecond))
	return nil
}

// abort reloads local state so observers see a consistent (possibly stale)
// view, parks the engine in Error, and hands the cause back to Sync.
func (e *Engine) abort(ctx context.Context, err error) error {
	e.reloadLocal(ctx)
	e.setState(StateError)
	return err
}

func (e *Engine) reloadLocal(ctx context.Context) {
	if e.reload == nil {
		return
	}
	if err := e.reload(ctx); err != nil {
		e.logger.Printf("WARNING: Failed to reload local state: %v", err)
	}
}

// replayAll drains the operation log in created_at order. The first error
// aborts the phase; already-replayed entries are gone, later ones stay
// queued for the next pass.
func (e *Engine) replayAll(ctx context.Context) (int, error) {
	ops, err := e.store.ListOperations(ctx)
	if err != nil {
		return 0, err
	}

	remap := newRemapTable()
	for i, op := range ops {
		if err := e.replay(ctx, remap, op); err != nil {
			return i, err
		}
	}
	return len(ops), nil
}

// pull rebuilds every entity collection from the backend. The operation
// log is never touched here; anything queued after the replay phase
// started survives for the next pass.
func (e *Engine) pull(ctx context.Context) error {
	members, err := e.client.ListMembers(ctx)
	if err != nil {
		return err
	}
	materials, err := e.client.ListMaterials(ctx)
	if err != nil {
		return err
	}
	schedules, err := e.client.ListSchedules(ctx)
	if err != nil {
		return err
	}
	todos, err := e.client.ListTodos(ctx)
	if err != nil {
		return err
	}
	var tasks []taskBatch
	for _, sched := range schedules {
		list, err := e.client.ListTasks(ctx, sched.ID)
		if err != nil {
			return err
		}
		tasks = append(tasks, taskBatch{scheduleID: sched.ID, tasks: list})
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.ClearEntities(ctx); err != nil {
			return err
		}
		for _, m := range members {
			if err := tx.PutMember(ctx, syncedMember(m)); err != nil {
				return err
			}
		}
		for _, m := range materials {
			if err := tx.PutMaterial(ctx, syncedMaterial(m)); err != nil {
				return err
			}
		}
		for _, s := range schedules {
			if err := tx.PutSchedule(ctx, s); err != nil {
				return err
			}
		}
		for _, batch := range tasks {
			for _, task := range batch.tasks {
				task.ScheduleID = batch.scheduleID
				if err := tx.PutTask(ctx, task); err != nil {
					return err
				}
			}
		}
		for _, todo := range todos {
			if err := tx.PutTodo(ctx, todo); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset wipes the backend and then the local store, in that order. If the
// remote call fails nothing local is destroyed.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.client.Reset(ctx); err != nil {
		return err
	}
	if err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ClearAll(ctx)
	}); err != nil {
		return err
	}
	e.reloadLocal(ctx)
	e.logger.Printf("Reset complete")
	return nil
}
