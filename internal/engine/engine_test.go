package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/eventcompass/eventcompass/internal/connectivity"
	"github.com/eventcompass/eventcompass/internal/model"
	"github.com/eventcompass/eventcompass/internal/remote"
	"github.com/eventcompass/eventcompass/internal/store"
)

// fakeBackend is an in-memory stand-in for the remote API. It records every
// request it serves and can be told to fail specific routes.
type fakeBackend struct {
	mu        sync.Mutex
	members   map[int64]model.Member
	materials map[int64]model.Material
	schedules map[int64]model.Schedule
	tasks     map[int64]model.Task
	todos     map[int64]model.Todo
	nextID    int64
	calls     []string
	failOn    map[string]bool
	listDelay time.Duration

	srv *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		members:   make(map[int64]model.Member),
		materials: make(map[int64]model.Material),
		schedules: make(map[int64]model.Schedule),
		tasks:     make(map[int64]model.Task),
		todos:     make(map[int64]model.Todo),
		nextID:    100,
		failOn:    make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /reset", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		b.members = make(map[int64]model.Member)
		b.materials = make(map[int64]model.Material)
		b.schedules = make(map[int64]model.Schedule)
		b.tasks = make(map[int64]model.Task)
		b.todos = make(map[int64]model.Todo)
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /members", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		delay := b.listDelay
		out := make([]model.Member, 0, len(b.members))
		for _, m := range b.members {
			out = append(out, m)
		}
		b.mu.Unlock()
		time.Sleep(delay)
		writeJSON(w, out)
	})
	mux.HandleFunc("POST /members", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var in model.MemberInput
		json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		m := model.Member{ID: b.allocID(), Name: in.Name, Part: in.Part, Position: in.Position, Contact: in.Contact}
		b.members[m.ID] = m
		b.mu.Unlock()
		writeJSON(w, m)
	})
	mux.HandleFunc("PUT /members/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var u model.MemberUpdate
		json.NewDecoder(r.Body).Decode(&u)
		b.mu.Lock()
		m, ok := b.members[pathID(r)]
		if !ok {
			b.mu.Unlock()
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		u.Apply(&m)
		b.members[m.ID] = m
		b.mu.Unlock()
		writeJSON(w, m)
	})
	mux.HandleFunc("DELETE /members/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		delete(b.members, pathID(r))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /materials", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		out := make([]model.Material, 0, len(b.materials))
		for _, m := range b.materials {
			out = append(out, m)
		}
		b.mu.Unlock()
		writeJSON(w, out)
	})
	mux.HandleFunc("POST /materials", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var in model.MaterialInput
		json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		m := model.Material{ID: b.allocID(), Name: in.Name, Part: in.Part, Quantity: in.Quantity}
		b.materials[m.ID] = m
		b.mu.Unlock()
		writeJSON(w, m)
	})
	mux.HandleFunc("DELETE /materials/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		delete(b.materials, pathID(r))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /schedules", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		out := make([]model.Schedule, 0, len(b.schedules))
		for _, s := range b.schedules {
			out = append(out, s)
		}
		b.mu.Unlock()
		writeJSON(w, out)
	})
	mux.HandleFunc("POST /schedules", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var in model.ScheduleInput
		json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		s := model.Schedule{ID: b.allocID(), Name: in.Name, EventDate: in.EventDate, StartTime: in.StartTime, EndTime: in.EndTime}
		b.schedules[s.ID] = s
		b.mu.Unlock()
		writeJSON(w, s)
	})
	mux.HandleFunc("DELETE /schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		id := pathID(r)
		delete(b.schedules, id)
		for tid, task := range b.tasks {
			if task.ScheduleID == id {
				delete(b.tasks, tid)
			}
		}
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /schedules/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		id := pathID(r)
		out := make([]model.Task, 0)
		for _, task := range b.tasks {
			if task.ScheduleID == id {
				out = append(out, task)
			}
		}
		b.mu.Unlock()
		writeJSON(w, out)
	})
	mux.HandleFunc("POST /schedules/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var in model.TaskInput
		json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		scheduleID := pathID(r)
		if _, ok := b.schedules[scheduleID]; !ok {
			b.mu.Unlock()
			http.Error(w, "schedule not found", http.StatusNotFound)
			return
		}
		task := model.Task{
			ID:         b.allocID(),
			ScheduleID: scheduleID,
			Name:       in.Name,
			Stage:      in.Stage,
			StartTime:  in.StartTime,
			EndTime:    in.EndTime,
			Location:   in.Location,
			Status:     in.Status,
			Note:       in.Note,
		}
		b.tasks[task.ID] = task
		b.mu.Unlock()
		writeJSON(w, task)
	})
	mux.HandleFunc("DELETE /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		delete(b.tasks, pathID(r))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /todos", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		out := make([]model.Todo, 0, len(b.todos))
		for _, todo := range b.todos {
			out = append(out, todo)
		}
		b.mu.Unlock()
		writeJSON(w, out)
	})
	mux.HandleFunc("POST /todos", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var in model.TodoInput
		json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		if in.AssigneeID != nil {
			if _, ok := b.members[*in.AssigneeID]; !ok {
				b.mu.Unlock()
				http.Error(w, "assignee not found", http.StatusUnprocessableEntity)
				return
			}
		}
		todo := model.Todo{
			ID:          b.allocID(),
			Title:       in.Title,
			Description: in.Description,
			DueDate:     in.DueDate,
			Status:      in.Status,
			AssigneeID:  in.AssigneeID,
		}
		b.todos[todo.ID] = todo
		b.mu.Unlock()
		writeJSON(w, todo)
	})
	mux.HandleFunc("PUT /todos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		var u model.TodoUpdate
		json.NewDecoder(r.Body).Decode(&u)
		b.mu.Lock()
		todo, ok := b.todos[pathID(r)]
		if !ok {
			b.mu.Unlock()
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		u.Apply(&todo)
		b.todos[todo.ID] = todo
		b.mu.Unlock()
		writeJSON(w, todo)
	})
	mux.HandleFunc("DELETE /todos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.reject(w, r) {
			return
		}
		b.mu.Lock()
		delete(b.todos, pathID(r))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// reject records the call and serves a 500 when the route is marked failing.
func (b *fakeBackend) reject(w http.ResponseWriter, r *http.Request) bool {
	key := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.calls = append(b.calls, key)
	fail := b.failOn[key]
	b.mu.Unlock()
	if fail {
		http.Error(w, "injected failure", http.StatusInternalServerError)
	}
	return fail
}

func (b *fakeBackend) allocID() int64 {
	b.nextID++
	return b.nextID
}

func (b *fakeBackend) failNext(route string) {
	b.mu.Lock()
	b.failOn[route] = true
	b.mu.Unlock()
}

func (b *fakeBackend) restore(route string) {
	b.mu.Lock()
	delete(b.failOn, route)
	b.mu.Unlock()
}

func (b *fakeBackend) callCount(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == route {
			n++
		}
	}
	return n
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func newTestEngine(t *testing.T, backend *fakeBackend, online bool) (*Engine, *store.Store, *connectivity.Flag) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "engine_test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	flag := connectivity.NewFlag(online)
	eng := New(Config{
		Store:  st,
		Client: remote.New(backend.srv.URL, nil),
		Signal: flag,
	})
	return eng, st, flag
}

func appendOp(t *testing.T, st *store.Store, kind model.Kind, action model.Action, refID int64, payload any) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.AppendOperation(context.Background(), kind, action, refID, payload)
	})
	if err != nil {
		t.Fatalf("Failed to append %s %s: %v", kind, action, err)
	}
}

func TestPassReplaysMemberThenTodoWithRemappedAssignee(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	memberID := model.NewLocalID()
	todoID := model.NewLocalID()
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		rec := model.MemberRecord{Member: model.Member{ID: memberID, Name: "Aoi", Part: "stage", Position: "lead"}, SyncStatus: model.SyncPending}
		if err := tx.PutMember(ctx, rec); err != nil {
			return err
		}
		if err := tx.AppendOperation(ctx, model.KindMember, model.ActionCreate, memberID, model.MemberCreatePayload{Name: "Aoi", Part: "stage", Position: "lead"}); err != nil {
			return err
		}
		if err := tx.PutTodo(ctx, model.Todo{ID: todoID, Title: "print run sheets", Status: model.TodoPending, AssigneeID: &memberID}); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindTodo, model.ActionCreate, todoID, model.TodoCreatePayload{Title: "print run sheets", AssigneeID: &memberID})
	})
	if err != nil {
		t.Fatalf("Failed to seed offline edits: %v", err)
	}

	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if eng.State() != StateIdle {
		t.Fatalf("Expected Idle after successful pass, got %s", eng.State())
	}

	// Backend: one member, one todo assigned to the member's server id.
	backend.mu.Lock()
	if len(backend.members) != 1 {
		t.Fatalf("Expected 1 member on backend, got %d", len(backend.members))
	}
	var serverMemberID int64
	for id := range backend.members {
		serverMemberID = id
	}
	if len(backend.todos) != 1 {
		t.Fatalf("Expected 1 todo on backend, got %d", len(backend.todos))
	}
	for _, todo := range backend.todos {
		if todo.AssigneeID == nil || *todo.AssigneeID != serverMemberID {
			t.Errorf("Todo assignee not remapped: got %v, want %d", todo.AssigneeID, serverMemberID)
		}
	}
	backend.mu.Unlock()

	// Local mirror: log drained, local ids replaced by server ids.
	if n, _ := st.CountOperations(ctx); n != 0 {
		t.Errorf("Expected drained log, %d operations remain", n)
	}
	members, err := st.ListMembers(ctx)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 1 || members[0].ID != serverMemberID || members[0].SyncStatus != model.SyncSynced {
		t.Errorf("Unexpected local member state: %+v", members)
	}
	todos, err := st.ListTodos(ctx)
	if err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if len(todos) != 1 || todos[0].AssigneeID == nil || *todos[0].AssigneeID != serverMemberID {
		t.Errorf("Local todo assignee not remapped: %+v", todos)
	}
}

func TestPassRewritesQueuedTaskScheduleReference(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	scheduleID := model.NewLocalID()
	taskID := model.NewLocalID()
	input := model.TaskInput{Name: "Rig lights", Stage: "main", StartTime: "2026-03-14T09:00:00", EndTime: "2026-03-14T11:00:00", Status: model.TaskPlanned}
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		sched := model.Schedule{ID: scheduleID, Name: "Load-in", EventDate: "2026-03-14", StartTime: "2026-03-14T08:00:00", EndTime: "2026-03-14T18:00:00"}
		if err := tx.PutSchedule(ctx, sched); err != nil {
			return err
		}
		if err := tx.AppendOperation(ctx, model.KindSchedule, model.ActionCreate, scheduleID, model.ScheduleCreatePayload{Name: sched.Name, EventDate: sched.EventDate, StartTime: sched.StartTime, EndTime: sched.EndTime}); err != nil {
			return err
		}
		task := model.Task{ID: taskID, ScheduleID: scheduleID, Name: input.Name, Stage: input.Stage, StartTime: input.StartTime, EndTime: input.EndTime, Status: input.Status}
		if err := tx.PutTask(ctx, task); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindTask, model.ActionCreate, taskID, model.TaskCreatePayload{TaskInput: input, ScheduleID: scheduleID})
	})
	if err != nil {
		t.Fatalf("Failed to seed offline edits: %v", err)
	}

	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	backend.mu.Lock()
	if len(backend.schedules) != 1 || len(backend.tasks) != 1 {
		t.Fatalf("Expected 1 schedule and 1 task on backend, got %d and %d", len(backend.schedules), len(backend.tasks))
	}
	var serverScheduleID int64
	for id := range backend.schedules {
		serverScheduleID = id
	}
	for _, task := range backend.tasks {
		if task.ScheduleID != serverScheduleID {
			t.Errorf("Backend task parent %d, want %d", task.ScheduleID, serverScheduleID)
		}
	}
	backend.mu.Unlock()

	tasks, err := st.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ScheduleID != serverScheduleID || tasks[0].ID < 0 {
		t.Errorf("Local task not rehomed: %+v", tasks)
	}
	if n, _ := st.CountOperations(ctx); n != 0 {
		t.Errorf("Expected drained log, %d operations remain", n)
	}
}

func TestReplayPreservesEnqueueOrder(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	memberID := model.NewLocalID()
	appendOp(t, st, model.KindMember, model.ActionCreate, memberID, model.MemberCreatePayload{Name: "Aoi", Part: "stage", Position: "lead"})
	name := "Aoi K."
	appendOp(t, st, model.KindMember, model.ActionUpdate, memberID, model.MemberUpdatePayload{Name: &name})
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutMember(ctx, model.MemberRecord{Member: model.Member{ID: memberID, Name: "Aoi", Part: "stage", Position: "lead"}, SyncStatus: model.SyncPending})
	})
	if err != nil {
		t.Fatalf("Failed to seed member row: %v", err)
	}

	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	var mutations []string
	for _, c := range backend.callLog() {
		if c == "POST /members" || c[:4] == "PUT " {
			mutations = append(mutations, c)
		}
	}
	if len(mutations) != 2 || mutations[0] != "POST /members" {
		t.Fatalf("Expected create before update, got %v", mutations)
	}

	members, _ := st.ListMembers(ctx)
	if len(members) != 1 || members[0].Name != "Aoi K." {
		t.Errorf("Update not applied on backend round trip: %+v", members)
	}
}

func TestOfflinePassParksInErrorWithoutTouchingLog(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, false)
	ctx := context.Background()

	appendOp(t, st, model.KindMember, model.ActionCreate, model.NewLocalID(), model.MemberCreatePayload{Name: "Aoi", Part: "stage", Position: "lead"})

	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Offline pass should return nil, got %v", err)
	}
	if eng.State() != StateError {
		t.Errorf("Expected Error state while offline, got %s", eng.State())
	}
	if n, _ := st.CountOperations(ctx); n != 1 {
		t.Errorf("Offline pass must not touch the log, %d operations remain", n)
	}
	if got := backend.callCount("GET /members"); got != 0 {
		t.Errorf("Offline pass must not reach the backend, saw %d list calls", got)
	}
}

func TestReplayAbortLeavesLaterOperationsQueued(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	memberID := model.NewLocalID()
	materialID := model.NewLocalID()
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutMember(ctx, model.MemberRecord{Member: model.Member{ID: memberID, Name: "Aoi", Part: "stage", Position: "lead"}, SyncStatus: model.SyncPending}); err != nil {
			return err
		}
		if err := tx.AppendOperation(ctx, model.KindMember, model.ActionCreate, memberID, model.MemberCreatePayload{Name: "Aoi", Part: "stage", Position: "lead"}); err != nil {
			return err
		}
		if err := tx.PutMaterial(ctx, model.MaterialRecord{Material: model.Material{ID: materialID, Name: "Cable drum", Part: "sound", Quantity: 4}, SyncStatus: model.SyncPending}); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindMaterial, model.ActionCreate, materialID, model.MaterialCreatePayload{Name: "Cable drum", Part: "sound", Quantity: 4})
	})
	if err != nil {
		t.Fatalf("Failed to seed offline edits: %v", err)
	}

	backend.failNext("POST /materials")
	err = eng.Sync(ctx)
	var nerr *model.NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError from aborted replay, got %v", err)
	}
	if eng.State() != StateError {
		t.Errorf("Expected Error after abort, got %s", eng.State())
	}

	// The member create replayed and left the log; the material create stays.
	ops, err := st.ListOperations(ctx)
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != model.KindMaterial {
		t.Fatalf("Expected only the material create queued, got %+v", ops)
	}

	// Next pass with the backend healthy drains the rest.
	backend.restore("POST /materials")
	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Recovery pass failed: %v", err)
	}
	if n, _ := st.CountOperations(ctx); n != 0 {
		t.Errorf("Expected drained log after recovery, %d remain", n)
	}
	if got := backend.callCount("POST /members"); got != 1 {
		t.Errorf("Member create must replay exactly once, saw %d", got)
	}
}

func TestTaskCreateWithUnreachableScheduleAborts(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	orphanSchedule := model.NewLocalID()
	input := model.TaskInput{Name: "Rig", Stage: "main", StartTime: "2026-03-14T09:00", EndTime: "2026-03-14T10:00"}
	appendOp(t, st, model.KindTask, model.ActionCreate, model.NewLocalID(), model.TaskCreatePayload{TaskInput: input, ScheduleID: orphanSchedule})

	err := eng.Sync(ctx)
	var uerr *model.UnresolvedReferenceError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UnresolvedReferenceError, got %v", err)
	}
	if uerr.Kind != model.KindSchedule || uerr.LocalID != orphanSchedule {
		t.Errorf("Unexpected unresolved reference: %+v", uerr)
	}
	if n, _ := st.CountOperations(ctx); n != 1 {
		t.Errorf("Aborting operation must stay queued, %d remain", n)
	}
}

func TestUpdateForDroppedLocalRecordIsDiscarded(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	// An update whose target create never made it into the log: the record
	// is unreachable, so the entry is discarded rather than replayed.
	name := "ghost"
	appendOp(t, st, model.KindMember, model.ActionUpdate, model.NewLocalID(), model.MemberUpdatePayload{Name: &name})

	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if eng.State() != StateIdle {
		t.Errorf("Expected Idle, got %s", eng.State())
	}
	if n, _ := st.CountOperations(ctx); n != 0 {
		t.Errorf("Discarded entry still queued, %d remain", n)
	}
	for _, c := range backend.callLog() {
		if c != "GET /members" && c != "GET /materials" && c != "GET /schedules" && c != "GET /todos" {
			t.Errorf("Unexpected backend call for discarded entry: %s", c)
		}
	}
}

func TestEmptyLogPassMirrorsBackend(t *testing.T) {
	backend := newFakeBackend(t)
	backend.members[1] = model.Member{ID: 1, Name: "Aoi", Part: "stage", Position: "lead"}
	backend.schedules[2] = model.Schedule{ID: 2, Name: "Load-in", EventDate: "2026-03-14", StartTime: "2026-03-14T08:00:00", EndTime: "2026-03-14T18:00:00"}
	backend.tasks[3] = model.Task{ID: 3, ScheduleID: 2, Name: "Rig", Stage: "main", StartTime: "2026-03-14T09:00:00", EndTime: "2026-03-14T10:00:00", Status: model.TaskPlanned}

	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if eng.LastSync().IsZero() {
		t.Error("LastSync not recorded after successful pass")
	}

	members, _ := st.ListMembers(ctx)
	schedules, _ := st.ListSchedules(ctx)
	tasks, _ := st.ListTasks(ctx)
	if len(members) != 1 || len(schedules) != 1 || len(tasks) != 1 {
		t.Errorf("Mirror incomplete: %d members, %d schedules, %d tasks", len(members), len(schedules), len(tasks))
	}
	if len(members) == 1 && members[0].SyncStatus != model.SyncSynced {
		t.Errorf("Pulled member not tagged synced: %v", members[0].SyncStatus)
	}
	if len(tasks) == 1 && tasks[0].ScheduleID != 2 {
		t.Errorf("Pulled task parent wrong: %d", tasks[0].ScheduleID)
	}
}

func TestResetFailsClosed(t *testing.T) {
	backend := newFakeBackend(t)
	eng, st, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutMember(ctx, model.MemberRecord{Member: model.Member{ID: 1, Name: "Aoi", Part: "stage", Position: "lead"}, SyncStatus: model.SyncSynced})
	})
	if err != nil {
		t.Fatalf("Failed to seed member: %v", err)
	}
	appendOp(t, st, model.KindMember, model.ActionDelete, 1, nil)

	backend.failNext("POST /reset")
	if err := eng.Reset(ctx); err == nil {
		t.Fatal("Reset should fail when the backend wipe fails")
	}
	members, _ := st.ListMembers(ctx)
	if len(members) != 1 {
		t.Fatalf("Local data destroyed despite failed remote reset: %d members", len(members))
	}
	if n, _ := st.CountOperations(ctx); n != 1 {
		t.Errorf("Queued edits destroyed despite failed remote reset: %d remain", n)
	}

	backend.restore("POST /reset")
	if err := eng.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	members, _ = st.ListMembers(ctx)
	if len(members) != 0 {
		t.Errorf("Expected empty mirror after reset, got %d members", len(members))
	}
	if n, _ := st.CountOperations(ctx); n != 0 {
		t.Errorf("Expected empty log after reset, %d remain", n)
	}
}

func TestConcurrentSyncCoalescesIntoOnePass(t *testing.T) {
	backend := newFakeBackend(t)
	backend.listDelay = 300 * time.Millisecond
	eng, _, _ := newTestEngine(t, backend, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = eng.Sync(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Sync %d failed: %v", i, err)
		}
	}
	if got := backend.callCount("GET /members"); got != 1 {
		t.Errorf("Expected one coalesced pass, backend saw %d list calls", got)
	}
}

func TestStateTransitionsObserved(t *testing.T) {
	backend := newFakeBackend(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "engine_test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	var mu sync.Mutex
	var states []State
	eng := New(Config{
		Store:  st,
		Client: remote.New(backend.srv.URL, nil),
		Signal: connectivity.NewFlag(true),
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	if err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != StateSyncing || states[1] != StateIdle {
		t.Errorf("Expected Syncing then Idle, got %v", states)
	}
}
