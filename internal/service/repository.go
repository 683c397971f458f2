package service

import (
	"context"
	"sort"

	"github.com/eventcompass/eventcompass/internal/model"
)

// The read side: sorted snapshots of every collection, rebuilt from the
// store after each mutating step. Accessors return the cached slices;
// callers must not modify them.

// Reload rebuilds every projection from the store.
func (s *Service) Reload(ctx context.Context) error {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return err
	}
	materials, err := s.store.ListMaterials(ctx)
	if err != nil {
		return err
	}
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	todos, err := s.store.ListTodos(ctx)
	if err != nil {
		return err
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ID < members[j].ID
	})
	sort.Slice(materials, func(i, j int) bool {
		if materials[i].Name != materials[j].Name {
			return materials[i].Name < materials[j].Name
		}
		return materials[i].ID < materials[j].ID
	})
	sort.Slice(schedules, func(i, j int) bool {
		if schedules[i].StartTime != schedules[j].StartTime {
			return schedules[i].StartTime < schedules[j].StartTime
		}
		return schedules[i].ID < schedules[j].ID
	})
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StartTime != tasks[j].StartTime {
			return tasks[i].StartTime < tasks[j].StartTime
		}
		return tasks[i].ID < tasks[j].ID
	})
	sort.Slice(todos, func(i, j int) bool {
		di, dj := todos[i].DueDate, todos[j].DueDate
		switch {
		case di == nil && dj == nil:
			return todos[i].ID < todos[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		default:
			return todos[i].ID < todos[j].ID
		}
	})

	s.mu.Lock()
	s.members = members
	s.materials = materials
	s.schedules = schedules
	s.tasks = tasks
	s.todos = todos
	s.mu.Unlock()
	return nil
}

// reloadAndNotifyAll is the engine's reload hook: the pull phase rewrites
// every collection, so every kind gets an entity_changed event.
func (s *Service) reloadAndNotifyAll(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	for _, kind := range model.Kinds {
		s.notify(Event{Type: EventEntityChanged, Kind: kind})
	}
	return nil
}

// refresh reloads the projections after a façade mutation and notifies
// the touched kinds.
func (s *Service) refresh(ctx context.Context, kinds ...model.Kind) {
	if err := s.Reload(ctx); err != nil {
		s.logger.Printf("WARNING: Failed to reload projections: %v", err)
		return
	}
	for _, kind := range kinds {
		s.notify(Event{Type: EventEntityChanged, Kind: kind})
	}
}

// Members returns every member, sorted by name.
func (s *Service) Members() []model.MemberRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members
}

// Materials returns every material, sorted by name.
func (s *Service) Materials() []model.MaterialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materials
}

// Schedules returns every schedule, sorted by start time.
func (s *Service) Schedules() []model.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedules
}

// Tasks returns every task, sorted by start time.
func (s *Service) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks
}

// TasksBySchedule returns one schedule's tasks, sorted by start time.
func (s *Service) TasksBySchedule(scheduleID int64) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Task
	for _, task := range s.tasks {
		if task.ScheduleID == scheduleID {
			out = append(out, task)
		}
	}
	return out
}

// Todos returns every todo, sorted by due date with undated ones last.
func (s *Service) Todos() []model.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.todos
}
