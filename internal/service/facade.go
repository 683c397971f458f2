package service

import (
	"context"
	"errors"

	"github.com/eventcompass/eventcompass/internal/model"
	"github.com/eventcompass/eventcompass/internal/store"
)

// The mutation façade. Each operation validates first, then picks one of
// two paths: online against the backend with the canonical response
// written through, or offline with a locally minted id, an optimistic
// row, and a queued log entry, all in one transaction.
//
// Online updates and deletes of a record that only exists locally
// (negative id) are refused with ErrUnsyncedRecord; such records are
// resolved only by replaying their queued create.

// CreateMember creates a member and returns its id, which is negative
// when the record was queued offline.
func (s *Service) CreateMember(ctx context.Context, in model.MemberInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	if s.signal.Online() {
		created, err := s.client.CreateMember(ctx, in)
		if err != nil {
			return 0, err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutMember(ctx, model.MemberRecord{Member: created, SyncStatus: model.SyncSynced})
		}); err != nil {
			return 0, err
		}
		s.refresh(ctx, model.KindMember)
		return created.ID, nil
	}

	id := model.NewLocalID()
	rec := model.MemberRecord{
		Member:     model.Member{ID: id, Name: in.Name, Part: in.Part, Position: in.Position, Contact: in.Contact},
		SyncStatus: model.SyncPending,
	}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutMember(ctx, rec); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindMember, model.ActionCreate, id, in)
	}); err != nil {
		return 0, err
	}
	s.refresh(ctx, model.KindMember)
	return id, nil
}

// UpdateMember applies a partial update. Offline updates against a
// missing row are a no-op.
func (s *Service) UpdateMember(ctx context.Context, id int64, update model.MemberUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		updated, err := s.client.UpdateMember(ctx, id, update)
		if err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutMember(ctx, model.MemberRecord{Member: updated, SyncStatus: model.SyncSynced})
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindMember)
		return nil
	}

	rec, err := s.store.GetMember(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	update.Apply(&rec.Member)
	rec.SyncStatus = model.SyncPending
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutMember(ctx, rec); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindMember, model.ActionUpdate, id, update)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindMember)
	return nil
}

// DeleteMember removes a member. The cascade nulls assignee_id on every
// todo row and inside every queued todo payload that references it.
func (s *Service) DeleteMember(ctx context.Context, id int64) error {
	cascade := func(tx *store.Tx) error {
		if err := tx.NullTodoAssignees(ctx, id); err != nil {
			return err
		}
		return tx.RewriteQueuedTodoAssignees(ctx, id, nil)
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		if err := s.client.DeleteMember(ctx, id); err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMember(ctx, id); err != nil {
				return err
			}
			return cascade(tx)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindMember, model.KindTodo)
		return nil
	}

	if model.IsLocalID(id) {
		// Never reached the server; drop the row and its queued ops outright.
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMember(ctx, id); err != nil {
				return err
			}
			if err := tx.DeleteOperationsByRef(ctx, id); err != nil {
				return err
			}
			return cascade(tx)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindMember, model.KindTodo)
		return nil
	}

	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SetMemberSyncStatus(ctx, id, model.SyncPending); err != nil {
			return err
		}
		if err := tx.AppendOperation(ctx, model.KindMember, model.ActionDelete, id, nil); err != nil {
			return err
		}
		return cascade(tx)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindMember, model.KindTodo)
	return nil
}

// CreateMaterial creates a material and returns its id.
func (s *Service) CreateMaterial(ctx context.Context, in model.MaterialInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	if s.signal.Online() {
		created, err := s.client.CreateMaterial(ctx, in)
		if err != nil {
			return 0, err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutMaterial(ctx, model.MaterialRecord{Material: created, SyncStatus: model.SyncSynced})
		}); err != nil {
			return 0, err
		}
		s.refresh(ctx, model.KindMaterial)
		return created.ID, nil
	}

	id := model.NewLocalID()
	rec := model.MaterialRecord{
		Material:   model.Material{ID: id, Name: in.Name, Part: in.Part, Quantity: in.Quantity},
		SyncStatus: model.SyncPending,
	}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutMaterial(ctx, rec); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindMaterial, model.ActionCreate, id, in)
	}); err != nil {
		return 0, err
	}
	s.refresh(ctx, model.KindMaterial)
	return id, nil
}

// UpdateMaterial applies a partial update. Offline updates against a
// missing row are a no-op.
func (s *Service) UpdateMaterial(ctx context.Context, id int64, update model.MaterialUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		updated, err := s.client.UpdateMaterial(ctx, id, update)
		if err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutMaterial(ctx, model.MaterialRecord{Material: updated, SyncStatus: model.SyncSynced})
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindMaterial)
		return nil
	}

	rec, err := s.store.GetMaterial(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	update.Apply(&rec.Material)
	rec.SyncStatus = model.SyncPending
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutMaterial(ctx, rec); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindMaterial, model.ActionUpdate, id, update)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindMaterial)
	return nil
}

// DeleteMaterial removes a material.
func (s *Service) DeleteMaterial(ctx context.Context, id int64) error {
	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		if err := s.client.DeleteMaterial(ctx, id); err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteMaterial(ctx, id)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindMaterial)
		return nil
	}

	if model.IsLocalID(id) {
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMaterial(ctx, id); err != nil {
				return err
			}
			return tx.DeleteOperationsByRef(ctx, id)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindMaterial)
		return nil
	}

	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SetMaterialSyncStatus(ctx, id, model.SyncPending); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindMaterial, model.ActionDelete, id, nil)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindMaterial)
	return nil
}

// CreateSchedule creates a schedule and returns its id.
func (s *Service) CreateSchedule(ctx context.Context, in model.ScheduleInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	in = in.Normalized()

	if s.signal.Online() {
		created, err := s.client.CreateSchedule(ctx, in)
		if err != nil {
			return 0, err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutSchedule(ctx, created)
		}); err != nil {
			return 0, err
		}
		s.refresh(ctx, model.KindSchedule)
		return created.ID, nil
	}

	id := model.NewLocalID()
	sched := model.Schedule{ID: id, Name: in.Name, EventDate: in.EventDate, StartTime: in.StartTime, EndTime: in.EndTime}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutSchedule(ctx, sched); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindSchedule, model.ActionCreate, id, in)
	}); err != nil {
		return 0, err
	}
	s.refresh(ctx, model.KindSchedule)
	return id, nil
}

// UpdateSchedule applies a partial update. Offline updates against a
// missing row are a no-op.
func (s *Service) UpdateSchedule(ctx context.Context, id int64, update model.ScheduleUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		updated, err := s.client.UpdateSchedule(ctx, id, update)
		if err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutSchedule(ctx, updated)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindSchedule)
		return nil
	}

	sched, err := s.store.GetSchedule(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	update.Apply(&sched)
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutSchedule(ctx, sched); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindSchedule, model.ActionUpdate, id, update)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindSchedule)
	return nil
}

// DeleteSchedule removes a schedule. The cascade removes its task rows
// and every queued task-create that targeted it.
func (s *Service) DeleteSchedule(ctx context.Context, id int64) error {
	cascade := func(tx *store.Tx) error {
		if err := tx.DeleteQueuedTaskCreates(ctx, id); err != nil {
			return err
		}
		return tx.DeleteTasksBySchedule(ctx, id)
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		if err := s.client.DeleteSchedule(ctx, id); err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := cascade(tx); err != nil {
				return err
			}
			return tx.DeleteSchedule(ctx, id)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindSchedule, model.KindTask)
		return nil
	}

	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := cascade(tx); err != nil {
			return err
		}
		if err := tx.DeleteSchedule(ctx, id); err != nil {
			return err
		}
		if model.IsLocalID(id) {
			return tx.DeleteOperationsByRef(ctx, id)
		}
		return tx.AppendOperation(ctx, model.KindSchedule, model.ActionDelete, id, nil)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindSchedule, model.KindTask)
	return nil
}

// CreateTask creates a task under a schedule and returns the task id. A
// task targeting a schedule that only exists locally is always queued,
// even while online, because its schedule_id cannot be sent to the
// backend until the schedule's own create has replayed.
func (s *Service) CreateTask(ctx context.Context, scheduleID int64, in model.TaskInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	in = in.Normalized()

	if s.signal.Online() && !model.IsLocalID(scheduleID) {
		created, err := s.client.CreateTask(ctx, scheduleID, in)
		if err != nil {
			return 0, err
		}
		created.ScheduleID = scheduleID
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutTask(ctx, created)
		}); err != nil {
			return 0, err
		}
		s.refresh(ctx, model.KindTask)
		return created.ID, nil
	}

	id := model.NewLocalID()
	task := model.Task{
		ID:         id,
		ScheduleID: scheduleID,
		Name:       in.Name,
		Stage:      in.Stage,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Location:   in.Location,
		Status:     in.Status,
		Note:       in.Note,
	}
	payload := model.TaskCreatePayload{TaskInput: in, ScheduleID: scheduleID}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutTask(ctx, task); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindTask, model.ActionCreate, id, payload)
	}); err != nil {
		return 0, err
	}
	s.refresh(ctx, model.KindTask)
	return id, nil
}

// CreateMilestone creates the zero-duration task variant; start and end
// times must be equal.
func (s *Service) CreateMilestone(ctx context.Context, scheduleID int64, in model.TaskInput) (int64, error) {
	if in.StartTime != in.EndTime {
		return 0, &model.ValidationError{Field: "milestone times", Reason: "start_time and end_time must be equal"}
	}
	return s.CreateTask(ctx, scheduleID, in)
}

// UpdateTask applies a partial update. Offline updates against a missing
// row are a no-op.
func (s *Service) UpdateTask(ctx context.Context, id int64, update model.TaskUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		updated, err := s.client.UpdateTask(ctx, id, update)
		if err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutTask(ctx, updated)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindTask)
		return nil
	}

	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	update.Apply(&task)
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutTask(ctx, task); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindTask, model.ActionUpdate, id, update)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindTask)
	return nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		if err := s.client.DeleteTask(ctx, id); err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteTask(ctx, id)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindTask)
		return nil
	}

	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteTask(ctx, id); err != nil {
			return err
		}
		if model.IsLocalID(id) {
			return tx.DeleteOperationsByRef(ctx, id)
		}
		return tx.AppendOperation(ctx, model.KindTask, model.ActionDelete, id, nil)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindTask)
	return nil
}

// CreateTodo creates a todo and returns its id. A todo whose assignee
// only exists locally is always queued, even while online, because the
// negative assignee_id cannot be sent to the backend.
func (s *Service) CreateTodo(ctx context.Context, in model.TodoInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	in = in.Normalized()

	localAssignee := in.AssigneeID != nil && model.IsLocalID(*in.AssigneeID)
	if s.signal.Online() && !localAssignee {
		created, err := s.client.CreateTodo(ctx, in)
		if err != nil {
			return 0, err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutTodo(ctx, created)
		}); err != nil {
			return 0, err
		}
		s.refresh(ctx, model.KindTodo)
		return created.ID, nil
	}

	id := model.NewLocalID()
	todo := model.Todo{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      in.Status,
		AssigneeID:  in.AssigneeID,
	}
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutTodo(ctx, todo); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindTodo, model.ActionCreate, id, in)
	}); err != nil {
		return 0, err
	}
	s.refresh(ctx, model.KindTodo)
	return id, nil
}

// UpdateTodo applies a partial update. Offline updates against a missing
// row are a no-op. Assigning a member that only exists locally is refused
// while online.
func (s *Service) UpdateTodo(ctx context.Context, id int64, update model.TodoUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		if update.AssigneeID.Set && update.AssigneeID.Value != nil && model.IsLocalID(*update.AssigneeID.Value) {
			return model.ErrUnsyncedRecord
		}
		updated, err := s.client.UpdateTodo(ctx, id, update)
		if err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutTodo(ctx, updated)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindTodo)
		return nil
	}

	todo, err := s.store.GetTodo(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	update.Apply(&todo)
	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutTodo(ctx, todo); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, model.KindTodo, model.ActionUpdate, id, update)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindTodo)
	return nil
}

// DeleteTodo removes a todo.
func (s *Service) DeleteTodo(ctx context.Context, id int64) error {
	if s.signal.Online() {
		if model.IsLocalID(id) {
			return model.ErrUnsyncedRecord
		}
		if err := s.client.DeleteTodo(ctx, id); err != nil {
			return err
		}
		if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteTodo(ctx, id)
		}); err != nil {
			return err
		}
		s.refresh(ctx, model.KindTodo)
		return nil
	}

	if err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteTodo(ctx, id); err != nil {
			return err
		}
		if model.IsLocalID(id) {
			return tx.DeleteOperationsByRef(ctx, id)
		}
		return tx.AppendOperation(ctx, model.KindTodo, model.ActionDelete, id, nil)
	}); err != nil {
		return err
	}
	s.refresh(ctx, model.KindTodo)
	return nil
}
