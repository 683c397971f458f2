package engine

import (
	"context"
	"fmt"

	"github.com/eventcompass/eventcompass/internal/model"
	"github.com/eventcompass/eventcompass/internal/store"
)

// taskBatch carries one schedule's tasks through the pull phase.
type taskBatch struct {
	scheduleID int64
	tasks      []model.Task
}

func syncedMember(m model.Member) model.MemberRecord {
	return model.MemberRecord{Member: m, SyncStatus: model.SyncSynced}
}

func syncedMaterial(m model.Material) model.MaterialRecord {
	return model.MaterialRecord{Material: m, SyncStatus: model.SyncSynced}
}

// replay dispatches one log entry. A nil return means the entry is gone
// from the log: either its backend call succeeded and the local store
// reflects it, or its target turned out to be unreachable (a dropped
// local record) and the entry was discarded. A non-nil return aborts the
// phase with the entry still queued.
func (e *Engine) replay(ctx context.Context, remap remapTable, op model.Operation) error {
	switch op.Kind {
	case model.KindMember:
		return e.replayMember(ctx, remap, op)
	case model.KindMaterial:
		return e.replayMaterial(ctx, remap, op)
	case model.KindSchedule:
		return e.replaySchedule(ctx, remap, op)
	case model.KindTask:
		return e.replayTask(ctx, remap, op)
	case model.KindTodo:
		return e.replayTodo(ctx, remap, op)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// dropOperation discards a queued entry whose target never reached the
// server (its create was dropped earlier, so there is nothing to tell the
// backend about).
func (e *Engine) dropOperation(ctx context.Context, op model.Operation) error {
	e.logger.Printf("Dropping %s %s for unreachable local id %d", op.Kind, op.Action, op.RefID)
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteOperation(ctx, op.ID)
	})
}

func (e *Engine) replayMember(ctx context.Context, remap remapTable, op model.Operation) error {
	switch op.Action {
	case model.ActionCreate:
		payload, err := model.DecodePayload[model.MemberCreatePayload](op)
		if err != nil {
			return err
		}
		created, err := e.client.CreateMember(ctx, payload)
		if err != nil {
			return err
		}
		if err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMember(ctx, op.RefID); err != nil {
				return err
			}
			if err := tx.PutMember(ctx, syncedMember(created)); err != nil {
				return err
			}
			if err := tx.RewriteOperationRefs(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		}); err != nil {
			return err
		}
		remap.record(model.KindMember, op.RefID, created.ID)
		return nil

	case model.ActionUpdate:
		id, ok := remap.resolve(model.KindMember, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		payload, err := model.DecodePayload[model.MemberUpdatePayload](op)
		if err != nil {
			return err
		}
		updated, err := e.client.UpdateMember(ctx, id, payload)
		if err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutMember(ctx, syncedMember(updated)); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	case model.ActionDelete:
		id, ok := remap.resolve(model.KindMember, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		if err := e.client.DeleteMember(ctx, id); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMember(ctx, id); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	default:
		return fmt.Errorf("unknown operation action %q", op.Action)
	}
}

func (e *Engine) replayMaterial(ctx context.Context, remap remapTable, op model.Operation) error {
	switch op.Action {
	case model.ActionCreate:
		payload, err := model.DecodePayload[model.MaterialCreatePayload](op)
		if err != nil {
			return err
		}
		created, err := e.client.CreateMaterial(ctx, payload)
		if err != nil {
			return err
		}
		if err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMaterial(ctx, op.RefID); err != nil {
				return err
			}
			if err := tx.PutMaterial(ctx, syncedMaterial(created)); err != nil {
				return err
			}
			if err := tx.RewriteOperationRefs(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		}); err != nil {
			return err
		}
		remap.record(model.KindMaterial, op.RefID, created.ID)
		return nil

	case model.ActionUpdate:
		id, ok := remap.resolve(model.KindMaterial, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		payload, err := model.DecodePayload[model.MaterialUpdatePayload](op)
		if err != nil {
			return err
		}
		updated, err := e.client.UpdateMaterial(ctx, id, payload)
		if err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutMaterial(ctx, syncedMaterial(updated)); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	case model.ActionDelete:
		id, ok := remap.resolve(model.KindMaterial, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		if err := e.client.DeleteMaterial(ctx, id); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteMaterial(ctx, id); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	default:
		return fmt.Errorf("unknown operation action %q", op.Action)
	}
}

func (e *Engine) replaySchedule(ctx context.Context, remap remapTable, op model.Operation) error {
	switch op.Action {
	case model.ActionCreate:
		payload, err := model.DecodePayload[model.ScheduleCreatePayload](op)
		if err != nil {
			return err
		}
		created, err := e.client.CreateSchedule(ctx, payload)
		if err != nil {
			return err
		}
		// Besides the usual ref_id rewrite, a replayed schedule create must
		// repoint its tasks' rows and the schedule_id embedded in every
		// still-queued task-create payload, so the corrected references
		// survive a restart between passes.
		if err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteSchedule(ctx, op.RefID); err != nil {
				return err
			}
			if err := tx.PutSchedule(ctx, created); err != nil {
				return err
			}
			if err := tx.RewriteTaskScheduleIDs(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			if err := tx.RewriteQueuedTaskSchedules(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			if err := tx.RewriteOperationRefs(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		}); err != nil {
			return err
		}
		remap.record(model.KindSchedule, op.RefID, created.ID)
		return nil

	case model.ActionUpdate:
		id, ok := remap.resolve(model.KindSchedule, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		payload, err := model.DecodePayload[model.ScheduleUpdatePayload](op)
		if err != nil {
			return err
		}
		updated, err := e.client.UpdateSchedule(ctx, id, payload)
		if err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutSchedule(ctx, updated); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	case model.ActionDelete:
		id, ok := remap.resolve(model.KindSchedule, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		if err := e.client.DeleteSchedule(ctx, id); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteTasksBySchedule(ctx, id); err != nil {
				return err
			}
			if err := tx.DeleteSchedule(ctx, id); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	default:
		return fmt.Errorf("unknown operation action %q", op.Action)
	}
}

func (e *Engine) replayTask(ctx context.Context, remap remapTable, op model.Operation) error {
	switch op.Action {
	case model.ActionCreate:
		payload, err := model.DecodePayload[model.TaskCreatePayload](op)
		if err != nil {
			return err
		}
		scheduleID, ok := remap.resolve(model.KindSchedule, payload.ScheduleID)
		if !ok {
			// A task create with no reachable parent must not fabricate an
			// orphan on the server; abort and leave the log intact.
			return &model.UnresolvedReferenceError{Kind: model.KindSchedule, LocalID: payload.ScheduleID}
		}
		created, err := e.client.CreateTask(ctx, scheduleID, payload.TaskInput)
		if err != nil {
			return err
		}
		created.ScheduleID = scheduleID
		if err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteTask(ctx, op.RefID); err != nil {
				return err
			}
			if err := tx.PutTask(ctx, created); err != nil {
				return err
			}
			if err := tx.RewriteOperationRefs(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		}); err != nil {
			return err
		}
		remap.record(model.KindTask, op.RefID, created.ID)
		return nil

	case model.ActionUpdate:
		id, ok := remap.resolve(model.KindTask, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		payload, err := model.DecodePayload[model.TaskUpdatePayload](op)
		if err != nil {
			return err
		}
		updated, err := e.client.UpdateTask(ctx, id, payload)
		if err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutTask(ctx, updated); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	case model.ActionDelete:
		id, ok := remap.resolve(model.KindTask, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		if err := e.client.DeleteTask(ctx, id); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteTask(ctx, id); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	default:
		return fmt.Errorf("unknown operation action %q", op.Action)
	}
}

func (e *Engine) replayTodo(ctx context.Context, remap remapTable, op model.Operation) error {
	switch op.Action {
	case model.ActionCreate:
		payload, err := model.DecodePayload[model.TodoCreatePayload](op)
		if err != nil {
			return err
		}
		if payload.AssigneeID != nil {
			resolved, ok := remap.resolve(model.KindMember, *payload.AssigneeID)
			if !ok {
				return &model.UnresolvedReferenceError{Kind: model.KindMember, LocalID: *payload.AssigneeID}
			}
			payload.AssigneeID = &resolved
		}
		created, err := e.client.CreateTodo(ctx, payload)
		if err != nil {
			return err
		}
		if err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteTodo(ctx, op.RefID); err != nil {
				return err
			}
			if err := tx.PutTodo(ctx, created); err != nil {
				return err
			}
			if err := tx.RewriteOperationRefs(ctx, op.RefID, created.ID); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		}); err != nil {
			return err
		}
		remap.record(model.KindTodo, op.RefID, created.ID)
		return nil

	case model.ActionUpdate:
		id, ok := remap.resolve(model.KindTodo, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		payload, err := model.DecodePayload[model.TodoUpdatePayload](op)
		if err != nil {
			return err
		}
		if payload.AssigneeID.Set && payload.AssigneeID.Value != nil {
			resolved, ok := remap.resolve(model.KindMember, *payload.AssigneeID.Value)
			if !ok {
				return &model.UnresolvedReferenceError{Kind: model.KindMember, LocalID: *payload.AssigneeID.Value}
			}
			payload.AssigneeID = model.SetTo(resolved)
		}
		updated, err := e.client.UpdateTodo(ctx, id, payload)
		if err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutTodo(ctx, updated); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	case model.ActionDelete:
		id, ok := remap.resolve(model.KindTodo, op.RefID)
		if !ok {
			return e.dropOperation(ctx, op)
		}
		if err := e.client.DeleteTodo(ctx, id); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteTodo(ctx, id); err != nil {
				return err
			}
			return tx.DeleteOperation(ctx, op.ID)
		})

	default:
		return fmt.Errorf("unknown operation action %q", op.Action)
	}
}
