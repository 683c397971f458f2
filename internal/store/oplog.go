package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eventcompass/eventcompass/internal/model"
)

// The operation log is an append-only queue of pending mutations, totally
// ordered by created_at. Entries are appended by the mutation façade in the
// same transaction as their optimistic record, and removed by the
// reconciliation engine in the same transaction as the local write that
// reflects the acknowledged remote call.

// AppendOperation appends a log entry with a strictly increasing timestamp.
// The payload must be one of the typed payloads in the model package, or
// nil for deletes.
func (t *Tx) AppendOperation(ctx context.Context, kind model.Kind, action model.Action, refID int64, payload any) error {
	encoded, err := model.EncodePayload(payload)
	if err != nil {
		return storeErr("append operation", err)
	}
	op := model.Operation{
		ID:        model.NewOperationID(),
		Kind:      kind,
		Action:    action,
		RefID:     refID,
		Payload:   encoded,
		CreatedAt: t.store.nextStamp(),
	}
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO operations (id, kind, action, ref_id, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		op.ID, op.Kind, op.Action, op.RefID, string(op.Payload), op.CreatedAt,
	)
	return storeErr("append operation", err)
}

// DeleteOperation removes a single log entry.
func (t *Tx) DeleteOperation(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM operations WHERE id = ?", id)
	return storeErr("delete operation", err)
}

// DeleteOperationsByRef removes every entry targeting the given entity id.
// Used when a never-synced local record is deleted outright.
func (t *Tx) DeleteOperationsByRef(ctx context.Context, refID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM operations WHERE ref_id = ?", refID)
	return storeErr("delete operations by ref", err)
}

// RewriteOperationRefs repoints every queued entry from an old (local) id
// to its server-assigned replacement. Persisted so that later passes see
// the corrected reference even after a process restart.
func (t *Tx) RewriteOperationRefs(ctx context.Context, oldID, newID int64) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE operations SET ref_id = ? WHERE ref_id = ?", newID, oldID)
	return storeErr("rewrite operation refs", err)
}

func scanOperation(row interface{ Scan(...any) error }) (model.Operation, error) {
	var op model.Operation
	var payload string
	err := row.Scan(&op.ID, &op.Kind, &op.Action, &op.RefID, &payload, &op.CreatedAt)
	if err != nil {
		return op, err
	}
	op.Payload = json.RawMessage(payload)
	return op, nil
}

func listOperations(ctx context.Context, q dbtx, where string, args ...any) ([]model.Operation, error) {
	query := "SELECT id, kind, action, ref_id, payload, created_at FROM operations " + where + " ORDER BY created_at ASC"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// ListOperations returns the full log in replay (created_at) order.
func (s *Store) ListOperations(ctx context.Context) ([]model.Operation, error) {
	out, err := listOperations(ctx, s.conn, "")
	return out, storeErr("list operations", err)
}

// ListOperationsByRef returns the entries targeting an entity id, in
// replay order.
func (s *Store) ListOperationsByRef(ctx context.Context, refID int64) ([]model.Operation, error) {
	out, err := listOperations(ctx, s.conn, "WHERE ref_id = ?", refID)
	return out, storeErr("list operations by ref", err)
}

// CountOperations returns the number of queued entries.
func (s *Store) CountOperations(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM operations").Scan(&count)
	return count, storeErr("count operations", err)
}

// RewriteQueuedTaskSchedules rewrites the schedule_id embedded in every
// queued task-create payload from an old (local) schedule id to its
// server-assigned replacement. This is the in-place log mutation the
// schedule create replay performs so that the corrected payload survives a
// restart between passes.
func (t *Tx) RewriteQueuedTaskSchedules(ctx context.Context, oldID, newID int64) error {
	ops, err := listOperations(ctx, t.tx, "WHERE kind = ? AND action = ?", model.KindTask, model.ActionCreate)
	if err != nil {
		return storeErr("rewrite queued task schedules", err)
	}
	for _, op := range ops {
		payload, err := model.DecodePayload[model.TaskCreatePayload](op)
		if err != nil {
			return storeErr("rewrite queued task schedules", err)
		}
		if payload.ScheduleID != oldID {
			continue
		}
		payload.ScheduleID = newID
		if err := t.updatePayload(ctx, op.ID, payload); err != nil {
			return err
		}
	}
	return nil
}

// DeleteQueuedTaskCreates drops every queued task-create whose payload
// targets the given schedule. Part of the schedule-delete cascade.
func (t *Tx) DeleteQueuedTaskCreates(ctx context.Context, scheduleID int64) error {
	ops, err := listOperations(ctx, t.tx, "WHERE kind = ? AND action = ?", model.KindTask, model.ActionCreate)
	if err != nil {
		return storeErr("delete queued task creates", err)
	}
	for _, op := range ops {
		payload, err := model.DecodePayload[model.TaskCreatePayload](op)
		if err != nil {
			return storeErr("delete queued task creates", err)
		}
		if payload.ScheduleID != scheduleID {
			continue
		}
		if err := t.DeleteOperation(ctx, op.ID); err != nil {
			return err
		}
		// the optimistic row for this queued create, if any
		if err := t.DeleteTask(ctx, op.RefID); err != nil {
			return err
		}
	}
	return nil
}

// RewriteQueuedTodoAssignees rewrites the assignee_id embedded in queued
// todo create and update payloads that reference a member. A nil
// replacement clears the reference; part of the member-delete cascade.
func (t *Tx) RewriteQueuedTodoAssignees(ctx context.Context, memberID int64, replacement *int64) error {
	ops, err := listOperations(ctx, t.tx, "WHERE kind = ?", model.KindTodo)
	if err != nil {
		return storeErr("rewrite queued todo assignees", err)
	}
	for _, op := range ops {
		switch op.Action {
		case model.ActionCreate:
			payload, err := model.DecodePayload[model.TodoCreatePayload](op)
			if err != nil {
				return storeErr("rewrite queued todo assignees", err)
			}
			if payload.AssigneeID == nil || *payload.AssigneeID != memberID {
				continue
			}
			payload.AssigneeID = replacement
			if err := t.updatePayload(ctx, op.ID, payload); err != nil {
				return err
			}
		case model.ActionUpdate:
			payload, err := model.DecodePayload[model.TodoUpdatePayload](op)
			if err != nil {
				return storeErr("rewrite queued todo assignees", err)
			}
			if !payload.AssigneeID.Set || payload.AssigneeID.Value == nil || *payload.AssigneeID.Value != memberID {
				continue
			}
			payload.AssigneeID = model.OptionalID{Set: true, Value: replacement}
			if err := t.updatePayload(ctx, op.ID, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tx) updatePayload(ctx context.Context, opID string, payload any) error {
	encoded, err := model.EncodePayload(payload)
	if err != nil {
		return storeErr("update operation payload", err)
	}
	res, err := t.tx.ExecContext(ctx, "UPDATE operations SET payload = ? WHERE id = ?", string(encoded), opID)
	if err != nil {
		return storeErr("update operation payload", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr("update operation payload", fmt.Errorf("operation %s vanished mid-rewrite", opID))
	}
	return nil
}
