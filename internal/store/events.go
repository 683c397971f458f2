package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eventcompass/eventcompass/internal/model"
)

const scheduleColumns = "id, name, event_date, start_time, end_time"

func scanSchedule(row interface{ Scan(...any) error }) (model.Schedule, error) {
	var s model.Schedule
	err := row.Scan(&s.ID, &s.Name, &s.EventDate, &s.StartTime, &s.EndTime)
	return s, err
}

func putSchedule(ctx context.Context, q dbtx, s model.Schedule) error {
	query := `
	INSERT INTO schedules (id, name, event_date, start_time, end_time)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		event_date = excluded.event_date,
		start_time = excluded.start_time,
		end_time = excluded.end_time
	`
	_, err := q.ExecContext(ctx, query, s.ID, s.Name, s.EventDate, s.StartTime, s.EndTime)
	return err
}

func getSchedule(ctx context.Context, q dbtx, id int64) (model.Schedule, error) {
	row := q.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, model.ErrNotFound
	}
	return s, err
}

// PutSchedule inserts or overwrites a schedule.
func (t *Tx) PutSchedule(ctx context.Context, s model.Schedule) error {
	return storeErr("put schedule", putSchedule(ctx, t.tx, s))
}

// GetSchedule returns a schedule or ErrNotFound.
func (t *Tx) GetSchedule(ctx context.Context, id int64) (model.Schedule, error) {
	s, err := getSchedule(ctx, t.tx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get schedule", err)
	}
	return s, err
}

// DeleteSchedule removes a schedule. Missing rows are ignored. Task cascade
// is the caller's responsibility so it lands in the same transaction.
func (t *Tx) DeleteSchedule(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	return storeErr("delete schedule", err)
}

// ListSchedules returns every schedule, unordered.
func (s *Store) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT "+scheduleColumns+" FROM schedules")
	if err != nil {
		return nil, storeErr("list schedules", err)
	}
	defer rows.Close()

	var out []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, storeErr("list schedules", err)
		}
		out = append(out, sched)
	}
	return out, storeErr("list schedules", rows.Err())
}

// GetSchedule returns a schedule or ErrNotFound.
func (s *Store) GetSchedule(ctx context.Context, id int64) (model.Schedule, error) {
	sched, err := getSchedule(ctx, s.conn, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get schedule", err)
	}
	return sched, err
}

const taskColumns = "id, schedule_id, name, stage, start_time, end_time, location, status, note"

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var task model.Task
	var location, note sql.NullString
	err := row.Scan(&task.ID, &task.ScheduleID, &task.Name, &task.Stage,
		&task.StartTime, &task.EndTime, &location, &task.Status, &note)
	if err != nil {
		return task, err
	}
	task.Location = nullToPtr(location)
	task.Note = nullToPtr(note)
	return task, nil
}

func putTask(ctx context.Context, q dbtx, task model.Task) error {
	query := `
	INSERT INTO tasks (id, schedule_id, name, stage, start_time, end_time, location, status, note)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		schedule_id = excluded.schedule_id,
		name = excluded.name,
		stage = excluded.stage,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		location = excluded.location,
		status = excluded.status,
		note = excluded.note
	`
	_, err := q.ExecContext(ctx, query,
		task.ID, task.ScheduleID, task.Name, task.Stage,
		task.StartTime, task.EndTime, ptrToNull(task.Location), task.Status, ptrToNull(task.Note),
	)
	return err
}

func getTask(ctx context.Context, q dbtx, id int64) (model.Task, error) {
	row := q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task, model.ErrNotFound
	}
	return task, err
}

// PutTask inserts or overwrites a task.
func (t *Tx) PutTask(ctx context.Context, task model.Task) error {
	return storeErr("put task", putTask(ctx, t.tx, task))
}

// GetTask returns a task or ErrNotFound.
func (t *Tx) GetTask(ctx context.Context, id int64) (model.Task, error) {
	task, err := getTask(ctx, t.tx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get task", err)
	}
	return task, err
}

// DeleteTask removes a task. Missing rows are ignored.
func (t *Tx) DeleteTask(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	return storeErr("delete task", err)
}

// DeleteTasksBySchedule removes every task belonging to a schedule.
func (t *Tx) DeleteTasksBySchedule(ctx context.Context, scheduleID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM tasks WHERE schedule_id = ?", scheduleID)
	return storeErr("delete tasks by schedule", err)
}

// RewriteTaskScheduleIDs repoints tasks from an old (local) schedule id to
// its server-assigned replacement.
func (t *Tx) RewriteTaskScheduleIDs(ctx context.Context, oldID, newID int64) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE tasks SET schedule_id = ? WHERE schedule_id = ?", newID, oldID)
	return storeErr("rewrite task schedule ids", err)
}

// ListTasksBySchedule returns every task under a schedule, unordered.
func (t *Tx) ListTasksBySchedule(ctx context.Context, scheduleID int64) ([]model.Task, error) {
	out, err := listTasksWhere(ctx, t.tx, "WHERE schedule_id = ?", scheduleID)
	return out, storeErr("list tasks by schedule", err)
}

func listTasksWhere(ctx context.Context, q dbtx, where string, args ...any) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListTasks returns every task, unordered.
func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	out, err := listTasksWhere(ctx, s.conn, "")
	return out, storeErr("list tasks", err)
}

// GetTask returns a task or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id int64) (model.Task, error) {
	task, err := getTask(ctx, s.conn, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get task", err)
	}
	return task, err
}

// ListTasksBySchedule returns every task under a schedule, unordered.
func (s *Store) ListTasksBySchedule(ctx context.Context, scheduleID int64) ([]model.Task, error) {
	out, err := listTasksWhere(ctx, s.conn, "WHERE schedule_id = ?", scheduleID)
	return out, storeErr("list tasks by schedule", err)
}
