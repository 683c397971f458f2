package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eventcompass/eventcompass/internal/model"
)

const todoColumns = "id, title, description, due_date, status, assignee_id"

func scanTodo(row interface{ Scan(...any) error }) (model.Todo, error) {
	var todo model.Todo
	var description, dueDate sql.NullString
	var assignee sql.NullInt64
	err := row.Scan(&todo.ID, &todo.Title, &description, &dueDate, &todo.Status, &assignee)
	if err != nil {
		return todo, err
	}
	todo.Description = nullToPtr(description)
	todo.DueDate = nullToPtr(dueDate)
	todo.AssigneeID = nullToIDPtr(assignee)
	return todo, nil
}

func putTodo(ctx context.Context, q dbtx, todo model.Todo) error {
	query := `
	INSERT INTO todos (id, title, description, due_date, status, assignee_id)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		due_date = excluded.due_date,
		status = excluded.status,
		assignee_id = excluded.assignee_id
	`
	_, err := q.ExecContext(ctx, query,
		todo.ID, todo.Title, ptrToNull(todo.Description), ptrToNull(todo.DueDate),
		todo.Status, idPtrToNull(todo.AssigneeID),
	)
	return err
}

func getTodo(ctx context.Context, q dbtx, id int64) (model.Todo, error) {
	row := q.QueryRowContext(ctx, "SELECT "+todoColumns+" FROM todos WHERE id = ?", id)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todo, model.ErrNotFound
	}
	return todo, err
}

// PutTodo inserts or overwrites a todo.
func (t *Tx) PutTodo(ctx context.Context, todo model.Todo) error {
	return storeErr("put todo", putTodo(ctx, t.tx, todo))
}

// GetTodo returns a todo or ErrNotFound.
func (t *Tx) GetTodo(ctx context.Context, id int64) (model.Todo, error) {
	todo, err := getTodo(ctx, t.tx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get todo", err)
	}
	return todo, err
}

// DeleteTodo removes a todo. Missing rows are ignored.
func (t *Tx) DeleteTodo(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	return storeErr("delete todo", err)
}

// NullTodoAssignees clears assignee_id on every todo referencing a member.
// Part of the member-delete cascade.
func (t *Tx) NullTodoAssignees(ctx context.Context, memberID int64) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE todos SET assignee_id = NULL WHERE assignee_id = ?", memberID)
	return storeErr("null todo assignees", err)
}

// ListTodosByAssignee returns every todo assigned to a member, unordered.
func (t *Tx) ListTodosByAssignee(ctx context.Context, memberID int64) ([]model.Todo, error) {
	out, err := listTodosWhere(ctx, t.tx, "WHERE assignee_id = ?", memberID)
	return out, storeErr("list todos by assignee", err)
}

func listTodosWhere(ctx context.Context, q dbtx, where string, args ...any) ([]model.Todo, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+todoColumns+" FROM todos "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, todo)
	}
	return out, rows.Err()
}

// ListTodos returns every todo, unordered.
func (s *Store) ListTodos(ctx context.Context) ([]model.Todo, error) {
	out, err := listTodosWhere(ctx, s.conn, "")
	return out, storeErr("list todos", err)
}

// GetTodo returns a todo or ErrNotFound.
func (s *Store) GetTodo(ctx context.Context, id int64) (model.Todo, error) {
	todo, err := getTodo(ctx, s.conn, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get todo", err)
	}
	return todo, err
}

// ListTodosByAssignee returns every todo assigned to a member, unordered.
func (s *Store) ListTodosByAssignee(ctx context.Context, memberID int64) ([]model.Todo, error) {
	out, err := listTodosWhere(ctx, s.conn, "WHERE assignee_id = ?", memberID)
	return out, storeErr("list todos by assignee", err)
}
