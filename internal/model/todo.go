package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TodoStatus enumerates the lifecycle states of a todo.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is a standalone action item, optionally assigned to a member.
type Todo struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *string    `json:"due_date"`
	Status      TodoStatus `json:"status"`
	AssigneeID  *int64     `json:"assignee_id"`
}

// TodoInput is the payload for creating a todo.
type TodoInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	DueDate     *string    `json:"due_date,omitempty"`
	Status      TodoStatus `json:"status,omitempty"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
}

// Validate checks that the title is non-empty after trimming.
func (in TodoInput) Validate() error {
	return requireNonEmpty("todo title", in.Title)
}

// Normalized returns a copy with the title trimmed and the status defaulted
// to pending.
func (in TodoInput) Normalized() TodoInput {
	in.Title = trimmed(in.Title)
	if in.Status == "" {
		in.Status = TodoPending
	}
	return in
}

// OptionalID distinguishes "leave unchanged" from "set to NULL" for nullable
// foreign keys in partial updates. The zero value means unchanged and is
// omitted from JSON.
type OptionalID struct {
	Set   bool
	Value *int64
}

// SetTo returns an OptionalID assigning the given id.
func SetTo(id int64) OptionalID {
	return OptionalID{Set: true, Value: &id}
}

// SetNull returns an OptionalID clearing the reference.
func SetNull() OptionalID {
	return OptionalID{Set: true}
}

// IsZero reports whether the field was not part of the update, so that
// encoding/json's omitzero elides it.
func (o OptionalID) IsZero() bool {
	return !o.Set
}

// MarshalJSON encodes the assigned id, or null when clearing.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// UnmarshalJSON decodes an id or null. Presence of the key implies Set.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("assignee_id must be an integer or null: %w", err)
	}
	o.Value = &id
	return nil
}

// TodoUpdate is a partial update; nil (or unset) fields are left unchanged.
type TodoUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	DueDate     *string     `json:"due_date,omitempty"`
	Status      *TodoStatus `json:"status,omitempty"`
	AssigneeID  OptionalID  `json:"assignee_id,omitzero"`
}

// Validate checks provided fields.
func (u TodoUpdate) Validate() error {
	if u.Title != nil {
		return requireNonEmpty("todo title", *u.Title)
	}
	return nil
}

// Apply merges the update into a todo in place.
func (u TodoUpdate) Apply(t *Todo) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = u.Description
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.AssigneeID.Set {
		t.AssigneeID = u.AssigneeID.Value
	}
}
