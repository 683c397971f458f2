package model

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Operation is one queued mutation in the append-only operation log.
//
// RefID is the entity id the operation targeted at enqueue time: the local
// negative id for offline creates, a server id otherwise. When a create is
// replayed, every still-queued entry carrying the old local id is rewritten
// to the server-assigned id so later passes (and later process restarts)
// see the corrected reference.
//
// CreatedAt is a strictly increasing nanosecond timestamp assigned by the
// store; it is the total replay order.
type Operation struct {
	ID        string
	Kind      Kind
	Action    Action
	RefID     int64
	Payload   json.RawMessage
	CreatedAt int64
}

// Payload types, one per (kind, action) that carries a body. Delete
// operations have no payload. Keeping these as named types makes the
// replay-time rewrite of queued references exhaustively type-checked
// instead of probing loose JSON.
type (
	// MemberCreatePayload is the body of a queued member create.
	MemberCreatePayload = MemberInput
	// MemberUpdatePayload is the body of a queued member update.
	MemberUpdatePayload = MemberUpdate
	// MaterialCreatePayload is the body of a queued material create.
	MaterialCreatePayload = MaterialInput
	// MaterialUpdatePayload is the body of a queued material update.
	MaterialUpdatePayload = MaterialUpdate
	// ScheduleCreatePayload is the body of a queued schedule create.
	ScheduleCreatePayload = ScheduleInput
	// ScheduleUpdatePayload is the body of a queued schedule update.
	ScheduleUpdatePayload = ScheduleUpdate
	// TaskUpdatePayload is the body of a queued task update.
	TaskUpdatePayload = TaskUpdate
	// TodoCreatePayload is the body of a queued todo create. AssigneeID may
	// be a local negative id until the member's own create has replayed.
	TodoCreatePayload = TodoInput
	// TodoUpdatePayload is the body of a queued todo update.
	TodoUpdatePayload = TodoUpdate
)

// TaskCreatePayload is the body of a queued task create. ScheduleID may be
// a local negative id until the schedule's own create has replayed.
type TaskCreatePayload struct {
	TaskInput
	ScheduleID int64 `json:"schedule_id"`
}

// NewOperationID returns an opaque log-local identifier.
func NewOperationID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("operation id: %v", err))
	}
	return hex.EncodeToString(buf[:])
}

// EncodePayload marshals a typed operation payload. A nil payload encodes
// as null (used by deletes).
func EncodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation payload: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals an operation payload into its typed form.
func DecodePayload[T any](op Operation) (T, error) {
	var out T
	if err := json.Unmarshal(op.Payload, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s %s payload: %w", op.Kind, op.Action, err)
	}
	return out, nil
}
