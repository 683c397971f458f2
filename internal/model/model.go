// Package model defines the entity kinds managed by the EventCompass sync
// core, their create/update inputs, and the typed operation-log payloads.
//
// Identifier convention:
//   - Positive ids are assigned by the remote API and are globally stable.
//   - Negative ids are minted locally while offline and are valid only until
//     the record's create operation has been replayed against the remote API.
//
// A negative id must never be sent to the remote API; the reconciliation
// engine resolves it through a per-pass remap table first.
package model

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Kind identifies an entity collection.
type Kind string

const (
	KindMember   Kind = "member"
	KindMaterial Kind = "material"
	KindSchedule Kind = "schedule"
	KindTask     Kind = "task"
	KindTodo     Kind = "todo"
)

// Kinds lists every entity kind in pull order.
var Kinds = []Kind{KindMember, KindMaterial, KindSchedule, KindTask, KindTodo}

// Action identifies a queued mutation type.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// SyncStatus tags member and material records with their reconciliation
// state. A record with a queued operation is pending; a record confirmed by
// the remote API is synced.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
)

// NewLocalID mints a negative identifier for a record created while offline.
// The millisecond clock plus jitter keeps ids unique within a session.
func NewLocalID() int64 {
	return -(time.Now().UnixMilli() + rand.Int64N(1000))
}

// IsLocalID reports whether id was minted locally and has not been
// acknowledged by the remote API.
func IsLocalID(id int64) bool {
	return id <= 0
}

// timestampLayouts are the accepted wire formats for schedule and task
// times. The remote API stores them as opaque text; local validation only
// requires that they parse.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses a schedule or task time string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// requireNonEmpty returns a ValidationError when the value is empty after
// trimming.
func requireNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
