package engine

import "github.com/eventcompass/eventcompass/internal/model"

// remapTable translates locally minted negative ids to the server ids
// assigned during the current pass, one map per entity kind. It is
// transient: a fresh table is built at the start of every pass, and the
// durable counterpart is the ref_id/payload rewrite the replay handlers
// perform on still-queued log entries.
type remapTable map[model.Kind]map[int64]int64

func newRemapTable() remapTable {
	t := make(remapTable, len(model.Kinds))
	for _, kind := range model.Kinds {
		t[kind] = make(map[int64]int64)
	}
	return t
}

// record stores a local -> server mapping after a create replays.
func (t remapTable) record(kind model.Kind, localID, serverID int64) {
	t[kind][localID] = serverID
}

// resolve translates an id for use against the backend. Positive ids are
// already authoritative and pass through. A negative id with no mapping
// means the referenced record has not been created this pass; the caller
// decides whether that skips the operation or aborts the phase.
func (t remapTable) resolve(kind model.Kind, id int64) (int64, bool) {
	if !model.IsLocalID(id) {
		return id, true
	}
	serverID, ok := t[kind][id]
	return serverID, ok
}
