package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/eventcompass/eventcompass/internal/model"
)

// Member and material records share the sync-status tag; everything below
// keeps the tag local and never leaks it to callers of the remote API.

const memberColumns = "id, name, part, position, contact_phone, contact_email, contact_note, sync_status"

func scanMember(row interface{ Scan(...any) error }) (model.MemberRecord, error) {
	var rec model.MemberRecord
	var phone, email, note sql.NullString
	err := row.Scan(&rec.ID, &rec.Name, &rec.Part, &rec.Position, &phone, &email, &note, &rec.SyncStatus)
	if err != nil {
		return rec, err
	}
	rec.Contact = model.ContactInfo{Phone: nullToPtr(phone), Email: nullToPtr(email), Note: nullToPtr(note)}
	return rec, nil
}

func putMember(ctx context.Context, q dbtx, rec model.MemberRecord) error {
	query := `
	INSERT INTO members (id, name, part, position, contact_phone, contact_email, contact_note, sync_status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		part = excluded.part,
		position = excluded.position,
		contact_phone = excluded.contact_phone,
		contact_email = excluded.contact_email,
		contact_note = excluded.contact_note,
		sync_status = excluded.sync_status
	`
	_, err := q.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Part, rec.Position,
		ptrToNull(rec.Contact.Phone), ptrToNull(rec.Contact.Email), ptrToNull(rec.Contact.Note),
		rec.SyncStatus,
	)
	return err
}

func getMember(ctx context.Context, q dbtx, id int64) (model.MemberRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	rec, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, model.ErrNotFound
	}
	return rec, err
}

func listMembers(ctx context.Context, q dbtx) ([]model.MemberRecord, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+memberColumns+" FROM members")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemberRecord
	for rows.Next() {
		rec, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutMember inserts or overwrites a member record.
func (t *Tx) PutMember(ctx context.Context, rec model.MemberRecord) error {
	return storeErr("put member", putMember(ctx, t.tx, rec))
}

// GetMember returns a member record or ErrNotFound.
func (t *Tx) GetMember(ctx context.Context, id int64) (model.MemberRecord, error) {
	rec, err := getMember(ctx, t.tx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get member", err)
	}
	return rec, err
}

// DeleteMember removes a member record. Missing rows are ignored.
func (t *Tx) DeleteMember(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	return storeErr("delete member", err)
}

// SetMemberSyncStatus rewrites the sync tag on an existing member.
func (t *Tx) SetMemberSyncStatus(ctx context.Context, id int64, status model.SyncStatus) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE members SET sync_status = ? WHERE id = ?", status, id)
	return storeErr("tag member", err)
}

// ListMembers returns every member record, unordered.
func (s *Store) ListMembers(ctx context.Context) ([]model.MemberRecord, error) {
	out, err := listMembers(ctx, s.conn)
	return out, storeErr("list members", err)
}

// GetMember returns a member record or ErrNotFound.
func (s *Store) GetMember(ctx context.Context, id int64) (model.MemberRecord, error) {
	rec, err := getMember(ctx, s.conn, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get member", err)
	}
	return rec, err
}

const materialColumns = "id, name, part, quantity, sync_status"

func scanMaterial(row interface{ Scan(...any) error }) (model.MaterialRecord, error) {
	var rec model.MaterialRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Part, &rec.Quantity, &rec.SyncStatus)
	return rec, err
}

func putMaterial(ctx context.Context, q dbtx, rec model.MaterialRecord) error {
	query := `
	INSERT INTO materials (id, name, part, quantity, sync_status)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		part = excluded.part,
		quantity = excluded.quantity,
		sync_status = excluded.sync_status
	`
	_, err := q.ExecContext(ctx, query, rec.ID, rec.Name, rec.Part, rec.Quantity, rec.SyncStatus)
	return err
}

func getMaterial(ctx context.Context, q dbtx, id int64) (model.MaterialRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+materialColumns+" FROM materials WHERE id = ?", id)
	rec, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, model.ErrNotFound
	}
	return rec, err
}

// PutMaterial inserts or overwrites a material record.
func (t *Tx) PutMaterial(ctx context.Context, rec model.MaterialRecord) error {
	return storeErr("put material", putMaterial(ctx, t.tx, rec))
}

// GetMaterial returns a material record or ErrNotFound.
func (t *Tx) GetMaterial(ctx context.Context, id int64) (model.MaterialRecord, error) {
	rec, err := getMaterial(ctx, t.tx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get material", err)
	}
	return rec, err
}

// DeleteMaterial removes a material record. Missing rows are ignored.
func (t *Tx) DeleteMaterial(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", id)
	return storeErr("delete material", err)
}

// SetMaterialSyncStatus rewrites the sync tag on an existing material.
func (t *Tx) SetMaterialSyncStatus(ctx context.Context, id int64, status model.SyncStatus) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE materials SET sync_status = ? WHERE id = ?", status, id)
	return storeErr("tag material", err)
}

// ListMaterials returns every material record, unordered.
func (s *Store) ListMaterials(ctx context.Context) ([]model.MaterialRecord, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT "+materialColumns+" FROM materials")
	if err != nil {
		return nil, storeErr("list materials", err)
	}
	defer rows.Close()

	var out []model.MaterialRecord
	for rows.Next() {
		rec, err := scanMaterial(rows)
		if err != nil {
			return nil, storeErr("list materials", err)
		}
		out = append(out, rec)
	}
	return out, storeErr("list materials", rows.Err())
}

// GetMaterial returns a material record or ErrNotFound.
func (s *Store) GetMaterial(ctx context.Context, id int64) (model.MaterialRecord, error) {
	rec, err := getMaterial(ctx, s.conn, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		err = storeErr("get material", err)
	}
	return rec, err
}
