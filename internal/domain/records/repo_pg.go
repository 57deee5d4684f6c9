package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mednote/mednote/internal/platform/auth"
	"github.com/mednote/mednote/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// storePG is the hosted Record Store. Rows are owned by user_id and the
// note table cascades on patient deletion.
type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

func (r *storePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func owner(ctx context.Context) (string, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return "", ErrUnauthenticated
	}
	return uid, nil
}

// parseID treats malformed identifiers as absent rows.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return u, nil
}

func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "23514", "22007", "22008":
			return fmt.Errorf("%w: %s", ErrInvalid, pgErr.Message)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// =========== Patient ===========

const patientCols = `id::text, name, to_char(dob, 'YYYY-MM-DD'), contact_info, allergies,
	chronic_conditions, tags, user_id, created_at, updated_at`

func scanPatient(row pgx.Row) (PatientRow, error) {
	var p PatientRow
	err := row.Scan(&p.ID, &p.Name, &p.DOB, &p.ContactInfo, &p.Allergies,
		&p.ChronicConditions, &p.Tags, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	return p, mapPGError(err)
}

func (r *storePG) ListPatients(ctx context.Context) ([]PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()
	items := []PatientRow{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, mapPGError(rows.Err())
}

func (r *storePG) GetPatient(ctx context.Context, id string) (PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return PatientRow{}, err
	}
	pid, err := parseID(id)
	if err != nil {
		return PatientRow{}, err
	}
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND user_id = $2`, pid, uid))
}

func (r *storePG) InsertPatient(ctx context.Context, p PatientRow) (PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return PatientRow{}, err
	}
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, user_id, name, dob, contact_info, allergies, chronic_conditions, tags)
		VALUES ($1, $2, $3, NULLIF($4, '')::date, $5, $6, $7, $8)
		RETURNING `+patientCols,
		uuid.New(), uid, p.Name, deref(p.DOB), p.ContactInfo, p.Allergies, p.ChronicConditions, nonNilTags(p.Tags)))
}

func (r *storePG) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (PatientRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return PatientRow{}, err
	}
	pid, err := parseID(id)
	if err != nil {
		return PatientRow{}, err
	}
	set, args := updateClause(patch.Columns(), pid, uid)
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`UPDATE patient SET `+set+` WHERE id = $1 AND user_id = $2 RETURNING `+patientCols, args...))
}

func (r *storePG) DeletePatient(ctx context.Context, id string) error {
	return r.delete(ctx, "patient", id)
}

// =========== Note ===========

const noteCols = `id::text, patient_id::text, template_type, content, tags, user_id, created_at, updated_at`

func scanNote(row pgx.Row) (NoteRow, error) {
	var n NoteRow
	err := row.Scan(&n.ID, &n.PatientID, &n.TemplateType, &n.Content, &n.Tags, &n.UserID, &n.CreatedAt, &n.UpdatedAt)
	return n, mapPGError(err)
}

func (r *storePG) ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + noteCols + ` FROM note WHERE user_id = $1`
	args := []interface{}{uid}
	if filter.PatientID != "" {
		pid, err := uuid.Parse(filter.PatientID)
		if err != nil {
			return []NoteRow{}, nil
		}
		query += ` AND patient_id = $2`
		args = append(args, pid)
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()
	items := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, mapPGError(rows.Err())
}

func (r *storePG) GetNote(ctx context.Context, id string) (NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	nid, err := parseID(id)
	if err != nil {
		return NoteRow{}, err
	}
	return scanNote(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM note WHERE id = $1 AND user_id = $2`, nid, uid))
}

func (r *storePG) InsertNote(ctx context.Context, n NoteRow) (NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	pid, err := uuid.Parse(n.PatientID)
	if err != nil {
		return NoteRow{}, fmt.Errorf("%w: patient %q does not exist", ErrInvalid, n.PatientID)
	}
	// The patient must exist and belong to the same principal.
	row, err := scanNote(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO note (id, user_id, patient_id, template_type, content, tags)
		SELECT $1, $2, p.id, $4, $5, $6 FROM patient p WHERE p.id = $3 AND p.user_id = $2
		RETURNING `+noteCols,
		uuid.New(), uid, pid, n.TemplateType, n.Content, nonNilTags(n.Tags)))
	if errors.Is(err, ErrNotFound) {
		return NoteRow{}, fmt.Errorf("%w: patient %q does not exist", ErrInvalid, n.PatientID)
	}
	return row, err
}

func (r *storePG) UpdateNote(ctx context.Context, id string, patch NotePatch) (NoteRow, error) {
	uid, err := owner(ctx)
	if err != nil {
		return NoteRow{}, err
	}
	nid, err := parseID(id)
	if err != nil {
		return NoteRow{}, err
	}
	set, args := updateClause(patch.Columns(), nid, uid)
	return scanNote(r.conn(ctx).QueryRow(ctx,
		`UPDATE note SET `+set+` WHERE id = $1 AND user_id = $2 RETURNING `+noteCols, args...))
}

func (r *storePG) DeleteNote(ctx context.Context, id string) error {
	return r.delete(ctx, "note", id)
}

func (r *storePG) delete(ctx context.Context, table, id string) error {
	uid, err := owner(ctx)
	if err != nil {
		return err
	}
	rid, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND user_id = $2`, rid, uid)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// updateClause renders the SET list for a partial update. $1 and $2 are
// reserved for the row id and owner. updated_at always moves forward, even
// when two writes land within the clock's resolution.
func updateClause(cols []Column, id uuid.UUID, uid string) (string, []interface{}) {
	args := []interface{}{id, uid}
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		args = append(args, col.Value)
		placeholder := fmt.Sprintf("$%d", len(args))
		if col.Name == "dob" {
			placeholder = fmt.Sprintf("NULLIF($%d, '')::date", len(args))
		}
		sets = append(sets, col.Name+" = "+placeholder)
	}
	sets = append(sets, "updated_at = GREATEST(NOW(), updated_at + interval '1 microsecond')")
	return strings.Join(sets, ", "), args
}
