package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.PlacementError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// ApplicationFilter narrows ListApplications. Empty fields match everything.
type ApplicationFilter struct {
	DriveID         string
	StudentID       string
	Status          string
	IncludeArchived bool
}

const applicationColumns = `id, student_id, drive_id, status, notes, created_at, updated_at, archived_at`

// InsertApplication stores a new application.
func InsertApplication(ctx context.Context, q Querier, a *placement.Application) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO applications (id, student_id, drive_id, status, notes, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`, a.ID, a.StudentID, a.DriveID, string(a.Status), a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetApplication retrieves an application by id. History is not loaded.
func GetApplication(ctx context.Context, q Querier, id string) (*placement.Application, error) {
	row := q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(string(placement.KindApplication), id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return a, nil
}

// CompareAndSetStatus moves an application from one status to another.
// It reports false without error when the stored status is no longer from,
// which callers treat as a lost race.
func CompareAndSetStatus(ctx context.Context, q Querier, id string, from, to placement.Status, now int64) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE applications
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND archived_at IS NULL
	`, string(to), now, id, string(from))
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return affectedOne(result)
}

// UpdateApplicationNotes replaces the free-text notes of an application.
func UpdateApplicationNotes(ctx context.Context, q Querier, id, notes string, now int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE applications SET notes = ?, updated_at = ? WHERE id = ?
	`, notes, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewNotFound(string(placement.KindApplication), id)
	}
	return nil
}

// ArchiveApplication soft-archives an application. Archiving twice is a no-op
// reported as false.
func ArchiveApplication(ctx context.Context, q Querier, id string, now int64) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE applications SET archived_at = ?, updated_at = ?
		WHERE id = ? AND archived_at IS NULL
	`, now, now, id)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return affectedOne(result)
}

// ListApplications returns applications matching filter, newest first, plus
// the total match count for pagination.
func ListApplications(ctx context.Context, q Querier, filter ApplicationFilter, limit, offset int) ([]placement.Application, int, error) {
	where, args := applicationWhere(filter)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []placement.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return items, total, nil
}

func applicationWhere(filter ApplicationFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.DriveID != "" {
		clauses = append(clauses, "drive_id = ?")
		args = append(args, filter.DriveID)
	}
	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "archived_at IS NULL")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*placement.Application, error) {
	var (
		a          placement.Application
		status     string
		archivedAt sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.StudentID, &a.DriveID, &status, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &archivedAt); err != nil {
		return nil, err
	}
	a.Status = placement.Status(status)
	a.ArchivedAt = fromNullInt64(archivedAt)
	return &a, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n == 1, nil
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
