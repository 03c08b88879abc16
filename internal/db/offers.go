package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
)

// OfferFilter narrows ListOffers. Empty fields match everything.
type OfferFilter struct {
	StudentID string
	DriveID   string
	Status    string
}

const offerColumns = `id, application_id, student_id, drive_id, status, ctc,
	release_date, accept_by, accepted_at, declined_at, created_at, updated_at`

// InsertOffer stores a new offer. A second offer for the same application
// fails with ErrUniqueConstraint.
func InsertOffer(ctx context.Context, q Querier, o *placement.Offer) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.ApplicationID, o.StudentID, o.DriveID, string(o.Status), o.CTC,
		toNullInt64(o.ReleaseDate), toNullInt64(o.AcceptBy),
		toNullInt64(o.AcceptedAt), toNullInt64(o.DeclinedAt),
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetOffer retrieves an offer by id.
func GetOffer(ctx context.Context, q Querier, id string) (*placement.Offer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(string(placement.KindOffer), id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return o, nil
}

// GetOfferByApplication returns the offer attached to an application, or nil
// when there is none.
func GetOfferByApplication(ctx context.Context, q Querier, applicationID string) (*placement.Offer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE application_id = ?`, applicationID)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return o, nil
}

// CompareAndSetOffer writes the mutable fields of o, provided the stored
// status is still from. It reports false when another writer moved the offer.
func CompareAndSetOffer(ctx context.Context, q Querier, o *placement.Offer, from placement.OfferStatus) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE offers
		SET status = ?, release_date = ?, accept_by = ?, accepted_at = ?, declined_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(o.Status), toNullInt64(o.ReleaseDate), toNullInt64(o.AcceptBy),
		toNullInt64(o.AcceptedAt), toNullInt64(o.DeclinedAt), o.UpdatedAt,
		o.ID, string(from))
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return affectedOne(result)
}

// ListOffers returns offers matching filter, newest first, plus the total.
func ListOffers(ctx context.Context, q Querier, filter OfferFilter, limit, offset int) ([]placement.Offer, int, error) {
	var clauses []string
	var args []any
	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.DriveID != "" {
		clauses = append(clauses, "drive_id = ?")
		args = append(args, filter.DriveID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM offers`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []placement.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return items, total, nil
}

func scanOffer(row rowScanner) (*placement.Offer, error) {
	var (
		o                                           placement.Offer
		status                                      string
		releaseDate, acceptBy, acceptedAt, declined sql.NullInt64
	)
	err := row.Scan(&o.ID, &o.ApplicationID, &o.StudentID, &o.DriveID, &status, &o.CTC,
		&releaseDate, &acceptBy, &acceptedAt, &declined, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = placement.OfferStatus(status)
	o.ReleaseDate = fromNullInt64(releaseDate)
	o.AcceptBy = fromNullInt64(acceptBy)
	o.AcceptedAt = fromNullInt64(acceptedAt)
	o.DeclinedAt = fromNullInt64(declined)
	return &o, nil
}
