package db

import (
	"context"
	"database/sql"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
)

// InsertSlot stores a new interview slot with no bookings.
func InsertSlot(ctx context.Context, q Querier, s *placement.Slot) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO slots (id, drive_id, slot_start, slot_end, capacity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.DriveID, s.Start, s.End, s.Capacity, s.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetSlot retrieves a slot and its current bookings in booking order.
func GetSlot(ctx context.Context, q Querier, id string) (*placement.Slot, error) {
	var s placement.Slot
	err := q.QueryRowContext(ctx, `
		SELECT id, drive_id, slot_start, slot_end, capacity, created_at
		FROM slots WHERE id = ?
	`, id).Scan(&s.ID, &s.DriveID, &s.Start, &s.End, &s.Capacity, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewSlotNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	booked, err := slotBookings(ctx, q, id)
	if err != nil {
		return nil, err
	}
	s.BookedStudentIDs = booked
	return &s, nil
}

// ListSlots returns the slots of a drive ordered by start time. An empty
// driveID lists every drive.
func ListSlots(ctx context.Context, q Querier, driveID string, limit, offset int) ([]placement.Slot, int, error) {
	where := ""
	var args []any
	if driveID != "" {
		where = " WHERE drive_id = ?"
		args = append(args, driveID)
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM slots`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, drive_id, slot_start, slot_end, capacity, created_at
		FROM slots`+where+` ORDER BY slot_start ASC, id ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	var items []placement.Slot
	for rows.Next() {
		var s placement.Slot
		if err := rows.Scan(&s.ID, &s.DriveID, &s.Start, &s.End, &s.Capacity, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, errors.NewInternal(err)
	}
	rows.Close()

	// Bookings are loaded after the slot cursor is closed so q may be a *sql.Tx.
	for i := range items {
		booked, err := slotBookings(ctx, q, items[i].ID)
		if err != nil {
			return nil, 0, err
		}
		items[i].BookedStudentIDs = booked
	}
	return items, total, nil
}

func slotBookings(ctx context.Context, q Querier, slotID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT student_id FROM slot_bookings
		WHERE slot_id = ?
		ORDER BY booked_at ASC, rowid ASC
	`, slotID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	booked := []string{}
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return nil, errors.NewInternal(err)
		}
		booked = append(booked, studentID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return booked, nil
}

// InsertBooking adds studentID to the slot only while the slot has spare
// capacity. The count check and the insert are one statement, so two writers
// can never both take the last seat. It reports false when the slot is full.
// A second booking for the same drive fails with ErrUniqueConstraint.
func InsertBooking(ctx context.Context, q Querier, slotID, studentID string, now int64) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO slot_bookings (slot_id, drive_id, student_id, booked_at)
		SELECT s.id, s.drive_id, ?, ?
		FROM slots s
		WHERE s.id = ?
		  AND (SELECT COUNT(*) FROM slot_bookings b WHERE b.slot_id = s.id) < s.capacity
	`, studentID, now, slotID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, ErrUniqueConstraint
		}
		return false, errors.NewInternal(err)
	}
	return affectedOne(result)
}

// DeleteBooking removes studentID from the slot. It reports false when the
// student held no booking there.
func DeleteBooking(ctx context.Context, q Querier, slotID, studentID string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM slot_bookings WHERE slot_id = ? AND student_id = ?
	`, slotID, studentID)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return affectedOne(result)
}

// FindBookingForDrive returns the slot a student holds in a drive, or "" when
// the student holds none.
func FindBookingForDrive(ctx context.Context, q Querier, driveID, studentID string) (string, error) {
	var slotID string
	err := q.QueryRowContext(ctx, `
		SELECT slot_id FROM slot_bookings WHERE drive_id = ? AND student_id = ?
	`, driveID, studentID).Scan(&slotID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return slotID, nil
}
