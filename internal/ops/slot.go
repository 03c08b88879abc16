package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/balaji090804/placement-portal/internal/db"
	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/lock"
	"github.com/balaji090804/placement-portal/internal/placement"
	"k8s.io/klog/v2"
)

// SlotView is a slot with its remaining capacity.
type SlotView struct {
	placement.Slot
	Remaining int `json:"remaining"`
}

func viewSlot(s *placement.Slot) *SlotView {
	return &SlotView{Slot: *s, Remaining: s.Remaining()}
}

// CreateSlotInput contains parameters for CreateSlot.
type CreateSlotInput struct {
	DriveID  string
	Start    int64 // unix seconds
	End      int64 // unix seconds
	Capacity int
	ActorID  string
}

// CreateSlot opens an interview slot for a drive. Capacity is fixed for the
// life of the slot.
func (o *Orchestrator) CreateSlot(ctx context.Context, input CreateSlotInput) (*SlotView, error) {
	driveID := strings.TrimSpace(input.DriveID)
	if err := requireField("drive_id", driveID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}
	if input.Capacity <= 0 {
		return nil, errors.NewInvalidRequest("capacity must be positive")
	}
	if input.Start <= 0 || input.End <= input.Start {
		return nil, errors.NewInvalidRequest("slot_end must be after slot_start")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := o.unixNow()
	slot := &placement.Slot{
		ID:               id,
		DriveID:          driveID,
		Start:            input.Start,
		End:              input.End,
		Capacity:         input.Capacity,
		BookedStudentIDs: []string{},
		CreatedAt:        now,
	}

	err = o.tx(ctx, func(tx *sql.Tx) error {
		if err := db.InsertSlot(ctx, tx, slot); err != nil {
			return err
		}
		return o.audit(ctx, tx, placement.AuditEntry{
			EntityKind: placement.KindSlot,
			EntityID:   id,
			Action:     placement.ActionSlotCreated,
			ToState:    fmt.Sprintf("capacity=%d", input.Capacity),
			ActorID:    input.ActorID,
			At:         now,
		})
	})
	if err != nil {
		return nil, err
	}
	return viewSlot(slot), nil
}

// BookInput contains parameters for BookSlot and CancelSlot.
type BookInput struct {
	SlotID    string
	StudentID string
	ActorID   string // defaults to StudentID
}

func (in BookInput) actor() string {
	if a := strings.TrimSpace(in.ActorID); a != "" {
		return a
	}
	return in.StudentID
}

// BookSlot reserves one seat in a slot for a student. The capacity check and
// the insert are atomic; a student holds at most one slot per drive.
func (o *Orchestrator) BookSlot(ctx context.Context, input BookInput) (*SlotView, error) {
	if err := validateBooking(input); err != nil {
		return nil, err
	}

	release, err := o.lock(ctx, "book", lock.Slot(input.SlotID))
	if err != nil {
		o.metrics.Booking("book", result(err))
		return nil, err
	}
	defer release()

	now := o.unixNow()
	var slot *placement.Slot
	err = o.tx(ctx, func(tx *sql.Tx) error {
		slot, err = o.bookTx(ctx, tx, input.SlotID, input.StudentID, input.actor(), now)
		return err
	})
	o.metrics.Booking("book", result(err))
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("Slot booked", "slot", slot.ID, "student", input.StudentID, "remaining", slot.Remaining())
	o.emit(ctx, slotBooked(slot, input.StudentID, input.actor(), now))
	return viewSlot(slot), nil
}

// bookTx inserts the booking and its audit entry and returns the slot as it
// stands afterwards.
func (o *Orchestrator) bookTx(ctx context.Context, tx *sql.Tx, slotID, studentID, actor string, now int64) (*placement.Slot, error) {
	slot, err := db.GetSlot(ctx, tx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.HasStudent(studentID) {
		return nil, errors.NewAlreadyBooked(slotID, studentID, slotID)
	}
	held, err := db.FindBookingForDrive(ctx, tx, slot.DriveID, studentID)
	if err != nil {
		return nil, err
	}
	if held != "" {
		return nil, errors.NewAlreadyBooked(slotID, studentID, held)
	}

	inserted, err := db.InsertBooking(ctx, tx, slotID, studentID, now)
	if err == db.ErrUniqueConstraint {
		return nil, errors.NewAlreadyBooked(slotID, studentID, slotID)
	}
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, errors.NewSlotFull(slotID, slot.Capacity)
	}

	if err := o.audit(ctx, tx, placement.AuditEntry{
		EntityKind: placement.KindSlot,
		EntityID:   slotID,
		Action:     placement.ActionBooked,
		ToState:    studentID,
		ActorID:    actor,
		At:         now,
	}); err != nil {
		return nil, err
	}
	slot.BookedStudentIDs = append(slot.BookedStudentIDs, studentID)
	return slot, nil
}

// CancelSlot frees a student's seat in a slot. The application keeps its
// status; moving it on is a separate transition.
func (o *Orchestrator) CancelSlot(ctx context.Context, input BookInput) (*SlotView, error) {
	if err := validateBooking(input); err != nil {
		return nil, err
	}

	release, err := o.lock(ctx, "cancel", lock.Slot(input.SlotID))
	if err != nil {
		o.metrics.Booking("cancel", result(err))
		return nil, err
	}
	defer release()

	now := o.unixNow()
	var slot *placement.Slot
	err = o.tx(ctx, func(tx *sql.Tx) error {
		slot, err = o.cancelTx(ctx, tx, input.SlotID, input.StudentID, input.actor(), placement.ActionCancelled, now)
		return err
	})
	o.metrics.Booking("cancel", result(err))
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("Slot booking cancelled", "slot", slot.ID, "student", input.StudentID, "remaining", slot.Remaining())
	o.emit(ctx, placement.NewEvent(placement.EventSlotCancelled, placement.KindSlot, slot.ID, input.actor(), now, map[string]any{
		"student_id": input.StudentID,
		"drive_id":   slot.DriveID,
		"remaining":  slot.Remaining(),
	}))
	return viewSlot(slot), nil
}

// cancelTx removes a booking and audits it under action.
func (o *Orchestrator) cancelTx(ctx context.Context, tx *sql.Tx, slotID, studentID, actor, action string, now int64) (*placement.Slot, error) {
	if _, err := db.GetSlot(ctx, tx, slotID); err != nil {
		return nil, err
	}
	removed, err := db.DeleteBooking(ctx, tx, slotID, studentID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, errors.NewNotBooked(slotID, studentID)
	}
	if err := o.audit(ctx, tx, placement.AuditEntry{
		EntityKind: placement.KindSlot,
		EntityID:   slotID,
		Action:     action,
		FromState:  studentID,
		ActorID:    actor,
		At:         now,
	}); err != nil {
		return nil, err
	}
	return db.GetSlot(ctx, tx, slotID)
}

// GetSlot returns a slot with its bookings and remaining capacity.
func (o *Orchestrator) GetSlot(ctx context.Context, id string) (*SlotView, error) {
	if err := requireField("slot_id", id); err != nil {
		return nil, err
	}
	slot, err := db.GetSlot(ctx, o.db, id)
	if err != nil {
		return nil, err
	}
	return viewSlot(slot), nil
}

// ListSlotsInput contains parameters for ListSlots.
type ListSlotsInput struct {
	DriveID       string
	AvailableOnly bool
	Limit         int // default: 20, max: 100
	Offset        int
}

// ListSlotsOutput contains the result of ListSlots.
type ListSlotsOutput struct {
	Items      []SlotView `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// ListSlots returns the slots of a drive in start order with remaining
// capacity. Past slots are included. AvailableOnly filters the returned page
// and leaves the total untouched.
func (o *Orchestrator) ListSlots(ctx context.Context, input ListSlotsInput) (*ListSlotsOutput, error) {
	limit, offset := page(input.Limit, input.Offset)
	slots, total, err := db.ListSlots(ctx, o.db, strings.TrimSpace(input.DriveID), limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]SlotView, 0, len(slots))
	for i := range slots {
		v := viewSlot(&slots[i])
		if input.AvailableOnly && v.Remaining == 0 {
			continue
		}
		items = append(items, *v)
	}

	return &ListSlotsOutput{
		Items:      items,
		Pagination: pagination(limit, offset, len(slots), total),
		Sort:       "slot_start_asc",
	}, nil
}

func validateBooking(input BookInput) error {
	if err := requireField("slot_id", input.SlotID); err != nil {
		return err
	}
	return requireField("student_id", input.StudentID)
}

func slotBooked(slot *placement.Slot, studentID, actor string, at int64) placement.Event {
	return placement.NewEvent(placement.EventSlotBooked, placement.KindSlot, slot.ID, actor, at, map[string]any{
		"student_id": studentID,
		"drive_id":   slot.DriveID,
		"slot_start": slot.Start,
		"remaining":  slot.Remaining(),
	})
}
