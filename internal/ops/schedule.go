package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/balaji090804/placement-portal/internal/db"
	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/lock"
	"github.com/balaji090804/placement-portal/internal/placement"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// ScheduleInput contains parameters for ScheduleInterview.
type ScheduleInput struct {
	ApplicationID string
	SlotID        string
	ActorID       string
}

// ScheduleOutput contains the result of ScheduleInterview.
type ScheduleOutput struct {
	Application *placement.Application `json:"application"`
	Slot        *SlotView              `json:"slot"`
}

// ScheduleInterview books the student into a slot and moves the application
// to InterviewScheduled as one unit. The booking and the transition commit
// separately; when the transition fails after the booking committed, the
// booking is cancelled again and no events are emitted.
//
// If the student already holds this slot, only the transition runs.
func (o *Orchestrator) ScheduleInterview(ctx context.Context, input ScheduleInput) (*ScheduleOutput, error) {
	if err := requireField("application_id", input.ApplicationID); err != nil {
		return nil, err
	}
	if err := requireField("slot_id", input.SlotID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}

	release, err := o.lock(ctx, "schedule", lock.Application(input.ApplicationID), lock.Slot(input.SlotID))
	if err != nil {
		o.metrics.Transition(string(placement.StatusInterviewScheduled), result(err))
		return nil, err
	}
	defer release()

	logger := klog.FromContext(ctx).WithValues("application", input.ApplicationID, "slot", input.SlotID)
	to := placement.StatusInterviewScheduled

	app, err := db.GetApplication(ctx, o.db, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	slot, err := db.GetSlot(ctx, o.db, input.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.DriveID != app.DriveID {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("slot %s belongs to drive %s, application is for drive %s", slot.ID, slot.DriveID, app.DriveID))
	}
	if app.ArchivedAt != nil {
		return nil, errors.NewInvalidTransition(string(app.Status), string(to), "application is archived")
	}
	if ok, reason := placement.CheckTransition(app.Status, to); !ok {
		err := errors.NewInvalidTransition(string(app.Status), string(to), reason)
		o.metrics.Transition(string(to), result(err))
		return nil, err
	}

	// Events are buffered and only emitted once both steps have committed.
	var pending []placement.Event
	now := o.unixNow()
	booked := false

	if !slot.HasStudent(app.StudentID) {
		err = o.tx(ctx, func(tx *sql.Tx) error {
			slot, err = o.bookTx(ctx, tx, slot.ID, app.StudentID, input.ActorID, now)
			return err
		})
		o.metrics.Booking("book", result(err))
		if err != nil {
			return nil, err
		}
		booked = true
		pending = append(pending, slotBooked(slot, app.StudentID, input.ActorID, now))
	}

	if o.afterBook != nil {
		o.afterBook()
	}

	from := app.Status
	err = o.tx(ctx, func(tx *sql.Tx) error {
		current, err := db.GetApplication(ctx, tx, app.ID)
		if err != nil {
			return err
		}
		if err := o.transitionTx(ctx, tx, current, to, input.ActorID, now); err != nil {
			return err
		}
		app = current
		return nil
	})
	o.metrics.Transition(string(to), result(err))
	if err != nil {
		if !booked {
			return nil, err
		}
		return nil, o.compensateBooking(ctx, logger, slot.ID, app.StudentID, input.ActorID, err)
	}

	pending = append(pending, statusChanged(app, from, input.ActorID, now))
	logger.V(2).Info("Interview scheduled", "student", app.StudentID, "booked", booked)
	o.emit(ctx, pending...)

	return &ScheduleOutput{Application: app, Slot: viewSlot(slot)}, nil
}

// compensateBooking cancels the booking made by a ScheduleInterview whose
// transition failed. It returns cause unchanged on success; if the cancel
// also fails the two errors are reported together as INTERNAL.
func (o *Orchestrator) compensateBooking(ctx context.Context, logger klog.Logger, slotID, studentID, actor string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	now := o.unixNow()
	err := o.tx(ctx, func(tx *sql.Tx) error {
		_, err := o.cancelTx(ctx, tx, slotID, studentID, actor, placement.ActionCompensated, now)
		return err
	})
	o.metrics.Booking("compensate", result(err))
	if err != nil {
		logger.Error(err, "Compensating cancel failed; booking left in place", "student", studentID, "cause", cause)
		return errors.NewInternal(multierr.Combine(cause, err))
	}
	logger.Info("Rolled back booking after failed transition", "student", studentID, "cause", cause)
	return cause
}
