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

// CreateApplicationInput contains parameters for CreateApplication.
type CreateApplicationInput struct {
	StudentID string
	DriveID   string
	Notes     string
	ActorID   string // defaults to StudentID
}

// CreateApplication registers a student's candidacy for a drive at Applied.
// A student may apply to a drive once.
func (o *Orchestrator) CreateApplication(ctx context.Context, input CreateApplicationInput) (*placement.Application, error) {
	studentID := strings.TrimSpace(input.StudentID)
	driveID := strings.TrimSpace(input.DriveID)
	if err := requireField("student_id", studentID); err != nil {
		return nil, err
	}
	if err := requireField("drive_id", driveID); err != nil {
		return nil, err
	}
	if len(input.Notes) > MaxNotesChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("notes exceed %d characters", MaxNotesChars))
	}
	actor := strings.TrimSpace(input.ActorID)
	if actor == "" {
		actor = studentID
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := o.unixNow()
	app := &placement.Application{
		ID:        id,
		StudentID: studentID,
		DriveID:   driveID,
		Status:    placement.StatusApplied,
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = o.tx(ctx, func(tx *sql.Tx) error {
		if err := db.InsertApplication(ctx, tx, app); err != nil {
			if err == db.ErrUniqueConstraint {
				return errors.NewConflict(fmt.Sprintf("student %s already applied to drive %s", studentID, driveID))
			}
			return err
		}
		return o.audit(ctx, tx, placement.AuditEntry{
			EntityKind: placement.KindApplication,
			EntityID:   id,
			Action:     placement.ActionCreated,
			ToState:    string(placement.StatusApplied),
			ActorID:    actor,
			At:         now,
		})
	})
	o.metrics.Transition(string(placement.StatusApplied), result(err))
	if err != nil {
		return nil, err
	}

	app.History = []placement.Transition{{
		At:       now,
		Action:   placement.ActionCreated,
		ToStatus: placement.StatusApplied,
		ActorID:  actor,
	}}
	o.emit(ctx, statusChanged(app, "", actor, now))
	return app, nil
}

// TransitionInput contains parameters for ApplyTransition.
type TransitionInput struct {
	ApplicationID string
	ToStatus      string
	ActorID       string
}

// ApplyTransition moves an application to a new status. Moving to
// InterviewScheduled this way requires the student to already hold a slot
// in the application's drive; ScheduleInterview books and moves in one call.
func (o *Orchestrator) ApplyTransition(ctx context.Context, input TransitionInput) (*placement.Application, error) {
	if err := requireField("application_id", input.ApplicationID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}
	to, err := placement.ParseStatus(input.ToStatus)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	release, err := o.lock(ctx, "transition", lock.Application(input.ApplicationID))
	if err != nil {
		o.metrics.Transition(string(to), result(err))
		return nil, err
	}
	defer release()

	var (
		app  *placement.Application
		from placement.Status
		now  = o.unixNow()
	)
	err = o.tx(ctx, func(tx *sql.Tx) error {
		app, err = db.GetApplication(ctx, tx, input.ApplicationID)
		if err != nil {
			return err
		}
		from = app.Status
		if to == placement.StatusInterviewScheduled {
			held, err := db.FindBookingForDrive(ctx, tx, app.DriveID, app.StudentID)
			if err != nil {
				return err
			}
			if held == "" {
				return errors.NewInvalidTransition(string(from), string(to), "student holds no interview slot in this drive")
			}
		}
		return o.transitionTx(ctx, tx, app, to, input.ActorID, now)
	})
	o.metrics.Transition(string(to), result(err))
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("Application transitioned", "application", app.ID, "from", from, "to", to, "actor", input.ActorID)
	o.emit(ctx, statusChanged(app, from, input.ActorID, now))
	return app, nil
}

// transitionTx validates and applies one status change inside tx, appends
// the audit entry and reloads app's history. app is updated in place.
func (o *Orchestrator) transitionTx(ctx context.Context, tx *sql.Tx, app *placement.Application, to placement.Status, actor string, now int64) error {
	from := app.Status
	if app.ArchivedAt != nil {
		return errors.NewInvalidTransition(string(from), string(to), "application is archived")
	}
	if ok, reason := placement.CheckTransition(from, to); !ok {
		return errors.NewInvalidTransition(string(from), string(to), reason)
	}

	applied, err := db.CompareAndSetStatus(ctx, tx, app.ID, from, to, now)
	if err != nil {
		return err
	}
	if !applied {
		return errors.NewConflict(fmt.Sprintf("application %s changed while being updated", app.ID))
	}

	if err := o.audit(ctx, tx, placement.AuditEntry{
		EntityKind: placement.KindApplication,
		EntityID:   app.ID,
		Action:     placement.ActionTransition,
		FromState:  string(from),
		ToState:    string(to),
		ActorID:    actor,
		At:         now,
	}); err != nil {
		return err
	}

	app.Status = to
	app.UpdatedAt = now
	return loadHistory(ctx, tx, app)
}

// ArchiveInput contains parameters for ArchiveApplication.
type ArchiveInput struct {
	ApplicationID string
	ActorID       string
}

// ArchiveApplication soft-archives an application. Archived applications
// keep their history but accept no further transitions.
func (o *Orchestrator) ArchiveApplication(ctx context.Context, input ArchiveInput) (*placement.Application, error) {
	if err := requireField("application_id", input.ApplicationID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}

	release, err := o.lock(ctx, "archive", lock.Application(input.ApplicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	var app *placement.Application
	now := o.unixNow()
	err = o.tx(ctx, func(tx *sql.Tx) error {
		app, err = db.GetApplication(ctx, tx, input.ApplicationID)
		if err != nil {
			return err
		}
		archived, err := db.ArchiveApplication(ctx, tx, app.ID, now)
		if err != nil {
			return err
		}
		if !archived {
			return errors.NewConflict(fmt.Sprintf("application %s is already archived", app.ID))
		}
		app.ArchivedAt = &now
		app.UpdatedAt = now
		if err := o.audit(ctx, tx, placement.AuditEntry{
			EntityKind: placement.KindApplication,
			EntityID:   app.ID,
			Action:     placement.ActionArchived,
			FromState:  string(app.Status),
			ToState:    string(app.Status),
			ActorID:    input.ActorID,
			At:         now,
		}); err != nil {
			return err
		}
		return loadHistory(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// NotesInput contains parameters for UpdateNotes.
type NotesInput struct {
	ApplicationID string
	Notes         string
	ActorID       string
}

// UpdateNotes replaces the free-text notes of an application.
func (o *Orchestrator) UpdateNotes(ctx context.Context, input NotesInput) (*placement.Application, error) {
	if err := requireField("application_id", input.ApplicationID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}
	if len(input.Notes) > MaxNotesChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("notes exceed %d characters", MaxNotesChars))
	}

	release, err := o.lock(ctx, "notes", lock.Application(input.ApplicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	var app *placement.Application
	now := o.unixNow()
	err = o.tx(ctx, func(tx *sql.Tx) error {
		app, err = db.GetApplication(ctx, tx, input.ApplicationID)
		if err != nil {
			return err
		}
		if err := db.UpdateApplicationNotes(ctx, tx, app.ID, input.Notes, now); err != nil {
			return err
		}
		app.Notes = input.Notes
		app.UpdatedAt = now
		if err := o.audit(ctx, tx, placement.AuditEntry{
			EntityKind: placement.KindApplication,
			EntityID:   app.ID,
			Action:     placement.ActionNotesUpdated,
			ActorID:    input.ActorID,
			At:         now,
		}); err != nil {
			return err
		}
		return loadHistory(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// GetApplication returns an application with its status history.
func (o *Orchestrator) GetApplication(ctx context.Context, id string) (*placement.Application, error) {
	if err := requireField("application_id", id); err != nil {
		return nil, err
	}
	app, err := db.GetApplication(ctx, o.db, id)
	if err != nil {
		return nil, err
	}
	if err := loadHistory(ctx, o.db, app); err != nil {
		return nil, err
	}
	return app, nil
}

// ListApplicationsInput contains parameters for ListApplications.
type ListApplicationsInput struct {
	DriveID         string
	StudentID       string
	Status          string
	IncludeArchived bool
	Limit           int // default: 20, max: 100
	Offset          int
}

// ListApplicationsOutput contains the result of ListApplications.
type ListApplicationsOutput struct {
	Items      []placement.Application `json:"items"`
	Pagination Pagination              `json:"pagination"`
	Sort       string                  `json:"sort"`
}

// ListApplications returns applications by drive, student and status, newest
// first. History is not loaded for list items.
func (o *Orchestrator) ListApplications(ctx context.Context, input ListApplicationsInput) (*ListApplicationsOutput, error) {
	filter := db.ApplicationFilter{
		DriveID:         strings.TrimSpace(input.DriveID),
		StudentID:       strings.TrimSpace(input.StudentID),
		IncludeArchived: input.IncludeArchived,
	}
	if strings.TrimSpace(input.Status) != "" {
		status, err := placement.ParseStatus(input.Status)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		filter.Status = string(status)
	}

	limit, offset := page(input.Limit, input.Offset)
	items, total, err := db.ListApplications(ctx, o.db, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []placement.Application{}
	}

	return &ListApplicationsOutput{
		Items:      items,
		Pagination: pagination(limit, offset, len(items), total),
		Sort:       "created_at_desc",
	}, nil
}

// HistoryInput contains parameters for History.
type HistoryInput struct {
	EntityKind string
	EntityID   string
}

// HistoryOutput contains the audit trail of one entity.
type HistoryOutput struct {
	EntityKind placement.EntityKind   `json:"entity_kind"`
	EntityID   string                 `json:"entity_id"`
	Entries    []placement.AuditEntry `json:"entries"`
}

// History returns every audit entry of an entity in commit order.
func (o *Orchestrator) History(ctx context.Context, input HistoryInput) (*HistoryOutput, error) {
	kind := placement.EntityKind(strings.ToLower(strings.TrimSpace(input.EntityKind)))
	switch kind {
	case placement.KindApplication, placement.KindSlot, placement.KindOffer:
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("entity_kind must be one of application, slot, offer; got %q", input.EntityKind))
	}
	if err := requireField("entity_id", input.EntityID); err != nil {
		return nil, err
	}

	entries, err := db.ListAudit(ctx, o.db, kind, input.EntityID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		if kind == placement.KindSlot {
			return nil, errors.NewSlotNotFound(input.EntityID)
		}
		return nil, errors.NewNotFound(string(kind), input.EntityID)
	}
	return &HistoryOutput{EntityKind: kind, EntityID: input.EntityID, Entries: entries}, nil
}

// loadHistory fills app.History with its status changes in commit order.
func loadHistory(ctx context.Context, q db.Querier, app *placement.Application) error {
	entries, err := db.ListAudit(ctx, q, placement.KindApplication, app.ID)
	if err != nil {
		return err
	}
	history := make([]placement.Transition, 0, len(entries))
	for _, e := range entries {
		if e.Action != placement.ActionCreated && e.Action != placement.ActionTransition {
			continue
		}
		history = append(history, placement.TransitionFromAudit(e))
	}
	app.History = history
	return nil
}

func statusChanged(app *placement.Application, from placement.Status, actor string, at int64) placement.Event {
	return placement.NewEvent(placement.EventStatusChanged, placement.KindApplication, app.ID, actor, at, map[string]any{
		"from":       string(from),
		"to":         string(app.Status),
		"student_id": app.StudentID,
		"drive_id":   app.DriveID,
	})
}
