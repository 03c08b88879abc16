package placement

import (
	"math"
	"slices"
)

// EntityKind names the entity an audit entry or event concerns.
type EntityKind string

const (
	KindApplication EntityKind = "application"
	KindSlot        EntityKind = "slot"
	KindOffer       EntityKind = "offer"
)

// Application is one student's candidacy for one drive.
type Application struct {
	ID         string       `json:"id"`
	StudentID  string       `json:"student_id"`
	DriveID    string       `json:"drive_id"`
	Status     Status       `json:"status"`
	Notes      string       `json:"notes,omitempty"`
	History    []Transition `json:"history,omitempty"`
	CreatedAt  int64        `json:"created_at"`
	UpdatedAt  int64        `json:"updated_at"`
	ArchivedAt *int64       `json:"archived_at,omitempty"`
}

// Transition is one committed status change of an application.
type Transition struct {
	At         int64  `json:"at"`
	Action     string `json:"action"`
	FromStatus Status `json:"from_status,omitempty"`
	ToStatus   Status `json:"to_status"`
	ActorID    string `json:"actor_id"`
}

// Slot is a bounded-capacity interview window for a drive.
type Slot struct {
	ID               string   `json:"id"`
	DriveID          string   `json:"drive_id"`
	Start            int64    `json:"slot_start"`
	End              int64    `json:"slot_end"`
	Capacity         int      `json:"capacity"`
	BookedStudentIDs []string `json:"booked_student_ids"`
	CreatedAt        int64    `json:"created_at"`
}

// Remaining returns the unbooked capacity of the slot.
func (s *Slot) Remaining() int {
	return max(s.Capacity-len(s.BookedStudentIDs), 0)
}

// HasStudent reports whether studentID holds a booking in the slot.
func (s *Slot) HasStudent(studentID string) bool {
	return slices.Contains(s.BookedStudentIDs, studentID)
}

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferDraft    OfferStatus = "draft"
	OfferReleased OfferStatus = "released"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
)

// Terminal reports whether the offer can no longer change.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferDeclined
}

// Decision is a student's response to a released offer.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Valid reports whether d is accept or decline.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionDecline
}

// Offer is an employment proposal tied to one application.
type Offer struct {
	ID            string      `json:"id"`
	ApplicationID string      `json:"application_id"`
	StudentID     string      `json:"student_id"`
	DriveID       string      `json:"drive_id"`
	Status        OfferStatus `json:"status"`
	CTC           float64     `json:"ctc"`
	ReleaseDate   *int64      `json:"release_date,omitempty"`
	AcceptBy      *int64      `json:"accept_by,omitempty"`
	AcceptedAt    *int64      `json:"accepted_at,omitempty"`
	DeclinedAt    *int64      `json:"declined_at,omitempty"`
	CreatedAt     int64       `json:"created_at"`
	UpdatedAt     int64       `json:"updated_at"`
}

const secondsPerDay = 24 * 60 * 60

// RemainingDays returns ceil((AcceptBy - now) / 1 day), or nil when the offer
// has no deadline. The value is for display and may be zero or negative.
func (o *Offer) RemainingDays(now int64) *int {
	if o.AcceptBy == nil {
		return nil
	}
	days := int(math.Ceil(float64(*o.AcceptBy-now) / secondsPerDay))
	return &days
}

// DeadlinePassed reports whether now is strictly after AcceptBy.
func (o *Offer) DeadlinePassed(now int64) bool {
	return o.AcceptBy != nil && now > *o.AcceptBy
}

// AuditEntry is one append-only record in the audit log. It references the
// entity by kind and id only.
type AuditEntry struct {
	ID         string     `json:"id"`
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	Seq        int        `json:"seq"`
	Action     string     `json:"action"`
	FromState  string     `json:"from_state,omitempty"`
	ToState    string     `json:"to_state,omitempty"`
	ActorID    string     `json:"actor_id"`
	At         int64      `json:"at"`
}

// Audit actions.
const (
	ActionCreated      = "created"
	ActionTransition   = "transition"
	ActionArchived     = "archived"
	ActionNotesUpdated = "notes_updated"
	ActionSlotCreated  = "slot_created"
	ActionBooked       = "booked"
	ActionCancelled    = "cancelled"
	ActionCompensated  = "booking_compensated"
	ActionOfferDrafted = "offer_drafted"
	ActionReleased     = "released"
	ActionAccepted     = "accepted"
	ActionDeclined     = "declined"
	ActionAcceptedLate = "accepted_after_deadline"
	ActionDeclinedLate = "declined_after_deadline"
)

// TransitionFromAudit converts an application audit entry into a history item.
func TransitionFromAudit(e AuditEntry) Transition {
	return Transition{
		At:         e.At,
		Action:     e.Action,
		FromStatus: Status(e.FromState),
		ToStatus:   Status(e.ToState),
		ActorID:    e.ActorID,
	}
}
