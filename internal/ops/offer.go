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

// OfferView is an offer with its display-only deadline fields.
type OfferView struct {
	placement.Offer
	RemainingDays  *int `json:"remaining_days,omitempty"`
	DeadlinePassed bool `json:"deadline_passed"`
}

func viewOffer(offer *placement.Offer, now int64) *OfferView {
	return &OfferView{
		Offer:          *offer,
		RemainingDays:  offer.RemainingDays(now),
		DeadlinePassed: offer.DeadlinePassed(now),
	}
}

// CreateOfferInput contains parameters for CreateOffer.
type CreateOfferInput struct {
	ApplicationID string
	CTC           float64
	AcceptBy      *int64 // unix seconds; nil means no deadline
	ActorID       string
}

// CreateOffer drafts the offer of an application. The application must be at
// Offered or later and may carry only one offer.
func (o *Orchestrator) CreateOffer(ctx context.Context, input CreateOfferInput) (*OfferView, error) {
	if err := requireField("application_id", input.ApplicationID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}
	if input.CTC < 0 {
		return nil, errors.NewInvalidRequest("ctc must not be negative")
	}
	if input.AcceptBy != nil && *input.AcceptBy <= 0 {
		return nil, errors.NewInvalidRequest("accept_by must be a positive unix timestamp")
	}

	release, err := o.lock(ctx, "offer_create", lock.Application(input.ApplicationID))
	if err != nil {
		o.metrics.Offer("create", result(err))
		return nil, err
	}
	defer release()

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := o.unixNow()
	var offer *placement.Offer
	err = o.tx(ctx, func(tx *sql.Tx) error {
		app, err := db.GetApplication(ctx, tx, input.ApplicationID)
		if err != nil {
			return err
		}
		if app.ArchivedAt != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("application %s is archived", app.ID))
		}
		if app.Status.Rank() < placement.StatusOffered.Rank() {
			return errors.NewInvalidState("create", "application "+string(app.Status))
		}
		existing, err := db.GetOfferByApplication(ctx, tx, app.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.NewConflict(fmt.Sprintf("application %s already has offer %s", app.ID, existing.ID))
		}

		offer = &placement.Offer{
			ID:            id,
			ApplicationID: app.ID,
			StudentID:     app.StudentID,
			DriveID:       app.DriveID,
			Status:        placement.OfferDraft,
			CTC:           input.CTC,
			AcceptBy:      input.AcceptBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := db.InsertOffer(ctx, tx, offer); err != nil {
			if err == db.ErrUniqueConstraint {
				return errors.NewConflict(fmt.Sprintf("application %s already has an offer", app.ID))
			}
			return err
		}
		return o.audit(ctx, tx, placement.AuditEntry{
			EntityKind: placement.KindOffer,
			EntityID:   id,
			Action:     placement.ActionOfferDrafted,
			ToState:    string(placement.OfferDraft),
			ActorID:    input.ActorID,
			At:         now,
		})
	})
	o.metrics.Offer("create", result(err))
	if err != nil {
		return nil, err
	}
	return viewOffer(offer, now), nil
}

// ReleaseInput contains parameters for ReleaseOffer.
type ReleaseInput struct {
	OfferID string
	ActorID string
}

// ReleaseOffer makes a draft offer visible to the student and stamps its
// release date.
func (o *Orchestrator) ReleaseOffer(ctx context.Context, input ReleaseInput) (*OfferView, error) {
	if err := requireField("offer_id", input.OfferID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}

	release, err := o.lock(ctx, "offer_release", lock.Offer(input.OfferID))
	if err != nil {
		o.metrics.Offer("release", result(err))
		return nil, err
	}
	defer release()

	now := o.unixNow()
	var offer *placement.Offer
	err = o.tx(ctx, func(tx *sql.Tx) error {
		offer, err = db.GetOffer(ctx, tx, input.OfferID)
		if err != nil {
			return err
		}
		if offer.Status != placement.OfferDraft {
			return errors.NewInvalidState("release", string(offer.Status))
		}
		offer.Status = placement.OfferReleased
		offer.ReleaseDate = &now
		offer.UpdatedAt = now
		return o.updateOfferTx(ctx, tx, offer, placement.OfferDraft, placement.ActionReleased, input.ActorID, now)
	})
	o.metrics.Offer("release", result(err))
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).V(2).Info("Offer released", "offer", offer.ID, "application", offer.ApplicationID)
	o.emit(ctx, placement.NewEvent(placement.EventOfferReleased, placement.KindOffer, offer.ID, input.ActorID, now, map[string]any{
		"application_id": offer.ApplicationID,
		"student_id":     offer.StudentID,
		"drive_id":       offer.DriveID,
		"accept_by":      offer.AcceptBy,
	}))
	return viewOffer(offer, now), nil
}

// RespondInput contains parameters for RespondOffer.
type RespondInput struct {
	OfferID  string
	Decision string // accept | decline
	ActorID  string
}

// RespondOffer records the student's decision on a released offer. A late
// response is recorded and flagged unless the deadline is enforced, in which
// case it fails with DEADLINE_PASSED.
func (o *Orchestrator) RespondOffer(ctx context.Context, input RespondInput) (*OfferView, error) {
	if err := requireField("offer_id", input.OfferID); err != nil {
		return nil, err
	}
	if err := requireField("actor_id", input.ActorID); err != nil {
		return nil, err
	}
	decision := placement.Decision(strings.ToLower(strings.TrimSpace(input.Decision)))
	if !decision.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("decision must be accept or decline; got %q", input.Decision))
	}

	release, err := o.lock(ctx, "offer_respond", lock.Offer(input.OfferID))
	if err != nil {
		o.metrics.Offer(string(decision), result(err))
		return nil, err
	}
	defer release()

	now := o.unixNow()
	var (
		offer *placement.Offer
		late  bool
	)
	err = o.tx(ctx, func(tx *sql.Tx) error {
		offer, err = db.GetOffer(ctx, tx, input.OfferID)
		if err != nil {
			return err
		}
		if offer.Status != placement.OfferReleased {
			return errors.NewInvalidState(string(decision), string(offer.Status))
		}
		late = offer.DeadlinePassed(now)
		if late && o.cfg.EnforceOfferDeadline {
			return errors.NewDeadlinePassed(offer.ID, *offer.AcceptBy)
		}

		action := placement.ActionAccepted
		if decision == placement.DecisionAccept {
			offer.Status = placement.OfferAccepted
			offer.AcceptedAt = &now
			if late {
				action = placement.ActionAcceptedLate
			}
		} else {
			offer.Status = placement.OfferDeclined
			offer.DeclinedAt = &now
			action = placement.ActionDeclined
			if late {
				action = placement.ActionDeclinedLate
			}
		}
		offer.UpdatedAt = now
		return o.updateOfferTx(ctx, tx, offer, placement.OfferReleased, action, input.ActorID, now)
	})
	o.metrics.Offer(string(decision), result(err))
	if err != nil {
		return nil, err
	}

	view := viewOffer(offer, now)
	logger := klog.FromContext(ctx)
	if late {
		logger.Info("Offer response recorded after deadline", "offer", offer.ID, "decision", decision, "remainingDays", *view.RemainingDays)
	} else {
		logger.V(2).Info("Offer response recorded", "offer", offer.ID, "decision", decision)
	}
	o.emit(ctx, placement.NewEvent(placement.EventOfferResponse, placement.KindOffer, offer.ID, input.ActorID, now, map[string]any{
		"application_id": offer.ApplicationID,
		"student_id":     offer.StudentID,
		"decision":       string(decision),
		"after_deadline": late,
		"remaining_days": view.RemainingDays,
	}))
	return view, nil
}

// updateOfferTx writes offer if its stored status is still from and audits
// the change under action.
func (o *Orchestrator) updateOfferTx(ctx context.Context, tx *sql.Tx, offer *placement.Offer, from placement.OfferStatus, action, actor string, now int64) error {
	applied, err := db.CompareAndSetOffer(ctx, tx, offer, from)
	if err != nil {
		return err
	}
	if !applied {
		return errors.NewConflict(fmt.Sprintf("offer %s changed while being updated", offer.ID))
	}
	return o.audit(ctx, tx, placement.AuditEntry{
		EntityKind: placement.KindOffer,
		EntityID:   offer.ID,
		Action:     action,
		FromState:  string(from),
		ToState:    string(offer.Status),
		ActorID:    actor,
		At:         now,
	})
}

// GetOffer returns an offer with its deadline fields computed for now.
func (o *Orchestrator) GetOffer(ctx context.Context, id string) (*OfferView, error) {
	if err := requireField("offer_id", id); err != nil {
		return nil, err
	}
	offer, err := db.GetOffer(ctx, o.db, id)
	if err != nil {
		return nil, err
	}
	return viewOffer(offer, o.unixNow()), nil
}

// ListOffersInput contains parameters for ListOffers.
type ListOffersInput struct {
	StudentID string
	DriveID   string
	Status    string
	Limit     int // default: 20, max: 100
	Offset    int
}

// ListOffersOutput contains the result of ListOffers.
type ListOffersOutput struct {
	Items      []OfferView `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`
}

// ListOffers returns offers by student, drive and status, newest first.
func (o *Orchestrator) ListOffers(ctx context.Context, input ListOffersInput) (*ListOffersOutput, error) {
	filter := db.OfferFilter{
		StudentID: strings.TrimSpace(input.StudentID),
		DriveID:   strings.TrimSpace(input.DriveID),
	}
	if s := strings.ToLower(strings.TrimSpace(input.Status)); s != "" {
		switch placement.OfferStatus(s) {
		case placement.OfferDraft, placement.OfferReleased, placement.OfferAccepted, placement.OfferDeclined:
			filter.Status = s
		default:
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown offer status %q", input.Status))
		}
	}

	limit, offset := page(input.Limit, input.Offset)
	offers, total, err := db.ListOffers(ctx, o.db, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	now := o.unixNow()
	items := make([]OfferView, 0, len(offers))
	for i := range offers {
		items = append(items, *viewOffer(&offers[i], now))
	}

	return &ListOffersOutput{
		Items:      items,
		Pagination: pagination(limit, offset, len(items), total),
		Sort:       "created_at_desc",
	}, nil
}
