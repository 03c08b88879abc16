package ops

import (
	"testing"
	"time"

	"github.com/balaji090804/placement-portal/internal/config"
	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func (f *fixture) offer(t *testing.T, acceptBy *int64) *OfferView {
	t.Helper()
	app := f.apply(t, "stu-1", "drive-1", placement.StatusOffered)
	offer, err := f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: app.ID, CTC: 1_800_000, AcceptBy: acceptBy, ActorID: "recruiter-1"})
	require.NoError(t, err)
	return offer
}

func TestOfferRoundTrip(t *testing.T) {
	f := newFixture(t)
	offer := f.offer(t, int64Ptr(baseTime+7*86400))
	require.Equal(t, placement.OfferDraft, offer.Status)
	require.Equal(t, 7, *offer.RemainingDays)
	f.events.Reset()

	f.clock.Advance(time.Hour)
	released, err := f.o.ReleaseOffer(f.ctx, ReleaseInput{OfferID: offer.ID, ActorID: "recruiter-1"})
	require.NoError(t, err)
	require.Equal(t, placement.OfferReleased, released.Status)
	require.Equal(t, baseTime+3600, *released.ReleaseDate)

	accepted, err := f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: "Accept", ActorID: "stu-1"})
	require.NoError(t, err)
	require.Equal(t, placement.OfferAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
	require.Nil(t, accepted.DeclinedAt)
	require.False(t, accepted.DeadlinePassed)

	for _, decision := range []string{"accept", "decline"} {
		_, err := f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: decision, ActorID: "stu-1"})
		requireCode(t, err, errors.ErrInvalidState)
	}
	_, err = f.o.ReleaseOffer(f.ctx, ReleaseInput{OfferID: offer.ID, ActorID: "recruiter-1"})
	requireCode(t, err, errors.ErrInvalidState)

	require.Equal(t, []placement.EventKind{placement.EventOfferReleased, placement.EventOfferResponse}, f.events.Kinds())

	got, err := f.o.GetOffer(f.ctx, offer.ID)
	require.NoError(t, err)
	require.Equal(t, placement.OfferAccepted, got.Status)

	hist, err := f.o.History(f.ctx, HistoryInput{EntityKind: "offer", EntityID: offer.ID})
	require.NoError(t, err)
	require.Len(t, hist.Entries, 3)
	require.Equal(t, placement.ActionAccepted, hist.Entries[2].Action)
}

func TestRespondOffer_RequiresRelease(t *testing.T) {
	f := newFixture(t)
	offer := f.offer(t, nil)

	_, err := f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: "accept", ActorID: "stu-1"})
	requireCode(t, err, errors.ErrInvalidState)

	_, err = f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: "maybe", ActorID: "stu-1"})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = f.o.RespondOffer(f.ctx, RespondInput{OfferID: "missing", Decision: "accept", ActorID: "stu-1"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestRespondOffer_Decline(t *testing.T) {
	f := newFixture(t)
	offer := f.offer(t, nil)
	_, err := f.o.ReleaseOffer(f.ctx, ReleaseInput{OfferID: offer.ID, ActorID: "recruiter-1"})
	require.NoError(t, err)

	declined, err := f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: "decline", ActorID: "stu-1"})
	require.NoError(t, err)
	require.Equal(t, placement.OfferDeclined, declined.Status)
	require.NotNil(t, declined.DeclinedAt)
	require.Nil(t, declined.RemainingDays, "no deadline set")
}

func TestRespondOffer_LateResponseIsRecorded(t *testing.T) {
	f := newFixture(t)
	offer := f.offer(t, int64Ptr(baseTime+86400))
	_, err := f.o.ReleaseOffer(f.ctx, ReleaseInput{OfferID: offer.ID, ActorID: "recruiter-1"})
	require.NoError(t, err)
	f.events.Reset()

	f.clock.Advance(3 * 24 * time.Hour)
	got, err := f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: "accept", ActorID: "stu-1"})
	require.NoError(t, err)
	require.Equal(t, placement.OfferAccepted, got.Status)
	require.True(t, got.DeadlinePassed)
	require.Equal(t, -2, *got.RemainingDays)

	events := f.events.Events()
	require.Len(t, events, 1)
	require.Equal(t, true, events[0].Payload["after_deadline"])

	hist, err := f.o.History(f.ctx, HistoryInput{EntityKind: "offer", EntityID: offer.ID})
	require.NoError(t, err)
	require.Equal(t, placement.ActionAcceptedLate, hist.Entries[len(hist.Entries)-1].Action)
}

func TestRespondOffer_EnforcedDeadline(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EnforceOfferDeadline = true
	f := newFixtureWithConfig(t, cfg)

	offer := f.offer(t, int64Ptr(baseTime+86400))
	_, err := f.o.ReleaseOffer(f.ctx, ReleaseInput{OfferID: offer.ID, ActorID: "recruiter-1"})
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour + time.Second)
	_, err = f.o.RespondOffer(f.ctx, RespondInput{OfferID: offer.ID, Decision: "accept", ActorID: "stu-1"})
	requireCode(t, err, errors.ErrDeadlinePassed)

	got, err := f.o.GetOffer(f.ctx, offer.ID)
	require.NoError(t, err)
	require.Equal(t, placement.OfferReleased, got.Status, "refused response changes nothing")
}

func TestCreateOffer_Rules(t *testing.T) {
	f := newFixture(t)

	early := f.apply(t, "stu-1", "drive-1", placement.StatusShortlisted)
	_, err := f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: early.ID, ActorID: "recruiter-1"})
	requireCode(t, err, errors.ErrInvalidState)

	rejected := f.apply(t, "stu-2", "drive-1", placement.StatusOffered, placement.StatusRejected)
	_, err = f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: rejected.ID, ActorID: "recruiter-1"})
	requireCode(t, err, errors.ErrInvalidState)

	joined := f.apply(t, "stu-3", "drive-1", placement.StatusJoined)
	_, err = f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: joined.ID, ActorID: "recruiter-1"})
	require.NoError(t, err, "joined is later than offered")

	_, err = f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: joined.ID, ActorID: "recruiter-1"})
	requireCode(t, err, errors.ErrConflict)

	_, err = f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: joined.ID, CTC: -1, ActorID: "recruiter-1"})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = f.o.CreateOffer(f.ctx, CreateOfferInput{ApplicationID: "missing", ActorID: "recruiter-1"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestListOffers(t *testing.T) {
	f := newFixture(t)
	offer := f.offer(t, nil)
	_, err := f.o.ReleaseOffer(f.ctx, ReleaseInput{OfferID: offer.ID, ActorID: "recruiter-1"})
	require.NoError(t, err)

	out, err := f.o.ListOffers(f.ctx, ListOffersInput{StudentID: "stu-1", Status: "Released"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	require.Equal(t, offer.ID, out.Items[0].ID)

	out, err = f.o.ListOffers(f.ctx, ListOffersInput{StudentID: "stu-1", Status: "draft"})
	require.NoError(t, err)
	require.Empty(t, out.Items)

	_, err = f.o.ListOffers(f.ctx, ListOffersInput{Status: "pending"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NotifyMaxAttempts = 2
	f := newFixtureWithConfig(t, cfg)
	app := f.apply(t, "stu-1", "drive-1")
	f.events.Reset()

	f.events.FailNext(2)
	got, err := f.o.ApplyTransition(f.ctx, TransitionInput{ApplicationID: app.ID, ToStatus: "eligible", ActorID: "staff-1"})
	require.NoError(t, err)
	require.Equal(t, placement.StatusEligible, got.Status)
	require.Empty(t, f.events.Events(), "event dropped after two attempts")

	f.events.FailNext(1)
	_, err = f.o.ApplyTransition(f.ctx, TransitionInput{ApplicationID: app.ID, ToStatus: "shortlisted", ActorID: "staff-1"})
	require.NoError(t, err)
	require.Len(t, f.events.Events(), 1, "second attempt delivers")
}
