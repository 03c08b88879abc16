package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestApplication(id, studentID, driveID string) *placement.Application {
	now := time.Now().Unix()
	return &placement.Application{
		ID:        id,
		StudentID: studentID,
		DriveID:   driveID,
		Status:    placement.StatusApplied,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestSlot(id, driveID string, capacity int) *placement.Slot {
	now := time.Now().Unix()
	return &placement.Slot{
		ID:        id,
		DriveID:   driveID,
		Start:     now + 3600,
		End:       now + 7200,
		Capacity:  capacity,
		CreatedAt: now,
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestInsertAndGetApplication(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := newTestApplication("app-1", "stu-1", "drive-1")
	a.Notes = "referred"
	if err := InsertApplication(ctx, db, a); err != nil {
		t.Fatalf("InsertApplication failed: %v", err)
	}

	got, err := GetApplication(ctx, db, "app-1")
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	require.Equal(t, a.StudentID, got.StudentID)
	require.Equal(t, a.DriveID, got.DriveID)
	require.Equal(t, placement.StatusApplied, got.Status)
	require.Equal(t, "referred", got.Notes)
	require.Nil(t, got.ArchivedAt)
}

func TestInsertApplication_DuplicateStudentDrive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InsertApplication(ctx, db, newTestApplication("app-1", "stu-1", "drive-1")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := InsertApplication(ctx, db, newTestApplication("app-2", "stu-1", "drive-1"))
	if err != ErrUniqueConstraint {
		t.Fatalf("expected ErrUniqueConstraint, got %v", err)
	}

	// Same student, other drive is fine.
	if err := InsertApplication(ctx, db, newTestApplication("app-3", "stu-1", "drive-2")); err != nil {
		t.Fatalf("insert for other drive failed: %v", err)
	}
}

func TestGetApplication_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetApplication(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InsertApplication(ctx, db, newTestApplication("app-1", "stu-1", "drive-1")); err != nil {
		t.Fatalf("InsertApplication failed: %v", err)
	}

	ok, err := CompareAndSetStatus(ctx, db, "app-1", placement.StatusApplied, placement.StatusEligible, 200)
	require.NoError(t, err)
	require.True(t, ok)

	// Stale from status loses.
	ok, err = CompareAndSetStatus(ctx, db, "app-1", placement.StatusApplied, placement.StatusShortlisted, 300)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := GetApplication(ctx, db, "app-1")
	require.NoError(t, err)
	require.Equal(t, placement.StatusEligible, got.Status)
	require.Equal(t, int64(200), got.UpdatedAt)
}

func TestArchiveApplication(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, stu := range []string{"stu-1", "stu-2"} {
		if err := InsertApplication(ctx, db, newTestApplication(fmt.Sprintf("app-%d", i+1), stu, "drive-1")); err != nil {
			t.Fatalf("InsertApplication failed: %v", err)
		}
	}

	ok, err := ArchiveApplication(ctx, db, "app-1", 500)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ArchiveApplication(ctx, db, "app-1", 600)
	require.NoError(t, err)
	require.False(t, ok, "second archive is a no-op")

	// Archived applications refuse status changes.
	ok, err = CompareAndSetStatus(ctx, db, "app-1", placement.StatusApplied, placement.StatusEligible, 700)
	require.NoError(t, err)
	require.False(t, ok)

	items, total, err := ListApplications(ctx, db, ApplicationFilter{DriveID: "drive-1"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "app-2", items[0].ID)

	_, total, err = ListApplications(ctx, db, ApplicationFilter{DriveID: "drive-1", IncludeArchived: true}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
}

func TestUpdateApplicationNotes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InsertApplication(ctx, db, newTestApplication("app-1", "stu-1", "drive-1")); err != nil {
		t.Fatalf("InsertApplication failed: %v", err)
	}
	require.NoError(t, UpdateApplicationNotes(ctx, db, "app-1", "strong coder", 900))

	got, err := GetApplication(ctx, db, "app-1")
	require.NoError(t, err)
	require.Equal(t, "strong coder", got.Notes)

	err = UpdateApplicationNotes(ctx, db, "missing", "x", 900)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestListApplications_FilterAndPaginate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a := newTestApplication(fmt.Sprintf("app-%d", i), fmt.Sprintf("stu-%d", i), "drive-1")
		a.CreatedAt = int64(100 + i)
		if err := InsertApplication(ctx, db, a); err != nil {
			t.Fatalf("InsertApplication failed: %v", err)
		}
	}
	other := newTestApplication("app-x", "stu-0", "drive-2")
	if err := InsertApplication(ctx, db, other); err != nil {
		t.Fatalf("InsertApplication failed: %v", err)
	}

	items, total, err := ListApplications(ctx, db, ApplicationFilter{DriveID: "drive-1"}, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, items, 2)
	require.Equal(t, "app-3", items[0].ID, "newest first")
	require.Equal(t, "app-2", items[1].ID)

	items, total, err = ListApplications(ctx, db, ApplicationFilter{StudentID: "stu-0"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 2)

	_, total, err = ListApplications(ctx, db, ApplicationFilter{Status: string(placement.StatusJoined)}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, total)
}

func TestSlotBookingLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InsertSlot(ctx, db, newTestSlot("slot-1", "drive-1", 2)); err != nil {
		t.Fatalf("InsertSlot failed: %v", err)
	}

	for _, stu := range []string{"A", "B"} {
		ok, err := InsertBooking(ctx, db, "slot-1", stu, 10)
		require.NoError(t, err)
		require.True(t, ok, "booking %s", stu)
	}

	ok, err := InsertBooking(ctx, db, "slot-1", "C", 11)
	require.NoError(t, err)
	require.False(t, ok, "third booking exceeds capacity")

	s, err := GetSlot(ctx, db, "slot-1")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, s.BookedStudentIDs)
	require.Equal(t, 0, s.Remaining())

	held, err := FindBookingForDrive(ctx, db, "drive-1", "A")
	require.NoError(t, err)
	require.Equal(t, "slot-1", held)

	removed, err := DeleteBooking(ctx, db, "slot-1", "A")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = DeleteBooking(ctx, db, "slot-1", "A")
	require.NoError(t, err)
	require.False(t, removed)

	ok, err = InsertBooking(ctx, db, "slot-1", "C", 12)
	require.NoError(t, err)
	require.True(t, ok, "freed seat can be rebooked")

	held, err = FindBookingForDrive(ctx, db, "drive-1", "A")
	require.NoError(t, err)
	require.Empty(t, held)
}

func TestInsertBooking_OneBookingPerDrive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSlot(ctx, db, newTestSlot("slot-1", "drive-1", 3)))
	require.NoError(t, InsertSlot(ctx, db, newTestSlot("slot-2", "drive-1", 3)))
	require.NoError(t, InsertSlot(ctx, db, newTestSlot("slot-3", "drive-2", 3)))

	ok, err := InsertBooking(ctx, db, "slot-1", "A", 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = InsertBooking(ctx, db, "slot-1", "A", 2)
	require.Equal(t, ErrUniqueConstraint, err)

	_, err = InsertBooking(ctx, db, "slot-2", "A", 2)
	require.Equal(t, ErrUniqueConstraint, err, "second slot in the same drive")

	ok, err = InsertBooking(ctx, db, "slot-3", "A", 2)
	require.NoError(t, err)
	require.True(t, ok, "other drive is independent")
}

func TestInsertBooking_UnknownSlot(t *testing.T) {
	db := openTestDB(t)

	ok, err := InsertBooking(context.Background(), db, "missing", "A", 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertBooking_ConcurrentNeverExceedsCapacity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const capacity, students = 3, 12
	require.NoError(t, InsertSlot(ctx, db, newTestSlot("slot-1", "drive-1", capacity)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		booked  int
		refused int
	)
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := InsertBooking(ctx, db, "slot-1", fmt.Sprintf("stu-%d", i), int64(i))
			if err != nil {
				t.Errorf("InsertBooking: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				booked++
			} else {
				refused++
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, capacity, booked)
	require.Equal(t, students-capacity, refused)

	s, err := GetSlot(ctx, db, "slot-1")
	require.NoError(t, err)
	require.Len(t, s.BookedStudentIDs, capacity)
}

func TestGetSlot_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetSlot(context.Background(), db, "missing")
	require.True(t, errors.Is(err, errors.ErrSlotNotFound))
}

func TestListSlots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	late := newTestSlot("slot-late", "drive-1", 1)
	late.Start += 10_000
	require.NoError(t, InsertSlot(ctx, db, late))
	require.NoError(t, InsertSlot(ctx, db, newTestSlot("slot-early", "drive-1", 1)))
	require.NoError(t, InsertSlot(ctx, db, newTestSlot("slot-other", "drive-2", 1)))

	ok, err := InsertBooking(ctx, db, "slot-late", "A", 1)
	require.NoError(t, err)
	require.True(t, ok)

	items, total, err := ListSlots(ctx, db, "drive-1", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "slot-early", items[0].ID)
	require.Empty(t, items[0].BookedStudentIDs)
	require.Equal(t, []string{"A"}, items[1].BookedStudentIDs)

	_, total, err = ListSlots(ctx, db, "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

func TestOfferQueries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertApplication(ctx, db, newTestApplication("app-1", "stu-1", "drive-1")))

	o := &placement.Offer{
		ID:            "off-1",
		ApplicationID: "app-1",
		StudentID:     "stu-1",
		DriveID:       "drive-1",
		Status:        placement.OfferDraft,
		CTC:           1200000,
		AcceptBy:      int64Ptr(5000),
		CreatedAt:     100,
		UpdatedAt:     100,
	}
	require.NoError(t, InsertOffer(ctx, db, o))

	dup := *o
	dup.ID = "off-2"
	require.Equal(t, ErrUniqueConstraint, InsertOffer(ctx, db, &dup), "one offer per application")

	got, err := GetOffer(ctx, db, "off-1")
	require.NoError(t, err)
	require.Equal(t, placement.OfferDraft, got.Status)
	require.Equal(t, 1200000.0, got.CTC)
	require.Equal(t, int64(5000), *got.AcceptBy)
	require.Nil(t, got.ReleaseDate)

	byApp, err := GetOfferByApplication(ctx, db, "app-1")
	require.NoError(t, err)
	require.Equal(t, "off-1", byApp.ID)

	none, err := GetOfferByApplication(ctx, db, "app-404")
	require.NoError(t, err)
	require.Nil(t, none)

	got.Status = placement.OfferReleased
	got.ReleaseDate = int64Ptr(200)
	got.UpdatedAt = 200
	ok, err := CompareAndSetOffer(ctx, db, got, placement.OfferDraft)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = CompareAndSetOffer(ctx, db, got, placement.OfferDraft)
	require.NoError(t, err)
	require.False(t, ok, "stale from status")

	items, total, err := ListOffers(ctx, db, OfferFilter{StudentID: "stu-1", Status: string(placement.OfferReleased)}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, int64(200), *items[0].ReleaseDate)

	_, err = GetOffer(ctx, db, "missing")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestInsertOffer_RequiresApplication(t *testing.T) {
	db := openTestDB(t)

	err := InsertOffer(context.Background(), db, &placement.Offer{
		ID:            "off-1",
		ApplicationID: "missing",
		Status:        placement.OfferDraft,
	})
	require.Error(t, err, "foreign key enforced")
}

func TestAuditSequence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	steps := []struct{ from, to string }{
		{"", "applied"},
		{"applied", "eligible"},
		{"eligible", "shortlisted"},
	}
	for i, s := range steps {
		e := &placement.AuditEntry{
			ID:         fmt.Sprintf("aud-%d", i),
			EntityKind: placement.KindApplication,
			EntityID:   "app-1",
			Action:     placement.ActionTransition,
			FromState:  s.from,
			ToState:    s.to,
			ActorID:    "staff-1",
			At:         int64(100 + i),
		}
		require.NoError(t, AppendAudit(ctx, db, e))
		require.Equal(t, i+1, e.Seq)
	}

	// Another entity starts its own sequence.
	other := &placement.AuditEntry{ID: "aud-x", EntityKind: placement.KindSlot, EntityID: "app-1", Action: placement.ActionSlotCreated, ActorID: "staff-1", At: 1}
	require.NoError(t, AppendAudit(ctx, db, other))
	require.Equal(t, 1, other.Seq)

	entries, err := ListAudit(ctx, db, placement.KindApplication, "app-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		require.Equal(t, i+1, e.Seq)
	}
	require.Empty(t, entries[0].FromState)
	require.Equal(t, "shortlisted", entries[2].ToState)

	err = AppendAudit(ctx, db, &placement.AuditEntry{EntityKind: placement.KindApplication, EntityID: "app-1"})
	require.True(t, errors.Is(err, errors.ErrInternal))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := InsertApplication(ctx, tx, newTestApplication("app-1", "stu-1", "drive-1")); err != nil {
			return err
		}
		return boom
	})
	require.Equal(t, boom, err)

	_, err = GetApplication(ctx, db, "app-1")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		return InsertApplication(ctx, tx, newTestApplication("app-1", "stu-1", "drive-1"))
	})
	require.NoError(t, err)
	_, err = GetApplication(ctx, db, "app-1")
	require.NoError(t, err)
}
