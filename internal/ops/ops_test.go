package ops

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/balaji090804/placement-portal/internal/config"
	"github.com/balaji090804/placement-portal/internal/db"
	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/metrics"
	"github.com/balaji090804/placement-portal/internal/notify"
	"github.com/balaji090804/placement-portal/internal/placement"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("k8s.io/klog/v2.(*flushDaemon).run.func1"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

const baseTime = int64(1_700_000_000)

// fakeClock is a settable clock shared by an Orchestrator and its test.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d / time.Second)
}

type fixture struct {
	o       *Orchestrator
	db      *sql.DB
	cfg     *config.Config
	events  *notify.Recorder
	clock   *fakeClock
	metrics *metrics.Metrics
	ctx     context.Context
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, config.DefaultConfig(), opts...)
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config, opts ...Option) *fixture {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		db:      database,
		cfg:     cfg,
		events:  &notify.Recorder{},
		clock:   &fakeClock{now: baseTime},
		metrics: metrics.New(),
		ctx:     context.Background(),
	}
	all := append([]Option{
		WithNotifier(f.events),
		WithClock(f.clock.Now),
		WithMetrics(f.metrics),
	}, opts...)
	f.o = New(database, cfg, all...)
	return f
}

// apply creates an application and walks it through statuses.
func (f *fixture) apply(t *testing.T, studentID, driveID string, statuses ...placement.Status) *placement.Application {
	t.Helper()
	app, err := f.o.CreateApplication(f.ctx, CreateApplicationInput{StudentID: studentID, DriveID: driveID})
	require.NoError(t, err)
	for _, st := range statuses {
		app, err = f.o.ApplyTransition(f.ctx, TransitionInput{ApplicationID: app.ID, ToStatus: string(st), ActorID: "staff-1"})
		require.NoError(t, err, "transition to %s", st)
	}
	return app
}

func (f *fixture) slot(t *testing.T, driveID string, capacity int) *SlotView {
	t.Helper()
	s, err := f.o.CreateSlot(f.ctx, CreateSlotInput{
		DriveID:  driveID,
		Start:    baseTime + 86400,
		End:      baseTime + 86400 + 1800,
		Capacity: capacity,
		ActorID:  "staff-1",
	})
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, errors.CodeOf(err), "error: %v", err)
}

func TestPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultListLimit, 0},
		{-5, -1, DefaultListLimit, 0},
		{500, 10, MaxListLimit, 10},
		{7, 3, 7, 3},
	}
	for _, tt := range tests {
		gotLimit, gotOffset := page(tt.limit, tt.offset)
		if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
			t.Errorf("page(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.offset, gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestPagination_HasMore(t *testing.T) {
	require.True(t, pagination(2, 0, 2, 5).HasMore)
	require.False(t, pagination(2, 4, 1, 5).HasMore)
}

func TestGenerateULID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := generateULID()
		require.NoError(t, err)
		require.Len(t, id, 26)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestNew_Defaults(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	o := New(database, nil)
	require.NotNil(t, o.locker)
	require.NotNil(t, o.events)
	require.Equal(t, config.DefaultConfig().LockTimeoutMs, o.Config().LockTimeoutMs)
}
