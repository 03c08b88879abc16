package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Transition("eligible", "ok")
	m.Transition("eligible", "ok")
	m.Transition("applied", "INVALID_TRANSITION")
	m.Booking("book", "SLOT_FULL")
	m.Offer("release", "ok")
	m.Event("SlotBooked", "delivered")

	body := scrape(t, m)
	for _, line := range []string{
		`placement_application_transitions_total{result="ok",to="eligible"} 2`,
		`placement_application_transitions_total{result="INVALID_TRANSITION",to="applied"} 1`,
		`placement_slot_bookings_total{op="book",result="SLOT_FULL"} 1`,
		`placement_offer_actions_total{action="release",result="ok"} 1`,
		`placement_events_total{kind="SlotBooked",result="delivered"} 1`,
	} {
		require.True(t, strings.Contains(body, line), "missing %s", line)
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("x", "ok")
	m.Booking("book", "ok")
	m.Offer("release", "ok")
	m.Event("x", "ok")
	m.LockWait("slot", time.Millisecond)
}

func TestHandler(t *testing.T) {
	m := New()
	m.LockWait("slot", 3*time.Millisecond)

	body := scrape(t, m)
	require.True(t, strings.Contains(body, "placement_lock_wait_seconds_bucket"), "histogram exported")
	require.True(t, strings.Contains(body, "go_goroutines"), "runtime collector registered")
}
