package errors

import (
	"fmt"
	"testing"
)

func TestPlacementError_Error(t *testing.T) {
	err := &PlacementError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "application not found: 01ABC",
	}

	expected := "NOT_FOUND: application not found: 01ABC"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("student_id is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "student_id is required" {
		t.Errorf("Message = %q, want %q", err.Message, "student_id is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("offer", "01OFFER")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "offer" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "offer")
	}
	if err.Details["id"] != "01OFFER" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01OFFER")
	}
}

func TestNewSlotNotFound(t *testing.T) {
	err := NewSlotNotFound("01SLOT")

	if err.Code != ErrSlotNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrSlotNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
}

func TestNewInvalidTransition(t *testing.T) {
	err := NewInvalidTransition("shortlisted", "eligible", "status cannot move backwards")

	if err.Code != ErrInvalidTransition {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidTransition)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["from"] != "shortlisted" || err.Details["to"] != "eligible" {
		t.Errorf("Details = %v, want from=shortlisted to=eligible", err.Details)
	}
}

func TestNewSlotFull(t *testing.T) {
	err := NewSlotFull("01SLOT", 2)

	if err.Code != ErrSlotFull {
		t.Errorf("Code = %q, want %q", err.Code, ErrSlotFull)
	}
	if err.Details["capacity"] != 2 {
		t.Errorf("Details[capacity] = %v, want 2", err.Details["capacity"])
	}
}

func TestNewAlreadyBooked(t *testing.T) {
	err := NewAlreadyBooked("01SLOTB", "stu-1", "01SLOTA")

	if err.Code != ErrAlreadyBooked {
		t.Errorf("Code = %q, want %q", err.Code, ErrAlreadyBooked)
	}
	if err.Details["held_slot_id"] != "01SLOTA" {
		t.Errorf("Details[held_slot_id] = %v, want %q", err.Details["held_slot_id"], "01SLOTA")
	}
}

func TestNewDeadlinePassed(t *testing.T) {
	err := NewDeadlinePassed("01OFFER", 1700000000)

	if err.Code != ErrDeadlinePassed {
		t.Errorf("Code = %q, want %q", err.Code, ErrDeadlinePassed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["accept_by"] != int64(1700000000) {
		t.Errorf("Details[accept_by] = %v, want 1700000000", err.Details["accept_by"])
	}
}

func TestNewBusyAndTimeout(t *testing.T) {
	busy := NewBusy("slot:01SLOT")
	if busy.Code != ErrBusy || busy.Status != 503 {
		t.Errorf("NewBusy = %s/%d, want BUSY/503", busy.Code, busy.Status)
	}

	timeout := NewTimeout("slot:01SLOT", fmt.Errorf("context deadline exceeded"))
	if timeout.Code != ErrTimeout || timeout.Status != 504 {
		t.Errorf("NewTimeout = %s/%d, want TIMEOUT/504", timeout.Code, timeout.Status)
	}
	if timeout.Message != "timed out waiting for slot:01SLOT: context deadline exceeded" {
		t.Errorf("Message = %q", timeout.Message)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk on fire"))
	if err.Code != ErrInternal || err.Status != 500 {
		t.Errorf("NewInternal = %s/%d, want INTERNAL/500", err.Code, err.Status)
	}
	if err.Message != "disk on fire" {
		t.Errorf("Message = %q, want %q", err.Message, "disk on fire")
	}

	nilErr := NewInternal(nil)
	if nilErr.Message != "internal error" {
		t.Errorf("Message = %q, want %q", nilErr.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewSlotFull("s", 1), ErrSlotFull, true},
		{"different code", NewSlotFull("s", 1), ErrNotBooked, false},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewNotBooked("s", "stu")); got != ErrNotBooked {
		t.Errorf("CodeOf() = %q, want %q", got, ErrNotBooked)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrInternal)
	}
}
