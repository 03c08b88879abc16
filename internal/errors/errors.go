package errors

import "fmt"

// ErrorCode represents a placement workflow error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrSlotNotFound      ErrorCode = "SLOT_NOT_FOUND"     // 404
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION" // 409
	ErrInvalidState      ErrorCode = "INVALID_STATE"      // 409
	ErrSlotFull          ErrorCode = "SLOT_FULL"          // 409
	ErrAlreadyBooked     ErrorCode = "ALREADY_BOOKED"     // 409
	ErrNotBooked         ErrorCode = "NOT_BOOKED"         // 409
	ErrConflict          ErrorCode = "CONFLICT"           // 409
	ErrDeadlinePassed    ErrorCode = "DEADLINE_PASSED"    // 422
	ErrBusy              ErrorCode = "BUSY"               // 503
	ErrTimeout           ErrorCode = "TIMEOUT"            // 504
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// PlacementError represents a structured error with code, status, and details.
type PlacementError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *PlacementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PlacementError {
	return &PlacementError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing application, offer or audit subject.
func NewNotFound(kind, id string) *PlacementError {
	return &PlacementError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewSlotNotFound creates a 404 error for a missing interview slot.
func NewSlotNotFound(slotID string) *PlacementError {
	return &PlacementError{
		Code:    ErrSlotNotFound,
		Status:  404,
		Message: fmt.Sprintf("slot not found: %s", slotID),
		Details: map[string]any{"slot_id": slotID},
	}
}

// NewInvalidTransition creates a 409 error for an illegal application status move.
func NewInvalidTransition(from, to, reason string) *PlacementError {
	return &PlacementError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("cannot move application from %s to %s: %s", from, to, reason),
		Details: map[string]any{"from": from, "to": to},
	}
}

// NewInvalidState creates a 409 error for an offer action attempted from the wrong state.
func NewInvalidState(action, state string) *PlacementError {
	return &PlacementError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: fmt.Sprintf("cannot %s offer in state %s", action, state),
		Details: map[string]any{"action": action, "state": state},
	}
}

// NewSlotFull creates a 409 error when a slot has no remaining capacity.
func NewSlotFull(slotID string, capacity int) *PlacementError {
	return &PlacementError{
		Code:    ErrSlotFull,
		Status:  409,
		Message: fmt.Sprintf("slot %s is full (capacity %d)", slotID, capacity),
		Details: map[string]any{"slot_id": slotID, "capacity": capacity},
	}
}

// NewAlreadyBooked creates a 409 error when the student already holds a booking.
// heldSlotID is the slot the student currently occupies for the drive.
func NewAlreadyBooked(slotID, studentID, heldSlotID string) *PlacementError {
	return &PlacementError{
		Code:    ErrAlreadyBooked,
		Status:  409,
		Message: fmt.Sprintf("student %s already booked in slot %s", studentID, heldSlotID),
		Details: map[string]any{"slot_id": slotID, "student_id": studentID, "held_slot_id": heldSlotID},
	}
}

// NewNotBooked creates a 409 error when cancelling a booking that does not exist.
func NewNotBooked(slotID, studentID string) *PlacementError {
	return &PlacementError{
		Code:    ErrNotBooked,
		Status:  409,
		Message: fmt.Sprintf("student %s is not booked in slot %s", studentID, slotID),
		Details: map[string]any{"slot_id": slotID, "student_id": studentID},
	}
}

// NewConflict creates a 409 error for uniqueness violations and lost updates.
func NewConflict(msg string) *PlacementError {
	return &PlacementError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewDeadlinePassed creates a 422 error for an offer response after accept_by.
func NewDeadlinePassed(offerID string, acceptBy int64) *PlacementError {
	return &PlacementError{
		Code:    ErrDeadlinePassed,
		Status:  422,
		Message: fmt.Sprintf("offer %s response deadline has passed", offerID),
		Details: map[string]any{"offer_id": offerID, "accept_by": acceptBy},
	}
}

// NewBusy creates a 503 error when an entity stayed locked past the wait budget.
func NewBusy(key string) *PlacementError {
	return &PlacementError{
		Code:    ErrBusy,
		Status:  503,
		Message: fmt.Sprintf("entity %s is busy; retry later", key),
		Details: map[string]any{"key": key},
	}
}

// NewTimeout creates a 504 error when the caller's context ended while waiting.
func NewTimeout(key string, err error) *PlacementError {
	msg := fmt.Sprintf("timed out waiting for %s", key)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &PlacementError{
		Code:    ErrTimeout,
		Status:  504,
		Message: msg,
		Details: map[string]any{"key": key},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PlacementError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PlacementError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a PlacementError with the given code.
func Is(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PlacementError); ok {
		return pErr.Code == code
	}
	return false
}

// CodeOf returns the error code of a PlacementError, or ErrInternal for anything else.
func CodeOf(err error) ErrorCode {
	if pErr, ok := err.(*PlacementError); ok {
		return pErr.Code
	}
	return ErrInternal
}
