package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	ops *ops.Orchestrator
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(o *ops.Orchestrator) *Handlers {
	return &Handlers{ops: o}
}

// Request types for each tool

// ApplicationCreateRequest represents the arguments for application_create.
type ApplicationCreateRequest struct {
	StudentID string `json:"student_id"`
	DriveID   string `json:"drive_id"`
	Notes     string `json:"notes,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// TransitionRequest represents the arguments for application_transition.
type TransitionRequest struct {
	ApplicationID string `json:"application_id"`
	ToStatus      string `json:"to_status"`
	ActorID       string `json:"actor_id"`
}

// ScheduleRequest represents the arguments for application_schedule.
type ScheduleRequest struct {
	ApplicationID string `json:"application_id"`
	SlotID        string `json:"slot_id"`
	ActorID       string `json:"actor_id"`
}

// ArchiveRequest represents the arguments for application_archive.
type ArchiveRequest struct {
	ApplicationID string `json:"application_id"`
	ActorID       string `json:"actor_id"`
}

// NotesRequest represents the arguments for application_notes.
type NotesRequest struct {
	ApplicationID string `json:"application_id"`
	Notes         string `json:"notes"`
	ActorID       string `json:"actor_id"`
}

// GetRequest represents the arguments for the *_get tools.
type GetRequest struct {
	ID string `json:"id"`
}

// ApplicationListRequest represents the arguments for application_list.
type ApplicationListRequest struct {
	DriveID         string `json:"drive_id,omitempty"`
	StudentID       string `json:"student_id,omitempty"`
	Status          string `json:"status,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	Offset          int    `json:"offset,omitempty"`
}

// SlotCreateRequest represents the arguments for slot_create.
type SlotCreateRequest struct {
	DriveID  string `json:"drive_id"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Capacity int    `json:"capacity"`
	ActorID  string `json:"actor_id"`
}

// BookRequest represents the arguments for slot_book and slot_cancel.
type BookRequest struct {
	SlotID    string `json:"slot_id"`
	StudentID string `json:"student_id"`
	ActorID   string `json:"actor_id,omitempty"`
}

// SlotListRequest represents the arguments for slot_list.
type SlotListRequest struct {
	DriveID       string `json:"drive_id,omitempty"`
	AvailableOnly bool   `json:"available_only,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// OfferCreateRequest represents the arguments for offer_create.
type OfferCreateRequest struct {
	ApplicationID string  `json:"application_id"`
	CTC           float64 `json:"ctc,omitempty"`
	AcceptBy      *int64  `json:"accept_by,omitempty"`
	ActorID       string  `json:"actor_id"`
}

// OfferReleaseRequest represents the arguments for offer_release.
type OfferReleaseRequest struct {
	OfferID string `json:"offer_id"`
	ActorID string `json:"actor_id"`
}

// OfferRespondRequest represents the arguments for offer_respond.
type OfferRespondRequest struct {
	OfferID  string `json:"offer_id"`
	Decision string `json:"decision"`
	ActorID  string `json:"actor_id"`
}

// OfferListRequest represents the arguments for offer_list.
type OfferListRequest struct {
	StudentID string `json:"student_id,omitempty"`
	DriveID   string `json:"drive_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// HistoryRequest represents the arguments for history_get.
type HistoryRequest struct {
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
}

// Handler implementations

// HandleApplicationCreate handles the application_create tool call.
func (h *Handlers) HandleApplicationCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplicationCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.CreateApplication(ctx, ops.CreateApplicationInput{
		StudentID: input.StudentID,
		DriveID:   input.DriveID,
		Notes:     input.Notes,
		ActorID:   input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplicationTransition handles the application_transition tool call.
func (h *Handlers) HandleApplicationTransition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TransitionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ApplyTransition(ctx, ops.TransitionInput{
		ApplicationID: input.ApplicationID,
		ToStatus:      input.ToStatus,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplicationSchedule handles the application_schedule tool call.
func (h *Handlers) HandleApplicationSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScheduleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ScheduleInterview(ctx, ops.ScheduleInput{
		ApplicationID: input.ApplicationID,
		SlotID:        input.SlotID,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplicationArchive handles the application_archive tool call.
func (h *Handlers) HandleApplicationArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ArchiveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ArchiveApplication(ctx, ops.ArchiveInput{
		ApplicationID: input.ApplicationID,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplicationNotes handles the application_notes tool call.
func (h *Handlers) HandleApplicationNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NotesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.UpdateNotes(ctx, ops.NotesInput{
		ApplicationID: input.ApplicationID,
		Notes:         input.Notes,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplicationGet handles the application_get tool call.
func (h *Handlers) HandleApplicationGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.GetApplication(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplicationList handles the application_list tool call.
func (h *Handlers) HandleApplicationList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplicationListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ListApplications(ctx, ops.ListApplicationsInput{
		DriveID:         input.DriveID,
		StudentID:       input.StudentID,
		Status:          input.Status,
		IncludeArchived: input.IncludeArchived,
		Limit:           input.Limit,
		Offset:          input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotCreate handles the slot_create tool call.
func (h *Handlers) HandleSlotCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlotCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.CreateSlot(ctx, ops.CreateSlotInput{
		DriveID:  input.DriveID,
		Start:    input.Start,
		End:      input.End,
		Capacity: input.Capacity,
		ActorID:  input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotBook handles the slot_book tool call.
func (h *Handlers) HandleSlotBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BookRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.BookSlot(ctx, ops.BookInput{
		SlotID:    input.SlotID,
		StudentID: input.StudentID,
		ActorID:   input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotCancel handles the slot_cancel tool call.
func (h *Handlers) HandleSlotCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BookRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.CancelSlot(ctx, ops.BookInput{
		SlotID:    input.SlotID,
		StudentID: input.StudentID,
		ActorID:   input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotGet handles the slot_get tool call.
func (h *Handlers) HandleSlotGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.GetSlot(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotList handles the slot_list tool call.
func (h *Handlers) HandleSlotList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlotListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ListSlots(ctx, ops.ListSlotsInput{
		DriveID:       input.DriveID,
		AvailableOnly: input.AvailableOnly,
		Limit:         input.Limit,
		Offset:        input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleOfferCreate handles the offer_create tool call.
func (h *Handlers) HandleOfferCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OfferCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.CreateOffer(ctx, ops.CreateOfferInput{
		ApplicationID: input.ApplicationID,
		CTC:           input.CTC,
		AcceptBy:      input.AcceptBy,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleOfferRelease handles the offer_release tool call.
func (h *Handlers) HandleOfferRelease(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OfferReleaseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ReleaseOffer(ctx, ops.ReleaseInput{
		OfferID: input.OfferID,
		ActorID: input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleOfferRespond handles the offer_respond tool call.
func (h *Handlers) HandleOfferRespond(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OfferRespondRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.RespondOffer(ctx, ops.RespondInput{
		OfferID:  input.OfferID,
		Decision: input.Decision,
		ActorID:  input.ActorID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleOfferGet handles the offer_get tool call.
func (h *Handlers) HandleOfferGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.GetOffer(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleOfferList handles the offer_list tool call.
func (h *Handlers) HandleOfferList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OfferListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.ListOffers(ctx, ops.ListOffersInput{
		StudentID: input.StudentID,
		DriveID:   input.DriveID,
		Status:    input.Status,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryGet handles the history_get tool call.
func (h *Handlers) HandleHistoryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.ops.History(ctx, ops.HistoryInput{
		EntityKind: input.EntityKind,
		EntityID:   input.EntityID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if pErr, ok := err.(*errors.PlacementError); ok {
		errorObj := map[string]any{
			"code":    pErr.Code,
			"message": pErr.Message,
			"status":  pErr.Status,
		}
		if pErr.Code != errors.ErrInternal && pErr.Details != nil {
			errorObj["details"] = pErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
