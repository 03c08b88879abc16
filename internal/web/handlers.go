package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/ops"
	"github.com/balaji090804/placement-portal/internal/placement"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers.
type Handlers struct {
	ops      *ops.Orchestrator
	renderer *Renderer
	version  string
}

type createApplicationBody struct {
	StudentID string `json:"student_id"`
	DriveID   string `json:"drive_id"`
	Notes     string `json:"notes"`
	ActorID   string `json:"actor_id"`
}

type transitionBody struct {
	ToStatus string `json:"to_status"`
	ActorID  string `json:"actor_id"`
}

type scheduleBody struct {
	SlotID  string `json:"slot_id"`
	ActorID string `json:"actor_id"`
}

type actorBody struct {
	ActorID string `json:"actor_id"`
}

type notesBody struct {
	Notes   string `json:"notes"`
	ActorID string `json:"actor_id"`
}

type createSlotBody struct {
	DriveID  string `json:"drive_id"`
	Start    int64  `json:"slot_start"`
	End      int64  `json:"slot_end"`
	Capacity int    `json:"capacity"`
	ActorID  string `json:"actor_id"`
}

type bookBody struct {
	StudentID string `json:"student_id"`
	ActorID   string `json:"actor_id"`
}

type createOfferBody struct {
	ApplicationID string  `json:"application_id"`
	CTC           float64 `json:"ctc"`
	AcceptBy      *int64  `json:"accept_by"`
	ActorID       string  `json:"actor_id"`
}

type respondBody struct {
	Decision string `json:"decision"`
	ActorID  string `json:"actor_id"`
}

// HandleCreateApplication handles POST /applications.
func (h *Handlers) HandleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var body createApplicationBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	app, err := h.ops.CreateApplication(r.Context(), ops.CreateApplicationInput{
		StudentID: body.StudentID,
		DriveID:   body.DriveID,
		Notes:     body.Notes,
		ActorID:   body.ActorID,
	})
	h.respond(w, http.StatusCreated, app, err)
}

// HandleListApplications handles GET /applications.
func (h *Handlers) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.ops.ListApplications(r.Context(), ops.ListApplicationsInput{
		DriveID:         q.Get("drive_id"),
		StudentID:       q.Get("student_id"),
		Status:          q.Get("status"),
		IncludeArchived: parseBoolParam(r, "include_archived"),
		Limit:           parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:          parseIntParam(r, "offset", 0),
	})
	h.respond(w, http.StatusOK, out, err)
}

// HandleGetApplication handles GET /applications/{id}.
func (h *Handlers) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.ops.GetApplication(r.Context(), r.PathValue("id"))
	h.respond(w, http.StatusOK, app, err)
}

// HandleTransition handles POST /applications/{id}/transition.
func (h *Handlers) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	app, err := h.ops.ApplyTransition(r.Context(), ops.TransitionInput{
		ApplicationID: r.PathValue("id"),
		ToStatus:      body.ToStatus,
		ActorID:       body.ActorID,
	})
	h.respond(w, http.StatusOK, app, err)
}

// HandleSchedule handles POST /applications/{id}/schedule.
func (h *Handlers) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	var body scheduleBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	out, err := h.ops.ScheduleInterview(r.Context(), ops.ScheduleInput{
		ApplicationID: r.PathValue("id"),
		SlotID:        body.SlotID,
		ActorID:       body.ActorID,
	})
	h.respond(w, http.StatusOK, out, err)
}

// HandleArchive handles POST /applications/{id}/archive.
func (h *Handlers) HandleArchive(w http.ResponseWriter, r *http.Request) {
	var body actorBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	app, err := h.ops.ArchiveApplication(r.Context(), ops.ArchiveInput{
		ApplicationID: r.PathValue("id"),
		ActorID:       body.ActorID,
	})
	h.respond(w, http.StatusOK, app, err)
}

// HandleNotes handles PUT /applications/{id}/notes.
func (h *Handlers) HandleNotes(w http.ResponseWriter, r *http.Request) {
	var body notesBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	app, err := h.ops.UpdateNotes(r.Context(), ops.NotesInput{
		ApplicationID: r.PathValue("id"),
		Notes:         body.Notes,
		ActorID:       body.ActorID,
	})
	h.respond(w, http.StatusOK, app, err)
}

// HandleTimeline handles GET /applications/{id}/timeline, an HTML view of
// the application and its audit trail.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	app, err := h.ops.GetApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	hist, err := h.ops.History(r.Context(), ops.HistoryInput{EntityKind: string(placement.KindApplication), EntityID: app.ID})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "timeline", TimelinePageData{
		PageData: PageData{
			Title:   "Application " + app.ID,
			Version: h.version,
		},
		Application: app,
		NotesHTML:   renderMarkdown(app.Notes),
		Entries:     hist.Entries,
	})
}

// HandleCreateSlot handles POST /slots.
func (h *Handlers) HandleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var body createSlotBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	slot, err := h.ops.CreateSlot(r.Context(), ops.CreateSlotInput{
		DriveID:  body.DriveID,
		Start:    body.Start,
		End:      body.End,
		Capacity: body.Capacity,
		ActorID:  body.ActorID,
	})
	h.respond(w, http.StatusCreated, slot, err)
}

// HandleListSlots handles GET /slots.
func (h *Handlers) HandleListSlots(w http.ResponseWriter, r *http.Request) {
	out, err := h.ops.ListSlots(r.Context(), ops.ListSlotsInput{
		DriveID:       r.URL.Query().Get("drive_id"),
		AvailableOnly: parseBoolParam(r, "available_only"),
		Limit:         parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:        parseIntParam(r, "offset", 0),
	})
	h.respond(w, http.StatusOK, out, err)
}

// HandleGetSlot handles GET /slots/{id}.
func (h *Handlers) HandleGetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.ops.GetSlot(r.Context(), r.PathValue("id"))
	h.respond(w, http.StatusOK, slot, err)
}

// HandleBook handles POST /slots/{id}/book.
func (h *Handlers) HandleBook(w http.ResponseWriter, r *http.Request) {
	var body bookBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	slot, err := h.ops.BookSlot(r.Context(), ops.BookInput{
		SlotID:    r.PathValue("id"),
		StudentID: body.StudentID,
		ActorID:   body.ActorID,
	})
	h.respond(w, http.StatusOK, slot, err)
}

// HandleCancel handles POST /slots/{id}/cancel.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var body bookBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	slot, err := h.ops.CancelSlot(r.Context(), ops.BookInput{
		SlotID:    r.PathValue("id"),
		StudentID: body.StudentID,
		ActorID:   body.ActorID,
	})
	h.respond(w, http.StatusOK, slot, err)
}

// HandleCreateOffer handles POST /offers.
func (h *Handlers) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var body createOfferBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	offer, err := h.ops.CreateOffer(r.Context(), ops.CreateOfferInput{
		ApplicationID: body.ApplicationID,
		CTC:           body.CTC,
		AcceptBy:      body.AcceptBy,
		ActorID:       body.ActorID,
	})
	h.respond(w, http.StatusCreated, offer, err)
}

// HandleListOffers handles GET /offers.
func (h *Handlers) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.ops.ListOffers(r.Context(), ops.ListOffersInput{
		StudentID: q.Get("student_id"),
		DriveID:   q.Get("drive_id"),
		Status:    q.Get("status"),
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	h.respond(w, http.StatusOK, out, err)
}

// HandleGetOffer handles GET /offers/{id}.
func (h *Handlers) HandleGetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.ops.GetOffer(r.Context(), r.PathValue("id"))
	h.respond(w, http.StatusOK, offer, err)
}

// HandleRelease handles POST /offers/{id}/release.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	var body actorBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	offer, err := h.ops.ReleaseOffer(r.Context(), ops.ReleaseInput{
		OfferID: r.PathValue("id"),
		ActorID: body.ActorID,
	})
	h.respond(w, http.StatusOK, offer, err)
}

// HandleRespond handles POST /offers/{id}/respond.
func (h *Handlers) HandleRespond(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	offer, err := h.ops.RespondOffer(r.Context(), ops.RespondInput{
		OfferID:  r.PathValue("id"),
		Decision: body.Decision,
		ActorID:  body.ActorID,
	})
	h.respond(w, http.StatusOK, offer, err)
}

// HandleHistory handles GET /history/{kind}/{id}.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.ops.History(r.Context(), ops.HistoryInput{
		EntityKind: r.PathValue("kind"),
		EntityID:   r.PathValue("id"),
	})
	h.respond(w, http.StatusOK, out, err)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.ops.Ping(r.Context()); err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": h.version})
}

// respond writes data with status, or the error as JSON.
func (h *Handlers) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, status, data)
}

// decodeBody reads a JSON body into dst. Unknown fields are rejected.
// It writes the error response itself and reports whether decoding succeeded.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		renderJSONError(w, errors.NewInvalidRequest("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
