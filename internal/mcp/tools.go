package mcp

import "github.com/mark3labs/mcp-go/mcp"

var applicationCreateToolDef = mcp.NewTool("application_create",
	mcp.WithDescription("Register a student's application to a drive. The application starts at applied; a student may apply to a drive once."),
	mcp.WithString("student_id", mcp.Required(), mcp.Description("Student identifier")),
	mcp.WithString("drive_id", mcp.Required(), mcp.Description("Placement drive identifier")),
	mcp.WithString("notes", mcp.Description("Free-text notes")),
	mcp.WithString("actor_id", mcp.Description("Who performs the action (defaults to the student)")),
)

var applicationTransitionToolDef = mcp.NewTool("application_transition",
	mcp.WithDescription("Move an application to a new status. Statuses only move forward (applied, eligible, shortlisted, interview_scheduled, offered, joined); rejected is reachable from any open status. interview_scheduled requires a slot booking in the drive."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID")),
	mcp.WithString("to_status", mcp.Required(), mcp.Description("Target status")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who performs the transition")),
)

var applicationScheduleToolDef = mcp.NewTool("application_schedule",
	mcp.WithDescription("Book the applicant into an interview slot and move the application to interview_scheduled in one step. The booking is undone if the transition fails."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID")),
	mcp.WithString("slot_id", mcp.Required(), mcp.Description("Interview slot ID in the same drive")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who schedules the interview")),
)

var applicationArchiveToolDef = mcp.NewTool("application_archive",
	mcp.WithDescription("Soft-archive an application. Archived applications keep their history and accept no further transitions."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who archives the application")),
)

var applicationNotesToolDef = mcp.NewTool("application_notes",
	mcp.WithDescription("Replace the free-text notes of an application."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID")),
	mcp.WithString("notes", mcp.Required(), mcp.Description("New notes (empty clears them)")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who edits the notes")),
)

var applicationGetToolDef = mcp.NewTool("application_get",
	mcp.WithDescription("Fetch an application with its status history."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Application ID")),
)

var applicationListToolDef = mcp.NewTool("application_list",
	mcp.WithDescription("List applications, newest first, with pagination."),
	mcp.WithString("drive_id", mcp.Description("Filter by drive")),
	mcp.WithString("student_id", mcp.Description("Filter by student")),
	mcp.WithString("status", mcp.Description("Filter by status")),
	mcp.WithBoolean("include_archived", mcp.Description("Include archived applications")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var slotCreateToolDef = mcp.NewTool("slot_create",
	mcp.WithDescription("Open an interview slot for a drive with a fixed capacity."),
	mcp.WithString("drive_id", mcp.Required(), mcp.Description("Placement drive identifier")),
	mcp.WithNumber("start", mcp.Required(), mcp.Description("Slot start (unix seconds)")),
	mcp.WithNumber("end", mcp.Required(), mcp.Description("Slot end (unix seconds)")),
	mcp.WithNumber("capacity", mcp.Required(), mcp.Description("Number of students the slot holds")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who creates the slot")),
)

var slotBookToolDef = mcp.NewTool("slot_book",
	mcp.WithDescription("Book a student into an interview slot. Fails with SLOT_FULL at capacity and ALREADY_BOOKED if the student holds a slot in the drive."),
	mcp.WithString("slot_id", mcp.Required(), mcp.Description("Slot ID")),
	mcp.WithString("student_id", mcp.Required(), mcp.Description("Student identifier")),
	mcp.WithString("actor_id", mcp.Description("Who books (defaults to the student)")),
)

var slotCancelToolDef = mcp.NewTool("slot_cancel",
	mcp.WithDescription("Cancel a student's booking and free the seat."),
	mcp.WithString("slot_id", mcp.Required(), mcp.Description("Slot ID")),
	mcp.WithString("student_id", mcp.Required(), mcp.Description("Student identifier")),
	mcp.WithString("actor_id", mcp.Description("Who cancels (defaults to the student)")),
)

var slotGetToolDef = mcp.NewTool("slot_get",
	mcp.WithDescription("Fetch a slot with its bookings and remaining capacity."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Slot ID")),
)

var slotListToolDef = mcp.NewTool("slot_list",
	mcp.WithDescription("List interview slots ordered by start time."),
	mcp.WithString("drive_id", mcp.Description("Filter by drive")),
	mcp.WithBoolean("available_only", mcp.Description("Only slots with free seats")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var offerCreateToolDef = mcp.NewTool("offer_create",
	mcp.WithDescription("Draft the offer for an application at offered or later."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID")),
	mcp.WithNumber("ctc", mcp.Description("Cost to company")),
	mcp.WithNumber("accept_by", mcp.Description("Response deadline (unix seconds)")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who drafts the offer")),
)

var offerReleaseToolDef = mcp.NewTool("offer_release",
	mcp.WithDescription("Release a draft offer to the student."),
	mcp.WithString("offer_id", mcp.Required(), mcp.Description("Offer ID")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who releases the offer")),
)

var offerRespondToolDef = mcp.NewTool("offer_respond",
	mcp.WithDescription("Record the student's decision on a released offer."),
	mcp.WithString("offer_id", mcp.Required(), mcp.Description("Offer ID")),
	mcp.WithString("decision", mcp.Required(), mcp.Enum("accept", "decline"), mcp.Description("accept or decline")),
	mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who responds")),
)

var offerGetToolDef = mcp.NewTool("offer_get",
	mcp.WithDescription("Fetch an offer with its remaining days to the deadline."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Offer ID")),
)

var offerListToolDef = mcp.NewTool("offer_list",
	mcp.WithDescription("List offers, newest first."),
	mcp.WithString("student_id", mcp.Description("Filter by student")),
	mcp.WithString("drive_id", mcp.Description("Filter by drive")),
	mcp.WithString("status", mcp.Description("Filter by status (draft, released, accepted, declined)")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var historyGetToolDef = mcp.NewTool("history_get",
	mcp.WithDescription("Return the ordered audit trail of an application, slot or offer."),
	mcp.WithString("entity_kind", mcp.Required(), mcp.Enum("application", "slot", "offer"), mcp.Description("Entity kind")),
	mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity ID")),
)
