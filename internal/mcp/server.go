package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/balaji090804/placement-portal/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"application", "slot", "offer", "history"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"application_create": {
		def:     applicationCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationCreate },
	},
	"application_transition": {
		def:     applicationTransitionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationTransition },
	},
	"application_schedule": {
		def:     applicationScheduleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationSchedule },
	},
	"application_archive": {
		def:     applicationArchiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationArchive },
	},
	"application_notes": {
		def:     applicationNotesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationNotes },
	},
	"application_get": {
		def:     applicationGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationGet },
	},
	"application_list": {
		def:     applicationListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplicationList },
	},
	"slot_create": {
		def:     slotCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotCreate },
	},
	"slot_book": {
		def:     slotBookToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotBook },
	},
	"slot_cancel": {
		def:     slotCancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotCancel },
	},
	"slot_get": {
		def:     slotGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotGet },
	},
	"slot_list": {
		def:     slotListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotList },
	},
	"offer_create": {
		def:     offerCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOfferCreate },
	},
	"offer_release": {
		def:     offerReleaseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOfferRelease },
	},
	"offer_respond": {
		def:     offerRespondToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOfferRespond },
	},
	"offer_get": {
		def:     offerGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOfferGet },
	},
	"offer_list": {
		def:     offerListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOfferList },
	},
	"history_get": {
		def:     historyGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryGet },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "slot_book" → "slot").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the placement tools registered.
// Tools listed in the orchestrator's DisabledTools or belonging to its
// DisabledTypes are excluded from registration.
func NewServer(o *ops.Orchestrator, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"placement",
		version,
		server.WithToolCapabilities(true),
	)

	cfg := o.Config()
	h := NewHandlers(o)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(o *ops.Orchestrator, version string) error {
	return server.ServeStdio(NewServer(o, version))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
