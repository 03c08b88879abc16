package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"k8s.io/klog/v2"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// TimelinePageData is the template data for the application timeline page.
type TimelinePageData struct {
	PageData
	Application *placement.Application
	NotesHTML   template.HTML
	Entries     []placement.AuditEntry
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
		"describe":   describe,
		"deref":      func(p *int64) int64 { return *p },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"timeline": "timeline.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		klog.ErrorS(nil, "Template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		klog.FromContext(req.Context()).Error(err, "Template execution failed", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderJSONError(w, err)
		return
	}

	pErr := asPlacementError(err)
	r.renderPageStatus(w, req, pErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", pErr.Status),
			Version: r.version,
		},
		StatusCode: pErr.Status,
		Message:    pErr.Message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderJSONError writes err in the same envelope the MCP tools use.
// Internal errors never carry details.
func renderJSONError(w http.ResponseWriter, err error) {
	pErr := asPlacementError(err)
	errObj := map[string]any{
		"code":    string(pErr.Code),
		"message": pErr.Message,
		"status":  pErr.Status,
	}
	if pErr.Code == errors.ErrInternal {
		errObj["message"] = "an internal error occurred"
	} else if pErr.Details != nil {
		errObj["details"] = pErr.Details
	}
	renderJSON(w, pErr.Status, map[string]any{"error": errObj})
}

func asPlacementError(err error) *errors.PlacementError {
	var pErr *errors.PlacementError
	if !stderrors.As(err, &pErr) {
		pErr = errors.NewInternal(err)
	}
	return pErr
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the source is dropped by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// describe renders one audit entry as a short sentence.
func describe(e placement.AuditEntry) string {
	switch e.Action {
	case placement.ActionCreated:
		return "applied"
	case placement.ActionTransition:
		return fmt.Sprintf("%s → %s", e.FromState, e.ToState)
	case placement.ActionNotesUpdated:
		return "notes updated"
	default:
		return strings.ReplaceAll(e.Action, "_", " ")
	}
}
