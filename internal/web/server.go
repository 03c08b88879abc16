package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/balaji090804/placement-portal/internal/metrics"
	"github.com/balaji090804/placement-portal/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the placement API and timeline pages.
func NewServer(o *ops.Orchestrator, m *metrics.Metrics, version, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(o, m, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed handler without binding a listener.
func NewHandler(o *ops.Orchestrator, m *metrics.Metrics, version string) http.Handler {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		klog.Fatalf("failed to create template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		klog.Fatalf("failed to create static sub-FS: %v", err)
	}

	h := &Handlers{
		ops:      o,
		renderer: NewRenderer(templateSub, version),
		version:  version,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /applications", h.HandleCreateApplication)
	mux.HandleFunc("GET /applications", h.HandleListApplications)
	mux.HandleFunc("GET /applications/{id}", h.HandleGetApplication)
	mux.HandleFunc("POST /applications/{id}/transition", h.HandleTransition)
	mux.HandleFunc("POST /applications/{id}/schedule", h.HandleSchedule)
	mux.HandleFunc("POST /applications/{id}/archive", h.HandleArchive)
	mux.HandleFunc("PUT /applications/{id}/notes", h.HandleNotes)
	mux.HandleFunc("GET /applications/{id}/timeline", h.HandleTimeline)

	mux.HandleFunc("POST /slots", h.HandleCreateSlot)
	mux.HandleFunc("GET /slots", h.HandleListSlots)
	mux.HandleFunc("GET /slots/{id}", h.HandleGetSlot)
	mux.HandleFunc("POST /slots/{id}/book", h.HandleBook)
	mux.HandleFunc("POST /slots/{id}/cancel", h.HandleCancel)

	mux.HandleFunc("POST /offers", h.HandleCreateOffer)
	mux.HandleFunc("GET /offers", h.HandleListOffers)
	mux.HandleFunc("GET /offers/{id}", h.HandleGetOffer)
	mux.HandleFunc("POST /offers/{id}/release", h.HandleRelease)
	mux.HandleFunc("POST /offers/{id}/respond", h.HandleRespond)

	mux.HandleFunc("GET /history/{kind}/{id}", h.HandleHistory)

	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	klog.InfoS("Placement API listening", "addr", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		klog.Warning("Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		klog.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
