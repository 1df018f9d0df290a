// Package web serves the sunburst page and the JSON API behind it.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/sbom-sunburst/pkg/controller"
	"github.com/ritzau/sbom-sunburst/pkg/decompose"
	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/pubsub"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
	"github.com/ritzau/sbom-sunburst/pkg/summary"
)

//go:embed static/*
var staticFiles embed.FS

const maxUploadBytes = 64 << 20

// Decomposer turns an SBOM into a decomposition. *decompose.Client is one.
type Decomposer interface {
	Decompose(ctx context.Context, opts model.DecomposeOptions) (*model.Decomposition, error)
}

// Server represents the web server
type Server struct {
	router     *mux.Router
	controller *controller.Controller
	publisher  pubsub.Publisher
	decomposer Decomposer
}

// NewServer creates a server around ctrl. Events published by ctrl are
// expected on publisher. decomposer may be nil, which disables uploads.
func NewServer(ctrl *controller.Controller, publisher pubsub.Publisher, decomposer Decomposer) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		controller: ctrl,
		publisher:  publisher,
		decomposer: decomposer,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/subscribe/{topic}", s.handleSubscribe).Methods(http.MethodGet)
	api.HandleFunc("/graph", s.handleGraph).Methods(http.MethodGet)
	api.HandleFunc("/depth", s.handleGetDepth).Methods(http.MethodGet)
	api.HandleFunc("/depth", s.handleSetDepth).Methods(http.MethodPut)
	api.HandleFunc("/click", s.handleClick).Methods(http.MethodPost)
	api.HandleFunc("/selection", s.handleSelection).Methods(http.MethodGet)
	api.HandleFunc("/cycles", s.handleCycles).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/legend", s.handleLegend).Methods(http.MethodGet)
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicGraph && topic != pubsub.TopicSelection {
		http.Error(w, fmt.Sprintf("unknown topic %q", topic), http.StatusNotFound)
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client went away", "topic", topic, "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	maxDepth := s.controller.MaxDepth()
	if raw := r.URL.Query().Get("maxDepth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid maxDepth %q", raw), http.StatusBadRequest)
			return
		}
		maxDepth = n
	}

	node, ok := s.controller.Render(maxDepth)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, http.StatusOK, node)
}

type depthRequest struct {
	MaxDepth *int `json:"maxDepth"`
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]int{"maxDepth": s.controller.MaxDepth()})
}

// handleSetDepth changes the default bound for every viewer. Subscribers get
// a depth event on the graph topic.
func (s *Server) handleSetDepth(w http.ResponseWriter, r *http.Request) {
	var req depthRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		http.Error(w, "invalid depth request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.MaxDepth == nil || *req.MaxDepth < 0 {
		http.Error(w, "maxDepth must be a non-negative integer", http.StatusBadRequest)
		return
	}

	s.controller.SetMaxDepth(*req.MaxDepth)
	logging.InfoContext(r.Context(), "default depth changed", "maxDepth", *req.MaxDepth)
	s.handleGetDepth(w, r)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var ev controller.ClickEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&ev); err != nil {
		http.Error(w, "invalid click event: "+err.Error(), http.StatusBadRequest)
		return
	}

	if _, ok := s.controller.Click(ev); !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sel, _ := s.controller.Selected()
	writeJSON(w, r, http.StatusOK, sel)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.controller.Selected()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, http.StatusOK, sel)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	cycles := s.controller.Cycles()
	if cycles == nil {
		cycles = []model.DependencyCycle{}
	}
	writeJSON(w, r, http.StatusOK, cycles)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, summary.Summarize(s.controller.Decomposition()))
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, severity.Legend())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.decomposer == nil {
		http.Error(w, "no decomposition service configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing SBOM file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read SBOM file: "+err.Error(), http.StatusBadRequest)
		return
	}

	onlyVulnerable := true
	if raw := r.FormValue("onlyVulnerable"); raw != "" {
		if onlyVulnerable, err = strconv.ParseBool(raw); err != nil {
			http.Error(w, fmt.Sprintf("invalid onlyVulnerable %q", raw), http.StatusBadRequest)
			return
		}
	}
	maxDepth := s.controller.MaxDepth()
	if raw := r.FormValue("maxDepth"); raw != "" {
		if maxDepth, err = strconv.Atoi(raw); err != nil || maxDepth < 0 {
			http.Error(w, fmt.Sprintf("invalid maxDepth %q", raw), http.StatusBadRequest)
			return
		}
	}

	opts, err := decompose.NewOptions(header.Filename, data, onlyVulnerable, maxDepth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := s.decomposer.Decompose(r.Context(), opts)
	if err != nil {
		logging.ErrorContext(r.Context(), "decomposition failed", "file", header.Filename, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.controller.SetDecomposition(d)
	writeJSON(w, r, http.StatusOK, pubsub.GraphEvent{
		TotalNodes: d.NodeCount(),
		Cycles:     len(d.DependencyCycles),
		MaxDepth:   s.controller.MaxDepth(),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

// Start serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so that SSE streams let Shutdown finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	logging.Info("web server stopped")
	return nil
}
