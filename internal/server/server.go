package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/kartoza/airscope/internal/api"
	"github.com/kartoza/airscope/internal/config"
	"github.com/kartoza/airscope/internal/contact"
	"github.com/kartoza/airscope/internal/explore"
	"github.com/kartoza/airscope/internal/metrics"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	pages      pageSet
	predictor  explore.Predictor
	contact    contact.Form
	metrics    *metrics.Collector
	now        func() time.Time
}

// New creates a new Server. predictor answers Explore submissions; m may be
// nil to disable metrics.
func New(cfg config.Config, predictor explore.Predictor, m *metrics.Collector) (*Server, error) {
	pages, err := loadPages(templatesFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		pages:     pages,
		predictor: predictor,
		metrics:   m,
		now:       time.Now,
	}
	s.contact = contact.Form{
		BannerDuration: cfg.Contact.BannerDuration,
		OnSubmit:       func(contact.Message) { s.metrics.ContactSubmitted() },
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	s.handler = api.Instrument(s.router, m)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	// Status endpoints
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	api.RegisterStatusRoutes(apiRouter, s.info)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	// Pages
	s.router.HandleFunc("/", s.handleStatic("home")).Methods("GET")
	s.router.HandleFunc("/about", s.handleStatic("about")).Methods("GET")
	s.router.HandleFunc("/flowchart", s.handleStatic("flowchart")).Methods("GET")
	s.router.HandleFunc("/explore", s.handleExplore).Methods("GET", "POST")
	s.router.HandleFunc("/contact", s.handleContact).Methods("GET", "POST")

	// Static assets (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("could not load embedded static files: %w", err)
	}
	s.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	return nil
}

// Handler returns the instrumented router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// info is the body of /api/info
func (s *Server) info() map[string]interface{} {
	return map[string]interface{}{
		"version":          s.cfg.Version,
		"predict_endpoint": s.cfg.Predict.Endpoint,
		"headless":         s.cfg.Headless,
	}
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Msgf("Server listening on http://localhost:%d", s.cfg.Server.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
