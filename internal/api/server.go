package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/zabari/chatspeaker/internal/message"
)

// Pipeline is the slice of the application the HTTP surface exposes.
type Pipeline interface {
	Status() map[message.Platform]bool
}

// Speech is the control handle for the synthesis queue.
type Speech interface {
	Pending() int
	CancelAll()
}

// Store provides read access to the message buffer.
type Store interface {
	All() []message.Event
	Since(t time.Time) []message.Event
}

// Server exposes health, status, message history, and speech control
// over HTTP.
type Server struct {
	server   *http.Server
	pipeline Pipeline
	speech   Speech
	store    Store
}

func New(addr string, pipeline Pipeline, speech Speech, store Store) *Server {
	s := &Server{
		pipeline: pipeline,
		speech:   speech,
		store:    store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/speech/cancel", s.handleCancel)

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Printf("api: listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("api: shutting down")
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type statusResponse struct {
	Platforms map[message.Platform]bool `json:"platforms"`
	Pending   int                       `json:"pending_speech"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, statusResponse{
		Platforms: s.pipeline.Status(),
		Pending:   s.speech.Pending(),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var events []message.Event
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "since must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		events = s.store.Since(t)
	} else {
		events = s.store.All()
	}
	if events == nil {
		events = []message.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.speech.CancelAll()
	log.Println("api: speech queue cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
