// Package gateway is the local HTTP surface the browser UI talks to: a JSON
// API over the engine plus a websocket event stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"arc/access"
	"arc/engine"
	"arc/storage"
)

// Server exposes one engine instance over HTTP.
type Server struct {
	engine *engine.Engine
	store  *storage.Store
	hub    *hub

	httpServer *http.Server
	upgrader   websocket.Upgrader

	closeOnce sync.Once
}

// NewServer builds the gateway; the store may be nil when running without
// persistence.
func NewServer(address string, eng *engine.Engine, store *storage.Store) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		hub:    newHub(eng),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The gateway binds to loopback; the browser UI is served
			// from a file origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/timeline", s.handleTimeline).Methods(http.MethodGet)
	api.HandleFunc("/presence", s.handlePresence).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id:[0-9]+}/retry", s.handleRetry).Methods(http.MethodPost)
	api.HandleFunc("/condition", s.handleGetCondition).Methods(http.MethodGet)
	api.HandleFunc("/condition", s.handleSetCondition).Methods(http.MethodPost)
	api.HandleFunc("/location/share", s.handleShareLocation).Methods(http.MethodPost)
	api.HandleFunc("/location/live", s.handleLiveShare).Methods(http.MethodPost)
	api.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.handleSetProfile).Methods(http.MethodPost)
	api.HandleFunc("/channels", s.handleChannels).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebsocket)

	s.httpServer = &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves HTTP until Shutdown. It blocks.
func (s *Server) Start() error {
	go s.hub.run()

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and the event fanout.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
		s.hub.stop()
	})
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"transport":   s.engine.Status(),
		"condition":   s.engine.ConditionDescription(),
		"liveSharing": s.engine.LiveSharing(),
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "1" {
		writeJSON(w, http.StatusOK, s.engine.Timeline())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.VisibleTimeline())
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"locations":   s.engine.Locations(),
		"activeUsers": s.engine.ActiveUsers(),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}
	if body.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	if err := s.engine.SendMessage(r.Context(), body.Text); err != nil {
		writeError(w, sendErrorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse message id: %w", err))
		return
	}

	if err := s.engine.RetryDecryption(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetCondition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"description": s.engine.ConditionDescription(),
	})
}

func (s *Server) handleSetCondition(w http.ResponseWriter, r *http.Request) {
	var condition access.Condition
	if err := json.NewDecoder(r.Body).Decode(&condition); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse condition: %w", err))
		return
	}

	if err := s.engine.SetCondition(condition); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"description": condition.Describe(),
	})
}

func (s *Server) handleShareLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ShareLocation(r.Context()); err != nil {
		writeError(w, sendErrorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLiveShare(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	switch body.Action {
	case "start":
		if err := s.engine.StartLiveShare(r.Context()); err != nil {
			writeError(w, sendErrorStatus(err), err)
			return
		}
	case "stop":
		if err := s.engine.StopLiveShare(); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action %q", body.Action))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}

	profile, err := s.store.Profile()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}
	if body.Nickname == "" {
		writeError(w, http.StatusBadRequest, errors.New("nickname is required"))
		return
	}

	s.engine.SetNickname(body.Nickname)
	if s.store != nil {
		if err := s.store.SetProfileValue(storage.ProfileKeyNickname, body.Nickname); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.Channel{})
		return
	}

	channels, err := s.store.ListChannels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.EngineEvent{})
		return
	}

	filter := storage.EngineEventFilter{
		EventType: r.URL.Query().Get("type"),
		Severity:  r.URL.Query().Get("severity"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse limit: %w", err))
			return
		}
		filter.Limit = parsed
	}

	events, err := s.store.GetEngineEvents(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: websocket upgrade: %v", err)
		return
	}

	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, clientSendSize)}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func sendErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoIdentity), errors.Is(err, engine.ErrNoCondition),
		errors.Is(err, engine.ErrNoSampler):
		return http.StatusPreconditionFailed
	case errors.Is(err, engine.ErrAlreadySharing), errors.Is(err, engine.ErrNotSharing):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotStarted), errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("gateway: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
