package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidoenr/glitcher/internal/app"
	"github.com/guidoenr/glitcher/internal/params"
	"github.com/guidoenr/glitcher/internal/recorder"
)

// Controller is the part of the engine exposed over HTTP.
type Controller interface {
	Status() app.Status
	Params() params.Parameters
	SetParam(name string, value float64) (params.Parameters, error)
	ResetParams() params.Parameters
	SetPlaying(ctx context.Context, on bool) error
	SetRecording(ctx context.Context, on bool) error
	Recording() (recorder.Artifact, bool)
}

type Server struct {
	mu          sync.RWMutex
	ctrl        Controller
	log         *slog.Logger
	clients     map[*websocketClient]bool
	broadcast   chan []byte
	upgrader    websocket.Upgrader
	statusEvery time.Duration
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// FieldInfo describes one parameter control.
type FieldInfo struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Integer bool    `json:"integer"`
}

type ParamsResponse struct {
	Params params.Parameters `json:"params"`
	Fields []FieldInfo       `json:"fields"`
}

type PlayRequest struct {
	Playing bool `json:"playing"`
}

type RecordRequest struct {
	Recording bool `json:"recording"`
}

func NewServer(ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctrl:        ctrl,
		log:         logger.With("component", "web"),
		clients:     make(map[*websocketClient]bool),
		broadcast:   make(chan []byte, 256),
		statusEvery: 500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/record", s.handleRecord)
	mux.HandleFunc("/api/recording", s.handleRecording)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.startLoops(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("web: server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) startLoops(ctx context.Context) {
	go s.broadcastLoop(ctx)
	go s.statusUpdateLoop(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) paramsResponse(p params.Parameters) ParamsResponse {
	fields := params.Fields()
	infos := make([]FieldInfo, 0, len(fields))
	for _, f := range fields {
		infos = append(infos, FieldInfo{Name: f.Name, Min: f.Min, Max: f.Max, Step: f.Step, Integer: f.Integer})
	}
	return ParamsResponse{Params: p, Fields: infos}
}

// handleParams reads the parameters (GET) or edits one or more fields (POST
// with a {"field": value} object).
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.paramsResponse(s.ctrl.Params()))
	case http.MethodPost:
		var edits map[string]float64
		if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		for name := range edits {
			if _, ok := params.Lookup(name); !ok {
				writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s", params.ErrUnknownField, name))
				return
			}
		}
		names := make([]string, 0, len(edits))
		for name := range edits {
			names = append(names, name)
		}
		sort.Strings(names)

		p := s.ctrl.Params()
		for _, name := range names {
			var err error
			if p, err = s.ctrl.SetParam(name, edits[name]); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, s.paramsResponse(p))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.paramsResponse(s.ctrl.ResetParams()))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.SetPlaying(r.Context(), req.Playing); err != nil {
		s.log.Warn("web: play request rejected", "playing", req.Playing, "error", err)
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.ctrl.SetRecording(r.Context(), req.Recording)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, recorder.ErrEncoderUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusConflict, err)
	}
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	art, ok := s.ctrl.Recording()
	if !ok {
		http.Error(w, "no recording", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", art.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.Write(art.Data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("web: websocket upgrade error", "error", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) statusUpdateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.statusEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		data, err := json.Marshal(s.ctrl.Status())
		if err != nil {
			continue
		}
		select {
		case s.broadcast <- data:
		default:
			// drop if channel full
		}
	}
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			delete(c.server.clients, c)
			close(c.send)
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
