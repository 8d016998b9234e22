package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/pkg/pipeline"
)

const maxBodyBytes = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Service is the part of the pipeline the server exposes.
type Service interface {
	TakeNotes(ctx context.Context, req pipeline.TakeNotesRequest) ([]models.Note, error)
	Ask(ctx context.Context, req pipeline.QARequest) (*models.Answer, error)
}

type Config struct {
	Port      string
	WebSocket bool
}

type Server struct {
	config  Config
	service Service
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewWithConfig(service Service, config Config) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	return &Server{config: config, service: service}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /take-notes", s.handleTakeNotes)
	mux.HandleFunc("POST /qa", s.handleQA)
	if s.config.WebSocket {
		mux.HandleFunc("GET /ws", s.handleWebSocket)
	}
	return withRequestID(mux)
}

// withRequestID tags every request with an X-Request-ID and logs it on completion.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s (%s)", id, r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s", s.config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleTakeNotes(w http.ResponseWriter, r *http.Request) {
	var req pipeline.TakeNotesRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validateTakeNotes(req); err != nil {
		writeError(w, err)
		return
	}

	notes, err := s.service.TakeNotes(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilNotes(notes))
}

func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	var req pipeline.QARequest
	if !decode(w, r, &req) {
		return
	}
	if err := validateQA(req); err != nil {
		writeError(w, err)
		return
	}

	answer, err := s.service.Ask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilAnswer(answer))
}

func validateTakeNotes(req pipeline.TakeNotesRequest) error {
	if strings.TrimSpace(req.PaperURL) == "" {
		return fmt.Errorf("%w: paperUrl is required", pipeline.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.PaperName) == "" {
		return fmt.Errorf("%w: paperName is required", pipeline.ErrInvalidRequest)
	}
	return nil
}

func validateQA(req pipeline.QARequest) error {
	if strings.TrimSpace(req.PaperURL) == "" {
		return fmt.Errorf("%w: paperUrl is required", pipeline.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("%w: question is required", pipeline.ErrInvalidRequest)
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrPaperNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func nonNilNotes(notes []models.Note) []models.Note {
	if notes == nil {
		return []models.Note{}
	}
	return notes
}

func nonNilAnswer(answer *models.Answer) *models.Answer {
	if answer.FollowupQuestions == nil {
		answer.FollowupQuestions = []string{}
	}
	return answer
}

// Message is sent to websocket clients.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type incoming struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// in-flight requests are cancelled before the connection closes
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws := &wsConn{conn: conn}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			return
		}

		var msg incoming
		if err := json.Unmarshal(message, &msg); err != nil {
			ws.send(Message{Type: "error", Content: "invalid message"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, ws, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, ws *wsConn, msg incoming) {
	status := func(stage string) {
		ws.send(Message{Type: "status", Content: stage})
	}

	switch msg.Type {
	case "take-notes":
		var req pipeline.TakeNotesRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			ws.send(Message{Type: "error", Content: "invalid take-notes data"})
			return
		}
		if err := validateTakeNotes(req); err != nil {
			ws.send(Message{Type: "error", Content: err.Error()})
			return
		}
		req.OnProgress = status

		notes, err := s.service.TakeNotes(ctx, req)
		if err != nil {
			ws.send(errorMessage(err))
			return
		}
		ws.send(Message{Type: "notes", Data: nonNilNotes(notes)})

	case "qa":
		var req pipeline.QARequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			ws.send(Message{Type: "error", Content: "invalid qa data"})
			return
		}
		if err := validateQA(req); err != nil {
			ws.send(Message{Type: "error", Content: err.Error()})
			return
		}
		req.OnProgress = status

		answer, err := s.service.Ask(ctx, req)
		if err != nil {
			ws.send(errorMessage(err))
			return
		}
		ws.send(Message{Type: "answer", Data: nonNilAnswer(answer)})

	default:
		ws.send(Message{Type: "error", Content: fmt.Sprintf("unknown message type: %s", msg.Type)})
	}
}

func errorMessage(err error) Message {
	if statusFor(err) == http.StatusInternalServerError {
		log.Printf("WebSocket request failed: %v", err)
		return Message{Type: "error", Content: "internal server error"}
	}
	return Message{Type: "error", Content: err.Error()}
}
