package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"chat-proxy/internal/chat"
	"chat-proxy/internal/keys"
	"chat-proxy/internal/session"
	"chat-proxy/internal/storage"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Port        int
	Attribution string
	// StaticDir holds index.html and docs.html; empty disables / and /docs.
	StaticDir string
}

// Server exposes the chat service over HTTP and MCP (SSE).
type Server struct {
	svc         *chat.Service
	attribution string
	staticDir   string
	port        int
	startTime   time.Time

	mcp    *mcp.Server
	server *http.Server
}

func New(svc *chat.Service, opts Options) *Server {
	s := &Server{
		svc:         svc,
		attribution: opts.Attribution,
		staticDir:   opts.StaticDir,
		port:        opts.Port,
		startTime:   time.Now(),
	}
	s.mcp = newMCPServer(s)
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ai", s.handleAI)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/memory", s.handleMemory)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.Handle("/mcp", mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return s.mcp }))
	mux.HandleFunc("/docs", s.handleStatic("docs.html"))
	mux.HandleFunc("/", s.handleRoot)

	return mux
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// generation can take a while
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Starting chat proxy on http://localhost:%d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	reply, err := s.svc.Ask(r.Context(), req)
	if err != nil {
		s.fail(w, "ask", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"response":  reply.Response,
		"developer": s.attribution,
	})
}

// decodeRequest reads a JSON body when present; query parameters fill any
// field the body left empty.
func decodeRequest(r *http.Request) (chat.Request, error) {
	var req chat.Request
	if r.Method == http.MethodPost && r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return req, err
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := decodeBody(body, &req); err != nil {
				return req, fmt.Errorf("%w: invalid JSON body: %v", chat.ErrValidation, err)
			}
		}
	}

	q := r.URL.Query()
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = q.Get(key)
		}
	}
	fill(&req.Query, "query")
	fill(&req.UserID, "id")
	fill(&req.Model, "model")
	fill(&req.SystemPrompt, "system_prompt")
	return req, nil
}

// decodeBody accepts the user id as a JSON string or number.
func decodeBody(body []byte, req *chat.Request) error {
	var wire struct {
		chat.Request
		UserID any `json:"id"`
	}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return err
	}
	*req = wire.Request
	switch id := wire.UserID.(type) {
	case nil:
	case string:
		req.UserID = id
	case json.Number:
		req.UserID = id.String()
	default:
		return errors.New("id must be a string or a number")
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("id")

	switch r.Method {
	case http.MethodGet:
		mem, err := s.svc.Memory(r.Context(), userID)
		if err != nil {
			s.fail(w, "get memory", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": userID, "memory": mem})

	case http.MethodPut, http.MethodPost:
		var mem storage.Memory
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&mem); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid memory document: %w", err))
			return
		}
		if err := s.svc.SetMemory(r.Context(), userID, mem); err != nil {
			s.fail(w, "put memory", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": userID, "memory": mem})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	userID := r.URL.Query().Get("id")
	turns, err := s.svc.History(r.Context(), userID)
	if err != nil {
		s.fail(w, "read history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": userID, "history": turns})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	sessions := s.svc.Sessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
		"degraded": s.svc.Degraded(),
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.handleStatic("index.html")(w, r)
}

func (s *Server) handleStatic(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.staticDir == "" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.staticDir, name))
	}
}

// fail logs server-side failures and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %s failed: %v", op, err)
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if status >= http.StatusInternalServerError {
		body["contact"] = s.attribution
	}
	writeJSON(w, status, body)
}

// statusFor is the single place where errors become HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrValidation),
		errors.Is(err, session.ErrInvalidModelType),
		errors.Is(err, keys.ErrNoCredentialAvailable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
