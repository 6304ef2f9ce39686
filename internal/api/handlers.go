package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/telemetry"
)

const (
	defaultConversationLimit = 20
	maxConversationLimit     = 50
	maxMessageBytes          = 64 << 10
)

// envelope is the shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type sendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type messageData struct {
	ConversationID string  `json:"conversationId"`
	Message        string  `json:"message"`
	TokensUsed     int64   `json:"tokensUsed"`
	CostCents      float64 `json:"costCents"`
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.cfg.Agent.SendMessage(r.Context(), req.Message, req.ConversationID)
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "api: send message failed", telemetry.Fields{"error": err.Error()})
	}

	body := envelope{Success: err == nil, Error: msg}
	if reply != nil {
		body.Data = messageData{
			ConversationID: reply.ConversationID,
			Message:        reply.Message,
			TokensUsed:     reply.TokensUsed(),
			CostCents:      reply.CostCents,
		}
	}
	respondJSON(w, status, body)
}

// statusFor maps an agent error onto an HTTP status and a client-facing
// message.
func statusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, agent.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, agent.ErrConversationGone):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, agent.ErrTurnInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, agent.ErrTurnTimeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, agent.ErrProvider):
		return http.StatusBadGateway, "the assistant is unavailable right now, please try again"
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	limit := defaultConversationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxConversationLimit)
	}

	convs, err := s.cfg.Conversations.ListConversations(r.Context(), p.ID, limit)
	if err != nil {
		s.log.Error(r.Context(), "api: listing conversations failed", telemetry.Fields{"userId": p.ID, "error": err.Error()})
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if convs == nil {
		convs = []db.Conversation{}
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	conv, err := s.cfg.Conversations.GetConversation(r.Context(), p.ID, chi.URLParam(r, "conversationID"))
	if db.IsNotFound(err) {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "api: loading conversation failed", telemetry.Fields{"userId": p.ID, "error": err.Error()})
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: conv})
}
