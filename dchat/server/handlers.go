package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	internal "github.com/ZanzyTHEbar/docuchat/dchat"
	"github.com/ZanzyTHEbar/docuchat/dchat/chat"
	"github.com/ZanzyTHEbar/docuchat/dchat/chat/adapters"
)

type chatRequest struct {
	Text string `json:"text"`
}

type deltaPayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// transcriptPart is one drawable piece of the conversation. Markdown parts
// carry pre-rendered HTML; everything else carries raw text for the client
// to insert as text nodes.
type transcriptPart struct {
	Role    string `json:"role,omitempty"`
	Display string `json:"display"`
	Kind    string `json:"kind"`
	Label   string `json:"label,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

type transcriptPayload struct {
	Parts   []transcriptPart `json:"parts"`
	Stats   chat.Stats       `json:"stats"`
	Warning bool             `json:"warning"`
	Busy    bool             `json:"busy"`
}

type settingsPayload struct {
	MaxMessages int      `json:"max_messages"`
	MinMessages int      `json:"min_messages"`
	MaxAllowed  int      `json:"max_allowed"`
	Step        int      `json:"step"`
	Strategy    string   `json:"strategy"`
	Strategies  []string `json:"strategies"`
}

// settingsUpdate uses pointers so a partial update leaves the other knob
// untouched.
type settingsUpdate struct {
	MaxMessages *int    `json:"max_messages"`
	Strategy    *string `json:"strategy"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleChat runs one turn and relays it as server-sent events: zero or
// more "delta" events, then either a "done" event carrying the refreshed
// transcript or an "error" event. Concurrent submissions are refused.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		s.writeError(w, http.StatusBadRequest, "message text is required")
		return
	}

	events, err := s.orch.RunTurn(r.Context(), text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrTurnInFlight):
			s.writeError(w, http.StatusConflict, "a turn is already in flight")
		case errors.Is(err, adapters.ErrRateLimited):
			s.writeError(w, http.StatusTooManyRequests, "too many turns, slow down")
		default:
			s.logger.Error().Err(err).Msg("Failed to start turn")
			s.writeError(w, http.StatusInternalServerError, "failed to start turn")
		}
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		// The turn is already running; drain it so it still commits.
		for range events {
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for ev := range events {
		switch {
		case ev.Err != nil:
			sse.event("error", errorPayload{Message: ev.Err.Error()})
		case ev.Done:
			sse.event("done", s.transcriptPayload(r.Context()))
		default:
			if err := sse.event("delta", deltaPayload{Text: ev.Delta}); err != nil {
				// The write failed but the turn is still running; keep
				// draining so the relay is not blocked. A real disconnect
				// cancels r.Context() and the turn aborts without
				// committing.
				s.logger.Debug().Err(err).Msg("Chat stream write failed")
			}
		}
	}
}

// handleHistory returns the full rendered transcript plus metrics, used on
// page load and after a turn completes.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.transcriptPayload(r.Context()))
}

// handleClear empties the conversation. Allowed at any time, even while a
// turn is streaming.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	s.writeJSON(w, http.StatusOK, s.transcriptPayload(r.Context()))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settingsPayload())
}

// handleUpdateSettings applies history knobs. A new message limit takes
// effect immediately: stored history is re-truncated before the response so
// the next transcript fetch already reflects it.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if update.Strategy != nil {
		strategy := chat.Strategy(*update.Strategy)
		if strategy != chat.StrategyPairPreserving && strategy != chat.StrategySuffix {
			s.writeError(w, http.StatusBadRequest, "unknown truncation strategy")
			return
		}
		s.session.SetStrategy(strategy)
	}
	if update.MaxMessages != nil {
		applied := s.session.SetMaxMessages(*update.MaxMessages)
		if applied != *update.MaxMessages {
			s.logger.Debug().
				Int("requested", *update.MaxMessages).
				Int("applied", applied).
				Msg("History limit clamped")
		}
	}

	s.writeJSON(w, http.StatusOK, s.settingsPayload())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) settingsPayload() settingsPayload {
	return settingsPayload{
		MaxMessages: s.session.MaxMessages(),
		MinMessages: internal.MinMaxMessages,
		MaxAllowed:  internal.MaxMaxMessages,
		Step:        internal.MaxMessagesStep,
		Strategy:    string(s.session.Strategy()),
		Strategies:  []string{string(chat.StrategyPairPreserving), string(chat.StrategySuffix)},
	}
}

func (s *Server) transcriptPayload(ctx context.Context) transcriptPayload {
	instructions := chat.RenderHistory(s.session.Snapshot())
	parts := make([]transcriptPart, 0, len(instructions))
	for _, ins := range instructions {
		if ins.Display == chat.DisplayHidden {
			continue
		}
		part := transcriptPart{
			Role:    string(ins.Role),
			Display: string(ins.Display),
			Kind:    string(ins.Kind),
			Label:   ins.Label,
		}
		if ins.Markdown {
			part.HTML = renderMarkdown(ctx, s.cache, s.cfg.DChat.Cache.TTLSeconds, ins.Body)
		} else {
			part.Text = ins.Body
		}
		parts = append(parts, part)
	}

	stats := s.session.Stats()
	return transcriptPayload{
		Parts:   parts,
		Stats:   stats,
		Warning: stats.Warning(),
		Busy:    s.orch.State() != chat.StateIdle,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, errorPayload{Message: msg})
}
