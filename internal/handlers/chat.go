// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/services/chat"
	openai "github.com/sashabaranov/go-openai"
)

// ChatHandlers contains the chat relay handler.
type ChatHandlers struct {
	relay      *chat.Service
	production bool
}

// NewChat creates a new ChatHandlers instance.
func NewChat(relay *chat.Service, production bool) *ChatHandlers {
	return &ChatHandlers{relay: relay, production: production}
}

// chatRequest keeps messages raw so a missing or non-array value can be
// rejected before anything is forwarded upstream.
type chatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// Chat relays the conversation to the hosted model and streams the response
// body back as it arrives.
func (h *ChatHandlers) Chat(c echo.Context) error {
	var req chatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid messages format")
	}

	var messages []openai.ChatCompletionMessage
	if len(req.Messages) == 0 || json.Unmarshal(req.Messages, &messages) != nil || messages == nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid messages format")
	}

	w := &streamWriter{response: c.Response()}
	if err := h.relay.Relay(c.Request().Context(), messages, w); err != nil {
		var upstream *chat.UpstreamError
		if errors.As(err, &upstream) {
			slog.Error("chat_relay_failed", "kind", upstream.Kind, "started", w.started)
		} else {
			slog.Error("chat_relay_failed", "error", err, "started", w.started)
		}
		// Once streaming has begun the status is already on the wire; the
		// truncated body is all the client gets.
		if !w.started {
			return internalError(c, h.production, err)
		}
		return nil
	}

	if !w.started {
		// Model produced no content at all; still deliver an empty 200.
		w.response.WriteHeader(http.StatusOK)
	}
	return nil
}

// streamWriter starts the chunked response lazily on the first token and
// flushes after every write so deltas reach the client as they arrive.
type streamWriter struct {
	response *echo.Response
	started  bool
}

var _ io.Writer = (*streamWriter)(nil)

func (w *streamWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.response.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		w.response.Header().Set("Cache-Control", "no-cache")
		w.response.WriteHeader(http.StatusOK)
		w.started = true
	}

	n, err := w.response.Write(p)
	if err != nil {
		return n, err
	}
	w.response.Flush()
	return n, nil
}
