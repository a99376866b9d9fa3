// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package chat relays conversations to the hosted model and streams the
// response back, executing declared tools between rounds.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/saasbase-io/saasbase/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// RelayTimeout caps the total duration of a relay, tool rounds included.
	RelayTimeout = 30 * time.Second

	// maxToolRounds bounds how often the model may call tools before the
	// relay insists on a final answer.
	maxToolRounds = 2
)

// FailureKind classifies an upstream failure.
type FailureKind string

const (
	FailureRateLimited  FailureKind = "rate_limited"
	FailureUnauthorized FailureKind = "unauthorized"
	FailureTimeout      FailureKind = "timeout"
	FailureOther        FailureKind = "other"
)

// UpstreamError is the typed result of a failed upstream call. Handlers
// branch on Kind instead of inspecting provider error internals.
type UpstreamError struct {
	Kind    FailureKind
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure (%s): %s", e.Kind, e.Message)
}

// classify maps provider and context errors onto UpstreamError kinds.
func classify(err error) *UpstreamError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Kind: FailureTimeout, Message: "relay deadline exceeded"}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return &UpstreamError{Kind: FailureRateLimited, Message: "rate limit exceeded, please try again later"}
		case 401:
			return &UpstreamError{Kind: FailureUnauthorized, Message: "invalid API key or unauthorized access"}
		}
	}

	return &UpstreamError{Kind: FailureOther, Message: err.Error()}
}

// Service relays chat conversations to the model provider.
type Service struct {
	client *openai.Client
	model  string
}

// NewService creates a chat relay from configuration.
func NewService(cfg *config.OpenAIConfig) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.OrgID != "" {
		clientCfg.OrgID = cfg.OrgID
	}

	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Relay forwards the conversation to the model and writes content deltas to
// w as they arrive. When the model requests a tool call, the tool is
// executed and the follow-up round is streamed too. The whole exchange is
// bounded by RelayTimeout.
func (s *Service) Relay(ctx context.Context, messages []openai.ChatCompletionMessage, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, RelayTimeout)
	defer cancel()

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
		}
		// Withhold the tool once the round budget is spent so the model has
		// to produce a final answer.
		if round < maxToolRounds {
			req.Tools = []openai.Tool{weatherTool}
		}

		toolCalls, err := s.streamRound(ctx, req, w)
		if err != nil {
			return err
		}
		if len(toolCalls) == 0 {
			return nil
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: toolCalls,
		})
		for _, call := range toolCalls {
			result := execTool(call)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
}

// streamRound streams one completion round, writing content deltas to w and
// collecting any tool calls the model emits.
func (s *Service) streamRound(ctx context.Context, req openai.ChatCompletionRequest, w io.Writer) ([]openai.ToolCall, error) {
	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		upstream := classify(err)
		slog.Error("chat_stream_failed", "kind", upstream.Kind, "error", err)
		return nil, upstream
	}
	defer stream.Close()

	var toolCalls []openai.ToolCall
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return toolCalls, nil
		}
		if err != nil {
			upstream := classify(err)
			slog.Error("chat_stream_interrupted", "kind", upstream.Kind, "error", err)
			return nil, upstream
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			if _, err := io.WriteString(w, delta.Content); err != nil {
				return nil, fmt.Errorf("failed to write to client: %w", err)
			}
		}
		toolCalls = mergeToolCalls(toolCalls, delta.ToolCalls)
	}
}

// mergeToolCalls folds streamed tool-call fragments into complete calls.
// The first fragment of a call carries ID and name; later fragments append
// argument chunks.
func mergeToolCalls(calls []openai.ToolCall, deltas []openai.ToolCall) []openai.ToolCall {
	for _, d := range deltas {
		idx := len(calls)
		if d.Index != nil {
			idx = *d.Index
		}
		for len(calls) <= idx {
			calls = append(calls, openai.ToolCall{})
		}

		call := &calls[idx]
		if d.ID != "" {
			call.ID = d.ID
		}
		if d.Type != "" {
			call.Type = d.Type
		}
		if d.Function.Name != "" {
			call.Function.Name = d.Function.Name
		}
		call.Function.Arguments += d.Function.Arguments
	}
	return calls
}
