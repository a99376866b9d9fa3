// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestMergeToolCalls_AccumulatesFragments(t *testing.T) {
	// First fragment carries the call identity, later ones stream the
	// argument string in chunks.
	var calls []openai.ToolCall
	calls = mergeToolCalls(calls, []openai.ToolCall{{
		Index: intPtr(0),
		ID:    "call_1",
		Type:  openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "weather",
			Arguments: `{"loc`,
		},
	}})
	calls = mergeToolCalls(calls, []openai.ToolCall{{
		Index:    intPtr(0),
		Function: openai.FunctionCall{Arguments: `ation":"Berlin"}`},
	}})

	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "weather", calls[0].Function.Name)
	assert.JSONEq(t, `{"location":"Berlin"}`, calls[0].Function.Arguments)
}

func TestMergeToolCalls_MultipleCalls(t *testing.T) {
	var calls []openai.ToolCall
	calls = mergeToolCalls(calls, []openai.ToolCall{
		{Index: intPtr(0), ID: "call_a", Function: openai.FunctionCall{Name: "weather", Arguments: `{"location":"Oslo"}`}},
		{Index: intPtr(1), ID: "call_b", Function: openai.FunctionCall{Name: "weather", Arguments: `{"location":"Lima"}`}},
	})

	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "call_b", calls[1].ID)
}

func TestExecTool_Weather(t *testing.T) {
	result := execTool(openai.ToolCall{
		Function: openai.FunctionCall{
			Name:      "weather",
			Arguments: `{"location":"Berlin"}`,
		},
	})

	var report weatherReport
	require.NoError(t, json.Unmarshal([]byte(result), &report))
	assert.Equal(t, "Berlin", report.Location)
	assert.GreaterOrEqual(t, report.Temperature, 32)
	assert.LessOrEqual(t, report.Temperature, 90)
}

func TestExecTool_UnknownTool(t *testing.T) {
	result := execTool(openai.ToolCall{
		Function: openai.FunctionCall{Name: "stock_price", Arguments: `{}`},
	})

	assert.JSONEq(t, `{"error":"unknown tool"}`, result)
}

func TestExecTool_BadArguments(t *testing.T) {
	for _, args := range []string{``, `not json`, `{}`, `{"location":""}`} {
		result := execTool(openai.ToolCall{
			Function: openai.FunctionCall{Name: "weather", Arguments: args},
		})
		assert.JSONEq(t, `{"error":"invalid tool arguments"}`, result)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"wrapped deadline", fmt.Errorf("stream: %w", context.DeadlineExceeded), FailureTimeout},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, FailureRateLimited},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, FailureUnauthorized},
		{"server error", &openai.APIError{HTTPStatusCode: 500}, FailureOther},
		{"plain error", errors.New("connection reset"), FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := classify(tt.err)
			assert.Equal(t, tt.kind, upstream.Kind)
			assert.NotEmpty(t, upstream.Message)
		})
	}
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{Kind: FailureRateLimited, Message: "slow down"}
	assert.Contains(t, err.Error(), "rate_limited")
	assert.Contains(t, err.Error(), "slow down")
}

// newTestRelay points a relay at a stand-in completion endpoint.
func newTestRelay(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		model:  "gpt-4-turbo",
	}
}

// writeStreamChunk emits one completion chunk in the provider's event-stream
// framing.
func writeStreamChunk(t *testing.T, w http.ResponseWriter, delta openai.ChatCompletionStreamChoiceDelta) {
	t.Helper()
	resp := openai.ChatCompletionStreamResponse{
		ID:      "chatcmpl-test",
		Object:  "chat.completion.chunk",
		Created: 1,
		Model:   "gpt-4-turbo",
		Choices: []openai.ChatCompletionStreamChoice{{Delta: delta}},
	}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func TestRelay_ToolRoundTrip(t *testing.T) {
	var requests []openai.ChatCompletionRequest
	svc := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		w.Header().Set("Content-Type", "text/event-stream")
		if len(requests) == 1 {
			// Round one: the model calls the weather tool, arguments split
			// across two fragments.
			writeStreamChunk(t, w, openai.ChatCompletionStreamChoiceDelta{
				ToolCalls: []openai.ToolCall{{
					Index: intPtr(0),
					ID:    "call_1",
					Type:  openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "weather",
						Arguments: `{"loc`,
					},
				}},
			})
			writeStreamChunk(t, w, openai.ChatCompletionStreamChoiceDelta{
				ToolCalls: []openai.ToolCall{{
					Index:    intPtr(0),
					Function: openai.FunctionCall{Arguments: `ation":"Berlin"}`},
				}},
			})
		} else {
			// Round two: final answer streamed as two content deltas.
			writeStreamChunk(t, w, openai.ChatCompletionStreamChoiceDelta{Content: "It is warm "})
			writeStreamChunk(t, w, openai.ChatCompletionStreamChoiceDelta{Content: "in Berlin."})
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var out bytes.Buffer
	err := svc.Relay(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "What's the weather in Berlin?"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "It is warm in Berlin.", out.String())
	require.Len(t, requests, 2)

	// Both rounds offer the weather tool.
	require.Len(t, requests[0].Tools, 1)
	assert.Equal(t, "weather", requests[0].Tools[0].Function.Name)

	// The follow-up request carries the assistant tool call and its result.
	second := requests[1].Messages
	require.Len(t, second, 3)

	assistant := second[1]
	assert.Equal(t, openai.ChatMessageRoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)
	assert.JSONEq(t, `{"location":"Berlin"}`, assistant.ToolCalls[0].Function.Arguments)

	result := second[2]
	assert.Equal(t, openai.ChatMessageRoleTool, result.Role)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Contains(t, result.Content, "Berlin")
}

func TestRelay_ContentOnly(t *testing.T) {
	svc := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeStreamChunk(t, w, openai.ChatCompletionStreamChoiceDelta{Content: "Hello."})
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var out bytes.Buffer
	err := svc.Relay(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "Hi"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Hello.", out.String())
}

func TestRelay_Timeout(t *testing.T) {
	svc := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		// Hold the request open until the client gives up. Drain the body
		// first so the server's background read can observe the client
		// disconnect and cancel the request context; otherwise srv.Close
		// blocks forever on this connection.
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := svc.Relay(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "Hi"},
	}, &out)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, FailureTimeout, upstream.Kind)
	assert.Empty(t, out.String())
}

func TestRelay_RateLimited(t *testing.T) {
	svc := newTestRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"requests"}}`)
	})

	var out bytes.Buffer
	err := svc.Relay(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "Hi"},
	}, &out)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, FailureRateLimited, upstream.Kind)
}
