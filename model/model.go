package model

import (
	"context"
	"sync"

	"github.com/hupe1980/tictacmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the orchestrator.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Contents     []core.Content   `json:"contents"`     // Conversation so far, oldest first
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial chunks carry deltas; the final chunk carries the aggregated
// assistant content including complete function calls.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the orchestrator to drive generation.
// Both channels are closed when generation ends; at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Send delivers r on out unless ctx is done first. Producers stop streaming
// when it returns false; the consumer may have stopped reading.
func Send(ctx context.Context, out chan<- Response, r Response) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- r:
		return true
	}
}

// MockTurn scripts the reply to one Generate call.
type MockTurn struct {
	Responses []Response
	// Err is sent after all responses were delivered.
	Err error
	// Block makes the turn wait for context cancellation after the responses.
	Block bool
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Each Generate call consumes the next scripted turn; once the script is
// exhausted the fallback turn is replayed.
type MockModel struct {
	info Info

	mu       sync.Mutex
	turns    []MockTurn
	fallback MockTurn
	requests []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		fallback: MockTurn{Responses: []Response{{
			Content:      core.NewTextContent(core.RoleAssistant, "..."),
			FinishReason: "stop",
		}}},
	}
}

// AddTurn appends scripted turns.
func (m *MockModel) AddTurn(turns ...MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// SetFallback replaces the turn used once the script is exhausted.
func (m *MockModel) SetFallback(t MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = t
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockModel) next(req Request) MockTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.turns) == 0 {
		return m.fallback
	}
	t := m.turns[0]
	m.turns = m.turns[1:]
	return t
}

// Generate implements Model by replaying the next scripted turn.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)
	turn := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)
		for _, r := range turn.Responses {
			if !Send(ctx, respCh, r) {
				errCh <- ctx.Err()
				return
			}
		}
		if turn.Block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if turn.Err != nil {
			errCh <- turn.Err
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
