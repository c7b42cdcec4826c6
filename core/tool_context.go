package core

import (
	"context"

	"github.com/hupe1980/tictacmesh/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by the agent during one streamed invocation.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	invocationID   string
	functionCallID string
	agentName      string

	*loggerAdapter
}

// NewToolContext constructs a tool context for a single function call.
func NewToolContext(
	ctx context.Context,
	sessionID, invocationID, functionCallID, agentName string,
	logger logging.Logger,
) *ToolContext {
	return &ToolContext{
		ctx:            ctx,
		sessionID:      sessionID,
		invocationID:   invocationID,
		functionCallID: functionCallID,
		agentName:      agentName,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// InvocationID returns the streamed invocation the call belongs to.
func (tc *ToolContext) InvocationID() string { return tc.invocationID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentName }
