package core

import "encoding/json"

// StreamedEvent is one classified item of a decision-process stream. The set
// is closed: Narration, ReasoningFragment, ActionIntent, ActionResult and
// Terminal.
type StreamedEvent interface{ isStreamedEvent() }

// Narration is spoken commentary, relayed verbatim.
type Narration struct {
	Text string
}

func (Narration) isStreamedEvent() {}

// ReasoningFragment is "thinking" text, relayed verbatim.
type ReasoningFragment struct {
	Text string
}

func (ReasoningFragment) isStreamedEvent() {}

// ActionIntent is a request from the agent to invoke a capability.
type ActionIntent struct {
	ID   string
	Name string
	Args json.RawMessage
}

func (ActionIntent) isStreamedEvent() {}

// ActionResult reports the outcome of an action. Results of actions the
// orchestrator applied itself are informational only.
type ActionResult struct {
	ID     string
	Name   string
	Result any
	Err    string
}

func (ActionResult) isStreamedEvent() {}

// Terminal marks the end of one streamed response.
type Terminal struct {
	FinishReason string
}

func (Terminal) isStreamedEvent() {}

// Classify splits a model content chunk into streamed events preserving part
// order. Partial function call fragments are not actionable and are skipped.
func Classify(c Content, partial bool) []StreamedEvent {
	var out []StreamedEvent
	for _, p := range c.Parts {
		switch part := p.(type) {
		case TextPart:
			if part.Text != "" {
				out = append(out, Narration(part))
			}
		case ReasoningPart:
			if part.Text != "" {
				out = append(out, ReasoningFragment(part))
			}
		case FunctionCallPart:
			if partial {
				continue
			}
			args := json.RawMessage(part.FunctionCall.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			out = append(out, ActionIntent{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: args,
			})
		case FunctionResponsePart:
			out = append(out, ActionResult{
				ID:     part.FunctionResponse.ID,
				Name:   part.FunctionResponse.Name,
				Result: part.FunctionResponse.Response,
				Err:    part.FunctionResponse.Error,
			})
		}
	}
	return out
}
