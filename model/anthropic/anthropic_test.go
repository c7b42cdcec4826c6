package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBuildMessages_ToolResultsAsUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleSystem, "ignored here"),
		core.NewTextContent(core.RoleUser, "your turn"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "make_move", Arguments: `{"position":4}`}},
		}},
		{Role: core.RoleTool, Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "make_move", Error: "Position 4 is already taken."}},
		}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestExtractSystemMessage(t *testing.T) {
	blocks := extractSystemMessage(model.Request{
		Instructions: "be smug",
		Contents:     []core.Content{core.NewTextContent(core.RoleSystem, "extra")},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "be smug", blocks[0].Text)
	assert.Equal(t, "extra", blocks[1].Text)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "make_move",
			Description: "place a mark",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"position": map[string]any{"type": "integer"}},
				"required":   []any{"position"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "make_move", tools[0].OfTool.Name)
	assert.Equal(t, []string{"position"}, tools[0].OfTool.InputSchema.Required)
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "x", responseText("x"))
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, `{"a":1}`, responseText(map[string]int{"a": 1}))
}

func TestGenerate_CancelReleasesProducer(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		start = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":1}}}`
		block = `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`
		delta = `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"blah "}}`
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		fmt.Fprintf(w, "event: message_start\ndata: %s\n\n", start)
		fmt.Fprintf(w, "event: content_block_start\ndata: %s\n\n", block)
		for i := 0; i < 200; i++ {
			if r.Context().Err() != nil {
				return
			}
			fmt.Fprintf(w, "event: content_block_delta\ndata: %s\n\n", delta)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer srv.Close()

	transport := &http.Transport{DisableKeepAlives: true}
	defer transport.CloseIdleConnections()

	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test"),
		option.WithHTTPClient(&http.Client{Transport: transport}),
	)
	m := NewModelFromClient(&client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	respCh, _ := m.Generate(ctx, model.Request{
		Stream:   true,
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "talk")},
	})

	select {
	case r := <-respCh:
		assert.True(t, r.Partial)
	case <-time.After(5 * time.Second):
		t.Fatal("no chunk streamed")
	}

	// Stop reading and let the buffer fill before cancelling.
	time.Sleep(100 * time.Millisecond)
	cancel()
}
