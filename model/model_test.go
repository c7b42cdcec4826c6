package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var out []Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestMockModel_ReplaysTurnsInOrder(t *testing.T) {
	m := NewMockModel("mock")
	m.AddTurn(
		MockTurn{Responses: []Response{{Content: core.NewTextContent(core.RoleAssistant, "one")}}},
		MockTurn{Responses: []Response{{Content: core.NewTextContent(core.RoleAssistant, "two")}}},
	)

	respCh1, errCh1 := m.Generate(context.Background(), Request{Instructions: "a"})
	first, err := drain(t, respCh1, errCh1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "one", first[0].Content.Text())

	respCh2, errCh2 := m.Generate(context.Background(), Request{Instructions: "b"})
	second, err := drain(t, respCh2, errCh2)
	require.NoError(t, err)
	assert.Equal(t, "two", second[0].Content.Text())

	respCh3, errCh3 := m.Generate(context.Background(), Request{})
	fallback, err := drain(t, respCh3, errCh3)
	require.NoError(t, err)
	assert.Equal(t, "...", fallback[0].Content.Text())

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "a", reqs[0].Instructions)
	assert.Equal(t, "b", reqs[1].Instructions)
}

func TestMockModel_Error(t *testing.T) {
	m := NewMockModel("mock")
	boom := errors.New("boom")
	m.AddTurn(MockTurn{Err: boom})

	respCh4, errCh4 := m.Generate(context.Background(), Request{})
	out, err := drain(t, respCh4, errCh4)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, boom)
}

func TestMockModel_BlockUntilCancelled(t *testing.T) {
	m := NewMockModel("mock")
	m.AddTurn(MockTurn{Block: true})

	ctx, cancel := context.WithCancel(context.Background())
	respCh, errCh := m.Generate(ctx, Request{})
	cancel()

	_, err := drain(t, respCh, errCh)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockModel_Info(t *testing.T) {
	info := NewMockModel("scripted").Info()
	assert.Equal(t, "scripted", info.Name)
	assert.Equal(t, "mock", info.Provider)
	assert.True(t, info.SupportsTools)
}

func TestSend_StopsOnCancel(t *testing.T) {
	out := make(chan Response, 1)
	ctx, cancel := context.WithCancel(context.Background())

	assert.True(t, Send(ctx, out, Response{ID: "1"}))
	cancel()
	// The buffer is full, so only the cancelled context can unblock the send.
	assert.False(t, Send(ctx, out, Response{ID: "2"}))
	assert.Equal(t, "1", (<-out).ID)
}
