package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/internal/testutil"
	"github.com/hupe1980/tictacmesh/model"
	"github.com/hupe1980/tictacmesh/orchestrator"
	"github.com/hupe1980/tictacmesh/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmitter struct{ mock.Mock }

func (m *mockEmitter) Emit(ctx context.Context, n core.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func newRelay(t *testing.T, regOpts ...func(o *session.Options)) (*Relay, *model.MockModel) {
	t.Helper()
	m := model.NewMockModel("mock")
	o := orchestrator.New(m, func(opts *orchestrator.Options) { opts.PostGameCommentary = false })
	reg := session.NewRegistry(append([]func(o *session.Options){
		func(opts *session.Options) { opts.Binder = o.Bind },
	}, regOpts...)...)
	t.Cleanup(reg.Close)
	return New(reg, o), m
}

// flush waits until every job queued so far for id has run.
func flush(t *testing.T, r *Relay, id string) {
	t.Helper()
	gs, ok := r.Registry().Get(id)
	require.True(t, ok)
	done, err := gs.Submit(func(context.Context) {})
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session queue did not drain")
	}
}

func TestConnect_SendsInitialBoard(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()

	require.NoError(t, r.Dispatch("sid", EventConnect, nil, rec))
	flush(t, r, "sid")

	require.Equal(t, []core.Kind{core.KindBoardUpdate}, rec.Kinds())
	bu := rec.All()[0].Payload.(core.BoardUpdate)
	assert.Equal(t, game.Board{}, bu.Board)
	assert.Equal(t, game.First, bu.Current)
	assert.Empty(t, m.Requests())
}

func TestHumanMove_TriggersAgent(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()
	m.AddTurn(
		testutil.NewTurnBuilder().Text("Predictable.").Move(0).Build(),
		testutil.NewTurnBuilder().Text("Go on.").Build(),
	)

	require.NoError(t, r.Dispatch("sid", EventUserMove, map[string]any{"position": 4}, rec))
	flush(t, r, "sid")

	kinds := rec.Kinds()
	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, core.KindMoveResult, kinds[0])
	assert.Equal(t, core.KindBoardUpdate, kinds[1])

	results := rec.OfKind(core.KindMoveResult)
	require.Len(t, results, 2)
	assert.Equal(t, game.First, results[0].Payload.(core.MoveResult).Player)
	assert.Equal(t, game.Second, results[1].Payload.(core.MoveResult).Player)

	gs, _ := r.Registry().Get("sid")
	assert.Equal(t, 2, gs.Engine.Snapshot().Count())
	assert.Equal(t, game.First, gs.Engine.CurrentPlayer())
}

func TestHumanMove_AliasAndJSONPayload(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()
	m.AddTurn(testutil.NewTurnBuilder().Move(8).Build())

	require.NoError(t, r.Dispatch("sid", EventHumanMove, json.RawMessage(`{"position":0}`), rec))
	flush(t, r, "sid")

	assert.Equal(t, 2, rec.Count(core.KindMoveResult))
}

func TestHumanMove_RejectedDoesNotTriggerAgent(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()

	require.NoError(t, r.Dispatch("sid", EventUserMove, map[string]any{"position": 9}, rec))
	flush(t, r, "sid")

	require.Equal(t, []core.Kind{core.KindMoveResult}, rec.Kinds())
	mr := rec.All()[0].Payload.(core.MoveResult)
	assert.False(t, mr.Success)
	assert.Equal(t, "out_of_bounds", mr.Reason)
	assert.Equal(t, "Invalid position: 9 (must be 0-8).", mr.Message)
	assert.Empty(t, m.Requests())
}

func TestMalformedPayloadsNeverReachTheBoard(t *testing.T) {
	cases := []struct {
		name    string
		event   string
		payload any
	}{
		{"missing position", EventUserMove, map[string]any{}},
		{"string position", EventUserMove, map[string]any{"position": "4"}},
		{"fractional position", EventUserMove, map[string]any{"position": 1.5}},
		{"nil payload", EventUserMove, nil},
		{"not an object", EventUserMove, []int{4}},
		{"unknown event", "FLIP_TABLE", map[string]any{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, m := newRelay(t)
			rec := testutil.NewRecorder()

			err := r.Dispatch("sid", tc.event, tc.payload, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrProtocol)

			require.Equal(t, []core.Kind{core.KindError}, rec.Kinds())
			assert.Equal(t, "protocol_error", rec.All()[0].Payload.(core.ErrorPayload).Code)
			assert.Empty(t, m.Requests())

			if gs, ok := r.Registry().Get("sid"); ok {
				assert.Empty(t, gs.Engine.History())
			}
		})
	}
}

func TestPostGameQuery_RequiresSession(t *testing.T) {
	r, m := newRelay(t)
	em := &mockEmitter{}
	em.On("Emit", mock.Anything, mock.MatchedBy(func(n core.Notification) bool {
		p, ok := n.Payload.(core.ErrorPayload)
		return n.Kind == core.KindError && ok && p.Code == "session_missing"
	})).Return(nil).Once()

	err := r.Dispatch("ghost", EventPostGameQuery, map[string]any{"query": "gg?"}, em)
	assert.ErrorIs(t, err, core.ErrSessionLifecycle)
	em.AssertExpectations(t)
	assert.Empty(t, m.Requests())
	assert.Equal(t, 0, r.Registry().Len())
}

func TestPostGameQuery_RoutesToAgent(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()
	m.AddTurn(testutil.NewTurnBuilder().Text("You never stood a chance.").Build())

	require.NoError(t, r.Dispatch("sid", EventConnect, nil, rec))
	require.NoError(t, r.Dispatch("sid", EventPostGameQuery, map[string]any{"query": "  rematch?  "}, rec))
	flush(t, r, "sid")

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "rematch?", reqs[0].Contents[len(reqs[0].Contents)-1].Text())
	assert.Equal(t, 1, rec.Count(core.KindAgentNarration))
}

func TestPostGameQuery_EmptyIsProtocolError(t *testing.T) {
	r, _ := newRelay(t)
	rec := testutil.NewRecorder()

	err := r.Dispatch("sid", EventPostGameQuery, map[string]any{"query": "   "}, rec)
	assert.ErrorIs(t, err, core.ErrProtocol)
	assert.Equal(t, 1, rec.Count(core.KindError))
}

func TestReset_InterruptsAgentAndClearsBoard(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()
	m.AddTurn(testutil.NewTurnBuilder().Text("Let me ponder...").Block().Build())

	require.NoError(t, r.Dispatch("sid", EventUserMove, map[string]any{"position": 4}, rec))
	require.True(t, rec.WaitFor(core.KindAgentNarration, 1, 2*time.Second))

	require.NoError(t, r.Dispatch("sid", EventGameReset, nil, rec))
	flush(t, r, "sid")

	gs, _ := r.Registry().Get("sid")
	assert.Equal(t, 0, gs.Engine.Snapshot().Count())
	assert.Empty(t, gs.Engine.History())
	assert.Zero(t, rec.Count(core.KindError))

	all := rec.All()
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, core.KindBoardUpdate, all[len(all)-2].Kind)
	assert.Equal(t, core.KindStatus, all[len(all)-1].Kind)
}

func TestReset_AgentStartsWhenConfigured(t *testing.T) {
	r, m := newRelay(t, func(o *session.Options) { o.StartingPlayer = game.Second })
	rec := testutil.NewRecorder()
	m.AddTurn(testutil.NewTurnBuilder().Move(4).Build())

	require.NoError(t, r.Dispatch("sid", EventRestartGame, nil, rec))
	flush(t, r, "sid")

	gs, _ := r.Registry().Get("sid")
	owner, ok := gs.Engine.Snapshot()[4].Owner()
	require.True(t, ok)
	assert.Equal(t, game.Second, owner)
}

func TestDisconnect_TearsDownAndCancels(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()
	m.AddTurn(testutil.NewTurnBuilder().Text("Hmm").Block().Build())

	require.NoError(t, r.Dispatch("sid", EventUserMove, map[string]any{"position": 0}, rec))
	require.True(t, rec.WaitFor(core.KindAgentNarration, 1, 2*time.Second))

	require.NoError(t, r.Dispatch("sid", EventDisconnect, nil, nil))
	assert.Equal(t, 0, r.Registry().Len())

	before := len(rec.All())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.All(), before, "nothing is relayed after teardown")
	assert.Zero(t, rec.Count(core.KindError))

	// Idempotent.
	r.Disconnect("sid")
}

func TestGameOverFlow(t *testing.T) {
	r, m := newRelay(t)
	rec := testutil.NewRecorder()
	// Agent answers 3, 4 and then does nothing useful while O completes the top row.
	m.AddTurn(
		testutil.NewTurnBuilder().Move(3).Build(),
		testutil.NewTurnBuilder().Text("ok").Build(),
		testutil.NewTurnBuilder().Move(4).Build(),
		testutil.NewTurnBuilder().Text("ok").Build(),
	)

	for _, pos := range []int{0, 1, 2} {
		require.NoError(t, r.Dispatch("sid", EventUserMove, map[string]any{"position": pos}, rec))
		flush(t, r, "sid")
	}

	overs := rec.OfKind(core.KindGameOver)
	require.Len(t, overs, 1)
	assert.Equal(t, core.ResultHumanWins, overs[0].Payload.(core.GameOver).Result)

	// A further move is rejected as terminal state.
	require.NoError(t, r.Dispatch("sid", EventUserMove, map[string]any{"position": 5}, rec))
	flush(t, r, "sid")
	last := rec.OfKind(core.KindMoveResult)
	assert.Equal(t, "terminal_state", last[len(last)-1].Payload.(core.MoveResult).Reason)
	assert.Len(t, rec.OfKind(core.KindGameOver), 1)
}

func TestReject_QueuedBehindRunningWork(t *testing.T) {
	r, _ := newRelay(t)
	rec := testutil.NewRecorder()
	require.NoError(t, r.Dispatch("sid", EventConnect, nil, rec))
	flush(t, r, "sid")
	rec.Reset()

	gs, ok := r.Registry().Get("sid")
	require.True(t, ok)
	release := make(chan struct{})
	_, err := gs.Submit(func(context.Context) { <-release })
	require.NoError(t, err)

	err = r.Dispatch("sid", "FLIP_TABLE", nil, rec)
	assert.ErrorIs(t, err, core.ErrProtocol)
	assert.Zero(t, rec.Count(core.KindError))

	close(release)
	flush(t, r, "sid")
	require.Equal(t, []core.Kind{core.KindError}, rec.Kinds())
	assert.Equal(t, "protocol_error", rec.All()[0].Payload.(core.ErrorPayload).Code)
}
