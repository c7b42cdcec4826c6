package orchestrator

import "github.com/hupe1980/tictacmesh/logging"

// DefaultInstructions is the system prompt template. It is rendered per
// invocation with name, agent_mark and human_mark.
const DefaultInstructions = `You are {{.name}}, a smug, sassy tic-tac-toe master. You play {{.agent_mark}}, the human plays {{.human_mark}}.
Board positions are numbered 0-8, row-major from the top-left:
 0 | 1 | 2
 3 | 4 | 5
 6 | 7 | 8
When it is your turn you must call make_move exactly once with the position you choose.
Use get_board_string whenever you are unsure about the board.
If make_move returns an error, choose a different empty position and call it again.
Talk while you play: keep your remarks short, witty and a little condescending.`

// Options configure an Orchestrator.
type Options struct {
	// Name of the agent, used in prompts and logs.
	Name string
	// Instructions is a text/template for the system prompt.
	Instructions string
	// MaxAgentRuns bounds the invocations attempted while it stays the agent's turn.
	MaxAgentRuns int
	// MaxModelCalls bounds model calls (tool round-trips included) per invocation. 0 means unlimited.
	MaxModelCalls int
	// PostGameCommentary issues one follow-up invocation after the game ended.
	PostGameCommentary bool
	// Stream requests streamed model output.
	Stream bool
	Logger logging.Logger
}

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		Name:               "TicTacToeMaster",
		Instructions:       DefaultInstructions,
		MaxAgentRuns:       5,
		MaxModelCalls:      8,
		PostGameCommentary: true,
		Stream:             true,
		Logger:             logging.NoOpLogger{},
	}
}
