package chat

import (
	"fmt"

	"github.com/ziadkadry99/medicrypt/internal/llm"
)

// Usage accumulates token counts over a session.
type Usage struct {
	Model        string
	Turns        int
	InputTokens  int
	OutputTokens int
}

// add counts one completed turn. Providers that report no usage are
// estimated from the message text.
func (u *Usage) add(resp *llm.CompletionResponse, sent []llm.Message) {
	u.Turns++
	in, out := resp.InputTokens, resp.OutputTokens
	if in == 0 {
		for _, m := range sent {
			in += llm.EstimateTokens(m.Content)
		}
	}
	if out == 0 {
		out = llm.EstimateTokens(resp.Content)
	}
	u.InputTokens += in
	u.OutputTokens += out
	if u.Model == "" {
		u.Model = resp.Model
	}
}

// Cost estimates the session cost in USD. Unknown models cost 0.
func (u Usage) Cost() float64 {
	return llm.EstimateCost(u.Model, u.InputTokens, u.OutputTokens)
}

// String formats the usage for the end-of-session summary.
func (u Usage) String() string {
	return fmt.Sprintf("%d turn(s), %d input / %d output tokens, estimated cost $%.4f",
		u.Turns, u.InputTokens, u.OutputTokens, u.Cost())
}
