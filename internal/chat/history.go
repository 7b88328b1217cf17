package chat

import "github.com/ziadkadry99/medicrypt/internal/llm"

// History is the persisted conversation of one session. It starts with the
// seed system prompt and only grows by appends.
type History struct {
	msgs []llm.Message
}

// NewHistory creates a history seeded with a system prompt.
func NewHistory(seed string) *History {
	return &History{msgs: []llm.Message{{Role: llm.RoleSystem, Content: seed}}}
}

// Len returns the number of messages, seed included.
func (h *History) Len() int { return len(h.msgs) }

// Messages returns a copy of the history.
func (h *History) Messages() []llm.Message {
	return append([]llm.Message(nil), h.msgs...)
}

// appendTurn adds one user message and its reply.
func (h *History) appendTurn(user, assistant string) {
	h.msgs = append(h.msgs,
		llm.Message{Role: llm.RoleUser, Content: user},
		llm.Message{Role: llm.RoleAssistant, Content: assistant},
	)
}

// outbound builds the request sequence for a turn: the seed prompt, the
// per-turn context message, the rest of the history, then the new user
// message. The context message is not stored.
func (h *History) outbound(contextMsg llm.Message, user string) []llm.Message {
	out := make([]llm.Message, 0, len(h.msgs)+2)
	out = append(out, h.msgs[0], contextMsg)
	out = append(out, h.msgs[1:]...)
	return append(out, llm.Message{Role: llm.RoleUser, Content: user})
}
