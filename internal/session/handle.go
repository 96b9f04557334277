package session

import (
	"sync"

	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Handle is the in-memory shadow of one interview session. All mutable
// per-session state (dialogue state, history, current question) lives here
// behind a single lock, so concurrent ingest and dialogue tasks see a
// consistent view without fine-grained field locks.
type Handle struct {
	Session *types.Session

	mu              sync.RWMutex
	state           types.DialogueState
	history         []types.ConversationTurn
	currentQuestion *types.Question
	closed          bool
	refs            int

	// turnMu serializes turn progression: at most one evaluation/next-
	// question cycle runs per session at any time.
	turnMu sync.Mutex
}

func newHandle(record *types.Session) *Handle {
	state := types.StateAwaitingFirstQuestion
	if record.Finished {
		state = types.StateFinished
	}
	return &Handle{
		Session: record,
		state:   state,
		refs:    1,
	}
}

// State returns the current dialogue state.
func (h *Handle) State() types.DialogueState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// SetState transitions the dialogue state unconditionally.
func (h *Handle) SetState(state types.DialogueState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
}

// Advance transitions from one state to another only when the session is
// currently in the expected state. Returns false when the transition lost.
func (h *Handle) Advance(from, to types.DialogueState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return false
	}
	h.state = to
	return true
}

// AppendTurn appends one entry to the conversation history. History is
// append-only for the session's lifetime.
func (h *Handle) AppendTurn(role, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, types.ConversationTurn{Role: role, Text: text})
}

// History returns a copy of the conversation history in turn order.
func (h *Handle) History() []types.ConversationTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.ConversationTurn, len(h.history))
	copy(out, h.history)
	return out
}

// SetCurrentQuestion records the question most recently asked.
func (h *Handle) SetCurrentQuestion(q *types.Question) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentQuestion = q
}

// CurrentQuestion returns the question most recently asked, or nil before
// the first question is generated.
func (h *Handle) CurrentQuestion() *types.Question {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentQuestion
}

// LockTurn acquires the per-session turn lock.
func (h *Handle) LockTurn() { h.turnMu.Lock() }

// UnlockTurn releases the per-session turn lock.
func (h *Handle) UnlockTurn() { h.turnMu.Unlock() }

// Closed reports whether the registry has dropped this handle. The dialogue
// controller checks it at every entry point so in-flight analysis results
// arriving after the last disconnect are dropped instead of progressing a
// dead session.
func (h *Handle) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Handle) markClosed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *Handle) addRef() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
	return h.refs
}

func (h *Handle) dropRef() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
	return h.refs
}
