package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/answer-agent/pkg/research"
)

// Entry is one completed research cycle in a conversation.
type Entry struct {
	ID        uuid.UUID                `json:"id"`
	Query     string                   `json:"query"`
	Result    *research.ResearchResult `json:"result"`
	CreatedAt time.Time                `json:"created_at"`
}

// Transcript is the append-only conversation history. It lives for the
// process lifetime and is cleared only on explicit command.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records one query and its result.
func (t *Transcript) Append(query string, result *research.ResearchResult) Entry {
	entry := Entry{
		ID:        uuid.New(),
		Query:     query,
		Result:    result,
		CreatedAt: time.Now(),
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// Entries returns a copy of the history in insertion order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops the whole history.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}
