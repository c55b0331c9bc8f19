package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// Log is the append-only turn history for the current logical conversation.
// It is provider-independent and survives reconnections; only StartNew (or
// the first access) mints a fresh conversation id.
type Log struct {
	mu      sync.Mutex
	current domain.Conversation
}

func NewLog() *Log {
	return &Log{}
}

// StartNew discards the current history and mints a new conversation id.
func (l *Log) StartNew() domain.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = domain.Conversation{SessionID: uuid.NewString()}
	return l.snapshotLocked()
}

// Append records one completed turn and returns it together with a snapshot
// of the full history. Callers only append after obtaining a non-empty
// response; failed calls never reach this point.
func (l *Log) Append(inputSummary, responseText string) (domain.Turn, domain.Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLocked()
	turn := domain.Turn{
		Timestamp:    time.Now(),
		InputSummary: inputSummary,
		ResponseText: responseText,
	}
	l.current.Turns = append(l.current.Turns, turn)
	return turn, l.snapshotLocked()
}

// Snapshot returns a copy of the current conversation.
func (l *Log) Snapshot() domain.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLocked()
	return l.snapshotLocked()
}

func (l *Log) ensureLocked() {
	if l.current.SessionID == "" {
		l.current = domain.Conversation{SessionID: uuid.NewString()}
	}
}

func (l *Log) snapshotLocked() domain.Conversation {
	turns := make([]domain.Turn, len(l.current.Turns))
	copy(turns, l.current.Turns)
	return domain.Conversation{SessionID: l.current.SessionID, Turns: turns}
}
