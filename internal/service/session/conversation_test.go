package session

import (
	"testing"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

func TestLogAppendOrdersTurns(t *testing.T) {
	log := NewLog()

	log.Append("hello", "hi")
	turn, snapshot := log.Append(domain.ImageSentSummary, "a login form")

	if turn.InputSummary != domain.ImageSentSummary || turn.ResponseText != "a login form" {
		t.Errorf("Append() returned turn %+v", turn)
	}
	if len(snapshot.Turns) != 2 {
		t.Fatalf("snapshot has %d turns, want 2", len(snapshot.Turns))
	}
	if snapshot.Turns[0].InputSummary != "hello" {
		t.Errorf("turns out of order: first = %q", snapshot.Turns[0].InputSummary)
	}
	if snapshot.Turns[1].Timestamp.Before(snapshot.Turns[0].Timestamp) {
		t.Error("second turn timestamped before the first")
	}
}

func TestLogStartNewResetsHistory(t *testing.T) {
	log := NewLog()
	log.Append("hello", "hi")
	before := log.Snapshot()

	conv := log.StartNew()
	if conv.SessionID == before.SessionID {
		t.Error("StartNew() reused the previous session id")
	}
	if len(conv.Turns) != 0 {
		t.Errorf("StartNew() returned %d turns, want 0", len(conv.Turns))
	}
	if got := log.Snapshot(); len(got.Turns) != 0 {
		t.Errorf("Snapshot() after StartNew has %d turns, want 0", len(got.Turns))
	}
}

func TestLogSnapshotIsACopy(t *testing.T) {
	log := NewLog()
	log.Append("hello", "hi")

	snapshot := log.Snapshot()
	snapshot.Turns[0].ResponseText = "mutated"

	if got := log.Snapshot(); got.Turns[0].ResponseText != "hi" {
		t.Errorf("mutating a snapshot leaked into the log: %q", got.Turns[0].ResponseText)
	}
}

func TestLogMintsSessionIDLazily(t *testing.T) {
	log := NewLog()
	first := log.Snapshot()
	if first.SessionID == "" {
		t.Fatal("Snapshot() on a fresh log has no session id")
	}
	if second := log.Snapshot(); second.SessionID != first.SessionID {
		t.Error("session id changed between snapshots without StartNew")
	}
}
