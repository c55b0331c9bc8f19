package domain

import "time"

// Input summaries recorded for non-text sends. The raw payload is never kept.
const (
	ImageSentSummary = "[Image sent]"
	AudioSentSummary = "[Audio sent]"
)

// Turn is one recorded request/response pair. A turn exists only for calls
// that produced a non-empty response; failed calls never record one.
type Turn struct {
	Timestamp    time.Time `json:"timestamp"`
	InputSummary string    `json:"inputSummary"`
	ResponseText string    `json:"responseText"`
}

// Conversation is the ordered turn history for one logical conversation,
// independent of which provider produced each response. It survives
// reconnections: only an explicit new-session or a fresh (non-reconnection)
// initialize starts a new one.
type Conversation struct {
	SessionID string `json:"sessionId"`
	Turns     []Turn `json:"history"`
}
