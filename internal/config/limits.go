package config

import "time"

const (
	// MaxTextMessageLength caps a single text send. Long prompts belong in
	// the system prompt, not in a turn; this also bounds what the
	// conversation log holds in memory.
	MaxTextMessageLength = 8000

	// MinImagePayloadBytes is the minimum plausible base64 length for a
	// JPEG screenshot. Anything shorter is a truncated or empty capture and
	// is rejected before any network call.
	MinImagePayloadBytes = 100

	// DefaultRequestTimeout bounds every outbound backend call. Expiry maps
	// to a network error, distinct from a vendor-reported backend error.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultReconnectMaxAttempts bounds automatic reconnection of a
	// streaming session before the supervisor gives up.
	DefaultReconnectMaxAttempts = 3

	// DefaultReconnectBaseDelay is the fixed wait between reconnection
	// attempts. The interval does not grow.
	DefaultReconnectBaseDelay = 2 * time.Second

	// DefaultLogMaxFiles is how many timestamped server logs to keep when
	// file logging is enabled.
	DefaultLogMaxFiles = 5
)
