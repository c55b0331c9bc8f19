package domain

// Result is the uniform envelope every boundary operation returns. Adapter
// and router internals use (value, error) pairs; conversion to this wire
// shape happens once, at the outermost layer, so no provider-specific error
// object ever crosses the boundary.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps successful data in the boundary envelope.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Err converts an error into the boundary envelope. The message is the
// human-readable text; the kind taxonomy stays internal.
func Err(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{Success: false, Error: err.Error()}
}
