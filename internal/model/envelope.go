package model

// APIResponse is the envelope every endpoint responds with.
// Success implies Data is set when the endpoint returns a payload;
// failure implies Error holds a human-readable cause.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	// Err classifies failures produced on the client side (network, auth
	// expiry, cancellation). It is nil for envelopes decoded from the backend.
	Err error `json:"-"`
}

// OK builds a success envelope.
func OK[T any](data T, message string) APIResponse[T] {
	return APIResponse[T]{Success: true, Data: data, Message: message}
}

// Fail builds a failure envelope.
func Fail[T any](msg string) APIResponse[T] {
	return APIResponse[T]{Success: false, Error: msg}
}
