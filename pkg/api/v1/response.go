// Package v1 defines the wire types for the agentdeck HTTP API.
package v1

// Response is the envelope returned by every HTTP endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a success envelope.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Err wraps an error message in a failure envelope.
func Err(message string) Response {
	return Response{Success: false, Error: message}
}
