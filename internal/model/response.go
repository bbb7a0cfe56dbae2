package model

// Response is the gateway's client-facing envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail builds a failure envelope with a short reason.
func Fail(message string) Response {
	return Response{Success: false, Message: message}
}
