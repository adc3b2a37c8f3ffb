package types

// SuccessEnvelope wraps every successful response. Status is "success" or
// "warning" when a best-effort side effect failed after commit.
type SuccessEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope mirrors SuccessEnvelope so callers always read status and message.
type ErrorEnvelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}
