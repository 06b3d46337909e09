package relay

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every failed relay request. Code is one of
// the chat.Code values.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
}
