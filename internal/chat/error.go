// Package chat defines the failure taxonomy shared by the relay endpoint and
// its clients, and the direct client used by the client-only variant.
package chat

import "fmt"

// Code classifies a failed chat exchange.
type Code string

const (
	// CodeInvalidRequest: the message was missing, blank or not JSON.
	CodeInvalidRequest Code = "invalid_request"

	// CodeNotConfigured: no usable upstream credential.
	CodeNotConfigured Code = "not_configured"

	// CodeInvalidAPIKey: the upstream rejected the credential.
	CodeInvalidAPIKey Code = "invalid_api_key"

	// CodeUpstream: the upstream answered with another non-success status.
	CodeUpstream Code = "upstream_error"

	// CodeProcessing: network or decoding failure.
	CodeProcessing Code = "processing_error"
)

// User-facing messages for each failure.
const (
	MsgInvalidRequest = "Message is required"
	MsgNotConfigured  = "Server not configured. Please add a valid Groq API key to the .env file."
	MsgInvalidAPIKey  = "Invalid API key. Please check your Groq API key in the .env file."
	MsgProcessing     = "Sorry, I encountered an error while processing your request. Please try again."
)

// UpstreamMessage formats the message for [CodeUpstream].
func UpstreamMessage(status int, upstreamMsg string) string {
	if upstreamMsg == "" {
		upstreamMsg = "Unknown error"
	}
	return fmt.Sprintf("Upstream API error: %d - %s", status, upstreamMsg)
}

// Error is a classified chat failure.
type Error struct {
	Code    Code
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("chat: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Misconfigured reports whether the failure calls for credential setup.
func (e *Error) Misconfigured() bool {
	return e.Code == CodeNotConfigured || e.Code == CodeInvalidAPIKey
}
