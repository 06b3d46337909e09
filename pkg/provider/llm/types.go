package llm

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a completion exchange.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser] or [RoleAssistant].
	Role string

	// Content is the text content of the message.
	Content string
}
