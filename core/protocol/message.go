// Package protocol defines the conversation message types and the streaming
// event contract shared by the backend adapters and the session controller.
package protocol

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation. System messages
// carry the base prompt and assembled retrieval context; user and assistant
// messages form the committed history pairs.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "What is X?")
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}
