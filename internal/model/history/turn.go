package history

import "time"

// Role tags a message in the conversation context.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted user utterance and assistant reply.
type Turn struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"sessionId"`
	UserText        string    `json:"userText"`
	DetectedEmotion string    `json:"detectedEmotion"`
	AIResponse      string    `json:"aiResponse"`
	Timestamp       time.Time `json:"timestamp"`
}

// Message is a role-tagged entry of the context handed to the generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToMessages expands turns (oldest first) into user/assistant pairs.
// Empty sides are skipped.
func ToMessages(turns []Turn) []Message {
	messages := make([]Message, 0, len(turns)*2)
	for _, t := range turns {
		if t.UserText != "" {
			messages = append(messages, Message{Role: RoleUser, Content: t.UserText})
		}
		if t.AIResponse != "" {
			messages = append(messages, Message{Role: RoleAssistant, Content: t.AIResponse})
		}
	}
	return messages
}
