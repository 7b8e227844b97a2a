package models

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one committed chat turn half. Only Role and Content are sent to
// the completion provider.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{Role: role, Content: content, CreatedAt: at}
}
