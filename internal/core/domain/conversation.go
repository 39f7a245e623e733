package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

type QueryRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
}

// QueryAnswer is the body of POST /query. Answer is empty when absent.
type QueryAnswer struct {
	Answer  string   `json:"answer,omitempty"`
	Sources []string `json:"sources,omitempty"`
}
