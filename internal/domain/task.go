package domain

import "time"

const (
	TaskTitleMaxLen       = 200
	TaskDescriptionMaxLen = 1000
)

// Task is owned by the backend task service.
type Task struct {
	ID          int       `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaskCreate struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

type ChatRequest struct {
	ConversationID *int   `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
}

type ChatResponse struct {
	ConversationID int        `json:"conversation_id"`
	Response       string     `json:"response"`
	ToolCalls      []ToolCall `json:"tool_calls"`
}
