package types

import "time"

// Role 表示对话轮次的发言方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 是会话历史中的一条不可变记录。
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserTurn creates a user turn.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// AssistantTurn creates an assistant turn.
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// TranscriptionResult 是一次语音转写的结果，创建后不再修改。
type TranscriptionResult struct {
	Text       string        `json:"text"`
	IsFinal    bool          `json:"is_final"`
	Confidence float64       `json:"confidence"`
	Language   string        `json:"language"`
	Duration   time.Duration `json:"-"`
}
