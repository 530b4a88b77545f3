package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/voicerelay/types"
)

// ErrClosed 由 Conn.Read 返回，表示对端已关闭连接
var ErrClosed = errors.New("relay: connection closed")

// FrameKind 入站帧类型
type FrameKind int

const (
	FrameBinary FrameKind = iota + 1 // 原始音频
	FrameText                        // 已完成的文本话语
)

func (k FrameKind) String() string {
	switch k {
	case FrameBinary:
		return "binary"
	case FrameText:
		return "text"
	}
	return "unknown"
}

// Frame 是一条完整的入站消息
type Frame struct {
	Kind FrameKind
	Data []byte
}

// CloseReason 描述连接关闭原因，由传输层映射为具体关闭码
type CloseReason string

const (
	CloseNormal         CloseReason = "normal"
	CloseGoingAway      CloseReason = "going_away"
	CloseSessionExpired CloseReason = "session_expired"
	CloseInternalError  CloseReason = "internal_error"
)

// Conn 是双向消息通道。同一连接上 Read 只被一个 goroutine 调用，
// WriteJSON 只被处理 goroutine 调用；Close 可并发调用。
type Conn interface {
	Read(ctx context.Context) (Frame, error)
	WriteJSON(ctx context.Context, v any) error
	Close(reason CloseReason) error
}

// =============================================================================
// 📤 出站消息
// =============================================================================

const (
	MessageTranscription = "transcription"
	MessageResponse      = "response"
	MessageError         = "error"
)

// Message 是出站 JSON 帧 {"type": ..., "data": ...}
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TranscriptionData 转写回显
type TranscriptionData struct {
	Text       string  `json:"text"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// ResponseData 回复文本与合成音频；Audio 以 base64 编码
type ResponseData struct {
	Text  string `json:"text"`
	Audio []byte `json:"audio"`
}

// ErrorData 单轮失败的确认帧
type ErrorData struct {
	Stage     string `json:"stage"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func transcriptionMessage(r *types.TranscriptionResult) Message {
	return Message{Type: MessageTranscription, Data: TranscriptionData{
		Text:       r.Text,
		IsFinal:    r.IsFinal,
		Confidence: r.Confidence,
		Language:   r.Language,
	}}
}

func errorMessage(stage string, err error) Message {
	data := ErrorData{Stage: stage, Code: "INTERNAL", Message: "internal error"}
	if e, ok := types.AsError(err); ok {
		data.Code = string(e.Code)
		data.Message = e.Message
		data.Retryable = e.Retryable
		if e.Stage != "" {
			data.Stage = e.Stage
		}
	}
	return Message{Type: MessageError, Data: data}
}

// =============================================================================
// 📥 文本帧解析
// =============================================================================

type textEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Text *string         `json:"text"`
}

// parseText 从文本帧中取出话语。支持以下形式：
//
//	{"type":"text","data":"hello"}
//	{"text":"hello"}
//	"hello"
//	hello
//
// 无法解析为 JSON 的内容按纯文本处理（如 "{laughs} hello"）。
// 返回 false 表示帧应被忽略：非法 UTF-8、空白，或不携带文本的 JSON 对象。
func parseText(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", false
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal([]byte(raw), &text); err != nil {
			return raw, true
		}
		text = strings.TrimSpace(text)
		return text, text != ""
	case '{':
	default:
		return raw, true
	}

	var env textEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return raw, true
	}

	var text string
	switch {
	case env.Type == "text" && len(env.Data) > 0:
		if err := json.Unmarshal(env.Data, &text); err != nil {
			var nested struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(env.Data, &nested); err != nil {
				return "", false
			}
			text = nested.Text
		}
	case (env.Type == "" || env.Type == "text") && env.Text != nil:
		text = *env.Text
	default:
		return "", false
	}

	text = strings.TrimSpace(text)
	return text, text != ""
}
