package relay

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/voicerelay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain text", "  hello world \n", "hello world", true},
		{"typed envelope", `{"type":"text","data":"hi there"}`, "hi there", true},
		{"typed envelope with object", `{"type":"text","data":{"text":"nested"}}`, "nested", true},
		{"bare text field", `{"text":"short form"}`, "short form", true},
		{"empty", "", "", false},
		{"whitespace", " \t ", "", false},
		{"truncated json is plain text", `{"type":"text"`, `{"type":"text"`, true},
		{"leading brace plain text", "{laughs} hello there", "{laughs} hello there", true},
		{"json string literal", `"hello"`, "hello", true},
		{"json string literal with escapes", `"say \"hi\"\n"`, `say "hi"`, true},
		{"empty json string", `"  "`, "", false},
		{"unterminated quote is plain text", `"hello`, `"hello`, true},
		{"unknown type", `{"type":"ping"}`, "", false},
		{"typed envelope empty data", `{"type":"text","data":"  "}`, "", false},
		{"wrong data type", `{"type":"text","data":42}`, "", false},
		{"text field on other type", `{"type":"control","text":"x"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseText([]byte(tt.in))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseText_RejectsInvalidUTF8(t *testing.T) {
	_, ok := parseText([]byte{'h', 0xc3, 0x28})
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	err := types.NewError(types.ErrTranscription, "deepgram error").
		WithStage("transcribe").
		WithProvider("deepgram").
		WithRetryable(true)

	data, jerr := json.Marshal(errorMessage("fallback", err))
	require.NoError(t, jerr)
	assert.JSONEq(t, `{
		"type": "error",
		"data": {"stage": "transcribe", "code": "TRANSCRIPTION", "message": "deepgram error", "retryable": true}
	}`, string(data))

	// 没有阶段信息时使用调用方给出的阶段
	msg := errorMessage("generate", types.NewError(types.ErrLLM, "empty reply"))
	assert.Equal(t, "generate", msg.Data.(ErrorData).Stage)
}

func TestResponseMessage_EncodesAudioAsBase64(t *testing.T) {
	data, err := json.Marshal(Message{Type: MessageResponse, Data: ResponseData{Text: "ok", Audio: []byte{0x00, 0xff, 0x10}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","data":{"text":"ok","audio":"AP8Q"}}`, string(data))
}

func TestFrameKindString(t *testing.T) {
	assert.Equal(t, "binary", FrameBinary.String())
	assert.Equal(t, "text", FrameText.String())
	assert.Equal(t, "unknown", FrameKind(0).String())
}
