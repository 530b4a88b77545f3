package llm

import (
	"fmt"
	"strings"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// ReplyText 返回首个选项去除首尾空白后的文本；没有选项或文本为空时返回 ErrEmptyResponse
func ReplyText(resp *ChatResponse) (string, error) {
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", &Error{Code: ErrEmptyResponse, Message: err.Error(), Provider: providerOf(resp)}
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", &Error{Code: ErrEmptyResponse, Message: "model returned an empty reply", Provider: providerOf(resp)}
	}
	return text, nil
}

func providerOf(resp *ChatResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Provider
}
