package gateway

import (
	"github.com/BaSui01/voicerelay/llm"
	"github.com/BaSui01/voicerelay/speech"
)

type options struct {
	observer Observer
	stt      speech.STTProvider
	tts      speech.TTSProvider
	chat     llm.Provider
}

// Option 配置网关
type Option func(*options)

// WithObserver 设置服务商调用观察者（通常是 Prometheus 收集器）
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithSTTProvider 使用给定的 STT 客户端，跳过按配置构造
func WithSTTProvider(p speech.STTProvider) Option {
	return func(opts *options) { opts.stt = p }
}

// WithTTSProvider 使用给定的 TTS 客户端，跳过按配置构造
func WithTTSProvider(p speech.TTSProvider) Option {
	return func(opts *options) { opts.tts = p }
}

// WithChatProvider 使用给定的 LLM 客户端，跳过按配置构造
func WithChatProvider(p llm.Provider) Option {
	return func(opts *options) { opts.chat = p }
}

func buildOptions(opts []Option) options {
	o := options{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
