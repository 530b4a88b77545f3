package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/llm"
	"github.com/BaSui01/voicerelay/speech"
)

var testCreds = config.Credentials{
	OpenAIAPIKey:     "sk-test",
	DeepgramAPIKey:   "dg-test",
	ElevenLabsAPIKey: "xi-test",
}

type fakeSTT struct {
	mu    sync.Mutex
	last  *speech.STTRequest
	resp  *speech.STTResponse
	err   error
	delay time.Duration
}

func (f *fakeSTT) Name() string { return "fake-stt" }

func (f *fakeSTT) Transcribe(ctx context.Context, req *speech.STTRequest) (*speech.STTResponse, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeTTS struct {
	audio []byte
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &speech.TTSResponse{Provider: "fake", Audio: f.audio, Format: "mp3"}, nil
}

// fakeChat 回显最后一条用户消息；reply 非空时返回固定回复
type fakeChat struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest
	reply    string
	err      error
	delay    time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeChat) Name() string { return "fake-llm" }

func (f *fakeChat) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (f *fakeChat) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if reply == "" {
		reply = "echo: " + req.Messages[len(req.Messages)-1].Content
	}
	return &llm.ChatResponse{
		Provider: "fake",
		Model:    req.Model,
		Choices:  []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: reply}}},
		Usage:    llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5},
	}, nil
}

func (f *fakeChat) lastRequest() *llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type recordingObserver struct {
	mu     sync.Mutex
	calls  []string
	tokens int
}

func (o *recordingObserver) ObserveProviderCall(component, provider string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.calls = append(o.calls, component+"/"+provider+"/"+status)
}

func (o *recordingObserver) ObserveLLMUsage(_, _ string, prompt, completion int) {
	o.mu.Lock()
	o.tokens += prompt + completion
	o.mu.Unlock()
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}
