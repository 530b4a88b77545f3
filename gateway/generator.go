package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/history"
	"github.com/BaSui01/voicerelay/llm"
	"github.com/BaSui01/voicerelay/types"
	"go.uber.org/zap"
)

// ResponseGenerator 是回复生成网关。
// 会话历史只在生成成功后追加 (user, assistant) 两轮并裁剪到最近 maxTurns 轮；
// 同一会话的生成通过 history.Store.Update 串行执行。
type ResponseGenerator struct {
	state
	cfg      config.LLMConfig
	maxTurns int
	store    history.Store
	injected llm.Provider

	clientMu sync.RWMutex
	client   llm.Provider
}

// NewResponseGenerator 创建回复生成网关
func NewResponseGenerator(cfg config.LLMConfig, maxTurns int, store history.Store, creds config.Credentials, logger *zap.Logger, opts ...Option) *ResponseGenerator {
	o := buildOptions(opts)
	g := &ResponseGenerator{cfg: cfg, maxTurns: maxTurns, store: store, injected: o.chat}
	g.init("response_generator", cfg.DefaultProvider, types.ErrLLM, cfg.Timeout, creds, logger)
	g.observer = o.observer
	return g
}

// Initialize 校验凭证并构造 LLM 客户端
func (g *ResponseGenerator) Initialize(ctx context.Context) error {
	key, err := g.apiKey()
	if err != nil {
		return g.finishInit(err)
	}
	if g.store == nil {
		return g.finishInit(types.NewError(types.ErrConfiguration, "history store is required").WithStage("initialize"))
	}

	provider := g.injected
	if provider == nil {
		if g.provider != config.ProviderOpenAI {
			return g.finishInit(types.Errorf(types.ErrConfiguration,
				"unsupported llm provider %q", g.provider).WithStage("initialize"))
		}
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  key,
			BaseURL: g.cfg.BaseURL,
			Model:   g.cfg.Model,
			Timeout: g.timeout,
		}, g.logger)
	}

	g.clientMu.Lock()
	g.client = provider
	g.clientMu.Unlock()
	return g.finishInit(nil)
}

// messages 组装 system prompt + 历史 + 当前话语
func (g *ResponseGenerator) messages(turns []types.Turn, text string) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)+2)
	if g.cfg.SystemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: g.cfg.SystemPrompt})
	}
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: llm.Role(t.Role), Content: t.Text})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: text})
}

// Generate 为 sessionID 生成回复。失败时历史保持不变。
func (g *ResponseGenerator) Generate(ctx context.Context, text, sessionID string) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.NewError(types.ErrLLM, "utterance is empty").WithStage("generate").WithProvider(g.provider)
	}
	if sessionID == "" {
		return "", types.NewError(types.ErrSession, "session id is required").WithStage("generate")
	}

	g.clientMu.RLock()
	provider := g.client
	g.clientMu.RUnlock()

	var reply string
	err := g.store.Update(ctx, sessionID, func(turns []types.Turn) ([]types.Turn, error) {
		callCtx, cancel := g.withTimeout(ctx)
		defer cancel()

		start := time.Now()
		resp, err := provider.Completion(callCtx, &llm.ChatRequest{
			Model:       g.cfg.Model,
			Messages:    g.messages(turns, text),
			MaxTokens:   g.cfg.MaxTokens,
			Temperature: float32(g.cfg.Temperature),
		})
		if err == nil {
			reply, err = llm.ReplyText(resp)
		}
		g.observer.ObserveProviderCall(g.name, g.provider, time.Since(start), err)
		if err != nil {
			return nil, g.wrap(callCtx, "generate", err)
		}
		g.observer.ObserveLLMUsage(g.provider, resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		next := append(turns, types.UserTurn(text), types.AssistantTurn(reply))
		return history.Trim(next, g.maxTurns), nil
	})
	if err != nil {
		if te, ok := types.AsError(err); ok {
			return "", te
		}
		// 历史存储本身失败
		return "", types.NewError(types.ErrLLM, "conversation history unavailable").
			WithCause(err).WithStage("history").WithProvider(g.provider).WithRetryable(true)
	}

	g.logger.Debug("response generated",
		zap.String("session_id", sessionID),
		zap.Int("chars", len(reply)))
	return reply, nil
}

// History 返回会话历史的副本
func (g *ResponseGenerator) History(ctx context.Context, sessionID string) ([]types.Turn, error) {
	if g.store == nil {
		return nil, nil
	}
	return g.store.Load(ctx, sessionID)
}

// ClearHistory 删除会话历史
func (g *ResponseGenerator) ClearHistory(ctx context.Context, sessionID string) error {
	if g.store == nil {
		return nil
	}
	return g.store.Delete(ctx, sessionID)
}
