package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/voicerelay/audio"
	"github.com/BaSui01/voicerelay/session"
	"github.com/BaSui01/voicerelay/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 2 * time.Second

// fakeConn 是内存中的 Conn；关闭 in 模拟对端断开
type fakeConn struct {
	in      chan Frame
	written chan []byte

	closed     chan struct{}
	closeOnce  sync.Once
	closeCalls atomic.Int32
	reason     atomic.Value

	writeErr error
	// closeGate 非空时 Close 阻塞到其关闭，模拟半开对端上的关闭握手
	closeGate chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan Frame, 32),
		written: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) (Frame, error) {
	select {
	case fr, ok := <-f.in:
		if !ok {
			return Frame{}, ErrClosed
		}
		return fr, nil
	case <-f.closed:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (f *fakeConn) WriteJSON(_ context.Context, v any) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.written <- data
	return nil
}

func (f *fakeConn) Close(reason CloseReason) error {
	f.closeCalls.Add(1)
	f.closeOnce.Do(func() {
		f.reason.Store(reason)
		if f.closeGate != nil {
			<-f.closeGate
		}
		close(f.closed)
	})
	return nil
}

func (f *fakeConn) closeReason() CloseReason {
	r, _ := f.reason.Load().(CloseReason)
	return r
}

func (f *fakeConn) sendText(s string)  { f.in <- Frame{Kind: FrameText, Data: []byte(s)} }
func (f *fakeConn) sendAudio(b []byte) { f.in <- Frame{Kind: FrameBinary, Data: b} }
func (f *fakeConn) hangUp()            { close(f.in) }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f *fakeConn) next(t *testing.T) envelope {
	t.Helper()
	select {
	case data := <-f.written:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for outbound message")
		return envelope{}
	}
}

func (f *fakeConn) assertQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case data := <-f.written:
		t.Fatalf("unexpected outbound message: %s", data)
	case <-time.After(d):
	}
}

type fakeTranscriber struct {
	result *types.TranscriptionResult
	err    error
	calls  atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, w *audio.Waveform) (*types.TranscriptionResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &types.TranscriptionResult{Text: "hello there", IsFinal: true, Confidence: 0.93, Language: "en-US"}, nil
}

// fakeGenerator 默认回复 "echo: <text>"；block 非 nil 时阻塞直到 ctx 结束
type fakeGenerator struct {
	mu    sync.Mutex
	texts []string
	err   error
	block chan struct{}

	started  chan string
	canceled chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, text, sessionID string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- text
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			if f.canceled != nil {
				close(f.canceled)
			}
			return "", types.NewError(types.ErrLLM, "request canceled").WithCause(ctx.Err()).WithStage("generate")
		}
	}
	if f.err != nil {
		return "", f.err
	}
	// 给并发检测留出窗口
	time.Sleep(time.Millisecond)
	return "echo: " + text, nil
}

func (f *fakeGenerator) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeSynthesizer struct {
	audio []byte
	err   error
	calls atomic.Int32
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.audio != nil {
		return f.audio, nil
	}
	return []byte("mp3:" + text), nil
}

type recordingObserver struct {
	mu     sync.Mutex
	opened int
	closed int
	frames map[string]int
	turns  map[string]int
	stages map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		frames: make(map[string]int),
		turns:  make(map[string]int),
		stages: make(map[string]int),
	}
}

func (o *recordingObserver) ConnectionOpened() {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
}

func (o *recordingObserver) ConnectionClosed(time.Duration) {
	o.mu.Lock()
	o.closed++
	o.mu.Unlock()
}

func (o *recordingObserver) FrameReceived(kind, outcome string) {
	o.mu.Lock()
	o.frames[kind+"/"+outcome]++
	o.mu.Unlock()
}

func (o *recordingObserver) TurnCompleted(source, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.turns[source+"/"+outcome]++
	o.mu.Unlock()
}

func (o *recordingObserver) StageObserved(stage string, _ time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.mu.Lock()
	o.stages[stage+"/"+status]++
	o.mu.Unlock()
}

func (o *recordingObserver) count(m map[string]int, key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return m[key]
}

type harness struct {
	relay       *Relay
	registry    *session.Registry
	transcriber *fakeTranscriber
	generator   *fakeGenerator
	synthesizer *fakeSynthesizer
	observer    *recordingObserver
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		registry:    session.NewRegistry(time.Hour),
		transcriber: &fakeTranscriber{},
		generator:   &fakeGenerator{},
		synthesizer: &fakeSynthesizer{},
		observer:    newRecordingObserver(),
	}
	r, err := New(Components{
		Registry:    h.registry,
		Normalizer:  audio.NewNormalizer(16000, 1, 1024, 4096),
		Transcriber: h.transcriber,
		Generator:   h.generator,
		Synthesizer: h.synthesizer,
	}, cfg, zaptest.NewLogger(t), WithObserver(h.observer))
	require.NoError(t, err)
	h.relay = r
	return h
}

// serve 打开连接并在后台运行，返回连接与 Serve 的结果通道
func (h *harness) serve(t *testing.T, fc *fakeConn) (*Connection, <-chan error) {
	t.Helper()
	c, err := h.relay.Open()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Serve(context.Background(), fc) }()
	return c, done
}

// waitAttached 等待 Serve 绑定传输层
func waitAttached(t *testing.T, c *Connection) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.conn != nil
	}, waitTimeout, time.Millisecond)
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("Serve did not return")
		return errors.New("unreachable")
	}
}
