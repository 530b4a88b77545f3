package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/voicerelay/audio"
	"github.com/BaSui01/voicerelay/relay"
	"github.com/BaSui01/voicerelay/session"
	"github.com/BaSui01/voicerelay/types"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, *audio.Waveform) (*types.TranscriptionResult, error) {
	return &types.TranscriptionResult{Text: "from audio", IsFinal: true, Confidence: 1}, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, text, _ string) (string, error) {
	return "you said " + text, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return []byte{1, 2, 3}, nil
}

func newTestRelay(t *testing.T) (*relay.Relay, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(time.Hour)
	r, err := relay.New(relay.Components{
		Registry:    registry,
		Normalizer:  audio.NewNormalizer(16000, 1, 1024, 4096),
		Transcriber: stubTranscriber{},
		Generator:   stubGenerator{},
		Synthesizer: stubSynthesizer{},
	}, relay.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return r, registry
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/conversation"
}

func TestConversationHandler_Roundtrip(t *testing.T) {
	r, registry := newTestRelay(t)
	srv := httptest.NewServer(NewConversationHandler(r, ConversationConfig{
		OriginPatterns: []string{"*"},
		MaxFrameBytes:  1 << 20,
	}, zaptest.NewLogger(t)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, resp, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	sessionID := resp.Header.Get(SessionHeader)
	assert.NotEmpty(t, sessionID)

	_, ok := registry.Get(sessionID)
	assert.True(t, ok)

	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("hello")))
	_, data, err := client.Read(ctx)
	require.NoError(t, err)

	var msg struct {
		Type string             `json:"type"`
		Data relay.ResponseData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, relay.MessageResponse, msg.Type)
	assert.Equal(t, "you said hello", msg.Data.Text)
	assert.Equal(t, []byte{1, 2, 3}, msg.Data.Audio)

	require.NoError(t, client.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return registry.ActiveCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConversationHandler_OversizedFrameClosesConnection(t *testing.T) {
	r, registry := newTestRelay(t)
	srv := httptest.NewServer(NewConversationHandler(r, ConversationConfig{MaxFrameBytes: 64}, zaptest.NewLogger(t)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer client.CloseNow()

	require.NoError(t, client.Write(ctx, websocket.MessageBinary, make([]byte, 1024)))
	_, _, err = client.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusMessageTooBig, websocket.CloseStatus(err))

	require.Eventually(t, func() bool { return registry.ActiveCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConversationHandler_RejectedOriginEndsSession(t *testing.T) {
	r, registry := newTestRelay(t)
	srv := httptest.NewServer(NewConversationHandler(r, ConversationConfig{
		OriginPatterns: []string{"app.example.com"},
	}, zaptest.NewLogger(t)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example.org"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, registry.ActiveCount())
	assert.Zero(t, r.ActiveConnections())
}

func TestConversationHandler_PlainHTTPRequestRejected(t *testing.T) {
	r, registry := newTestRelay(t)
	handler := NewConversationHandler(r, ConversationConfig{}, zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversation", nil))

	assert.GreaterOrEqual(t, w.Code, 400)
	assert.Zero(t, registry.ActiveCount())
}

func TestSessionStatsHandler(t *testing.T) {
	registry := session.NewRegistry(30 * time.Minute)
	_, err := registry.Create()
	require.NoError(t, err)
	_, err = registry.Create()
	require.NoError(t, err)

	handler := NewSessionStatsHandler(registry, func() int { return 1 })
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool         `json:"success"`
		Data    SessionStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, SessionStats{ActiveSessions: 2, ActiveConnections: 1, IdleTimeout: "30m0s"}, resp.Data)
}
