package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/speech"
	"github.com/BaSui01/voicerelay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynthesizer(t *testing.T, tts *fakeTTS) *Synthesizer {
	t.Helper()
	cfg := config.DefaultVoiceConfig()
	cfg.Timeout = time.Second
	s := NewSynthesizer(cfg, testCreds, nil, WithTTSProvider(tts))
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestSynthesizer_Synthesize(t *testing.T) {
	s := newTestSynthesizer(t, &fakeTTS{audio: []byte("ID3")})

	audio, err := s.Synthesize(context.Background(), "Hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), audio)

	st := s.Status()
	assert.Equal(t, ComponentStatus{Name: "synthesizer", Provider: "elevenlabs", Initialized: true}, st)
}

func TestSynthesizer_EmptyText(t *testing.T) {
	tts := &fakeTTS{audio: []byte("x")}
	s := newTestSynthesizer(t, tts)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Synthesize(context.Background(), text)
		assert.True(t, types.IsCode(err, types.ErrVoiceSynthesis), "text %q", text)
	}
	assert.Zero(t, tts.calls.Load())
}

func TestSynthesizer_EmptyAudio(t *testing.T) {
	s := newTestSynthesizer(t, &fakeTTS{})

	_, err := s.Synthesize(context.Background(), "hello")
	assert.True(t, types.IsCode(err, types.ErrVoiceSynthesis))
}

func TestSynthesizer_ProviderFailures(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		s := newTestSynthesizer(t, &fakeTTS{err: &speech.StatusError{Provider: "elevenlabs", StatusCode: http.StatusTooManyRequests}})

		_, err := s.Synthesize(context.Background(), "hello")
		e, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, types.ErrVoiceSynthesis, e.Code)
		assert.True(t, e.Retryable)
		assert.Equal(t, "synthesize", e.Stage)
	})

	t.Run("timeout", func(t *testing.T) {
		s := newTestSynthesizer(t, &fakeTTS{delay: 5 * time.Second, audio: []byte("x")})
		s.timeout = 20 * time.Millisecond

		_, err := s.Synthesize(context.Background(), "hello")
		e, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, types.ErrVoiceSynthesis, e.Code)
		assert.True(t, e.Retryable)
	})
}

func TestSynthesizer_InitializeWithVendorClients(t *testing.T) {
	for _, provider := range []string{config.ProviderElevenLabs, config.ProviderOpenAI} {
		cfg := config.DefaultVoiceConfig()
		cfg.DefaultProvider = provider
		s := NewSynthesizer(cfg, testCreds, nil)
		require.NoError(t, s.Initialize(context.Background()), provider)
	}

	s := NewSynthesizer(config.DefaultVoiceConfig(), config.Credentials{OpenAIAPIKey: "only-openai"}, nil)
	err := s.Initialize(context.Background())
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	_, err = s.Synthesize(context.Background(), "hello")
	assert.True(t, types.IsCode(err, types.ErrNotInitialized))
}
