package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepgramProvider_Transcribe(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth, gotType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"metadata": {"request_id": "r1", "duration": 1.5, "channels": 1},
			"results": {"channels": [{"alternatives": [{"transcript": "hello", "confidence": 0.95}]}]}
		}`))
	}))
	defer srv.Close()

	cfg := DefaultDeepgramConfig()
	cfg.APIKey = "dg-key"
	cfg.BaseURL = srv.URL
	cfg.Diarize = true
	p := NewDeepgramProvider(cfg)

	resp, err := p.Transcribe(context.Background(), &STTRequest{
		Audio:      []byte{1, 2, 3, 4},
		Encoding:   "linear16",
		SampleRate: 16000,
		Channels:   1,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Text)
	assert.InDelta(t, 0.95, resp.Confidence, 1e-9)
	assert.Equal(t, "en-US", resp.Language)
	assert.Equal(t, 1500*time.Millisecond, resp.Duration)
	assert.Equal(t, "deepgram", resp.Provider)
	assert.Equal(t, "nova-2", resp.Model)

	assert.Equal(t, "Token dg-key", gotAuth)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, []byte{1, 2, 3, 4}, gotBody)
	assert.Equal(t, map[string]string{
		"model":        "nova-2",
		"language":     "en-US",
		"punctuate":    "true",
		"smart_format": "true",
		"diarize":      "true",
		"encoding":     "linear16",
		"sample_rate":  "16000",
		"channels":     "1",
	}, gotQuery)
}

func TestDeepgramProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"err_msg":"slow down"}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
				assert.True(t, se.Retryable())
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"err_msg":"bad key"}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.False(t, se.Retryable())
				assert.Contains(t, se.Error(), "bad key")
			},
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"results":`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decode deepgram response")
			},
		},
		{
			name:   "no alternatives",
			status: http.StatusOK,
			body:   `{"results":{"channels":[]}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoAlternatives)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewDeepgramProvider(DeepgramConfig{APIKey: "k", BaseURL: srv.URL})
			_, err := p.Transcribe(context.Background(), &STTRequest{Audio: []byte{0, 0}})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestDeepgramProvider_EmptyAudio(t *testing.T) {
	p := NewDeepgramProvider(DeepgramConfig{APIKey: "k"})
	_, err := p.Transcribe(context.Background(), &STTRequest{})
	require.Error(t, err)
}

func TestOpenAISTTProvider_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "audio.wav", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF", string(data[:4]))

		_, _ = w.Write([]byte(`{"text":" hi there ","language":"english","duration":0.5}`))
	}))
	defer srv.Close()

	p := NewOpenAISTTProvider(OpenAISTTConfig{APIKey: "sk-test", BaseURL: srv.URL, Language: "en-US"})
	resp, err := p.Transcribe(context.Background(), &STTRequest{Audio: []byte("RIFF....WAVE")})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, "english", resp.Language)
	assert.Equal(t, 500*time.Millisecond, resp.Duration)
	assert.Equal(t, "openai-stt", resp.Provider)
}
