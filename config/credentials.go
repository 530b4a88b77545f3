package config

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/joho/godotenv"
)

// 凭证环境变量名
const (
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvDeepgramAPIKey   = "DEEPGRAM_API_KEY"
	EnvElevenLabsAPIKey = "ELEVENLABS_API_KEY"
)

// Credentials 保存各 Provider 的 API Key，只在启动时读取一次。
type Credentials struct {
	OpenAIAPIKey     string
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
}

// LoadDotEnv 加载 .env 文件。已存在的环境变量不会被覆盖，缺失的文件被忽略。
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// LoadCredentials 从进程环境读取凭证
func LoadCredentials() Credentials {
	return Credentials{
		OpenAIAPIKey:     os.Getenv(EnvOpenAIAPIKey),
		DeepgramAPIKey:   os.Getenv(EnvDeepgramAPIKey),
		ElevenLabsAPIKey: os.Getenv(EnvElevenLabsAPIKey),
	}
}

// Lookup 按环境变量名返回对应凭证
func (c Credentials) Lookup(env string) string {
	switch env {
	case EnvOpenAIAPIKey:
		return c.OpenAIAPIKey
	case EnvDeepgramAPIKey:
		return c.DeepgramAPIKey
	case EnvElevenLabsAPIKey:
		return c.ElevenLabsAPIKey
	}
	return ""
}

// CredentialEnv 返回某个 Provider 所需的环境变量名
func CredentialEnv(provider string) string {
	switch provider {
	case ProviderDeepgram:
		return EnvDeepgramAPIKey
	case ProviderElevenLabs:
		return EnvElevenLabsAPIKey
	case ProviderOpenAI:
		return EnvOpenAIAPIKey
	}
	return ""
}

// RequiredCredentials 根据所选 Provider 计算需要的凭证（去重、排序）
func (c *Config) RequiredCredentials() []string {
	set := map[string]struct{}{}
	for _, p := range []string{
		c.SpeechRecognition.DefaultProvider,
		c.LLM.DefaultProvider,
		c.Voice.DefaultProvider,
	} {
		if env := CredentialEnv(p); env != "" {
			set[env] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for env := range set {
		out = append(out, env)
	}
	sort.Strings(out)
	return out
}

// Missing 返回 required 中未设置的凭证名
func (c Credentials) Missing(required []string) []string {
	var missing []string
	for _, env := range required {
		if c.Lookup(env) == "" {
			missing = append(missing, env)
		}
	}
	return missing
}
