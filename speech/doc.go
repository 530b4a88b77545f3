// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 speech 提供预录式语音识别 (STT) 与语音合成 (TTS) 的服务商客户端。

# 概述

每个音频帧被当作一段完整的话语整体上传，不维护流式会话状态。
调用方负责选择编码：Deepgram 接收 linear16 原始 PCM 并通过查询
参数声明采样率与声道数；Whisper 接收 WAV 文件。

# 核心接口

  - STTProvider：Transcribe 与 Name。
  - TTSProvider：Synthesize 与 Name，返回已完整读取的音频字节。
  - StatusError：服务商返回 4xx/5xx 时的错误，Retryable 标记 429 与 5xx。

# 服务商

  - DeepgramProvider：/v1/listen，model、language、punctuate、
    smart_format、diarize 等选项来自 DeepgramConfig。
  - OpenAISTTProvider：/v1/audio/transcriptions，multipart 上传。
  - ElevenLabsProvider：/v1/text-to-speech/{voice_id}，携带
    stability 与 similarity_boost。
  - OpenAITTSProvider：/v1/audio/speech。
*/
package speech
