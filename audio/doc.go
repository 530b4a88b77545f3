// Package audio 将客户端上传的 32-bit float PCM 帧归一化为可转写的波形。
//
// 处理步骤：解码小端 float32 → 噪声门（|x| < 0.01 置零）→ 增益归一化
// （非静音帧缩放到峰值 0.7，静音帧保持全零）。Waveform 提供 PCM16 与 WAV
// 编码，分别供 Deepgram linear16 与 Whisper 上传使用。
package audio
