package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Waveform 是归一化后的交错 float32 采样
type Waveform struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames 按声道分组返回采样；立体声时每帧为一对 (left, right)
func (w *Waveform) Frames() [][]float32 {
	ch := max(w.Channels, 1)
	frames := make([][]float32, 0, len(w.Samples)/ch)
	for i := 0; i+ch <= len(w.Samples); i += ch {
		frames = append(frames, w.Samples[i:i+ch])
	}
	return frames
}

// Peak 返回最大绝对幅度
func (w *Waveform) Peak() float32 {
	var peak float32
	for _, s := range w.Samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	return peak
}

// Silent 报告波形是否全为零
func (w *Waveform) Silent() bool {
	return w.Peak() == 0
}

// Duration 返回音频时长
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	frames := len(w.Samples) / max(w.Channels, 1)
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// PCM16 转换为 16-bit 小端 PCM（采样 × 32767，超出 [-1,1] 的部分截断）
func (w *Waveform) PCM16() []byte {
	out := make([]byte, len(w.Samples)*2)
	for i, s := range w.Samples {
		f := float64(s)
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(f*32767)))
	}
	return out
}

// WAV 将 PCM16 数据封装为 WAV 文件
func (w *Waveform) WAV() []byte {
	return PCMToWAV(w.PCM16(), w.SampleRate, 16, max(w.Channels, 1))
}

// PCMToWAV wraps raw PCM audio data with a 44-byte WAV header.
func PCMToWAV(pcmData []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcmData)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44, 44+dataLen)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcmData...)
}

// EncodeFloat32 将采样编码为小端 float32 字节，与 Normalize 的输入格式一致
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*SampleWidth)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*SampleWidth:], math.Float32bits(s))
	}
	return out
}
