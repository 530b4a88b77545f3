package audio

import (
	"encoding/binary"
	"math"

	"github.com/BaSui01/voicerelay/types"
)

const (
	// NoiseGate 低于该幅度的采样被置零
	NoiseGate = 0.01
	// Ceiling 归一化后的目标峰值
	Ceiling = 0.7
	// SampleWidth 每个 float32 采样的字节数
	SampleWidth = 4
)

// StreamParameters 描述音频流参数
type StreamParameters struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	ChunkSize  int `json:"chunk_size"`
	BufferSize int `json:"buffer_size"`
}

// Normalizer 将原始 float32 PCM 帧解码为经过噪声门和增益归一化的波形。
// Normalize 只依赖输入、不保留调用之间的状态，可被所有连接并发调用。
type Normalizer struct {
	sampleRate int
	channels   int
	chunkSize  int
	bufferSize int
}

// NewNormalizer 创建归一化器
func NewNormalizer(sampleRate, channels, chunkSize, bufferSize int) *Normalizer {
	return &Normalizer{
		sampleRate: sampleRate,
		channels:   channels,
		chunkSize:  chunkSize,
		bufferSize: bufferSize,
	}
}

// StreamParameters 返回流参数
func (n *Normalizer) StreamParameters() StreamParameters {
	return StreamParameters{
		SampleRate: n.sampleRate,
		Channels:   n.channels,
		ChunkSize:  n.chunkSize,
		BufferSize: n.bufferSize,
	}
}

// Normalize 解码小端 float32 采样，执行噪声门与增益归一化。
// 字节长度不是 4 的倍数、空帧、立体声采样数为奇数或含 NaN/Inf 时返回 AUDIO_PROCESSING 错误。
func (n *Normalizer) Normalize(raw []byte) (*Waveform, error) {
	if len(raw)%SampleWidth != 0 {
		return nil, types.Errorf(types.ErrAudioProcessing,
			"frame length %d is not a multiple of %d-byte samples", len(raw), SampleWidth).WithStage("normalize")
	}
	count := len(raw) / SampleWidth
	if count == 0 {
		return nil, types.NewError(types.ErrAudioProcessing, "empty audio frame").WithStage("normalize")
	}
	if n.channels == 2 && count%2 != 0 {
		return nil, types.Errorf(types.ErrAudioProcessing,
			"stereo frame has odd sample count %d", count).WithStage("normalize")
	}

	// 直接解码到输出，门限后原地缩放
	samples := make([]float32, count)
	peak := 0.0
	for i := range samples {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*SampleWidth:]))
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, types.Errorf(types.ErrAudioProcessing, "non-finite sample at index %d", i).WithStage("normalize")
		}
		a := math.Abs(f)
		if a < NoiseGate {
			continue
		}
		if a > peak {
			peak = a
		}
		samples[i] = v
	}

	if peak > 0 {
		gain := Ceiling / peak
		limit := float32(Ceiling)
		for i, v := range samples {
			s := float32(float64(v) * gain)
			if s > limit {
				s = limit
			} else if s < -limit {
				s = -limit
			}
			samples[i] = s
		}
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: n.sampleRate,
		Channels:   n.channels,
	}, nil
}
