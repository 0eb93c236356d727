package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zaf/g711"
)

// PCM constants
const (
	pcmMax = 32767 // Max 16-bit PCM value

	wavHeaderSize = 44
	bitsPerSample = 16
	monoChannels  = 1
)

// WAVE format tags
const (
	formatPCM   uint16 = 1
	formatALaw  uint16 = 6
	formatMuLaw uint16 = 7
)

var (
	ErrNotWAV            = errors.New("audio: not a RIFF/WAVE stream")
	ErrUnsupportedFormat = errors.New("audio: unsupported WAVE encoding")
)

// wavHeader is the canonical 44-byte PCM header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func newWAVHeader(sampleRate, dataSize int) wavHeader {
	blockAlign := monoChannels * bitsPerSample / 8
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   monoChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
}

// EncodeWAV converts float samples in [-1, 1] into a mono 16-bit little-endian
// WAV container. Each sample is scaled by 32767 and truncated toward zero;
// out-of-range input wraps around.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(int32(s * pcmMax))
	}
	return EncodePCM16WAV(pcm, sampleRate)
}

// EncodePCM16WAV wraps 16-bit mono samples in a WAV container.
func EncodePCM16WAV(pcm []int16, sampleRate int) []byte {
	dataSize := len(pcm) * 2
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	binary.Write(buf, binary.LittleEndian, newWAVHeader(sampleRate, dataSize))
	binary.Write(buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}

// WAV is a decoded mono 16-bit stream.
type WAV struct {
	Samples    []int16
	SampleRate int
}

// DecodeWAV parses a RIFF/WAVE stream holding 16-bit PCM, A-law or µ-law data.
// Multi-channel input is down-mixed to mono.
func DecodeWAV(data []byte) (WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, ErrNotWAV
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		payload    []byte
		haveFmt    bool
	)

	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return WAV{}, fmt.Errorf("audio: short fmt chunk: %w", ErrNotWAV)
			}
			format = binary.LittleEndian.Uint16(data[body:])
			channels = binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bits = binary.LittleEndian.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			payload = data[body:end]
		}
		// chunks are word aligned
		off = body + size + size%2
	}

	if !haveFmt || payload == nil {
		return WAV{}, fmt.Errorf("audio: missing fmt or data chunk: %w", ErrNotWAV)
	}
	if channels == 0 {
		channels = 1
	}

	var pcm []int16
	switch {
	case format == formatPCM && bits == 16:
		pcm = make([]int16, len(payload)/2)
		for i := range pcm {
			pcm[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
		}
	case format == formatMuLaw && bits == 8:
		pcm = bytesToInt16(g711.DecodeUlaw(payload))
	case format == formatALaw && bits == 8:
		pcm = bytesToInt16(g711.DecodeAlaw(payload))
	default:
		return WAV{}, fmt.Errorf("audio: format %d with %d bits: %w", format, bits, ErrUnsupportedFormat)
	}

	return WAV{Samples: downmix(pcm, int(channels)), SampleRate: int(sampleRate)}, nil
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func downmix(pcm []int16, channels int) []int16 {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / channels
	out := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(pcm[f*channels+c])
		}
		out[f] = int16(sum / int32(channels))
	}
	return out
}

// PCM16ToFloat converts little-endian 16-bit PCM bytes to floats in [-1, 1).
func PCM16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / (pcmMax + 1)
	}
	return out
}
