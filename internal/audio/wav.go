// Package audio decodes voice-server WAV payloads into playable clip handles.
package audio

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
)

const wavHeaderSize = 44

// ClipFromWAV wraps raw WAV bytes in a clip handle with the decoded natural
// duration, so playback can wait for the clip's end without an audio device.
func ClipFromWAV(data []byte) (*pipeline.Clip, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("wav payload too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a wav payload")
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	dataSize := binary.LittleEndian.Uint32(data[40:44])

	if channels == 0 || sampleRate == 0 || bitsPerSample == 0 {
		return nil, fmt.Errorf("wav header invalid: channels=%d rate=%d bits=%d", channels, sampleRate, bitsPerSample)
	}
	if int(dataSize) > len(data)-wavHeaderSize {
		dataSize = uint32(len(data) - wavHeaderSize)
	}

	bytesPerSecond := uint64(sampleRate) * uint64(channels) * uint64(bitsPerSample) / 8
	if bytesPerSecond == 0 {
		return nil, fmt.Errorf("wav header invalid: zero byte rate")
	}
	duration := time.Duration(uint64(dataSize) * uint64(time.Second) / bytesPerSecond)

	return &pipeline.Clip{
		Data:     data,
		Format:   "wav",
		Duration: duration,
	}, nil
}
