package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

var (
	// ErrUnsupportedFormat is returned by [Load] when the sample is not a
	// WAV, AIFF/AIFC or FLAC container.
	ErrUnsupportedFormat = errors.New("audio: unsupported container format")

	// ErrEmptyAudio is returned by [Load] when the container holds no frames.
	ErrEmptyAudio = errors.New("audio: sample contains no audio frames")
)

// Container identifies the file format of an audio sample.
type Container string

const (
	ContainerUnknown Container = ""
	ContainerWAV     Container = "wav"
	ContainerAIFF    Container = "aiff"
	ContainerFLAC    Container = "flac"
)

// Sniff inspects the leading magic bytes of data and reports its container.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case len(data) >= 12 && string(data[0:4]) == "FORM" &&
		(string(data[8:12]) == "AIFF" || string(data[8:12]) == "AIFC"):
		return ContainerAIFF
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return ContainerFLAC
	}
	return ContainerUnknown
}

// Load decodes an in-memory recording into a [Clip]. WAV (integer PCM),
// AIFF/AIFC and FLAC are accepted; samples wider or narrower than 16 bits are
// rescaled to 16 bits.
func Load(data []byte) (*Clip, error) {
	var (
		clip *Clip
		err  error
	)
	switch Sniff(data) {
	case ContainerWAV:
		clip, err = decodeWAV(data)
	case ContainerAIFF:
		clip, err = decodeAIFF(data)
	case ContainerFLAC:
		clip, err = decodeFLAC(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if clip.Frames() == 0 {
		return nil, ErrEmptyAudio
	}
	return clip, nil
}

func decodeWAV(data []byte) (*Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("audio: invalid wav file")
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("audio: wav encoding %d is not integer PCM", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav: %w", err)
	}
	// 8-bit WAV samples are unsigned; every other width is signed.
	return fromIntBuffer(buf, int(d.BitDepth), d.BitDepth == 8)
}

func decodeAIFF(data []byte) (*Clip, error) {
	d := aiff.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("audio: invalid aiff file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode aiff: %w", err)
	}
	return fromIntBuffer(buf, int(d.BitDepth), false)
}

func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int, unsigned bool) (*Clip, error) {
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("audio: decoder returned no format")
	}
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	channels := buf.Format.NumChannels
	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		if unsigned {
			s -= 1 << (bitDepth - 1)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(rescale16(int64(s), bitDepth)))
	}
	// Drop a trailing partial frame rather than rejecting the whole sample.
	if channels > 0 {
		pcm = pcm[:len(pcm)-len(pcm)%(2*channels)]
	}
	return NewClip(pcm, buf.Format.SampleRate, channels)
}

func decodeFLAC(data []byte) (*Clip, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("audio: open flac: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	var pcm []byte
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("audio: decode flac frame: %w", err)
		}
		if len(f.Subframes) != channels {
			return nil, fmt.Errorf("audio: flac frame has %d subframes, want %d", len(f.Subframes), channels)
		}
		n := len(f.Subframes[0].Samples)
		for i := range n {
			for ch := range channels {
				s := rescale16(int64(f.Subframes[ch].Samples[i]), bitDepth)
				pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
			}
		}
	}
	return NewClip(pcm, int(stream.Info.SampleRate), channels)
}

// rescale16 maps a signed sample of the given bit depth onto the int16 range.
func rescale16(s int64, bitDepth int) int16 {
	switch {
	case bitDepth <= 0 || bitDepth == 16:
		return clamp16(s)
	case bitDepth > 16:
		return clamp16(s >> (bitDepth - 16))
	default:
		return clamp16(s << (16 - bitDepth))
	}
}
