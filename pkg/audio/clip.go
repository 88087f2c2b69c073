// Package audio turns recorded utterances into a provider-agnostic PCM handle.
//
// A [Clip] always carries 16-bit signed little-endian PCM. Container parsing
// happens once in [Load]; recognizers then ask for the shape they need with
// [Clip.Convert], [Clip.WAV] or [Clip.Float32].
package audio

import (
	"fmt"
	"time"
)

// BitsPerSample is the sample width of every [Clip].
const BitsPerSample = 16

// Format describes the sample rate and channel count of a clip.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "16000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Clip is a decoded utterance. It is immutable once created; conversions
// return new clips.
type Clip struct {
	// PCM holds interleaved 16-bit signed little-endian samples.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int
}

// NewClip wraps raw 16-bit PCM. It returns an error for non-positive
// format values or a PCM length that is not a whole number of frames.
func NewClip(pcm []byte, sampleRate, channels int) (*Clip, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, fmt.Errorf("audio: %d PCM bytes is not a whole number of %d-channel frames", len(pcm), channels)
	}
	return &Clip{PCM: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

// Format returns the clip's sample rate and channel count.
func (c *Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.PCM) / (2 * c.Channels)
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Convert returns a clip in the target format. Channels are mixed first and
// the result is then resampled, so multi-channel input is only resampled
// once it is mono. A zero field in target keeps the source value. If the
// clip already matches, c itself is returned.
func (c *Clip) Convert(target Format) *Clip {
	if target.SampleRate <= 0 {
		target.SampleRate = c.SampleRate
	}
	if target.Channels <= 0 {
		target.Channels = c.Channels
	}
	if target == c.Format() {
		return c
	}

	pcm := c.PCM
	channels := c.Channels
	rate := c.SampleRate

	if channels != target.Channels {
		switch {
		case target.Channels == 1:
			pcm = DownmixMono16(pcm, channels)
		case channels == 1 && target.Channels == 2:
			pcm = MonoToStereo(pcm)
		default:
			pcm = MonoToStereo(DownmixMono16(pcm, channels))
		}
		channels = target.Channels
	}

	if rate != target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, rate, target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, rate, target.SampleRate)
		}
		rate = target.SampleRate
	}

	return &Clip{PCM: pcm, SampleRate: rate, Channels: channels}
}

// AtLeast returns a mono clip whose sample rate is at least minRate. Clips
// that already satisfy the floor keep their native rate.
func (c *Clip) AtLeast(minRate int) *Clip {
	rate := c.SampleRate
	if rate < minRate {
		rate = minRate
	}
	return c.Convert(Format{SampleRate: rate, Channels: 1})
}

// WAV returns the clip wrapped in a RIFF/WAVE container.
func (c *Clip) WAV() []byte {
	return EncodeWAV(c.PCM, c.SampleRate, c.Channels)
}

// Float32 returns mono samples normalised to [-1.0, 1.0].
func (c *Clip) Float32() []float32 {
	return PCMToFloat32Mono(c.PCM, c.Channels)
}

// BigEndian returns the PCM samples with each 16-bit word byte-swapped, as
// required by "audio/l16" media types.
func (c *Clip) BigEndian() []byte {
	out := make([]byte, len(c.PCM)&^1)
	for i := 0; i+1 < len(c.PCM); i += 2 {
		out[i] = c.PCM[i+1]
		out[i+1] = c.PCM[i]
	}
	return out
}
