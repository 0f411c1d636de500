package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE

	// WhisperSampleRate is the only sample rate whisper.cpp accepts.
	WhisperSampleRate = 16000
)

type Format struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	AudioFormat int
	Duration    time.Duration
}

// WhisperReady reports whether whisper.cpp can read the file without
// resampling or downmixing.
func (f Format) WhisperReady() bool {
	return f.AudioFormat == formatPCM && f.SampleRate == WhisperSampleRate && f.Channels == 1 && f.BitDepth == 16
}

func Probe(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	d, err := openDecoder(f)
	if err != nil {
		return Format{}, err
	}

	duration, err := d.Duration()
	if err != nil {
		return Format{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	return Format{
		SampleRate:  int(d.SampleRate),
		Channels:    int(d.NumChans),
		BitDepth:    int(d.BitDepth),
		AudioFormat: int(d.WavAudioFormat),
		Duration:    duration,
	}, nil
}

func openDecoder(r io.ReadSeeker) (*wav.Decoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return nil, ErrInvalidWAV
	}
	return d, nil
}
