package audio

import (
	"fmt"
	"math"
	"os"
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// IsSilentWAV reports whether the file's RMS level is at or below
// thresholdDBFS and its peak stays within 6 dB of it.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := analyzeWAV(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	if metrics.Samples == 0 {
		return true, metrics, nil
	}

	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

func analyzeWAV(path string) (SilenceMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return SilenceMetrics{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	d, err := openDecoder(f)
	if err != nil {
		return SilenceMetrics{}, err
	}

	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return SilenceMetrics{}, ErrUnsupportedWAV
	}

	bitDepth := int(d.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return SilenceMetrics{}, ErrUnsupportedWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return SilenceMetrics{}, fmt.Errorf("read wav data: %w", err)
	}

	fullScale := math.Ldexp(1, bitDepth-1)
	var peak, sumSquares float64
	for _, sample := range buf.Data {
		value := float64(sample)
		// 8-bit PCM is unsigned and centered on 128.
		if bitDepth == 8 {
			value -= 128
		}
		value /= fullScale

		if abs := math.Abs(value); abs > peak {
			peak = abs
		}
		sumSquares += value * value
	}

	samples := int64(len(buf.Data))
	if samples == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}, nil
	}

	return SilenceMetrics{
		RMSdBFS:  amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples))),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  samples,
	}, nil
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
