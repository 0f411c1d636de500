package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fmueller/whisperjson/internal/audio"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	FFmpegPathEnv = "WHISPERJSON_FFMPEG_PATH"

	defaultExecutable = "ffmpeg"
	maxStderrBytes    = 2048
)

var ErrFFmpegUnavailable = errors.New("ffmpeg is not available")

type FFmpeg struct {
	Path   string
	Logger *zap.Logger
}

func New(path string, logger *zap.Logger) *FFmpeg {
	if strings.TrimSpace(path) == "" {
		path = defaultExecutable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{Path: path, Logger: logger}
}

func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// ExtractAudio writes the first audio stream of input to output as a
// 16 kHz mono 16-bit PCM WAV, whatever the output extension.
func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input path is required")
	}
	if strings.TrimSpace(output) == "" {
		return errors.New("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f.Logger.Debug("extracting audio", zap.String("input", input), zap.String("output", output))
	return f.run(ctx,
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(audio.WhisperSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		output,
	)
}

// BurnSubtitles renders the cues from srtPath into the video frames and
// copies the audio stream unchanged.
func (f *FFmpeg) BurnSubtitles(ctx context.Context, videoPath, srtPath, output string) error {
	if strings.TrimSpace(videoPath) == "" {
		return errors.New("video path is required")
	}
	if strings.TrimSpace(srtPath) == "" {
		return errors.New("subtitle path is required")
	}
	if strings.TrimSpace(output) == "" {
		return errors.New("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f.Logger.Debug("burning subtitles", zap.String("video", videoPath), zap.String("subtitles", srtPath), zap.String("output", output))
	return f.run(ctx,
		"-i", videoPath,
		"-vf", "subtitles=filename="+escapeFilterValue(srtPath),
		"-c:a", "copy",
		output,
	)
}

// NormalizeForWhisper returns a path whisper.cpp can read directly. WAV
// files already at 16 kHz mono 16-bit PCM are returned unchanged; anything
// else is converted into tmpDir and cleanup removes the converted copy.
func (f *FFmpeg) NormalizeForWhisper(ctx context.Context, src, tmpDir string) (string, func(), error) {
	noop := func() {}

	format, err := audio.Probe(src)
	if err == nil && format.WhisperReady() {
		return src, noop, nil
	}
	if err != nil {
		f.Logger.Debug("input is not a readable wav, converting", zap.String("input", src), zap.Error(err))
	} else {
		f.Logger.Debug("converting wav to 16 kHz mono",
			zap.String("input", src),
			zap.Int("sample_rate", format.SampleRate),
			zap.Int("channels", format.Channels),
			zap.Int("bit_depth", format.BitDepth),
		)
	}

	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	converted := filepath.Join(tmpDir, "whisperjson-"+uuid.NewString()+".wav")
	cleanup := func() {
		if err := os.Remove(converted); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.Logger.Debug("remove converted audio", zap.String("path", converted), zap.Error(err))
		}
	}

	if err := f.ExtractAudio(ctx, src, converted); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("convert %s for transcription: %w", filepath.Base(src), err)
	}

	return converted, cleanup, nil
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	if !f.Available() {
		return fmt.Errorf("%w: %q not found; install ffmpeg or set %s", ErrFFmpegUnavailable, f.Path, FFmpegPathEnv)
	}

	full := append([]string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, f.Path, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := trimStderr(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	return nil
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrBytes {
		s = "..." + s[len(s)-maxStderrBytes:]
	}
	return s
}

// escapeFilterValue quotes a path for use as a filter option inside -vf.
// ffmpeg unescapes once for the option value and once for the filtergraph.
func escapeFilterValue(path string) string {
	value := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(path)
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`).Replace(value)
}
