package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/whisperjson/internal/audio"
	"github.com/fmueller/whisperjson/internal/transcript"
	"github.com/fmueller/whisperjson/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file> <output.json>",
		Short: "Transcribe an audio file into a JSON transcript",
		Long: "Transcribe an audio file and write {\"transcription\": ..., \"timestamps\": [...]} " +
			"as indented JSON. The output file is only created when transcription succeeds.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputPath, err := app.transcribeToFile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outputPath)
			return nil
		},
	}
}

// transcribeToFile runs the configured engine and writes the document. No
// output file exists unless every step succeeded.
func (a *appState) transcribeToFile(ctx context.Context, audioPath, outputPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}
	if strings.TrimSpace(outputPath) == "" {
		return "", errors.New("output path is required")
	}
	outputPath = filepath.Clean(outputPath)

	transcribeFn := a.transcribeFn
	if transcribeFn == nil {
		transcribeFn = a.transcribeAudio
	}

	result, err := transcribeFn(ctx, audioPath)
	if err != nil {
		return "", err
	}

	if err := transcript.FromResult(result).Write(outputPath); err != nil {
		return "", err
	}

	if result.Blank() {
		a.log().Warn("no speech detected", zap.String("audio", audioPath))
	}
	a.log().Info("transcript written", zap.String("output", outputPath), zap.Int("segments", len(result.Segments)))
	return outputPath, nil
}

func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (whisper.Result, error) {
	if result, skipped := a.silenceGateResult(audioPath); skipped {
		return result, nil
	}

	enginesFn := a.enginesFn
	if enginesFn == nil {
		enginesFn = a.buildEngines
	}

	engine, err := whisper.SelectEngine(enginesFn(), a.cfg.Engine)
	if err != nil {
		return whisper.Result{}, err
	}

	req := whisper.Request{
		AudioPath: audioPath,
		Language:  a.cfg.Language,
		FP16:      a.cfg.FP16,
		Threads:   a.cfg.Threads,
	}

	switch engine.Name() {
	case whisper.EngineWhisperCPP:
		model, err := a.ensureModelAvailable(ctx)
		if err != nil {
			return whisper.Result{}, err
		}
		req.ModelPath = model.Path
		req.Model = model.Name

		prepared, cleanup, err := a.media().NormalizeForWhisper(ctx, audioPath, "")
		if err != nil {
			return whisper.Result{}, err
		}
		defer cleanup()
		req.AudioPath = prepared
	case whisper.EngineOpenAI:
		req.Model = a.cfg.OpenAI.Model
	}

	a.log().Info("transcribing...",
		zap.String("audio", audioPath),
		zap.String("engine", engine.Name()),
		zap.String("model", req.Model),
		zap.String("language", a.cfg.Language),
		zap.Bool("fp16", req.FP16),
	)
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	result, err := engine.Transcribe(ctx, req)
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return whisper.Result{}, err
	}
	a.log().Info("transcription finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("segments", len(result.Segments)),
		zap.String("detected_language", result.Language),
	)

	return result, nil
}

func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(a.cfg.Model, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.cfg.AutoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `whisperjson setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := a.downloadModel(ctx, resolved, resolved.SHA256); err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

// silenceGateResult returns an empty result for near-silent WAV input when
// the gate is enabled. Analysis errors never block transcription.
func (a *appState) silenceGateResult(audioPath string) (whisper.Result, bool) {
	if !a.cfg.SilenceGate {
		return whisper.Result{}, false
	}

	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return whisper.Result{}, false
	}

	silent, metrics, err := audio.IsSilentWAV(audioPath, a.cfg.SilenceThresholdDBFS)
	if err != nil {
		a.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return whisper.Result{}, false
	}

	if !silent {
		return whisper.Result{}, false
	}

	a.log().Info(
		"audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", a.cfg.SilenceThresholdDBFS),
	)

	return whisper.Result{Segments: []whisper.Segment{}}, true
}
