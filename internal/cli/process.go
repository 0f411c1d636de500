package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/whisperjson/internal/transcript"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type processOutputs struct {
	audio     string
	json      string
	srt       string
	video     string
	keepAudio bool
}

// withDefaults fills unset outputs with names next to the video.
func (o processOutputs) withDefaults(videoPath string) processOutputs {
	ext := filepath.Ext(videoPath)
	base := strings.TrimSuffix(videoPath, ext)
	if ext == "" {
		ext = ".mp4"
	}

	if o.audio == "" {
		o.audio = base + "_audio.wav"
	}
	if o.json == "" {
		o.json = base + ".json"
	}
	if o.srt == "" {
		o.srt = base + ".srt"
	}
	if o.video == "" {
		o.video = base + "_subtitled" + ext
	}
	return o
}

func newProcessCmd(app *appState) *cobra.Command {
	var outputs processOutputs

	cmd := &cobra.Command{
		Use:   "process <video-file>",
		Short: "Extract audio, transcribe it, and burn subtitles into the video",
		Long: "Run the full pipeline on a video: extract a WAV track, write the JSON transcript, " +
			"render SRT subtitles and burn them into a copy of the video. Steps run in order and " +
			"stop at the first failure.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.runProcess(cmd.Context(), args[0], outputs.withDefaults(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.video)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputs.audio, "audio-output", "", "Path for the extracted WAV (default <video>_audio.wav)")
	cmd.Flags().StringVar(&outputs.json, "json-output", "", "Path for the JSON transcript (default <video>.json)")
	cmd.Flags().StringVar(&outputs.srt, "srt-output", "", "Path for the SRT subtitles (default <video>.srt)")
	cmd.Flags().StringVar(&outputs.video, "video-output", "", "Path for the subtitled video (default <video>_subtitled.<ext>)")
	cmd.Flags().BoolVar(&outputs.keepAudio, "keep-audio", false, "Keep the extracted WAV after processing")

	return cmd
}

func (a *appState) runProcess(ctx context.Context, videoPath string, outputs processOutputs) (processOutputs, error) {
	videoPath = filepath.Clean(videoPath)
	if _, err := os.Stat(videoPath); err != nil {
		return outputs, fmt.Errorf("video file not found: %w", err)
	}

	tool := a.media()
	progress := newStepProgress(a.progressEnabled(), 4)
	defer progress.Finish()

	progress.Step("Extracting audio")
	if err := tool.ExtractAudio(ctx, videoPath, outputs.audio); err != nil {
		return outputs, fmt.Errorf("extract audio: %w", err)
	}
	if !outputs.keepAudio {
		defer func() {
			if err := os.Remove(outputs.audio); err != nil && !errors.Is(err, os.ErrNotExist) {
				a.log().Warn("failed to remove extracted audio", zap.String("path", outputs.audio), zap.Error(err))
			}
		}()
	}
	a.log().Info("audio extracted", zap.String("audio", outputs.audio))

	progress.Step("Transcribing")
	if _, err := a.transcribeToFile(ctx, outputs.audio, outputs.json); err != nil {
		return outputs, err
	}

	progress.Step("Writing subtitles")
	cues, err := transcript.ConvertFile(outputs.json, outputs.srt)
	if err != nil {
		return outputs, err
	}
	a.log().Info("subtitles written", zap.String("output", outputs.srt), zap.Int("cues", cues))

	progress.Step("Burning subtitles")
	if err := tool.BurnSubtitles(ctx, videoPath, outputs.srt, outputs.video); err != nil {
		return outputs, fmt.Errorf("burn subtitles: %w", err)
	}
	a.log().Info("subtitled video written", zap.String("output", outputs.video))

	return outputs, nil
}
