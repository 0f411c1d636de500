package cli

import (
	"fmt"

	"github.com/fmueller/whisperjson/internal/transcript"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExtractCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <video-file> <audio.wav>",
		Short: "Extract a 16 kHz mono WAV track from a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.media().ExtractAudio(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("extract audio: %w", err)
			}
			app.log().Info("audio extracted", zap.String("video", args[0]), zap.String("audio", args[1]))
			fmt.Fprintln(cmd.OutOrStdout(), args[1])
			return nil
		},
	}
}

func newSRTCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "srt <transcription.json> <subtitles.srt>",
		Short: "Render a JSON transcript as SRT subtitles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cues, err := transcript.ConvertFile(args[0], args[1])
			if err != nil {
				return err
			}
			app.log().Info("subtitles written", zap.String("output", args[1]), zap.Int("cues", cues))
			fmt.Fprintln(cmd.OutOrStdout(), args[1])
			return nil
		},
	}
}

func newSubtitleCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "subtitle <video-file> <subtitles.srt> <output-video>",
		Short: "Burn SRT subtitles into a video",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.media().BurnSubtitles(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return fmt.Errorf("burn subtitles: %w", err)
			}
			app.log().Info("subtitled video written", zap.String("output", args[2]))
			fmt.Fprintln(cmd.OutOrStdout(), args[2])
			return nil
		},
	}
}
