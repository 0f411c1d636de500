//go:build integration

package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/whisperjson/internal/transcript"
	"github.com/fmueller/whisperjson/internal/whisper"
	"github.com/stretchr/testify/require"
)

func writeTestVideo(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "talk.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return path
}

func TestProcessRunsStepsInOrder(t *testing.T) {
	videoPath := writeTestVideo(t)
	engine := &fakeEngine{name: whisper.EngineOpenAI, available: true, result: twoSegmentResult()}
	app, tool := newTestApp(t, nil, engine)

	stdout, _, err := runApp(t, app, []string{"process", videoPath})
	require.NoError(t, err)

	base := strings.TrimSuffix(videoPath, ".mp4")
	require.Equal(t, base+"_subtitled.mp4\n", stdout)
	require.Equal(t, []string{"extract:talk.mp4", "burn:talk.srt"}, tool.steps())

	calls := engine.calls()
	require.Len(t, calls, 1)
	require.Equal(t, base+"_audio.wav", calls[0].AudioPath)

	doc, err := transcript.ReadDocument(base + ".json")
	require.NoError(t, err)
	require.Len(t, doc.Timestamps, 2)

	srt, err := os.ReadFile(base + ".srt")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(srt), "1\n00:00:00,000 --> 00:00:02,340\nHello there.\n"))

	require.FileExists(t, base+"_subtitled.mp4")
	require.NoFileExists(t, base+"_audio.wav")
}

func TestProcessKeepAudioAndCustomOutputs(t *testing.T) {
	videoPath := writeTestVideo(t)
	outDir := t.TempDir()
	engine := &fakeEngine{name: whisper.EngineOpenAI, available: true, result: twoSegmentResult()}
	app, _ := newTestApp(t, nil, engine)

	audioPath := filepath.Join(outDir, "a.wav")
	jsonPath := filepath.Join(outDir, "t.json")
	srtPath := filepath.Join(outDir, "s.srt")
	videoOut := filepath.Join(outDir, "v.mp4")

	_, _, err := runApp(t, app, []string{
		"process",
		"--keep-audio",
		"--audio-output", audioPath,
		"--json-output", jsonPath,
		"--srt-output", srtPath,
		"--video-output", videoOut,
		videoPath,
	})
	require.NoError(t, err)

	require.FileExists(t, audioPath)
	require.FileExists(t, jsonPath)
	require.FileExists(t, srtPath)
	require.FileExists(t, videoOut)
}

func TestProcessStopsAtFirstFailure(t *testing.T) {
	videoPath := writeTestVideo(t)
	engine := &fakeEngine{name: whisper.EngineOpenAI, available: true, err: errEngineFailed}
	app, tool := newTestApp(t, nil, engine)

	_, _, err := runApp(t, app, []string{"process", videoPath})
	require.ErrorIs(t, err, errEngineFailed)

	base := strings.TrimSuffix(videoPath, ".mp4")
	require.Equal(t, []string{"extract:talk.mp4"}, tool.steps())
	require.NoFileExists(t, base+".json")
	require.NoFileExists(t, base+".srt")
	require.NoFileExists(t, base+"_audio.wav")
}

func TestProcessExtractFailure(t *testing.T) {
	videoPath := writeTestVideo(t)
	engine := &fakeEngine{name: whisper.EngineOpenAI, available: true, result: twoSegmentResult()}
	app, tool := newTestApp(t, nil, engine)
	tool.extractErr = errors.New("no audio stream")

	_, err := app.runProcess(context.Background(), videoPath, processOutputs{}.withDefaults(videoPath))
	require.Error(t, err)
	require.Contains(t, err.Error(), "extract audio: no audio stream")
	require.Empty(t, engine.calls())
}

func TestProcessOutputDefaults(t *testing.T) {
	outputs := processOutputs{srt: "/custom/subs.srt"}.withDefaults("/videos/talk.mov")
	require.Equal(t, "/videos/talk_audio.wav", outputs.audio)
	require.Equal(t, "/videos/talk.json", outputs.json)
	require.Equal(t, "/custom/subs.srt", outputs.srt)
	require.Equal(t, "/videos/talk_subtitled.mov", outputs.video)

	outputs = processOutputs{}.withDefaults("/videos/raw")
	require.Equal(t, "/videos/raw_subtitled.mp4", outputs.video)
}
