package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fmueller/whisperjson/internal/config"
	"github.com/fmueller/whisperjson/internal/whisper"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// fakeEngine records requests and returns a canned result.
type fakeEngine struct {
	name      string
	available bool
	result    whisper.Result
	err       error

	mu       sync.Mutex
	requests []whisper.Request
}

func (e *fakeEngine) Name() string    { return e.name }
func (e *fakeEngine) Available() bool { return e.available }

func (e *fakeEngine) Transcribe(_ context.Context, req whisper.Request) (whisper.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	return e.result, e.err
}

func (e *fakeEngine) calls() []whisper.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]whisper.Request(nil), e.requests...)
}

// fakeMedia stands in for ffmpeg and records every call in order.
type fakeMedia struct {
	t          *testing.T
	extractErr error
	burnErr    error

	mu    sync.Mutex
	order []string
}

func (m *fakeMedia) record(step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, step)
}

func (m *fakeMedia) steps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

func (m *fakeMedia) ExtractAudio(_ context.Context, input, output string) error {
	m.record("extract:" + filepath.Base(input))
	if m.extractErr != nil {
		return m.extractErr
	}
	writeTestWAV(m.t, output, speechLikeSamples(16000))
	return nil
}

func (m *fakeMedia) BurnSubtitles(_ context.Context, videoPath, srtPath, output string) error {
	m.record("burn:" + filepath.Base(srtPath))
	if m.burnErr != nil {
		return m.burnErr
	}
	return os.WriteFile(output, []byte("video"), 0o644)
}

func (m *fakeMedia) NormalizeForWhisper(_ context.Context, src, _ string) (string, func(), error) {
	m.record("normalize:" + filepath.Base(src))
	return src, func() {}, nil
}

var errEngineFailed = errors.New("engine crashed")

func twoSegmentResult() whisper.Result {
	return whisper.Result{
		Text:     " Hello there. General Kenobi.",
		Language: "en",
		Segments: []whisper.Segment{
			{ID: 0, Start: 0, End: 2.34, Text: " Hello there.", Tokens: []int{50364, 2425}},
			{ID: 1, Start: 2.34, End: 4, Text: " General Kenobi.", Tokens: []int{6996}},
		},
	}
}

// newTestApp returns an app isolated from the real environment, config
// files and executables.
func newTestApp(t *testing.T, env map[string]string, engines ...whisper.Engine) (*appState, *fakeMedia) {
	t.Helper()

	values := map[string]string{config.EnvModelDir: t.TempDir()}
	for key, value := range env {
		values[key] = value
	}

	tool := &fakeMedia{t: t}
	app := newApp()
	app.lookupEnv = func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
	app.defaultConfigPath = func() string { return "" }
	app.envFiles = nil
	app.noProgress = true
	app.enginesFn = func() []whisper.Engine { return engines }
	app.mediaFn = func() mediaTool { return tool }
	return app, tool
}

func runApp(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	app, _ := newTestApp(t, nil)
	return runApp(t, app, args)
}

func writeTestWAV(t *testing.T, path string, samples []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func speechLikeSamples(n int) []int {
	samples := make([]int, n)
	for i := range samples {
		switch i % 4 {
		case 0:
			samples[i] = 8000
		case 2:
			samples[i] = -8000
		}
	}
	return samples
}
