package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/whisperjson/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersPersistentFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	flags := cmd.PersistentFlags()
	for _, name := range []string{
		"model", "model-dir", "auto-download", "engine", "language", "fp16", "threads",
		"silence-gate", "silence-threshold-dbfs", "verbose", "quiet", "json", "no-progress", "config",
	} {
		require.NotNil(t, flags.Lookup(name), "missing flag %s", name)
	}

	require.Equal(t, "base", flags.Lookup("model").DefValue)
	require.Equal(t, "false", flags.Lookup("fp16").DefValue)
	require.Equal(t, "auto", flags.Lookup("engine").DefValue)
	require.Equal(t, "true", flags.Lookup("auto-download").DefValue)
	require.Equal(t, "false", flags.Lookup("silence-gate").DefValue)
	require.Equal(t, "-65", flags.Lookup("silence-threshold-dbfs").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	for _, name := range []string{"transcribe", "setup", "extract", "srt", "subtitle", "process", "version"} {
		require.Contains(t, out.String(), name)
	}
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe an audio file into a JSON transcript"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify the configured whisper.cpp model"},
		{name: "extract", args: []string{"extract", "--help"}, contains: "Extract a 16 kHz mono WAV track"},
		{name: "srt", args: []string{"srt", "--help"}, contains: "Render a JSON transcript as SRT subtitles"},
		{name: "subtitle", args: []string{"subtitle", "--help"}, contains: "Burn SRT subtitles into a video"},
		{name: "process", args: []string{"process", "--help"}, contains: "--keep-audio"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(configPath, []byte("model: small\nlanguage: de\nthreads: 2\nengine: whisper-cpp\n"), 0o644))

	app, _ := newTestApp(t, map[string]string{
		config.EnvModel:   "medium",
		config.EnvThreads: "6",
	})

	_, _, err := runApp(t, app, []string{"version", "--config", configPath, "--threads", "8"})
	require.NoError(t, err)

	require.Equal(t, "medium", app.cfg.Model)
	require.Equal(t, "de", app.cfg.Language)
	require.Equal(t, 8, app.cfg.Threads)
	require.Equal(t, "whisper-cpp", app.cfg.Engine)
	require.False(t, app.cfg.FP16)
}

func TestUnchangedFlagsDoNotOverrideEnvironment(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t, map[string]string{
		config.EnvFP16:     "true",
		config.EnvLanguage: "EN",
	})

	_, _, err := runApp(t, app, []string{"version"})
	require.NoError(t, err)
	require.True(t, app.cfg.FP16)
	require.Equal(t, "en", app.cfg.Language)
	require.Equal(t, "base", app.cfg.Model)
}

func TestDefaultConfigPathIsOptional(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t, nil)
	app.defaultConfigPath = func() string { return filepath.Join(t.TempDir(), config.FileName) }

	_, _, err := runApp(t, app, []string{"version"})
	require.NoError(t, err)
	require.Equal(t, config.Default().Model, app.cfg.Model)
}

func TestSanitizeLanguage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "auto", sanitizeLanguage(""))
	require.Equal(t, "auto", sanitizeLanguage("   "))
	require.Equal(t, "en", sanitizeLanguage("en"))
	require.Equal(t, "en", sanitizeLanguage(" EN "))
	require.Equal(t, "de", sanitizeLanguage("De"))
}
