package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultMirrorsPlainTranscription(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, "base", cfg.Model)
	require.False(t, cfg.FP16)
	require.Equal(t, "auto", cfg.Engine)
	require.Equal(t, "auto", cfg.Language)
	require.True(t, cfg.AutoDownload)
	require.False(t, cfg.SilenceGate)
	require.Equal(t, "whisper-1", cfg.OpenAI.Model)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
model: small
threads: 4
fp16: true
openai:
  base_url: http://localhost:8080/v1
`)

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))
	require.Equal(t, "small", cfg.Model)
	require.Equal(t, 4, cfg.Threads)
	require.True(t, cfg.FP16)
	require.Equal(t, "http://localhost:8080/v1", cfg.OpenAI.BaseURL)
	require.Equal(t, "whisper-1", cfg.OpenAI.Model)
	require.Equal(t, "auto", cfg.Language)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "modle: small\n")

	cfg := Default()
	err := LoadFile(path, &cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "modle")
}

func TestLoadFileAcceptsEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "")

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))
	require.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, lookupFrom(map[string]string{
		EnvModel:        "medium",
		EnvFP16:         "true",
		EnvThreads:      "8",
		EnvAutoDownload: "0",
		EnvOpenAIKey:    "sk-test",
		EnvLanguage:     "  ",
	})))

	require.Equal(t, "medium", cfg.Model)
	require.True(t, cfg.FP16)
	require.Equal(t, 8, cfg.Threads)
	require.False(t, cfg.AutoDownload)
	require.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	require.Equal(t, "auto", cfg.Language)
}

func TestApplyEnvRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := ApplyEnv(&cfg, lookupFrom(map[string]string{EnvFP16: "maybe"}))
	require.EqualError(t, err, `invalid WHISPERJSON_FP16 "maybe": expected true or false`)

	err = ApplyEnv(&cfg, lookupFrom(map[string]string{EnvThreads: "four"}))
	require.EqualError(t, err, `invalid WHISPERJSON_THREADS "four": expected an integer`)
}

func TestLoadPrecedence(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "model: small\nlanguage: de\n")

	cfg, err := Load(LoadOptions{
		Path:   path,
		Lookup: lookupFrom(map[string]string{EnvModel: "tiny"}),
	})
	require.NoError(t, err)
	require.Equal(t, "tiny", cfg.Model)
	require.Equal(t, "de", cfg.Language)
	require.Equal(t, "auto", cfg.Engine)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{
		Path:   filepath.Join(t.TempDir(), "missing.yaml"),
		Lookup: lookupFrom(nil),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "open config")
}

func TestLoadSkipsMissingDefaultPath(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{
		DefaultPath: filepath.Join(t.TempDir(), FileName),
		Lookup:      lookupFrom(nil),
	})
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Engine = "vosk"
	require.ErrorContains(t, cfg.Validate(), `unknown engine "vosk"`)

	cfg = Default()
	cfg.Threads = -1
	require.ErrorContains(t, cfg.Validate(), "threads must not be negative")
}

func TestLoadEnvFilesDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, EnvFileName)
	require.NoError(t, os.WriteFile(envPath, []byte("WHISPERJSON_TEST_A=from-file\nWHISPERJSON_TEST_B=from-file\n"), 0o644))

	t.Setenv("WHISPERJSON_TEST_A", "from-env")
	t.Setenv("WHISPERJSON_TEST_B", "")
	require.NoError(t, os.Unsetenv("WHISPERJSON_TEST_B"))

	LoadEnvFiles([]string{filepath.Join(dir, "missing.env"), envPath}, nil)

	require.Equal(t, "from-env", os.Getenv("WHISPERJSON_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("WHISPERJSON_TEST_B"))
}
