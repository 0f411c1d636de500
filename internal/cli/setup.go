package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fmueller/whisperjson/internal/config"
	"github.com/fmueller/whisperjson/internal/download"
	"github.com/fmueller/whisperjson/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify the configured whisper.cpp model",
		Long: "Install the model the configured engine needs. For whisper-cpp (and auto) the named " +
			"model is downloaded and its checksum verified; the openai engine only needs an API key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.setup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

// setup prepares whatever the configured engine needs and returns a
// one-line report.
func (a *appState) setup(ctx context.Context) (string, error) {
	if a.cfg.Engine == whisper.EngineOpenAI {
		if strings.TrimSpace(a.cfg.OpenAI.APIKey) == "" {
			return "", fmt.Errorf("engine %s needs an API key; set %s or openai.api_key in the config file", whisper.EngineOpenAI, config.EnvOpenAIKey)
		}
		return fmt.Sprintf("Engine %s uses remote model %s; nothing to install", whisper.EngineOpenAI, a.cfg.OpenAI.Model), nil
	}

	modelDir, err := a.modelStorageDir()
	if err != nil {
		return "", err
	}

	resolved, err := whisper.ResolveModel(a.cfg.Model, modelDir)
	if err != nil {
		return "", err
	}
	if resolved.IsCustomPath {
		return "", fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
	}

	expectedChecksum := resolved.SHA256
	if expectedChecksum == "" && resolved.SHA256URL != "" {
		checksum, err := download.ResolveExpectedChecksum(ctx, resolved.SHA256URL, filepath.Base(resolved.Path), nil)
		if err != nil {
			return "", fmt.Errorf("resolve checksum for model %s: %w", resolved.Name, err)
		}
		expectedChecksum = checksum
	}

	if !resolved.NeedsDownload && expectedChecksum != "" {
		if err := download.VerifyFileChecksum(resolved.Path, expectedChecksum); err != nil {
			a.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}

	status := "already present"
	if resolved.NeedsDownload {
		a.log().Info("downloading model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
		if err := a.downloadModel(ctx, resolved, expectedChecksum); err != nil {
			return "", err
		}
		status = "installed"
	}

	if !a.localEngineAvailable() {
		a.log().Warn("whisper-cli not found; whisper-cpp transcription needs it",
			zap.String("hint", "install whisper.cpp or set "+config.EnvWhisperPath))
	}

	return fmt.Sprintf("Model %s %s at %s", resolved.Name, status, resolved.Path), nil
}

func (a *appState) downloadModel(ctx context.Context, resolved whisper.ResolvedModel, expectedChecksum string) error {
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: expectedChecksum,
		ChecksumURL:    resolved.SHA256URL,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return fmt.Errorf("download model %q: %w", resolved.Name, err)
	}
	return nil
}

func (a *appState) localEngineAvailable() bool {
	enginesFn := a.enginesFn
	if enginesFn == nil {
		enginesFn = a.buildEngines
	}
	for _, engine := range enginesFn() {
		if engine.Name() == whisper.EngineWhisperCPP {
			return engine.Available()
		}
	}
	return false
}
