package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/whisperjson/internal/config"
	"github.com/fmueller/whisperjson/internal/logging"
	"github.com/fmueller/whisperjson/internal/media"
	"github.com/fmueller/whisperjson/internal/platform"
	"github.com/fmueller/whisperjson/internal/version"
	"github.com/fmueller/whisperjson/internal/whisper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// mediaTool is the subset of ffmpeg operations the commands rely on.
type mediaTool interface {
	ExtractAudio(ctx context.Context, input, output string) error
	BurnSubtitles(ctx context.Context, videoPath, srtPath, output string) error
	NormalizeForWhisper(ctx context.Context, src, tmpDir string) (string, func(), error)
}

type appState struct {
	cfg        config.Config
	flags      config.Config
	configPath string
	verbose    bool
	quiet      bool
	jsonLogs   bool
	noProgress bool

	logger *zap.Logger

	lookupEnv         func(string) (string, bool)
	defaultConfigPath func() string
	envFiles          func() []string

	enginesFn    func() []whisper.Engine
	mediaFn      func() mediaTool
	transcribeFn func(ctx context.Context, audioPath string) (whisper.Result, error)
}

func newApp() *appState {
	app := &appState{
		cfg:               config.Default(),
		flags:             config.Default(),
		lookupEnv:         os.LookupEnv,
		defaultConfigPath: defaultConfigPath,
		envFiles:          defaultEnvFiles,
	}
	app.enginesFn = app.buildEngines
	app.mediaFn = app.buildMedia
	app.transcribeFn = app.transcribeAudio
	return app
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "whisperjson",
		Short:         "Transcribe audio with whisper and write the transcript and timestamps as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd.Flags())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd.PersistentFlags(), app)
	bindModelFlags(cmd.PersistentFlags(), app)
	bindEngineFlags(cmd.PersistentFlags(), app)
	bindSilenceFlags(cmd.PersistentFlags(), app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newExtractCmd(app))
	cmd.AddCommand(newSRTCmd(app))
	cmd.AddCommand(newSubtitleCmd(app))
	cmd.AddCommand(newProcessCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(flags *pflag.FlagSet, app *appState) {
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVarP(&app.quiet, "quiet", "q", false, "Only log warnings and errors")
	flags.BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	flags.StringVar(&app.configPath, "config", "", "Path to a YAML config file")
}

func bindModelFlags(flags *pflag.FlagSet, app *appState) {
	flags.StringVar(&app.flags.Model, "model", app.flags.Model, "Model name ("+strings.Join(whisper.ModelNames(), "|")+") or model file path")
	flags.StringVar(&app.flags.ModelDir, "model-dir", app.flags.ModelDir, "Directory where models are stored")
	flags.BoolVar(&app.flags.AutoDownload, "auto-download", app.flags.AutoDownload, "Automatically download missing models")
}

func bindEngineFlags(flags *pflag.FlagSet, app *appState) {
	flags.StringVar(&app.flags.Engine, "engine", app.flags.Engine, "Transcription engine: auto|whisper-cpp|openai")
	flags.StringVar(&app.flags.Language, "language", app.flags.Language, "Language code (auto|en|de|...) for transcription")
	flags.BoolVar(&app.flags.FP16, "fp16", app.flags.FP16, "Allow half-precision inference")
	flags.IntVar(&app.flags.Threads, "threads", app.flags.Threads, "Inference threads; 0 lets the engine decide")
}

func bindSilenceFlags(flags *pflag.FlagSet, app *appState) {
	flags.BoolVar(&app.flags.SilenceGate, "silence-gate", app.flags.SilenceGate, "Detect near-silent WAV audio and skip transcription")
	flags.Float64Var(&app.flags.SilenceThresholdDBFS, "silence-threshold-dbfs", app.flags.SilenceThresholdDBFS, "Silence gate threshold in dBFS")
}

// initialize builds the logger and the effective configuration:
// defaults, then the config file, then the environment, then any flag the
// user set explicitly.
func (a *appState) initialize(flags *pflag.FlagSet) error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, Quiet: a.quiet, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	if a.envFiles != nil {
		config.LoadEnvFiles(a.envFiles(), logger)
	}

	opts := config.LoadOptions{Path: a.configPath, Lookup: a.lookupEnv}
	if a.defaultConfigPath != nil {
		opts.DefaultPath = a.defaultConfigPath()
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	applyChangedFlags(flags, &cfg, a.flags)
	cfg.Language = sanitizeLanguage(cfg.Language)
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log().Debug("configuration loaded",
		zap.String("model", cfg.Model),
		zap.String("engine", cfg.Engine),
		zap.String("language", cfg.Language),
		zap.Bool("fp16", cfg.FP16),
		zap.Int("threads", cfg.Threads),
	)
	return nil
}

func applyChangedFlags(flags *pflag.FlagSet, cfg *config.Config, values config.Config) {
	apply := map[string]func(){
		"model":                  func() { cfg.Model = values.Model },
		"model-dir":              func() { cfg.ModelDir = values.ModelDir },
		"auto-download":          func() { cfg.AutoDownload = values.AutoDownload },
		"engine":                 func() { cfg.Engine = values.Engine },
		"language":               func() { cfg.Language = values.Language },
		"fp16":                   func() { cfg.FP16 = values.FP16 },
		"threads":                func() { cfg.Threads = values.Threads },
		"silence-gate":           func() { cfg.SilenceGate = values.SilenceGate },
		"silence-threshold-dbfs": func() { cfg.SilenceThresholdDBFS = values.SilenceThresholdDBFS },
	}
	for name, fn := range apply {
		if flags.Changed(name) {
			fn()
		}
	}
}

func defaultConfigPath() string {
	dir, err := platform.ResolveConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, config.FileName)
}

func defaultEnvFiles() []string {
	files := []string{".env"}
	if dir, err := platform.ResolveConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, config.EnvFileName))
	}
	return files
}

func (a *appState) buildEngines() []whisper.Engine {
	return []whisper.Engine{
		whisper.NewCLIEngine(a.cfg.WhisperPath, a.log()),
		whisper.NewOpenAIEngine(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.BaseURL, a.log()),
	}
}

func (a *appState) buildMedia() mediaTool {
	return media.New(a.cfg.FFmpegPath, a.log())
}

func (a *appState) media() mediaTool {
	if a.mediaFn == nil {
		return a.buildMedia()
	}
	return a.mediaFn()
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
