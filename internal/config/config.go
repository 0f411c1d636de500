package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fmueller/whisperjson/internal/media"
	"github.com/fmueller/whisperjson/internal/whisper"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	FileName    = "config.yaml"
	EnvFileName = "whisperjson.env"
)

const (
	EnvModel        = "WHISPERJSON_MODEL"
	EnvModelDir     = "WHISPERJSON_MODEL_DIR"
	EnvEngine       = "WHISPERJSON_ENGINE"
	EnvLanguage     = "WHISPERJSON_LANGUAGE"
	EnvFP16         = "WHISPERJSON_FP16"
	EnvThreads      = "WHISPERJSON_THREADS"
	EnvWhisperPath  = whisper.WhisperPathEnv
	EnvFFmpegPath   = media.FFmpegPathEnv
	EnvAutoDownload = "WHISPERJSON_AUTO_DOWNLOAD"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvOpenAIBase   = "OPENAI_BASE_URL"
)

type Config struct {
	Model                string  `yaml:"model"`
	ModelDir             string  `yaml:"model_dir"`
	Engine               string  `yaml:"engine"`
	Language             string  `yaml:"language"`
	FP16                 bool    `yaml:"fp16"`
	Threads              int     `yaml:"threads"`
	AutoDownload         bool    `yaml:"auto_download"`
	WhisperPath          string  `yaml:"whisper_path"`
	FFmpegPath           string  `yaml:"ffmpeg_path"`
	SilenceGate          bool    `yaml:"silence_gate"`
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`
	OpenAI               OpenAI  `yaml:"openai"`
}

type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

func Default() Config {
	return Config{
		Model:                whisper.DefaultModel,
		Engine:               whisper.EngineAuto,
		Language:             "auto",
		FP16:                 false,
		AutoDownload:         true,
		SilenceThresholdDBFS: -65,
		OpenAI: OpenAI{
			Model: whisper.DefaultOpenAIModel,
		},
	}
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Empty values are
// ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	stringVars := map[string]*string{
		EnvModel:       &cfg.Model,
		EnvModelDir:    &cfg.ModelDir,
		EnvEngine:      &cfg.Engine,
		EnvLanguage:    &cfg.Language,
		EnvWhisperPath: &cfg.WhisperPath,
		EnvFFmpegPath:  &cfg.FFmpegPath,
		EnvOpenAIKey:   &cfg.OpenAI.APIKey,
		EnvOpenAIBase:  &cfg.OpenAI.BaseURL,
	}
	for key, target := range stringVars {
		if value, ok := get(key); ok {
			*target = value
		}
	}

	bools := map[string]*bool{
		EnvFP16:         &cfg.FP16,
		EnvAutoDownload: &cfg.AutoDownload,
	}
	for key, target := range bools {
		value, ok := get(key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: expected true or false", key, value)
		}
		*target = parsed
	}

	if value, ok := get(EnvThreads); ok {
		threads, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: expected an integer", EnvThreads, value)
		}
		cfg.Threads = threads
	}

	return nil
}

// LoadEnvFiles loads every existing file into the process environment
// without overriding variables that are already set.
func LoadEnvFiles(paths []string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("failed to load env file", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Debug("loaded env file", zap.String("path", path))
	}
}

type LoadOptions struct {
	// Path is an explicitly requested config file; it must exist.
	Path string
	// DefaultPath is read only when present.
	DefaultPath string
	Lookup      func(string) (string, bool)
}

// Load builds the effective configuration from defaults, the config file
// and the environment, in that order.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	switch {
	case strings.TrimSpace(opts.Path) != "":
		if err := LoadFile(opts.Path, &cfg); err != nil {
			return Config{}, err
		}
	case opts.DefaultPath != "":
		if _, err := os.Stat(opts.DefaultPath); err == nil {
			if err := LoadFile(opts.DefaultPath, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	if err := ApplyEnv(&cfg, opts.Lookup); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Engine {
	case whisper.EngineAuto, whisper.EngineWhisperCPP, whisper.EngineOpenAI:
	default:
		return fmt.Errorf("unknown engine %q (expected %s, %s or %s)", c.Engine, whisper.EngineAuto, whisper.EngineWhisperCPP, whisper.EngineOpenAI)
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", c.Threads)
	}
	return nil
}
