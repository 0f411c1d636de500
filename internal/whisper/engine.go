package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	EngineAuto       = "auto"
	EngineWhisperCPP = "whisper-cpp"
	EngineOpenAI     = "openai"
)

var ErrEngineUnavailable = errors.New("no transcription engine available")

type Request struct {
	AudioPath string
	// ModelPath is the local model file used by whisper.cpp.
	ModelPath string
	// Model is the remote model id used by API engines.
	Model    string
	Language string
	FP16     bool
	Threads  int
}

type Engine interface {
	Name() string
	Available() bool
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// SelectEngine returns the preferred engine, or the first available one in
// priority order when preferred is empty or "auto".
func SelectEngine(engines []Engine, preferred string) (Engine, error) {
	if len(engines) == 0 {
		return nil, errors.New("no engines configured")
	}

	preferred = strings.ToLower(strings.TrimSpace(preferred))
	if preferred != "" && preferred != EngineAuto {
		for _, engine := range engines {
			if engine.Name() != preferred {
				continue
			}
			if !engine.Available() {
				return nil, fmt.Errorf("requested engine %q is not available: %w", preferred, ErrEngineUnavailable)
			}
			return engine, nil
		}
		return nil, fmt.Errorf("unknown engine %q (known engines: %s)", preferred, strings.Join(engineNames(engines), ", "))
	}

	for _, engine := range engines {
		if engine.Available() {
			return engine, nil
		}
	}

	return nil, fmt.Errorf("%w; install whisper-cli or configure an OpenAI API key", ErrEngineUnavailable)
}

func engineNames(engines []Engine) []string {
	names := make([]string, 0, len(engines))
	for _, engine := range engines {
		names = append(names, engine.Name())
	}
	return names
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "auto" {
		return ""
	}
	return lang
}
