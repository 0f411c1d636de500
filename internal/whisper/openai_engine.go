package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const DefaultOpenAIModel = openai.Whisper1

// OpenAIEngine transcribes through an OpenAI-compatible
// /audio/transcriptions endpoint.
type OpenAIEngine struct {
	Logger *zap.Logger

	client *openai.Client
	apiKey string
}

func NewOpenAIEngine(apiKey, baseURL string, logger *zap.Logger) *OpenAIEngine {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIEngine{
		Logger: logger,
		client: openai.NewClientWithConfig(cfg),
		apiKey: strings.TrimSpace(apiKey),
	}
}

func (e *OpenAIEngine) Name() string {
	return EngineOpenAI
}

func (e *OpenAIEngine) Available() bool {
	return e.apiKey != ""
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	if req.FP16 {
		e.Logger.Debug("fp16 has no effect on remote transcription", zap.String("model", model))
	}

	e.Logger.Debug("requesting remote transcription", zap.String("model", model), zap.String("audio", req.AudioPath))
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: req.AudioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: normalizeLanguage(req.Language),
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription failed: %w", err)
	}

	result := Result{
		Text:     resp.Text,
		Language: resp.Language,
		Segments: make([]Segment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		tokens := s.Tokens
		if tokens == nil {
			tokens = []int{}
		}
		result.Segments = append(result.Segments, Segment{
			ID:               s.ID,
			Seek:             s.Seek,
			Start:            s.Start,
			End:              s.End,
			Text:             s.Text,
			Tokens:           tokens,
			Temperature:      s.Temperature,
			AvgLogprob:       s.AvgLogprob,
			CompressionRatio: s.CompressionRatio,
			NoSpeechProb:     s.NoSpeechProb,
		})
	}

	return result, nil
}
