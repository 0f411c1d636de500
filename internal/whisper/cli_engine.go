package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/fmueller/whisperjson/internal/platform"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const WhisperPathEnv = "WHISPERJSON_WHISPER_PATH"

// CLIEngine runs a local whisper.cpp whisper-cli executable.
type CLIEngine struct {
	Executable string
	Logger     *zap.Logger

	resolveErr error
}

// NewCLIEngine resolves the whisper-cli executable. An explicit override
// wins; otherwise bundled locations next to our own binary are tried before
// PATH. A failed resolution is reported by Available and Transcribe.
func NewCLIEngine(override string, logger *zap.Logger) *CLIEngine {
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &CLIEngine{Logger: logger}

	if override = strings.TrimSpace(override); override != "" {
		if err := ensureExecutable(override); err != nil {
			engine.resolveErr = fmt.Errorf("configured whisper path is not executable: %w", err)
			return engine
		}
		engine.Executable = override
		return engine
	}

	self, err := os.Executable()
	if err != nil {
		self = ""
	}

	path, err := ResolveCLIPath(self)
	if err != nil {
		engine.resolveErr = err
		return engine
	}
	engine.Executable = path
	return engine
}

func ResolveCLIPath(selfExecutable string) (string, error) {
	if selfExecutable != "" {
		for _, candidate := range CLIPathCandidates(selfExecutable) {
			if err := ensureExecutable(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	if path, err := exec.LookPath(cliBinaryName()); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("whisper-cli not found next to %s or on PATH; install whisper.cpp or set %s", selfExecutable, WhisperPathEnv)
}

func CLIPathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	name := cliBinaryName()
	host := platform.CurrentRuntime()
	hostTarget := fmt.Sprintf("%s_%s", host.OS, host.Arch)

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", name),
		filepath.Join(binDir, "libexec", "whisper", name),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, name),
		filepath.Join(binDir, name),
	}
}

func (e *CLIEngine) Name() string {
	return EngineWhisperCPP
}

func (e *CLIEngine) Available() bool {
	return e.resolveErr == nil && e.Executable != "" && ensureExecutable(e.Executable) == nil
}

func (e *CLIEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return Result{}, errors.New("model path is required")
	}
	if e.resolveErr != nil {
		return Result{}, e.resolveErr
	}
	if err := ensureExecutable(e.Executable); err != nil {
		return Result{}, fmt.Errorf("whisper-cli missing or not executable: %w", err)
	}

	outBase := filepath.Join(os.TempDir(), "whisperjson-"+uuid.NewString())
	jsonOut := outBase + ".json"
	defer os.Remove(jsonOut)

	args := cliArgs(req, outBase)
	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.logger().Debug("running whisper-cli", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return Result{}, fmt.Errorf("whisper-cli at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF or set %s", e.Executable, errText, WhisperPathEnv)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return Result{}, fmt.Errorf("whisper-cli crashed with an illegal CPU instruction; " +
				"your CPU may lack required instruction set extensions; " +
				"set " + WhisperPathEnv + " to a whisper-cli binary built for your CPU")
		}
		return Result{}, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}

	content, err := os.ReadFile(jsonOut)
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}

	return parseCLIOutput(content)
}

func cliArgs(req Request, outBase string) []string {
	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-np", "-ojf", "-of", outBase}
	// whisper-cli decodes as English unless told to detect.
	lang := normalizeLanguage(req.Language)
	if lang == "" {
		lang = "auto"
	}
	args = append(args, "-l", lang)
	if req.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(req.Threads))
	}
	// whisper.cpp computes in half precision only on its GPU paths.
	if !req.FP16 {
		args = append(args, "-ng")
	}
	return args
}

type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string `json:"text"`
		Tokens []struct {
			ID int `json:"id"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func parseCLIOutput(content []byte) (Result, error) {
	var out cliOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return Result{}, fmt.Errorf("parse whisper output: %w", err)
	}

	result := Result{
		Language: out.Result.Language,
		Segments: make([]Segment, 0, len(out.Transcription)),
	}

	var text strings.Builder
	for i, entry := range out.Transcription {
		tokens := make([]int, 0, len(entry.Tokens))
		for _, token := range entry.Tokens {
			tokens = append(tokens, token.ID)
		}

		result.Segments = append(result.Segments, Segment{
			ID:     i,
			Start:  millisToSeconds(entry.Offsets.From),
			End:    millisToSeconds(entry.Offsets.To),
			Text:   entry.Text,
			Tokens: tokens,
		})
		text.WriteString(entry.Text)
	}
	result.Text = text.String()

	return result, nil
}

func (e *CLIEngine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func millisToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

func cliBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
