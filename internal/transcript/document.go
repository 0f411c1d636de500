package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fmueller/whisperjson/internal/whisper"
	"github.com/google/uuid"
)

const indent = "    "

// Document is the JSON file written for every transcription.
type Document struct {
	Transcription string            `json:"transcription"`
	Timestamps    []whisper.Segment `json:"timestamps"`
}

// FromResult copies the engine's text and segments verbatim.
func FromResult(result whisper.Result) Document {
	timestamps := make([]whisper.Segment, len(result.Segments))
	copy(timestamps, result.Segments)
	for i := range timestamps {
		if timestamps[i].Tokens == nil {
			timestamps[i].Tokens = []int{}
		}
	}

	return Document{
		Transcription: result.Text,
		Timestamps:    timestamps,
	}
}

func (d Document) Marshal() ([]byte, error) {
	if d.Timestamps == nil {
		d.Timestamps = []whisper.Segment{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode transcription: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Write stores the document at path. The file appears only once it is
// complete; on error no file is left behind.
func (d Document) Write(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read transcription: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode transcription %s: %w", path, err)
	}
	return doc, nil
}

func writeFileAtomic(path string, data []byte) error {
	if path == "" {
		return errors.New("output path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move output into place: %w", err)
	}

	success = true
	return nil
}
