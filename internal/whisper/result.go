package whisper

import "strings"

// Segment is one time-bounded slice of recognized speech. Start and End are
// seconds from the beginning of the audio. Metadata an engine does not
// report is left at its zero value.
type Segment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

type Result struct {
	Text     string
	Language string
	Segments []Segment
}

// Blank reports whether the result carries no recognized speech.
func (r Result) Blank() bool {
	trimmed := strings.TrimSpace(r.Text)
	return trimmed == "" || strings.EqualFold(trimmed, blankAudioToken)
}

const blankAudioToken = "[BLANK_AUDIO]"
