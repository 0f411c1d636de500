package transcript

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fmueller/whisperjson/internal/whisper"
)

// WriteSRT renders one numbered cue per segment.
func WriteSRT(w io.Writer, segments []whisper.Segment) error {
	bw := bufio.NewWriter(w)
	for i, segment := range segments {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(segment.Start),
			FormatTimestamp(segment.End),
			strings.TrimSpace(segment.Text),
		); err != nil {
			return fmt.Errorf("write cue %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// WriteSRTFile renders segments to path atomically.
func WriteSRTFile(path string, segments []whisper.Segment) error {
	var sb strings.Builder
	if err := WriteSRT(&sb, segments); err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(sb.String()))
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, truncating to the
// millisecond. Negative and NaN inputs render as zero.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}

	// Rounded to the microsecond first so 2.34 floors to 2340 ms, not 2339.
	totalMillis := int64(math.Floor(math.Round(seconds*1e6) / 1e3))

	hours := totalMillis / 3_600_000
	minutes := totalMillis / 60_000 % 60
	secs := totalMillis / 1000 % 60
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ConvertFile reads a transcription document and writes its segments as SRT.
func ConvertFile(jsonPath, srtPath string) (int, error) {
	doc, err := ReadDocument(jsonPath)
	if err != nil {
		return 0, err
	}
	if err := WriteSRTFile(srtPath, doc.Timestamps); err != nil {
		return 0, err
	}
	return len(doc.Timestamps), nil
}
