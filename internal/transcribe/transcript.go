package transcribe

import (
	"path/filepath"
	"strings"
	"time"
)

const transcriptTimeLayout = "20060102_150405"

// AssembleTranscript joins trimmed, non-blank window texts in order with
// newlines and terminates the result with a single newline.
func AssembleTranscript(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "\n") + "\n"
}

// TranscriptFileName builds "<base>_transcript_<YYYYMMDD_HHMMSS>.txt" from the
// input media name.
func TranscriptFileName(inputPath string, at time.Time) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "media"
	}
	return name + "_transcript_" + at.Format(transcriptTimeLayout) + ".txt"
}
