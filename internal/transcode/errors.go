package transcode

import (
	"fmt"
	"strings"
)

// TranscodeError indicates the audio-extraction stage failed for every
// strategy. Stderr carries the last strategy's captured diagnostics.
type TranscodeError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	return stageMessage("audio extraction failed", e.Err, e.Stderr)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// EncodeError indicates the bitrate-constrained re-encode failed.
type EncodeError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *EncodeError) Error() string {
	return stageMessage("mp3 encoding failed", e.Err, e.Stderr)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ProbeError indicates the duration probe failed or produced unparsable output.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	return stageMessage("duration probe failed", e.Err, e.Stderr)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func stageMessage(prefix string, err error, stderr string) string {
	msg := fmt.Sprintf("%s: %v", prefix, err)
	if s := strings.TrimSpace(stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// lastLine keeps user-facing messages to the tool's final stderr line, which
// is where ffmpeg and lame report the actual failure.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
