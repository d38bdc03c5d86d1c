// Package transcode drives ffmpeg, ffprobe and lame to turn downloaded video
// into a bitrate-constrained MP3.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// intermediatePrefix marks first-stage output beside the source file.
const intermediatePrefix = "ffmpeg_"

// Transcoder converts media files and probes their metadata.
type Transcoder interface {
	// ExtractAudio converts the input container's audio track to an
	// intermediate MP3 and returns its path.
	ExtractAudio(ctx context.Context, inputPath string) (string, error)
	// Encode re-encodes the intermediate file at the given bitrate and
	// returns the final MP3 path.
	Encode(ctx context.Context, inputPath string, bitrateKbps int) (string, error)
	// ProbeDuration reads the file's duration in seconds without decoding it.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// runner abstracts subprocess execution so stage logic is testable without
// the tools installed.
type runner interface {
	run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// extractStrategy is one way of asking ffmpeg for the audio track. Strategies
// are tried in order; the first success wins.
type extractStrategy struct {
	name string
	args func(inputPath, outputPath string) []string
}

var extractStrategies = []extractStrategy{
	{
		name: "map-audio",
		args: func(in, out string) []string {
			return []string{"-i", in, "-q:a", "0", "-map", "a", "-b:a", "32k", "-y", out}
		},
	},
	{
		name: "libmp3lame",
		args: func(in, out string) []string {
			return []string{"-i", in, "-vn", "-acodec", "libmp3lame", "-q:a", "0", "-b:a", "32k", "-y", out}
		},
	},
}

// FFmpegTranscoder implements Transcoder with external ffmpeg, ffprobe and
// lame processes.
type FFmpegTranscoder struct {
	FFmpegPath  string
	FFprobePath string
	LamePath    string

	runner runner
	log    *slog.Logger
}

// New returns an FFmpegTranscoder that finds its tools in PATH.
func New(log *slog.Logger) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		LamePath:    "lame",
		runner:      execRunner{},
		log:         log,
	}
}

// Available reports whether all three tools are executable.
func (t *FFmpegTranscoder) Available() bool {
	for _, tool := range []string{t.FFmpegPath, t.FFprobePath, t.LamePath} {
		if _, err := exec.LookPath(tool); err != nil {
			return false
		}
	}
	return true
}

// ExtractAudio runs the extraction strategies in order against the input,
// writing ffmpeg_<stem>.mp3 beside it. All strategies failing yields a
// TranscodeError carrying the last captured stderr.
func (t *FFmpegTranscoder) ExtractAudio(ctx context.Context, inputPath string) (string, error) {
	out := IntermediatePath(inputPath)
	var lastErr error
	for _, strategy := range extractStrategies {
		_, stderr, err := t.runner.run(ctx, t.FFmpegPath, strategy.args(inputPath, out)...)
		if err == nil {
			return out, nil
		}
		t.log.Debug("audio extraction strategy failed",
			slog.String("strategy", strategy.name),
			slog.String("input", inputPath),
			slog.String("error", err.Error()),
		)
		lastErr = &TranscodeError{Input: inputPath, Stderr: stderr, Err: err}
	}
	return "", lastErr
}

// Encode re-encodes the intermediate MP3 through lame at the given bitrate.
// The output drops the intermediate-stage prefix from the file name.
func (t *FFmpegTranscoder) Encode(ctx context.Context, inputPath string, bitrateKbps int) (string, error) {
	out := EncodedPath(inputPath)
	_, stderr, err := t.runner.run(ctx, t.LamePath, "-b", strconv.Itoa(bitrateKbps), inputPath, out)
	if err != nil {
		return "", &EncodeError{Input: inputPath, Stderr: stderr, Err: err}
	}
	return out, nil
}

// ProbeDuration asks ffprobe for the container duration in seconds.
func (t *FFmpegTranscoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	stdout, stderr, err := t.runner.run(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, &ProbeError{Path: path, Stderr: stderr, Err: err}
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
	if err != nil {
		return 0, &ProbeError{Path: path, Stderr: stderr, Err: fmt.Errorf("unparsable duration %q", strings.TrimSpace(stdout))}
	}
	return seconds, nil
}

// IntermediatePath names the first-stage output for an input file:
// <dir>/ffmpeg_<stem>.mp3.
func IntermediatePath(inputPath string) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(filepath.Dir(inputPath), intermediatePrefix+stem+".mp3")
}

// EncodedPath names the final output for an intermediate file, stripping the
// stage prefix: <dir>/<stem>.mp3. An unprefixed input gets a distinct suffix
// so encoding never writes over its own input.
func EncodedPath(inputPath string) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stripped := strings.TrimPrefix(stem, intermediatePrefix)
	out := filepath.Join(filepath.Dir(inputPath), stripped+".mp3")
	if out == inputPath {
		out = filepath.Join(filepath.Dir(inputPath), stripped+"_encoded.mp3")
	}
	return out
}
