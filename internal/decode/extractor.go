package decode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jmylchreest/iptvprobe/internal/ffmpeg"
)

// Sample is one decode pass over a rolling chunk of recently received
// transport-stream bytes: a single video frame, a chunk of PCM audio, an
// approximate corrupt-frame ratio read off ffmpeg's own log lines (the
// share of lines reporting corruption or decode errors), used as mosaic signal A per
// SPEC_FULL.md §4.G, and the decoded presentation timestamp of the audio
// chunk, used by audioanalyzer.Analyze's stutter detection.
type Sample struct {
	Frame             image.Image
	AudioSamples      []float64
	AudioSampleRate   int
	AudioPTS          float64
	CorruptFrameRatio float64
}

// Extractor runs ffmpeg against a rolling buffer of transport-stream bytes
// fed over stdin, the way the donor's internal/ffmpeg package drives every
// decode operation as an external process.
type Extractor struct {
	ffmpegPath string
	audioRate  int
}

// NewExtractor returns an Extractor that invokes the ffmpeg binary at
// ffmpegPath, decoding PCM audio at audioRate (typically 48000).
func NewExtractor(ffmpegPath string, audioRate int) *Extractor {
	if audioRate <= 0 {
		audioRate = 48000
	}
	return &Extractor{ffmpegPath: ffmpegPath, audioRate: audioRate}
}

// ExtractFrame decodes the first available video frame from tsData.
func (e *Extractor) ExtractFrame(ctx context.Context, tsData []byte) (image.Image, error) {
	cmd := ffmpeg.NewCommandBuilder(e.ffmpegPath).
		LogLevel("error").
		InputArgs("-f", "mpegts").
		Input("pipe:0").
		OutputArgs("-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "-q:v", "2").
		Output("pipe:1").
		Build()

	stdout, stderr, err := runCapture(ctx, cmd, tsData)
	if err != nil {
		return nil, fmt.Errorf("extracting video frame: %w: %s", err, stderr)
	}
	img, err := jpeg.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("decoding extracted frame: %w", err)
	}
	return img, nil
}

// ExtractAudio decodes up to duration seconds of 16-bit mono PCM audio
// from tsData, plus the decoded presentation timestamp of the first audio
// frame (via the ashowinfo filter's pts_time log line) and an approximate
// corrupt-frame ratio derived from ffmpeg's stderr log.
func (e *Extractor) ExtractAudio(ctx context.Context, tsData []byte, duration float64) (Sample, error) {
	cmd := ffmpeg.NewCommandBuilder(e.ffmpegPath).
		LogLevel("info").
		InputArgs("-f", "mpegts").
		Input("pipe:0").
		OutputArgs(
			"-vn",
			"-t", fmt.Sprintf("%.3f", duration),
			"-ac", "1",
			"-ar", fmt.Sprintf("%d", e.audioRate),
			"-af", "ashowinfo",
			"-f", "s16le",
		).
		Output("pipe:1").
		Build()

	stdout, stderr, err := runCapture(ctx, cmd, tsData)
	if err != nil {
		return Sample{}, fmt.Errorf("extracting audio chunk: %w: %s", err, stderr)
	}

	samples := decodePCM16LE(stdout)
	return Sample{
		AudioSamples:      samples,
		AudioSampleRate:   e.audioRate,
		AudioPTS:          firstPTSTime(stderr),
		CorruptFrameRatio: corruptFrameRatio(stderr),
	}, nil
}

// runCapture runs cmd's binary/args via os/exec (ffmpeg.Command has no
// process-running methods), feeding input on stdin and returning the full
// stdout and stderr once the process exits.
func runCapture(ctx context.Context, cmd *ffmpeg.Command, input []byte) (stdout, stderr []byte, err error) {
	proc := exec.CommandContext(ctx, cmd.Binary, cmd.Args...)
	proc.Stdin = bytes.NewReader(input)
	var stdoutBuf, stderrBuf bytes.Buffer
	proc.Stdout = &stdoutBuf
	proc.Stderr = &stderrBuf

	runErr := proc.Run()
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), runErr
}

func decodePCM16LE(data []byte) []float64 {
	n := len(data) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		out[i] = float64(v) / 32768.0
	}
	return out
}

// firstPTSTime returns the pts_time of the first ashowinfo log line found
// in ffmpeg's stderr, in seconds. ashowinfo logs one line per decoded audio
// frame in the form "... pts_time:12.345 ...". Returns 0 if no such line is
// present (e.g. the filter was dropped by a lower log level).
func firstPTSTime(stderrOut []byte) float64 {
	const marker = "pts_time:"
	idx := strings.Index(string(stderrOut), marker)
	if idx < 0 {
		return 0
	}
	rest := string(stderrOut)[idx+len(marker):]
	end := strings.IndexAny(rest, " \t\n")
	if end >= 0 {
		rest = rest[:end]
	}
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0
	}
	return v
}

// corruptFrameRatio scans ffmpeg's stderr for decode-error indicators
// and approximates a ratio from the count of such lines seen, since
// ffmpeg does not expose a single "corrupt frame ratio" metric directly.
func corruptFrameRatio(stderrOut []byte) float64 {
	lines := strings.Split(string(stderrOut), "\n")
	var errorLines, total int
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if strings.Contains(line, "corrupt") || strings.Contains(line, "error while decoding") || strings.Contains(line, "concealing") {
			errorLines++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(errorLines) / float64(total)
}
