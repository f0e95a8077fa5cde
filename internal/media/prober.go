// Package media inspects video files with ffprobe.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/maauso/reframe-api/internal/validation"
)

// ErrFFprobeExecution is returned when the ffprobe command fails.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

// ErrNoVideoStream is returned when a container holds no video stream.
var ErrNoVideoStream = errors.New("no video stream found")

// TempStore stages bytes on disk so ffprobe can read them.
type TempStore interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)
	CleanupTemp(ctx context.Context, paths []string) error
}

// Info describes the first video stream of a file.
type Info struct {
	Width    int
	Height   int
	Duration float64
	Codec    string
	Format   string
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Prober implements validation.Inspector using the ffprobe CLI.
type Prober struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	temp        TempStore
}

var _ validation.Inspector = (*Prober)(nil)

// NewProber creates a new Prober.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewProber(ffprobePath string, temp TempStore) *Prober {
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, temp: temp}
}

// Probe inspects the file at path and returns its first video stream.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		"--", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	var result probeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range result.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		duration := parseSeconds(s.Duration)
		if duration == 0 {
			duration = parseSeconds(result.Format.Duration)
		}
		return Info{
			Width:    s.Width,
			Height:   s.Height,
			Duration: duration,
			Codec:    s.CodecName,
			Format:   result.Format.FormatName,
		}, nil
	}

	return Info{}, ErrNoVideoStream
}

// Dimensions stages data in temp storage, probes it and removes the temp file.
// A file ffprobe cannot read is a validation load failure; failing to stage
// the file or to start ffprobe is validation.ErrInspectionUnavailable.
func (p *Prober) Dimensions(ctx context.Context, name string, data []byte) (int, int, error) {
	if p.temp == nil {
		return 0, 0, fmt.Errorf("%w: prober has no temp storage", validation.ErrInspectionUnavailable)
	}

	path, err := p.temp.SaveTemp(ctx, name, bytes.NewReader(data))
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		return 0, 0, fmt.Errorf("%w: stage video: %w", validation.ErrInspectionUnavailable, err)
	}
	defer func() { _ = p.temp.CleanupTemp(context.WithoutCancel(ctx), []string{path}) }()

	info, err := p.Probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, err
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return 0, 0, fmt.Errorf("%w: %w", validation.ErrInspectionUnavailable, err)
		}
		return 0, 0, validation.LoadFailed(err)
	}
	return info.Width, info.Height, nil
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
