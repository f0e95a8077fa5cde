package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reframe-api/internal/storage"
	"github.com/maauso/reframe-api/internal/validation"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a short solid-color video using ffmpeg.
func createTestVideo(t *testing.T, path string, width, height int) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=%dx%d:d=1", width, height),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// fakeFFprobe writes a shell script that prints output and exits with code.
func fakeFFprobe(t *testing.T, output string, code int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	dir := t.TempDir()
	outFile := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(outFile, []byte(output), 0o600))

	script := filepath.Join(dir, "ffprobe")
	body := fmt.Sprintf("#!/bin/sh\ncat %q\nexit %d\n", outFile, code)
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755)) // #nosec G306 - test helper must be executable
	return script
}

func newTempStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewProber(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		p := NewProber("", nil)
		assert.Equal(t, "ffprobe", p.ffprobePath)
	})

	t.Run("custom path", func(t *testing.T) {
		p := NewProber("/usr/local/bin/ffprobe", nil)
		assert.Equal(t, "/usr/local/bin/ffprobe", p.ffprobePath)
	})
}

func TestProber_Probe_FakeBinary(t *testing.T) {
	ctx := context.Background()

	t.Run("first video stream", func(t *testing.T) {
		bin := fakeFFprobe(t, `{
			"streams": [
				{"codec_type": "audio", "codec_name": "aac"},
				{"codec_type": "video", "codec_name": "h264", "width": 512, "height": 512, "duration": "4.000000"}
			],
			"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "4.021000"}
		}`, 0)

		info, err := NewProber(bin, nil).Probe(ctx, "/tmp/clip.mp4")
		require.NoError(t, err)
		assert.Equal(t, 512, info.Width)
		assert.Equal(t, 512, info.Height)
		assert.Equal(t, "h264", info.Codec)
		assert.InDelta(t, 4.0, info.Duration, 0.001)
		assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", info.Format)
	})

	t.Run("format duration fallback", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"streams":[{"codec_type":"video","width":1280,"height":720}],"format":{"duration":"2.5"}}`, 0)

		info, err := NewProber(bin, nil).Probe(ctx, "/tmp/clip.webm")
		require.NoError(t, err)
		assert.InDelta(t, 2.5, info.Duration, 0.001)
	})

	t.Run("no video stream", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"streams":[{"codec_type":"audio"}],"format":{}}`, 0)

		_, err := NewProber(bin, nil).Probe(ctx, "/tmp/clip.mp4")
		assert.ErrorIs(t, err, ErrNoVideoStream)
	})

	t.Run("ffprobe failure", func(t *testing.T) {
		bin := fakeFFprobe(t, "", 1)

		_, err := NewProber(bin, nil).Probe(ctx, "/tmp/clip.mp4")
		assert.ErrorIs(t, err, ErrFFprobeExecution)
	})

	t.Run("garbage output", func(t *testing.T) {
		bin := fakeFFprobe(t, "not json", 0)

		_, err := NewProber(bin, nil).Probe(ctx, "/tmp/clip.mp4")
		assert.Error(t, err)
	})
}

func TestProber_Dimensions_FakeBinary(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)

	t.Run("reports dimensions and cleans up", func(t *testing.T) {
		bin := fakeFFprobe(t, `{"streams":[{"codec_type":"video","width":512,"height":512}]}`, 0)

		w, h, err := NewProber(bin, store).Dimensions(ctx, "sample.mp4", []byte("fake"))
		require.NoError(t, err)
		assert.Equal(t, 512, w)
		assert.Equal(t, 512, h)

		entries, err := os.ReadDir(store.TempDir())
		require.NoError(t, err)
		assert.Empty(t, entries, "temp file should be removed")
	})

	t.Run("probe failure is load failure", func(t *testing.T) {
		bin := fakeFFprobe(t, "", 1)

		_, _, err := NewProber(bin, store).Dimensions(ctx, "broken.mp4", []byte("fake"))
		assert.ErrorIs(t, err, validation.ErrLoadFailed)
	})

	t.Run("missing binary is not a load failure", func(t *testing.T) {
		bin := filepath.Join(t.TempDir(), "no-such-ffprobe")

		_, _, err := NewProber(bin, store).Dimensions(ctx, "sample.mp4", []byte("fake"))
		assert.ErrorIs(t, err, validation.ErrInspectionUnavailable)
		assert.NotErrorIs(t, err, validation.ErrLoadFailed)
	})
}

type failingTempStore struct{}

func (failingTempStore) SaveTemp(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("no space left on device")
}

func (failingTempStore) CleanupTemp(context.Context, []string) error { return nil }

func TestProber_Dimensions_StagingFailure(t *testing.T) {
	bin := fakeFFprobe(t, `{"streams":[{"codec_type":"video","width":512,"height":512}]}`, 0)

	_, _, err := NewProber(bin, failingTempStore{}).Dimensions(context.Background(), "sample.mp4", []byte("fake"))
	assert.ErrorIs(t, err, validation.ErrInspectionUnavailable)
	assert.NotErrorIs(t, err, validation.ErrLoadFailed)
	assert.Contains(t, err.Error(), "no space left on device")

	_, _, err = NewProber(bin, nil).Dimensions(context.Background(), "sample.mp4", []byte("fake"))
	assert.ErrorIs(t, err, validation.ErrInspectionUnavailable)
}

func TestProber_Dimensions_RealVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := context.Background()
	store := newTempStore(t)
	prober := NewProber("", store)

	path := filepath.Join(t.TempDir(), "sample.mp4")
	createTestVideo(t, path, 512, 512)
	data, err := os.ReadFile(path) // #nosec G304 - test file
	require.NoError(t, err)

	w, h, err := prober.Dimensions(ctx, "sample.mp4", data)
	require.NoError(t, err)
	assert.Equal(t, 512, w)
	assert.Equal(t, 512, h)

	t.Run("corrupt container", func(t *testing.T) {
		_, _, err := prober.Dimensions(ctx, "corrupt.mp4", []byte("this is not a video"))
		assert.ErrorIs(t, err, validation.ErrLoadFailed)
	})

	t.Run("gate rejects wrong size", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "wide.mp4")
		createTestVideo(t, other, 640, 360)
		wide, err := os.ReadFile(other) // #nosec G304 - test file
		require.NoError(t, err)

		gate := validation.NewGate(validation.DefaultLimits(), prober)
		err = gate.Validate(ctx, validation.Candidate{
			Name:     "wide.mp4",
			MIMEType: "video/mp4",
			Size:     int64(len(wide)),
			Data:     wide,
		})
		assert.ErrorIs(t, err, validation.ErrDimensionMismatch)
	})
}
