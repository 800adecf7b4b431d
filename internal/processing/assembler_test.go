package processing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameDir(t *testing.T, frames int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= frames; i++ {
		name := filepath.Join(dir, fmt.Sprintf("%04d.jpg", i))
		require.NoError(t, os.WriteFile(name, []byte("frame"), 0o644))
	}
	return dir
}

func TestAssembleBuildsFFmpegCommand(t *testing.T) {
	dir := frameDir(t, 3)
	out := filepath.Join(dir, "out.mp4")

	var gotName string
	var gotArgs []string
	a := NewAssembler("ffmpeg", WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil
	}))

	err := a.Assemble(context.Background(), dir, out, Options{
		FrameRate: 24,
		Preset:    "medium",
		CRF:       23,
	})
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", gotName)
	assert.Equal(t, []string{
		"-y",
		"-framerate", "24",
		"-pattern_type", "glob",
		"-i", filepath.Join(dir, "*.jpg"),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "medium",
		"-crf", "23",
		out,
	}, gotArgs)
}

func TestAssembleWithCropAndScale(t *testing.T) {
	dir := frameDir(t, 1)

	var gotArgs []string
	a := NewAssembler("ffmpeg", WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}))

	err := a.Assemble(context.Background(), dir, filepath.Join(dir, "out.mp4"), Options{
		FrameRate:  30,
		Preset:     "fast",
		CRF:        20,
		CropWidth:  3840,
		CropHeight: 2160,
		CropX:      100,
		CropY:      50,
		Scale:      "1920:1080",
	})
	require.NoError(t, err)

	assert.Contains(t, gotArgs, "-vf")
	for i, arg := range gotArgs {
		if arg == "-vf" {
			assert.Equal(t, "crop=3840:2160:100:50,scale=1920:1080", gotArgs[i+1])
		}
	}
}

func TestAssembleScaleOnly(t *testing.T) {
	assert.Equal(t, "scale=1280:720", buildFilter(Options{Scale: "1280:720"}))
	assert.Equal(t, "", buildFilter(Options{}))
	assert.Equal(t, "crop=100:100:0:0", buildFilter(Options{CropWidth: 100, CropHeight: 100}))
}

func TestAssembleEmptyDirectory(t *testing.T) {
	a := NewAssembler("ffmpeg", WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("ffmpeg must not run without frames")
		return nil, nil
	}))

	err := a.Assemble(context.Background(), t.TempDir(), "out.mp4", Options{FrameRate: 24, Preset: "medium", CRF: 23})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no images found")
}

func TestAssembleRunnerFailure(t *testing.T) {
	dir := frameDir(t, 1)

	a := NewAssembler("ffmpeg", WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("boom"), assert.AnError
	}))

	err := a.Assemble(context.Background(), dir, filepath.Join(dir, "out.mp4"), Options{FrameRate: 24, Preset: "medium", CRF: 23})
	assert.Error(t, err)
}
