// Package processing turns captured timelapse frame sequences into video
// files by driving an external ffmpeg binary.
package processing

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// CommandRunner executes an external command and returns its combined
// output. Swapped out in tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Options controls a single assembly job. Crop and scale are optional;
// when both are set, cropping is applied first.
type Options struct {
	FrameRate int
	Preset    string
	CRF       int

	// Crop region, applied when Width and Height are positive
	CropWidth  int
	CropHeight int
	CropX      int
	CropY      int

	// Output resolution as WxH, e.g. "1920:1080"
	Scale string
}

// Assembler encodes frame sequences into H.264 video
type Assembler struct {
	ffmpegPath string
	run        CommandRunner
}

// AssemblerOption configures an Assembler
type AssemblerOption func(*Assembler)

// WithRunner overrides the command runner, for tests
func WithRunner(run CommandRunner) AssemblerOption {
	return func(a *Assembler) { a.run = run }
}

// NewAssembler creates an assembler using the ffmpeg binary at path
func NewAssembler(ffmpegPath string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		ffmpegPath: ffmpegPath,
		run:        defaultRunner,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble encodes the jpg frames in dir into a video at outputPath.
// Frames are consumed in glob order, which matches capture order for
// zero-padded frame names.
func (a *Assembler) Assemble(ctx context.Context, dir, outputPath string, opts Options) error {
	pattern := filepath.Join(dir, "*.jpg")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob frames: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	args := []string{
		"-y",
		"-framerate", strconv.Itoa(opts.FrameRate),
		"-pattern_type", "glob",
		"-i", pattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
	}

	if filter := buildFilter(opts); filter != "" {
		args = append(args, "-vf", filter)
	}

	args = append(args, outputPath)

	log.Info().Str("dir", dir).Str("output", outputPath).Int("frames", len(matches)).Msg("assembling timelapse video")

	output, err := a.run(ctx, a.ffmpegPath, args...)
	if err != nil {
		log.Error().Err(err).Str("output", string(output)).Msg("ffmpeg failed")
		return fmt.Errorf("ffmpeg: %w", err)
	}

	log.Info().Str("output", outputPath).Msg("timelapse video assembled")
	return nil
}

// buildFilter composes the -vf chain from the crop and scale options
func buildFilter(opts Options) string {
	var filter string
	if opts.CropWidth > 0 && opts.CropHeight > 0 {
		filter = fmt.Sprintf("crop=%d:%d:%d:%d", opts.CropWidth, opts.CropHeight, opts.CropX, opts.CropY)
	}
	if opts.Scale != "" {
		if filter != "" {
			filter += ","
		}
		filter += "scale=" + opts.Scale
	}
	return filter
}
