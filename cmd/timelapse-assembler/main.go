// Command timelapse-assembler encodes a captured frame sequence into a
// video file without going through the API server.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/processing"
)

func main() {
	var (
		inputDir   string
		outputPath string
		ffmpegPath string
		frameRate  int
		preset     string
		crf        int
		scale      string
	)
	flag.StringVar(&inputDir, "input", "", "Directory containing the jpg frame sequence")
	flag.StringVar(&outputPath, "output", "", "Output video path (default <input>/<folder>.mp4)")
	flag.StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	flag.IntVar(&frameRate, "fps", 24, "Output frame rate")
	flag.StringVar(&preset, "preset", "medium", "x264 preset")
	flag.IntVar(&crf, "crf", 23, "x264 constant rate factor")
	flag.StringVar(&scale, "scale", "", "Output resolution as W:H, e.g. 1920:1080")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if inputDir == "" {
		log.Fatal().Msg("-input is required")
	}
	if outputPath == "" {
		outputPath = filepath.Join(inputDir, filepath.Base(inputDir)+".mp4")
	}

	assembler := processing.NewAssembler(ffmpegPath)
	err := assembler.Assemble(context.Background(), inputDir, outputPath, processing.Options{
		FrameRate: frameRate,
		Preset:    preset,
		CRF:       crf,
		Scale:     scale,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Assembly failed")
	}

	log.Info().Str("output", outputPath).Msg("Video written")
}
