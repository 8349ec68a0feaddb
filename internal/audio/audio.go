// Package audio post-processes raw engine output: loudness normalization,
// loop-friendly fade rendering, and stem archive packaging.
//
// Normalization and loop rendering degrade gracefully: if the processing
// tool fails, the unprocessed input is returned instead of aborting the
// job, since the audio is still usable without enhancement.
package audio

import (
	"context"
	"fmt"
)

// NormalizeLoudness applies broadcast loudness normalization. Falls back to
// the input on processing failure.
func NormalizeLoudness(ctx context.Context, input []byte) []byte {
	out, err := runFFmpeg(ctx, []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-af", "loudnorm=I=-14:TP=-1.5:LRA=11",
		"-f", "mp3",
		"pipe:1",
	}, input)
	if err != nil {
		return input
	}
	return out
}

// RenderLoop renders a loop-friendly variant with short fades at both ends.
// Falls back to the input on processing failure.
func RenderLoop(ctx context.Context, input []byte, fadeSeconds float64) []byte {
	if fadeSeconds < 0.05 {
		fadeSeconds = 0.05
	}
	if fadeSeconds > 1 {
		fadeSeconds = 1
	}
	filter := fmt.Sprintf("afade=t=in:d=%.2f,afade=t=out:st=duration-%.2f:d=%.2f",
		fadeSeconds, fadeSeconds, fadeSeconds)

	out, err := runFFmpeg(ctx, []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-filter:a", filter,
		"-f", "mp3",
		"pipe:1",
	}, input)
	if err != nil {
		return input
	}
	return out
}
