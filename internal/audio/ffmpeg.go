package audio

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ffmpegBinary is resolved from PATH. Override via SetFFmpegBinary in tests.
var ffmpegBinary = "ffmpeg"

// SetFFmpegBinary overrides the ffmpeg binary path. Returns the previous
// value so tests can restore it.
func SetFFmpegBinary(path string) string {
	prev := ffmpegBinary
	ffmpegBinary = path
	return prev
}

// runFFmpeg pipes input through ffmpeg with the given arguments and returns
// stdout.
func runFFmpeg(ctx context.Context, args []string, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
