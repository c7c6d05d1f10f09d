// Package media shells out to ffmpeg and ffprobe for video probing, chunk
// extraction and frame grabs. The binaries must be on PATH.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ProbeDuration returns the duration of the media file at path.
func ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(errOut.String()))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out.String(), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ExtractChunk stream-copies a window of the source file into dst. No
// re-encode, so chunk boundaries snap to the nearest keyframe.
func ExtractChunk(ctx context.Context, src, dst string, start, duration time.Duration) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-c", "copy",
		dst)

	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg chunk %s: %w: %s", dst, err, strings.TrimSpace(errOut.String()))
	}

	log.Debug().
		Str("src", src).
		Str("dst", dst).
		Str("start", start.String()).
		Str("duration", duration.String()).
		Msg("Extracted chunk")
	return nil
}

// ExtractFrame grabs one JPEG frame from the middle of the chunk and returns
// its bytes. The middle frame is the most representative sample of a short
// window.
func ExtractFrame(ctx context.Context, chunkPath string, chunkDuration time.Duration) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", formatSeconds(chunkDuration/2),
		"-i", chunkPath,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1")

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame %s: %w: %s", chunkPath, err, strings.TrimSpace(errOut.String()))
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg frame %s: empty output", chunkPath)
	}
	return out.Bytes(), nil
}

// Available reports whether ffmpeg is on PATH.
func Available() bool {
	return exec.Command("ffmpeg", "-version").Run() == nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
