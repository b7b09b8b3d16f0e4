// Package media shells out to the external audio tools: yt-dlp for fetching
// source audio and demucs for stem separation.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nadimxht/stem/internal/core/pipeline"
	"github.com/rs/zerolog/log"
)

// YtDlp fetches source audio with the yt-dlp binary, extracting a wav track
// into the job workspace.
type YtDlp struct {
	binary string
}

func NewYtDlp(binary string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary}
}

func (y *YtDlp) Fetch(ctx context.Context, url, workspace string) (string, error) {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", &pipeline.FetchError{Err: fmt.Errorf("create workspace: %w", err)}
	}

	args := []string{
		"--no-warnings",
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x", "--audio-format", "wav",
		"-o", filepath.Join(workspace, "audio.%(ext)s"),
		url,
	}

	cmd := exec.CommandContext(ctx, y.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &pipeline.FetchError{Err: commandError(out, err)}
	}

	audioPath := filepath.Join(workspace, "audio.wav")
	if _, err := os.Stat(audioPath); err != nil {
		return "", &pipeline.FetchError{Err: fmt.Errorf("no audio file produced: %w", err)}
	}

	log.Debug().Str("url", url).Str("path", audioPath).Msg("audio fetched")
	return audioPath, nil
}

// commandError extracts the most useful line from tool output: the last
// ERROR: line if present, otherwise the last non-empty line.
func commandError(out []byte, err error) error {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	var last, lastErr string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		last = line
		if strings.HasPrefix(line, "ERROR:") {
			lastErr = strings.TrimPrefix(line, "ERROR: ")
		}
	}
	switch {
	case lastErr != "":
		return fmt.Errorf("%s", lastErr)
	case last != "":
		return fmt.Errorf("%s: %s", err, last)
	default:
		return err
	}
}
