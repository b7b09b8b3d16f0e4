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

// Demucs separates an audio file into stems with the demucs binary. Output
// lands under <workspace>/<model>/<track>/ as one wav per stem.
type Demucs struct {
	binary string
	model  string
}

func NewDemucs(binary, model string) *Demucs {
	if binary == "" {
		binary = "demucs"
	}
	if model == "" {
		model = "htdemucs"
	}
	return &Demucs{binary: binary, model: model}
}

func (d *Demucs) Separate(ctx context.Context, audioPath, workspace, device string) (string, error) {
	args := []string{"-n", d.model, "-o", workspace}
	if device != "" {
		args = append(args, "-d", device)
	}
	args = append(args, audioPath)

	cmd := exec.CommandContext(ctx, d.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &pipeline.SeparateError{Err: commandError(out, err)}
	}

	track := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemsDir := filepath.Join(workspace, d.model, track)
	if _, err := os.Stat(stemsDir); err != nil {
		return "", &pipeline.SeparateError{Err: fmt.Errorf("no output directory produced: %w", err)}
	}

	log.Debug().Str("audio", audioPath).Str("stems_dir", stemsDir).Msg("separation finished")
	return stemsDir, nil
}
