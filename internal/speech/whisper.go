package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/callcoach/internal/runner"
)

// WhisperCLI transcribes audio with a whisper command line tool.
//
// The template may reference {input_wav}, {output_txt} and {output_dir}.
type WhisperCLI struct {
	template string
	ioDir    string
	run      runner.Runner
}

// NewWhisperCLI creates a transcriber writing scratch files to ioDir.
func NewWhisperCLI(template, ioDir string, run runner.Runner) *WhisperCLI {
	return &WhisperCLI{template: template, ioDir: ioDir, run: run}
}

// Transcribe runs the tool on audio. The transcript is taken from the
// {output_txt} file, then <input stem>.txt, then stdout.
func (w *WhisperCLI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if strings.TrimSpace(w.template) == "" {
		return "", fmt.Errorf("whisper: %w", ErrNotConfigured)
	}
	if len(audio) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(w.ioDir, 0o750); err != nil {
		return "", fmt.Errorf("create runtime io dir: %w", err)
	}

	token := uuid.NewString()
	inputWAV := filepath.Join(w.ioDir, token+"-input.wav")
	outputTXT := filepath.Join(w.ioDir, token+"-output.txt")
	altTXT := filepath.Join(w.ioDir, token+"-input.txt")
	defer removeFiles(inputWAV, outputTXT, altTXT)

	if err := os.WriteFile(inputWAV, audio, 0o600); err != nil {
		return "", fmt.Errorf("write input audio: %w", err)
	}

	command := strings.NewReplacer(
		"{input_wav}", inputWAV,
		"{output_txt}", outputTXT,
		"{output_dir}", w.ioDir,
	).Replace(w.template)

	res, err := w.run.Run(ctx, command, w.ioDir)
	if err != nil {
		return "", fmt.Errorf("STT %w: %v", ErrCommandFailed, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("STT %w: %s", ErrCommandFailed, strings.TrimSpace(res.Stderr))
	}

	for _, path := range []string{outputTXT, altTXT} {
		if text := readTrimmed(path); text != "" {
			return text, nil
		}
	}
	if text := strings.TrimSpace(res.Stdout); text != "" {
		return text, nil
	}

	return "", fmt.Errorf("STT command succeeded but returned no transcript: %w", ErrNoOutput)
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Debug("Failed to remove scratch file", "path", p, "error", err)
		}
	}
}
