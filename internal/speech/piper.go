package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/callcoach/internal/runner"
)

// PiperCLI synthesizes speech with the piper command line tool.
//
// The template may reference {voice_path}, {input_txt} and {output_wav}.
type PiperCLI struct {
	template  string
	voicePath string
	ioDir     string
	run       runner.Runner
}

// NewPiperCLI creates a synthesizer writing scratch files to ioDir.
func NewPiperCLI(template, voicePath, ioDir string, run runner.Runner) *PiperCLI {
	return &PiperCLI{template: template, voicePath: voicePath, ioDir: ioDir, run: run}
}

// Synthesize renders text to WAV bytes.
func (p *PiperCLI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(p.template) == "" {
		return nil, fmt.Errorf("piper: %w", ErrNotConfigured)
	}
	if p.voicePath == "" {
		return nil, fmt.Errorf("%w: no voice path configured", ErrVoiceMissing)
	}
	if _, err := os.Stat(p.voicePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVoiceMissing, p.voicePath)
	}
	if text == "" {
		return nil, nil
	}
	if err := os.MkdirAll(p.ioDir, 0o750); err != nil {
		return nil, fmt.Errorf("create runtime io dir: %w", err)
	}

	token := uuid.NewString()
	inputTXT := filepath.Join(p.ioDir, token+"-input.txt")
	outputWAV := filepath.Join(p.ioDir, token+"-output.wav")
	defer removeFiles(inputTXT, outputWAV)

	if err := os.WriteFile(inputTXT, []byte(text), 0o600); err != nil {
		return nil, fmt.Errorf("write input text: %w", err)
	}

	command := strings.NewReplacer(
		"{voice_path}", p.voicePath,
		"{input_txt}", inputTXT,
		"{output_wav}", outputWAV,
	).Replace(p.template)

	res, err := p.run.Run(ctx, command, p.ioDir)
	if err != nil {
		return nil, fmt.Errorf("TTS %w: %v", ErrCommandFailed, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("TTS %w: %s", ErrCommandFailed, strings.TrimSpace(res.Stderr))
	}

	wav, err := os.ReadFile(outputWAV)
	if err != nil || len(wav) == 0 {
		return nil, fmt.Errorf("TTS command succeeded but produced no audio: %w", ErrNoOutput)
	}
	return wav, nil
}
