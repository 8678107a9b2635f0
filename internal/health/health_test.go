package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/callcoach/internal/runner"
)

type fakeChecker struct{ err error }

func (f fakeChecker) Check(context.Context) error { return f.err }

type fakeRunner struct{ bins map[string]bool }

func (f fakeRunner) Run(context.Context, string, string) (runner.Result, error) {
	return runner.Result{}, nil
}

func (f fakeRunner) Available(_ context.Context, bin string) bool { return f.bins[bin] }

type fakeContainer struct {
	running bool
	err     error
}

func (f fakeContainer) Running(context.Context) (bool, error) { return f.running, f.err }

func voiceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.onnx")
	if err := os.WriteFile(path, []byte("v"), 0o600); err != nil {
		t.Fatalf("write voice: %v", err)
	}
	return path
}

func TestCheckRuntime_AllHealthy(t *testing.T) {
	report := CheckRuntime(context.Background(), Deps{
		Provider:        "ollama",
		Generator:       fakeChecker{},
		WhisperTemplate: `"whisper-cli" -f {input_wav}`,
		PiperTemplate:   `piper --model "{voice_path}"`,
		PiperVoicePath:  voiceFile(t),
		Runner:          fakeRunner{bins: map[string]bool{"whisper-cli": true, "piper": true}},
		Container:       fakeContainer{running: true},
	})

	if !report.OK {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	for _, name := range []string{"ollama", "whisper", "piper", "piper_voice", "speech_container"} {
		if c, ok := report.Checks[name]; !ok || !c.OK || c.Detail != "ok" {
			t.Fatalf("check %s = %+v", name, c)
		}
	}
}

func TestCheckRuntime_Failures(t *testing.T) {
	report := CheckRuntime(context.Background(), Deps{
		Provider:        "ollama",
		Generator:       fakeChecker{err: errors.New("model 'mistral:7b' not installed")},
		WhisperTemplate: "",
		PiperTemplate:   "piper --model x",
		PiperVoicePath:  filepath.Join(t.TempDir(), "missing.onnx"),
		Runner:          fakeRunner{bins: map[string]bool{}},
	})

	if report.OK {
		t.Fatal("expected unhealthy report")
	}
	if report.Checks["ollama"].Detail != "model 'mistral:7b' not installed" {
		t.Fatalf("unexpected generator check %+v", report.Checks["ollama"])
	}
	if report.Checks["whisper"].OK || report.Checks["whisper"].Detail != detailCommandMissing {
		t.Fatalf("unexpected whisper check %+v", report.Checks["whisper"])
	}
	if report.Checks["piper"].OK {
		t.Fatal("expected piper check to fail")
	}
	if report.Checks["piper_voice"].Detail != detailVoiceMissing {
		t.Fatalf("unexpected voice check %+v", report.Checks["piper_voice"])
	}
	if _, ok := report.Checks["speech_container"]; ok {
		t.Fatal("container check should be absent when no container is configured")
	}
}

func TestCheckRuntime_ProviderNoneSkipsGenerator(t *testing.T) {
	report := CheckRuntime(context.Background(), Deps{Provider: "none"})
	if len(report.Checks) != 3 {
		t.Fatalf("expected only speech checks, got %v", report.Checks)
	}
}

func TestCheckRuntime_UninitializedGenerator(t *testing.T) {
	report := CheckRuntime(context.Background(), Deps{Provider: "grpc"})
	if report.Checks["grpc"].OK {
		t.Fatal("expected missing backend to fail")
	}
}

func TestCheckRuntime_StoppedContainer(t *testing.T) {
	report := CheckRuntime(context.Background(), Deps{Container: fakeContainer{running: false}})
	if c := report.Checks["speech_container"]; c.OK || c.Detail != "container not running" {
		t.Fatalf("unexpected container check %+v", c)
	}
}
