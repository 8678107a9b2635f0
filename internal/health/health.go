// Package health reports whether the external runtimes the service depends
// on are installed and reachable.
package health

import (
	"context"
	"os"

	"github.com/ashureev/callcoach/internal/runner"
)

// Check is the result of one dependency probe.
type Check struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Report aggregates all probes. OK is true only when every check passed.
type Report struct {
	OK     bool             `json:"ok"`
	Checks map[string]Check `json:"checks"`
}

// Checker is implemented by generation backends that can be probed.
type Checker interface {
	Check(ctx context.Context) error
}

// ContainerProbe reports whether the speech container is running.
type ContainerProbe interface {
	Running(ctx context.Context) (bool, error)
}

// Deps lists what CheckRuntime probes.
type Deps struct {
	// Provider names the generation backend; "none" skips the probe.
	Provider string
	// Generator is nil when the backend could not be initialized.
	Generator Checker

	WhisperTemplate string
	PiperTemplate   string
	PiperVoicePath  string
	Runner          runner.Runner

	// Container is set when speech tools run inside a container.
	Container ContainerProbe
}

const (
	detailOK             = "ok"
	detailCommandMissing = "command not found or template missing"
	detailVoiceMissing   = "voice file path does not exist"
)

// CheckRuntime probes every dependency in deps.
func CheckRuntime(ctx context.Context, deps Deps) Report {
	checks := make(map[string]Check)

	if deps.Provider != "" && deps.Provider != "none" {
		checks[deps.Provider] = checkGenerator(ctx, deps.Generator)
	}

	checks["whisper"] = checkCommand(ctx, deps.Runner, deps.WhisperTemplate)
	checks["piper"] = checkCommand(ctx, deps.Runner, deps.PiperTemplate)

	voice := Check{Detail: detailVoiceMissing}
	if deps.PiperVoicePath != "" {
		if _, err := os.Stat(deps.PiperVoicePath); err == nil {
			voice = Check{OK: true, Detail: detailOK}
		}
	}
	checks["piper_voice"] = voice

	if deps.Container != nil {
		checks["speech_container"] = checkContainer(ctx, deps.Container)
	}

	report := Report{OK: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			report.OK = false
			break
		}
	}
	return report
}

func checkGenerator(ctx context.Context, gen Checker) Check {
	if gen == nil {
		return Check{Detail: "backend not initialized"}
	}
	if err := gen.Check(ctx); err != nil {
		return Check{Detail: err.Error()}
	}
	return Check{OK: true, Detail: detailOK}
}

func checkCommand(ctx context.Context, run runner.Runner, template string) Check {
	bin := runner.Binary(template)
	if bin == "" || run == nil || !run.Available(ctx, bin) {
		return Check{Detail: detailCommandMissing}
	}
	return Check{OK: true, Detail: detailOK}
}

func checkContainer(ctx context.Context, probe ContainerProbe) Check {
	ok, err := probe.Running(ctx)
	switch {
	case err != nil:
		return Check{Detail: err.Error()}
	case !ok:
		return Check{Detail: "container not running"}
	default:
		return Check{OK: true, Detail: detailOK}
	}
}
