package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/callcoach/internal/dialogue"
	"github.com/ashureev/callcoach/internal/domain"
	"github.com/ashureev/callcoach/internal/llm"
	"github.com/ashureev/callcoach/internal/persona"
	"github.com/ashureev/callcoach/internal/scoring"
)

func newPersonaCmd() *cobra.Command {
	var (
		seed   int64
		recent []string
	)
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Generate the persona for a seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := persona.Generate(seed, persona.RecentFromObjections(recent))
			return writeJSON(cmd, map[string]any{
				"seed":    seed,
				"version": persona.Version,
				"persona": p,
			})
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "Persona seed")
	cmd.Flags().StringSliceVar(&recent, "recent", nil, "Recently used objections to avoid (comma-separated)")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

func newTurnCmd() *cobra.Command {
	var (
		trust, resistance float64
		objection, text   string
		useLLM            bool
	)
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Run one dialogue turn against the prospect",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := domain.ProspectState{Trust: trust, Resistance: resistance}
			if !state.InRange() {
				return fmt.Errorf("--trust and --resistance must be between 0 and 1")
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text is required")
			}

			engine := dialogue.NewEngine(nil, 0, nil)
			if useLLM {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				backend, closeBackend, err := llm.NewBackend(cfg.LLM, cfg.Timeout.LLM, slog.Default())
				if err != nil {
					return fmt.Errorf("init %s backend: %w", cfg.LLM.Provider, err)
				}
				defer closeBackend()
				if backend != nil {
					engine = dialogue.NewEngine(backend, cfg.Timeout.LLM, slog.Default())
				}
			}

			turn := engine.Respond(cmd.Context(), state, text, objection)
			return writeJSON(cmd, map[string]any{
				"text":       turn.Text,
				"trust":      turn.NextState.Trust,
				"resistance": turn.NextState.Resistance,
				"mode":       turn.Mode,
			})
		},
	}
	cmd.Flags().Float64Var(&trust, "trust", domain.DefaultProspectState.Trust, "Current prospect trust (0-1)")
	cmd.Flags().Float64Var(&resistance, "resistance", domain.DefaultProspectState.Resistance, "Current prospect resistance (0-1)")
	cmd.Flags().StringVar(&objection, "objection", "", "Prospect's primary objection (default busy)")
	cmd.Flags().StringVar(&text, "text", "", "Trainee utterance")
	cmd.Flags().BoolVar(&useLLM, "llm", false, "Generate the reply with the configured LLM provider")
	return cmd
}

type scorePayload struct {
	Transcript []domain.TranscriptEntry `json:"transcript"`
	Outcomes   domain.OutcomeFlags      `json:"outcomes"`
}

func newScoreCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a transcript payload ({transcript, outcomes}); use - for stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader
			if file == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open payload: %w", err)
				}
				defer f.Close()
				r = f
			}

			var payload scorePayload
			if err := json.NewDecoder(r).Decode(&payload); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			if err := domain.ValidateTranscript(payload.Transcript); err != nil {
				return err
			}
			return writeJSON(cmd, scoring.Score(payload.Transcript, payload.Outcomes))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON payload")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
