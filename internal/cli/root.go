// Package cli implements coachctl, the operator command line for the call
// coaching engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/callcoach/internal/config"
	"github.com/ashureev/callcoach/internal/persona"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd builds the coachctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Inspect and exercise the sales call coaching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newVersionCmd(),
		newPersonaCmd(),
		newTurnCmd(),
		newScoreCmd(),
		newProspectServerCmd(),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coachctl %s (persona %s)\n", Version, persona.Version)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig reads .env (or DOTENV_PATH) and then the environment.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		slog.Debug("No .env file loaded", "path", path)
	}
	return config.Load()
}
