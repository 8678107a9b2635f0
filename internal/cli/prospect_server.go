package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/callcoach/internal/llm"
)

func newProspectServerCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "prospect-server",
		Short: "Serve the configured LLM provider as a gRPC prospect service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.LLM.Provider == llm.ProviderGRPC || cfg.LLM.Provider == llm.ProviderNone {
				return fmt.Errorf("prospect-server needs a local provider, got LLM_PROVIDER=%s", cfg.LLM.Provider)
			}

			backend, closeBackend, err := llm.NewBackend(cfg.LLM, cfg.Timeout.LLM, slog.Default())
			if err != nil {
				return fmt.Errorf("init %s backend: %w", cfg.LLM.Provider, err)
			}
			defer closeBackend()

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			slog.Info("Prospect service listening", "address", lis.Addr().String(), "provider", cfg.LLM.Provider)
			return serveProspect(cmd.Context(), lis, backend)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":50051", "Listen address")
	return cmd
}

// serveProspect serves gen on lis until ctx is done.
func serveProspect(ctx context.Context, lis net.Listener, gen llm.TextGenerator) error {
	srv := grpc.NewServer()
	llm.RegisterProspectService(srv, gen)

	hs := health.NewServer()
	hs.SetServingStatus(llm.ProspectServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		slog.Info("Prospect service shutting down", "reason", ctx.Err())
		hs.Shutdown()
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
