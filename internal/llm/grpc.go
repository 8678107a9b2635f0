package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ProspectServiceName is the gRPC service implemented by prospect sidecars.
const ProspectServiceName = "callcoach.prospect.v1.ProspectService"

const generateMethod = "/" + ProspectServiceName + "/Generate"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// TextGenerator is the capability served over gRPC.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GRPCConfig holds configuration for the sidecar client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCClient generates replies through a remote prospect service.
type GRPCClient struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewGRPCClient connects to a prospect sidecar and waits until the
// connection is ready. Extra dial options are appended after the defaults.
func NewGRPCClient(cfg GRPCConfig, logger *slog.Logger, extra ...grpc.DialOption) (*GRPCClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, extra...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for prospect service at %s: %w", cfg.Address, err)
	}

	// Fail fast on a bad sidecar endpoint.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("prospect service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to prospect service", "address", cfg.Address)

	return &GRPCClient{conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Generate forwards the prompt to the sidecar.
func (c *GRPCClient) Generate(ctx context.Context, prompt string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, generateMethod, wrapperspb.String(prompt), out); err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return "", fmt.Errorf("%w: prospect service: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(out.GetValue())
	if text == "" {
		return "", fmt.Errorf("%w: prospect service returned empty reply", ErrEmpty)
	}
	return text, nil
}

// Check queries the standard gRPC health service for the prospect service.
func (c *GRPCClient) Check(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: ProspectServiceName,
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("prospect service status %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (c *GRPCClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// RegisterProspectService serves gen as the prospect service on s.
func RegisterProspectService(s grpc.ServiceRegistrar, gen TextGenerator) {
	s.RegisterService(&prospectServiceDesc, gen)
}

var prospectServiceDesc = grpc.ServiceDesc{
	ServiceName: ProspectServiceName,
	HandlerType: (*TextGenerator)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "callcoach/prospect/v1/prospect.proto",
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	call := func(ctx context.Context, req any) (any, error) {
		prompt := req.(*wrapperspb.StringValue).GetValue()
		if strings.TrimSpace(prompt) == "" {
			return nil, status.Error(codes.InvalidArgument, "prompt is required")
		}
		text, err := srv.(TextGenerator).Generate(ctx, prompt)
		if err != nil {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return wrapperspb.String(text), nil
	}

	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	return interceptor(ctx, in, info, call)
}
