package sentiment

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service the classifier talks to
const ServiceName = "sentiment.v1.SentimentService"

// ClassifyMethod is the unary method taking {"text": ...} and returning
// {"sentiment": ...}, both as google.protobuf.Struct
const ClassifyMethod = "/" + ServiceName + "/Classify"

// GRPCClassifier calls a remote SentimentService over gRPC
type GRPCClassifier struct {
	addr   string
	opts   Options
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewGRPCClassifier creates a client for the service at addr. Extra dial
// options are appended after the defaults.
func NewGRPCClassifier(addr string, opts Options, dialOpts ...grpc.DialOption) (*GRPCClassifier, error) {
	if addr == "" {
		return nil, fmt.Errorf("sentiment gRPC address is required")
	}

	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		// Keepalive settings for long-lived connections
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(addr, append(defaults, dialOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentiment client for %s: %w", addr, err)
	}

	return &GRPCClassifier{
		addr:   addr,
		opts:   opts.withDefaults(),
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Classify asks the service for the sentiment of text
func (c *GRPCClassifier) Classify(ctx context.Context, text string) (string, error) {
	return protectedCall(ctx, c.opts, func(ctx context.Context) (string, error) {
		req, err := structpb.NewStruct(map[string]any{"text": text})
		if err != nil {
			return "", fmt.Errorf("failed to build request: %w", err)
		}

		resp := &structpb.Struct{}
		if err := c.conn.Invoke(ctx, ClassifyMethod, req, resp); err != nil {
			return "", fmt.Errorf("classify call to %s failed: %w", c.addr, err)
		}

		return resp.GetFields()["sentiment"].GetStringValue(), nil
	})
}

// Healthy queries the standard gRPC health service for the sentiment service
func (c *GRPCClassifier) Healthy(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// Close closes the gRPC connection
func (c *GRPCClassifier) Close() error {
	return c.conn.Close()
}
