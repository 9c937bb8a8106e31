// Package grpc exposes the routing summary over gRPC.
//
// Messages are google.protobuf.Struct values carrying the same JSON shapes as
// POST /routing/summary:
//
//	request:  {tenantId, scope, eventId, recipients: [{recipient, data, profile, preferences}]}
//	response: {results: [...]}
//
// The tenant may also be given as "x-tenant-id" metadata.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/usecase/summary"
)

// Full method name of the summary RPC.
const SummarizeMethod = "/notificationprep.v1.RoutingSummary/Summarize"

// tenantMetadataKey is read when the request carries no tenantId.
const tenantMetadataKey = "x-tenant-id"

// Summarizer evaluates a summary request. *summary.Service satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) ([]summary.Result, error)
}

// RoutingSummaryServer is the server API of the RoutingSummary service.
type RoutingSummaryServer interface {
	Summarize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var routingSummaryServiceDesc = grpc.ServiceDesc{
	ServiceName: "notificationprep.v1.RoutingSummary",
	HandlerType: (*RoutingSummaryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Summarize", Handler: summarizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notificationprep/v1/routing_summary.proto",
}

func summarizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoutingSummaryServer).Summarize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SummarizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoutingSummaryServer).Summarize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterRoutingSummaryServer registers srv on s.
func RegisterRoutingSummaryServer(s grpc.ServiceRegistrar, srv RoutingSummaryServer) {
	s.RegisterService(&routingSummaryServiceDesc, srv)
}

// SummaryServer implements RoutingSummaryServer over a Summarizer.
type SummaryServer struct {
	svc    Summarizer
	logger *slog.Logger
}

// NewSummaryServer creates a SummaryServer.
func NewSummaryServer(svc Summarizer, logger *slog.Logger) *SummaryServer {
	return &SummaryServer{svc: svc, logger: logger}
}

type summaryRequest struct {
	TenantID   string              `json:"tenantId"`
	Scope      string              `json:"scope"`
	EventID    string              `json:"eventId"`
	Recipients []summary.Recipient `json:"recipients"`
}

// Summarize decodes req, runs the summary and encodes the results.
func (s *SummaryServer) Summarize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	var in summaryRequest
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}

	tenantID := strings.TrimSpace(in.TenantID)
	if tenantID == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(tenantMetadataKey); len(v) > 0 {
				tenantID = strings.TrimSpace(v[0])
			}
		}
	}
	if tenantID == "" {
		return nil, status.Error(codes.InvalidArgument, "tenantId is required")
	}

	scope, err := entity.ParseScope(in.Scope)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	results, err := s.svc.Summarize(ctx, summary.Request{
		TenantID:   tenantID,
		Scope:      scope,
		EventID:    in.EventID,
		Recipients: in.Recipients,
	})
	if err != nil {
		return nil, s.toStatus(ctx, tenantID, err)
	}
	return encodeResults(results)
}

func (s *SummaryServer) toStatus(ctx context.Context, tenantID string, err error) error {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, entity.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	s.logger.ErrorContext(ctx, "routing summary failed",
		slog.String("tenant_id", tenantID),
		slog.Any("error", err))
	return status.Error(codes.Internal, "internal error")
}

func encodeResults(results []summary.Result) (*structpb.Struct, error) {
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out, err := structpb.NewStruct(map[string]any{"results": list})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// LoggingInterceptor logs every unary call with its status code and duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.InfoContext(ctx, "grpc request",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)))
		return resp, err
	}
}

// NewServer returns a gRPC server with the summary and standard health
// services registered.
func NewServer(svc Summarizer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterRoutingSummaryServer(s, NewSummaryServer(svc, logger))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(routingSummaryServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}
