package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/repository"
)

// ContractStatusServiceName is the fully qualified gRPC service name.
const ContractStatusServiceName = "contracts.v1.ContractStatus"

const (
	getStatusMethod     = "/" + ContractStatusServiceName + "/GetStatus"
	listContractsMethod = "/" + ContractStatusServiceName + "/ListContracts"
)

// ContractStatusServer answers status queries. Requests and responses are
// google.protobuf.Struct messages shaped like the HTTP JSON views.
type ContractStatusServer interface {
	GetStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListContracts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ContractStatusServiceDesc registers ContractStatusServer on a grpc.Server.
var ContractStatusServiceDesc = grpc.ServiceDesc{
	ServiceName: ContractStatusServiceName,
	HandlerType: (*ContractStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "ListContracts", Handler: listContractsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contracts/v1/status.proto",
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContractStatusServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContractStatusServer).GetStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listContractsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContractStatusServer).ListContracts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listContractsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContractStatusServer).ListContracts(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// StatusService implements ContractStatusServer on top of ContractService.
type StatusService struct {
	svc    *ContractService
	logger *slog.Logger
}

func NewStatusService(svc *ContractService, logger *slog.Logger) *StatusService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusService{svc: svc, logger: logger}
}

func (s *StatusService) GetStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw := in.GetFields()["id"].GetStringValue()
	v := common.NewValidator().Field("id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	c, err := s.svc.Status(ctx, uuid.MustParse(raw))
	if err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	out, err := toStruct(newStatusView(c))
	if err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	return out, nil
}

func (s *StatusService) ListContracts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	page := int(fields["page"].GetNumberValue())
	limit := int(fields["limit"].GetNumberValue())
	statusRaw := fields["status"].GetStringValue()

	v := common.NewValidator().Field("status", statusRaw, common.OneOf(constants.StatusValues()...))
	if page != 0 {
		v.Field("page", page, common.IntRange(1, 1<<31-1))
	}
	if limit != 0 {
		v.Field("limit", limit, common.IntRange(1, repository.MaxPageLimit))
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	params := repository.ListParams{Page: page, Limit: limit}
	if st, ok := constants.ParseStatus(statusRaw); ok {
		params.Status = &st
	}
	p, err := s.svc.List(ctx, params)
	if err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	out, err := toStruct(newPageView(p))
	if err != nil {
		return nil, common.ToGRPCStatus(err)
	}
	return out, nil
}

// NewGRPCServer returns a server carrying the health service and
// ContractStatus. The health service starts out SERVING.
func NewGRPCServer(svc *ContractService, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryLogger(logger))}, opts...)
	srv := grpc.NewServer(opts...)

	srv.RegisterService(&ContractStatusServiceDesc, NewStatusService(svc, logger))

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ContractStatusServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return srv, hs
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		resp, err := handler(ctx, req)
		attrs := []any{
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("grpc.request", append(attrs, "error", err)...)
		} else {
			logger.Debug("grpc.request", attrs...)
		}
		return resp, err
	}
}

// StatusClient calls ContractStatus.
type StatusClient struct {
	cc grpc.ClientConnInterface
}

func NewStatusClient(cc grpc.ClientConnInterface) *StatusClient {
	return &StatusClient{cc: cc}
}

func (c *StatusClient) GetStatus(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContracts passes zero values through; the server applies defaults.
func (c *StatusClient) ListContracts(ctx context.Context, page, limit int, statusFilter string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{
		"page":   page,
		"limit":  limit,
		"status": statusFilter,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listContractsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
