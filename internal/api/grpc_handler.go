package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"productflow/internal/domain"
	"productflow/internal/store"
)

// CatalogServiceName is the fully qualified gRPC service name.
const CatalogServiceName = "productflow.v1.CatalogService"

// CatalogServiceServer is the read-only catalog API. Requests and responses are
// google.protobuf.Struct values carrying the same JSON shapes as the REST API.
type CatalogServiceServer interface {
	GetProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalytics(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryMethod(name string, call func(CatalogServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + CatalogServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CatalogServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CatalogServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CatalogServiceDesc describes CatalogServiceServer for grpc.Server.RegisterService.
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetProduct", CatalogServiceServer.GetProduct),
		unaryMethod("ListProducts", CatalogServiceServer.ListProducts),
		unaryMethod("GetAnalytics", CatalogServiceServer.GetAnalytics),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "productflow/v1/catalog.proto",
}

// RegisterCatalogServiceServer registers srv on s.
func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

// GRPCHandler implements CatalogServiceServer on top of the store.
type GRPCHandler struct {
	store  catalogStore
	logger *zap.Logger
	now    func() time.Time
}

type catalogStore interface {
	store.ProductStorer
	store.OfferingStorer
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(s catalogStore, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{store: s, logger: logger, now: time.Now}
}

// --- Helper: Error Mapping ---
func (g *GRPCHandler) mapStoreError(err error, method string) error {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, store.ErrOfferingNotFound):
		return status.Error(codes.NotFound, "offering not found")
	default:
		g.logger.Error("grpc store operation failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// toStruct converts any JSON-encodable value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

// idField accepts the id as a JSON number or a numeric string.
func idField(req *structpb.Struct, name string) (int64, bool) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, false
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		id := int64(kind.NumberValue)
		return id, id > 0 && float64(id) == kind.NumberValue
	case *structpb.Value_StringValue:
		id, err := strconv.ParseInt(kind.StringValue, 10, 64)
		return id, err == nil && id > 0
	default:
		return 0, false
	}
}

// --- CatalogServiceServer Implementation ---

func (g *GRPCHandler) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, ok := idField(req, "id")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}

	product, err := g.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, g.mapStoreError(err, "GetProduct")
	}
	return toStruct(product)
}

func (g *GRPCHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter := domain.ProductFilter{
		ProductType:     stringField(req, "productType"),
		LifecycleStatus: stringField(req, "lifecycleStatus"),
		Format:          stringField(req, "format"),
		Search:          stringField(req, "search"),
	}

	products, err := g.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, g.mapStoreError(err, "ListProducts")
	}
	if products == nil {
		products = []domain.ProductWithOfferings{}
	}
	return toStruct(map[string]any{"products": products, "count": len(products)})
}

func (g *GRPCHandler) GetAnalytics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report, err := loadAnalytics(ctx, g.store, g.now())
	if err != nil {
		return nil, g.mapStoreError(err, "GetAnalytics")
	}
	return toStruct(report)
}

// UnaryLoggingInterceptor logs every unary call with its status code and duration.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
