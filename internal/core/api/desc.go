package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * regcheck.v1.Evaluator
 *
 * All methods take and return google.protobuf.Struct, so the descriptor is
 * written out here rather than generated from a .proto file. The
 * equivalent IDL:
 *
 *   service Evaluator {
 *     rpc EvaluateProject(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc EvaluateFormulas(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc GetEvaluation(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc ListEvaluations(google.protobuf.Struct) returns (google.protobuf.Struct);
 *   }
 *
 * Field names inside the structs are the JSON names of the Go request and
 * response types in evaluate.go.
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "regcheck.v1.Evaluator"

// EvaluatorServer is the server API for the Evaluator service.
type EvaluatorServer interface {
	EvaluateProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateFormulas(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvaluation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvaluations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterEvaluatorServer registers srv on s.
func RegisterEvaluatorServer(s grpc.ServiceRegistrar, srv EvaluatorServer) {
	s.RegisterService(&EvaluatorServiceDesc, srv)
}

// EvaluatorServiceDesc is the grpc.ServiceDesc for the Evaluator service.
var EvaluatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EvaluateProject", Handler: unaryHandler("EvaluateProject", EvaluatorServer.EvaluateProject)},
		{MethodName: "EvaluateFormulas", Handler: unaryHandler("EvaluateFormulas", EvaluatorServer.EvaluateFormulas)},
		{MethodName: "GetEvaluation", Handler: unaryHandler("GetEvaluation", EvaluatorServer.GetEvaluation)},
		{MethodName: "ListEvaluations", Handler: unaryHandler("ListEvaluations", EvaluatorServer.ListEvaluations)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "regcheck/v1/evaluator.proto",
}

type structMethod func(EvaluatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Struct-to-Struct method to grpc's handler shape,
// running it through the server's interceptor chain.
func unaryHandler(name string, method structMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(EvaluatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(EvaluatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EvaluatorClient calls the Evaluator service.
type EvaluatorClient struct {
	cc grpc.ClientConnInterface
}

// NewEvaluatorClient creates a client over cc.
func NewEvaluatorClient(cc grpc.ClientConnInterface) *EvaluatorClient {
	return &EvaluatorClient{cc: cc}
}

func (c *EvaluatorClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateProject calls Evaluator.EvaluateProject.
func (c *EvaluatorClient) EvaluateProject(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EvaluateProject", in, opts...)
}

// EvaluateFormulas calls Evaluator.EvaluateFormulas.
func (c *EvaluatorClient) EvaluateFormulas(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EvaluateFormulas", in, opts...)
}

// GetEvaluation calls Evaluator.GetEvaluation.
func (c *EvaluatorClient) GetEvaluation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetEvaluation", in, opts...)
}

// ListEvaluations calls Evaluator.ListEvaluations.
func (c *EvaluatorClient) ListEvaluations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListEvaluations", in, opts...)
}
