package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "screening.v1.ScreeningService"

// ScreeningServer is the unary API of the screening daemon. Requests and
// responses are google.protobuf.Struct documents.
type ScreeningServer interface {
	LoadCriteria(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExtractCriteria(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadCase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OrganizeCase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClassifyCase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ScreeningServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, m unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(ScreeningServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return m(srv.(ScreeningServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScreeningServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("LoadCriteria", ScreeningServer.LoadCriteria),
		unaryHandler("ExtractCriteria", ScreeningServer.ExtractCriteria),
		unaryHandler("LoadCase", ScreeningServer.LoadCase),
		unaryHandler("OrganizeCase", ScreeningServer.OrganizeCase),
		unaryHandler("ClassifyCase", ScreeningServer.ClassifyCase),
		unaryHandler("SetText", ScreeningServer.SetText),
		unaryHandler("GetSession", ScreeningServer.GetSession),
		unaryHandler("Reset", ScreeningServer.Reset),
		unaryHandler("SaveRun", ScreeningServer.SaveRun),
		unaryHandler("ListRuns", ScreeningServer.ListRuns),
		unaryHandler("ExportRuns", ScreeningServer.ExportRuns),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "screening/v1/screening.proto",
}

func RegisterScreeningServer(s grpc.ServiceRegistrar, srv ScreeningServer) {
	s.RegisterService(&ServiceDesc, srv)
}
