package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "cardscan.v1.ContactsService"

// ContactsServer is the server API for cardscan.v1.ContactsService.
type ContactsServer interface {
	// ExtractCards submits a batch of images and returns its pending units.
	ExtractCards(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListWorkUnits(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	DiscardWorkUnit(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ListContacts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReloadContacts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	UpdateContact(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteContact(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ClearContacts(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ExportContacts(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

func RegisterContactsServer(s grpc.ServiceRegistrar, srv ContactsServer) {
	s.RegisterService(&ContactsServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodDesc handler.
func unary[Req any](method string, call func(ContactsServer, context.Context, *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ContactsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ContactsServer), ctx, req.(*Req))
			})
		},
	}
}

var ContactsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContactsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ExtractCards", func(s ContactsServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ExtractCards(ctx, in)
		}),
		unary("ListWorkUnits", func(s ContactsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.ListWorkUnits(ctx, in)
		}),
		unary("DiscardWorkUnit", func(s ContactsServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.DiscardWorkUnit(ctx, in)
		}),
		unary("ListContacts", func(s ContactsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.ListContacts(ctx, in)
		}),
		unary("ReloadContacts", func(s ContactsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.ReloadContacts(ctx, in)
		}),
		unary("UpdateContact", func(s ContactsServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.UpdateContact(ctx, in)
		}),
		unary("DeleteContact", func(s ContactsServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.DeleteContact(ctx, in)
		}),
		unary("ClearContacts", func(s ContactsServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ClearContacts(ctx, in)
		}),
		unary("ExportContacts", func(s ContactsServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ExportContacts(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardscan/v1/contacts.proto",
}
