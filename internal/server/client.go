package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ContactsClient calls cardscan.v1.ContactsService.
type ContactsClient struct {
	cc grpc.ClientConnInterface
}

func NewContactsClient(cc grpc.ClientConnInterface) *ContactsClient {
	return &ContactsClient{cc: cc}
}

func invoke[Out any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Out, error) {
	out := new(Out)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ContactsClient) ExtractCards(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ExtractCards", in, opts...)
}

func (c *ContactsClient) ListWorkUnits(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListWorkUnits", &emptypb.Empty{}, opts...)
}

func (c *ContactsClient) DiscardWorkUnit(ctx context.Context, clientID string, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "DiscardWorkUnit", wrapperspb.String(clientID), opts...)
	return err
}

func (c *ContactsClient) ListContacts(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ListContacts", &emptypb.Empty{}, opts...)
}

func (c *ContactsClient) ReloadContacts(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ReloadContacts", &emptypb.Empty{}, opts...)
}

func (c *ContactsClient) UpdateContact(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "UpdateContact", in, opts...)
	return err
}

func (c *ContactsClient) DeleteContact(ctx context.Context, storeID string, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "DeleteContact", wrapperspb.String(storeID), opts...)
	return err
}

func (c *ContactsClient) ClearContacts(ctx context.Context, confirm bool, opts ...grpc.CallOption) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"confirm": structpb.NewBoolValue(confirm)}}
	_, err := invoke[emptypb.Empty](ctx, c.cc, "ClearContacts", in, opts...)
	return err
}

func (c *ContactsClient) ExportContacts(ctx context.Context, poc, format string, opts ...grpc.CallOption) ([]byte, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"poc_name": structpb.NewStringValue(poc),
		"format":   structpb.NewStringValue(format),
	}}
	out, err := invoke[wrapperspb.BytesValue](ctx, c.cc, "ExportContacts", in, opts...)
	if err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}
