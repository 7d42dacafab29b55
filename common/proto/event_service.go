package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	EventService_RegisterInterpreterProcess_FullMethodName   = "/notebook.EventService/RegisterInterpreterProcess"
	EventService_UnregisterInterpreterProcess_FullMethodName = "/notebook.EventService/UnregisterInterpreterProcess"
	EventService_AddAngularObject_FullMethodName             = "/notebook.EventService/AddAngularObject"
	EventService_UpdateAngularObject_FullMethodName          = "/notebook.EventService/UpdateAngularObject"
	EventService_RemoveAngularObject_FullMethodName          = "/notebook.EventService/RemoveAngularObject"
	EventService_GetAllResources_FullMethodName              = "/notebook.EventService/GetAllResources"
	EventService_GetResource_FullMethodName                  = "/notebook.EventService/GetResource"
	EventService_InvokeMethod_FullMethodName                 = "/notebook.EventService/InvokeMethod"
)

// EventServiceClient is the client API for the EventService through which worker processes call back
// into the server.
type EventServiceClient interface {
	RegisterInterpreterProcess(ctx context.Context, in *RegisterInfo, opts ...grpc.CallOption) (*RegisterReply, error)
	UnregisterInterpreterProcess(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*Void, error)
	AddAngularObject(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error)
	UpdateAngularObject(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error)
	RemoveAngularObject(ctx context.Context, in *AngularObjectRemoveRequest, opts ...grpc.CallOption) (*Void, error)
	GetAllResources(ctx context.Context, in *ResourcePoolRequest, opts ...grpc.CallOption) (*ResourceSetReply, error)
	GetResource(ctx context.Context, in *ResourceRequest, opts ...grpc.CallOption) (*ResourceReply, error)
	InvokeMethod(ctx context.Context, in *InvokeMethodRequest, opts ...grpc.CallOption) (*InvokeMethodReply, error)
}

type eventServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewEventServiceClient(cc grpc.ClientConnInterface) EventServiceClient {
	return &eventServiceClient{cc}
}

func (c *eventServiceClient) RegisterInterpreterProcess(ctx context.Context, in *RegisterInfo, opts ...grpc.CallOption) (*RegisterReply, error) {
	return invoke[RegisterReply](ctx, c.cc, EventService_RegisterInterpreterProcess_FullMethodName, in, opts)
}

func (c *eventServiceClient) UnregisterInterpreterProcess(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, EventService_UnregisterInterpreterProcess_FullMethodName, in, opts)
}

func (c *eventServiceClient) AddAngularObject(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, EventService_AddAngularObject_FullMethodName, in, opts)
}

func (c *eventServiceClient) UpdateAngularObject(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, EventService_UpdateAngularObject_FullMethodName, in, opts)
}

func (c *eventServiceClient) RemoveAngularObject(ctx context.Context, in *AngularObjectRemoveRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, EventService_RemoveAngularObject_FullMethodName, in, opts)
}

func (c *eventServiceClient) GetAllResources(ctx context.Context, in *ResourcePoolRequest, opts ...grpc.CallOption) (*ResourceSetReply, error) {
	return invoke[ResourceSetReply](ctx, c.cc, EventService_GetAllResources_FullMethodName, in, opts)
}

func (c *eventServiceClient) GetResource(ctx context.Context, in *ResourceRequest, opts ...grpc.CallOption) (*ResourceReply, error) {
	return invoke[ResourceReply](ctx, c.cc, EventService_GetResource_FullMethodName, in, opts)
}

func (c *eventServiceClient) InvokeMethod(ctx context.Context, in *InvokeMethodRequest, opts ...grpc.CallOption) (*InvokeMethodReply, error) {
	return invoke[InvokeMethodReply](ctx, c.cc, EventService_InvokeMethod_FullMethodName, in, opts)
}

// EventServiceServer is the server API for the EventService.
// All implementations must embed UnimplementedEventServiceServer for forward compatibility.
type EventServiceServer interface {
	RegisterInterpreterProcess(context.Context, *RegisterInfo) (*RegisterReply, error)
	UnregisterInterpreterProcess(context.Context, *UnregisterRequest) (*Void, error)
	AddAngularObject(context.Context, *AngularObjectRequest) (*Void, error)
	UpdateAngularObject(context.Context, *AngularObjectRequest) (*Void, error)
	RemoveAngularObject(context.Context, *AngularObjectRemoveRequest) (*Void, error)
	GetAllResources(context.Context, *ResourcePoolRequest) (*ResourceSetReply, error)
	GetResource(context.Context, *ResourceRequest) (*ResourceReply, error)
	InvokeMethod(context.Context, *InvokeMethodRequest) (*InvokeMethodReply, error)
	mustEmbedUnimplementedEventServiceServer()
}

// UnimplementedEventServiceServer must be embedded to have forward compatible implementations.
type UnimplementedEventServiceServer struct{}

func (UnimplementedEventServiceServer) RegisterInterpreterProcess(context.Context, *RegisterInfo) (*RegisterReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RegisterInterpreterProcess not implemented")
}
func (UnimplementedEventServiceServer) UnregisterInterpreterProcess(context.Context, *UnregisterRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UnregisterInterpreterProcess not implemented")
}
func (UnimplementedEventServiceServer) AddAngularObject(context.Context, *AngularObjectRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AddAngularObject not implemented")
}
func (UnimplementedEventServiceServer) UpdateAngularObject(context.Context, *AngularObjectRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateAngularObject not implemented")
}
func (UnimplementedEventServiceServer) RemoveAngularObject(context.Context, *AngularObjectRemoveRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RemoveAngularObject not implemented")
}
func (UnimplementedEventServiceServer) GetAllResources(context.Context, *ResourcePoolRequest) (*ResourceSetReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAllResources not implemented")
}
func (UnimplementedEventServiceServer) GetResource(context.Context, *ResourceRequest) (*ResourceReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetResource not implemented")
}
func (UnimplementedEventServiceServer) InvokeMethod(context.Context, *InvokeMethodRequest) (*InvokeMethodReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method InvokeMethod not implemented")
}
func (UnimplementedEventServiceServer) mustEmbedUnimplementedEventServiceServer() {}

func RegisterEventServiceServer(s grpc.ServiceRegistrar, srv EventServiceServer) {
	s.RegisterService(&EventService_ServiceDesc, srv)
}

// EventService_ServiceDesc is the grpc.ServiceDesc for the EventService.
var EventService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "notebook.EventService",
	HandlerType: (*EventServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterInterpreterProcess", Handler: unaryHandler(EventService_RegisterInterpreterProcess_FullMethodName, EventServiceServer.RegisterInterpreterProcess)},
		{MethodName: "UnregisterInterpreterProcess", Handler: unaryHandler(EventService_UnregisterInterpreterProcess_FullMethodName, EventServiceServer.UnregisterInterpreterProcess)},
		{MethodName: "AddAngularObject", Handler: unaryHandler(EventService_AddAngularObject_FullMethodName, EventServiceServer.AddAngularObject)},
		{MethodName: "UpdateAngularObject", Handler: unaryHandler(EventService_UpdateAngularObject_FullMethodName, EventServiceServer.UpdateAngularObject)},
		{MethodName: "RemoveAngularObject", Handler: unaryHandler(EventService_RemoveAngularObject_FullMethodName, EventServiceServer.RemoveAngularObject)},
		{MethodName: "GetAllResources", Handler: unaryHandler(EventService_GetAllResources_FullMethodName, EventServiceServer.GetAllResources)},
		{MethodName: "GetResource", Handler: unaryHandler(EventService_GetResource_FullMethodName, EventServiceServer.GetResource)},
		{MethodName: "InvokeMethod", Handler: unaryHandler(EventService_InvokeMethod_FullMethodName, EventServiceServer.InvokeMethod)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "event.proto",
}
