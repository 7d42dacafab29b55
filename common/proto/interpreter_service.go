package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	InterpreterService_CreateInterpreter_FullMethodName    = "/notebook.InterpreterService/CreateInterpreter"
	InterpreterService_Open_FullMethodName                 = "/notebook.InterpreterService/Open"
	InterpreterService_Close_FullMethodName                = "/notebook.InterpreterService/Close"
	InterpreterService_Interpret_FullMethodName            = "/notebook.InterpreterService/Interpret"
	InterpreterService_Cancel_FullMethodName               = "/notebook.InterpreterService/Cancel"
	InterpreterService_GetFormType_FullMethodName          = "/notebook.InterpreterService/GetFormType"
	InterpreterService_GetProgress_FullMethodName          = "/notebook.InterpreterService/GetProgress"
	InterpreterService_Completion_FullMethodName           = "/notebook.InterpreterService/Completion"
	InterpreterService_GetStatus_FullMethodName            = "/notebook.InterpreterService/GetStatus"
	InterpreterService_AngularRegistryPush_FullMethodName  = "/notebook.InterpreterService/AngularRegistryPush"
	InterpreterService_AngularObjectAdd_FullMethodName     = "/notebook.InterpreterService/AngularObjectAdd"
	InterpreterService_AngularObjectUpdate_FullMethodName  = "/notebook.InterpreterService/AngularObjectUpdate"
	InterpreterService_AngularObjectRemove_FullMethodName  = "/notebook.InterpreterService/AngularObjectRemove"
	InterpreterService_ResourcePoolGetAll_FullMethodName   = "/notebook.InterpreterService/ResourcePoolGetAll"
	InterpreterService_ResourceGet_FullMethodName          = "/notebook.InterpreterService/ResourceGet"
	InterpreterService_ResourceInvokeMethod_FullMethodName = "/notebook.InterpreterService/ResourceInvokeMethod"
	InterpreterService_Shutdown_FullMethodName             = "/notebook.InterpreterService/Shutdown"
)

// InterpreterServiceClient is the client API for the InterpreterService exposed by worker processes.
type InterpreterServiceClient interface {
	CreateInterpreter(ctx context.Context, in *CreateInterpreterRequest, opts ...grpc.CallOption) (*Void, error)
	Open(ctx context.Context, in *InterpreterRequest, opts ...grpc.CallOption) (*Void, error)
	Close(ctx context.Context, in *InterpreterRequest, opts ...grpc.CallOption) (*Void, error)
	Interpret(ctx context.Context, in *InterpretRequest, opts ...grpc.CallOption) (*RemoteInterpreterResult, error)
	Cancel(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*Void, error)
	GetFormType(ctx context.Context, in *InterpreterRequest, opts ...grpc.CallOption) (*FormTypeReply, error)
	GetProgress(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*ProgressReply, error)
	Completion(ctx context.Context, in *CompletionRequest, opts ...grpc.CallOption) (*CompletionReply, error)
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusReply, error)
	AngularRegistryPush(ctx context.Context, in *AngularRegistryPushRequest, opts ...grpc.CallOption) (*Void, error)
	AngularObjectAdd(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error)
	AngularObjectUpdate(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error)
	AngularObjectRemove(ctx context.Context, in *AngularObjectRemoveRequest, opts ...grpc.CallOption) (*Void, error)
	ResourcePoolGetAll(ctx context.Context, in *ResourcePoolRequest, opts ...grpc.CallOption) (*ResourceSetReply, error)
	ResourceGet(ctx context.Context, in *ResourceRequest, opts ...grpc.CallOption) (*ResourceReply, error)
	ResourceInvokeMethod(ctx context.Context, in *InvokeMethodRequest, opts ...grpc.CallOption) (*InvokeMethodReply, error)
	Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*Void, error)
}

type interpreterServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInterpreterServiceClient(cc grpc.ClientConnInterface) InterpreterServiceClient {
	return &interpreterServiceClient{cc}
}

func (c *interpreterServiceClient) CreateInterpreter(ctx context.Context, in *CreateInterpreterRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_CreateInterpreter_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) Open(ctx context.Context, in *InterpreterRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_Open_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) Close(ctx context.Context, in *InterpreterRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_Close_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) Interpret(ctx context.Context, in *InterpretRequest, opts ...grpc.CallOption) (*RemoteInterpreterResult, error) {
	return invoke[RemoteInterpreterResult](ctx, c.cc, InterpreterService_Interpret_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) Cancel(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_Cancel_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) GetFormType(ctx context.Context, in *InterpreterRequest, opts ...grpc.CallOption) (*FormTypeReply, error) {
	return invoke[FormTypeReply](ctx, c.cc, InterpreterService_GetFormType_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) GetProgress(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*ProgressReply, error) {
	return invoke[ProgressReply](ctx, c.cc, InterpreterService_GetProgress_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) Completion(ctx context.Context, in *CompletionRequest, opts ...grpc.CallOption) (*CompletionReply, error) {
	return invoke[CompletionReply](ctx, c.cc, InterpreterService_Completion_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusReply, error) {
	return invoke[StatusReply](ctx, c.cc, InterpreterService_GetStatus_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) AngularRegistryPush(ctx context.Context, in *AngularRegistryPushRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_AngularRegistryPush_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) AngularObjectAdd(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_AngularObjectAdd_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) AngularObjectUpdate(ctx context.Context, in *AngularObjectRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_AngularObjectUpdate_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) AngularObjectRemove(ctx context.Context, in *AngularObjectRemoveRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_AngularObjectRemove_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) ResourcePoolGetAll(ctx context.Context, in *ResourcePoolRequest, opts ...grpc.CallOption) (*ResourceSetReply, error) {
	return invoke[ResourceSetReply](ctx, c.cc, InterpreterService_ResourcePoolGetAll_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) ResourceGet(ctx context.Context, in *ResourceRequest, opts ...grpc.CallOption) (*ResourceReply, error) {
	return invoke[ResourceReply](ctx, c.cc, InterpreterService_ResourceGet_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) ResourceInvokeMethod(ctx context.Context, in *InvokeMethodRequest, opts ...grpc.CallOption) (*InvokeMethodReply, error) {
	return invoke[InvokeMethodReply](ctx, c.cc, InterpreterService_ResourceInvokeMethod_FullMethodName, in, opts)
}

func (c *interpreterServiceClient) Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, InterpreterService_Shutdown_FullMethodName, in, opts)
}

// InterpreterServiceServer is the server API for the InterpreterService.
// All implementations must embed UnimplementedInterpreterServiceServer for forward compatibility.
type InterpreterServiceServer interface {
	CreateInterpreter(context.Context, *CreateInterpreterRequest) (*Void, error)
	Open(context.Context, *InterpreterRequest) (*Void, error)
	Close(context.Context, *InterpreterRequest) (*Void, error)
	Interpret(context.Context, *InterpretRequest) (*RemoteInterpreterResult, error)
	Cancel(context.Context, *ContextRequest) (*Void, error)
	GetFormType(context.Context, *InterpreterRequest) (*FormTypeReply, error)
	GetProgress(context.Context, *ContextRequest) (*ProgressReply, error)
	Completion(context.Context, *CompletionRequest) (*CompletionReply, error)
	GetStatus(context.Context, *StatusRequest) (*StatusReply, error)
	AngularRegistryPush(context.Context, *AngularRegistryPushRequest) (*Void, error)
	AngularObjectAdd(context.Context, *AngularObjectRequest) (*Void, error)
	AngularObjectUpdate(context.Context, *AngularObjectRequest) (*Void, error)
	AngularObjectRemove(context.Context, *AngularObjectRemoveRequest) (*Void, error)
	ResourcePoolGetAll(context.Context, *ResourcePoolRequest) (*ResourceSetReply, error)
	ResourceGet(context.Context, *ResourceRequest) (*ResourceReply, error)
	ResourceInvokeMethod(context.Context, *InvokeMethodRequest) (*InvokeMethodReply, error)
	Shutdown(context.Context, *ShutdownRequest) (*Void, error)
	mustEmbedUnimplementedInterpreterServiceServer()
}

// UnimplementedInterpreterServiceServer must be embedded to have forward compatible implementations.
type UnimplementedInterpreterServiceServer struct{}

func (UnimplementedInterpreterServiceServer) CreateInterpreter(context.Context, *CreateInterpreterRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateInterpreter not implemented")
}
func (UnimplementedInterpreterServiceServer) Open(context.Context, *InterpreterRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Open not implemented")
}
func (UnimplementedInterpreterServiceServer) Close(context.Context, *InterpreterRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Close not implemented")
}
func (UnimplementedInterpreterServiceServer) Interpret(context.Context, *InterpretRequest) (*RemoteInterpreterResult, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Interpret not implemented")
}
func (UnimplementedInterpreterServiceServer) Cancel(context.Context, *ContextRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Cancel not implemented")
}
func (UnimplementedInterpreterServiceServer) GetFormType(context.Context, *InterpreterRequest) (*FormTypeReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetFormType not implemented")
}
func (UnimplementedInterpreterServiceServer) GetProgress(context.Context, *ContextRequest) (*ProgressReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetProgress not implemented")
}
func (UnimplementedInterpreterServiceServer) Completion(context.Context, *CompletionRequest) (*CompletionReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Completion not implemented")
}
func (UnimplementedInterpreterServiceServer) GetStatus(context.Context, *StatusRequest) (*StatusReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}
func (UnimplementedInterpreterServiceServer) AngularRegistryPush(context.Context, *AngularRegistryPushRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AngularRegistryPush not implemented")
}
func (UnimplementedInterpreterServiceServer) AngularObjectAdd(context.Context, *AngularObjectRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AngularObjectAdd not implemented")
}
func (UnimplementedInterpreterServiceServer) AngularObjectUpdate(context.Context, *AngularObjectRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AngularObjectUpdate not implemented")
}
func (UnimplementedInterpreterServiceServer) AngularObjectRemove(context.Context, *AngularObjectRemoveRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AngularObjectRemove not implemented")
}
func (UnimplementedInterpreterServiceServer) ResourcePoolGetAll(context.Context, *ResourcePoolRequest) (*ResourceSetReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ResourcePoolGetAll not implemented")
}
func (UnimplementedInterpreterServiceServer) ResourceGet(context.Context, *ResourceRequest) (*ResourceReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ResourceGet not implemented")
}
func (UnimplementedInterpreterServiceServer) ResourceInvokeMethod(context.Context, *InvokeMethodRequest) (*InvokeMethodReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ResourceInvokeMethod not implemented")
}
func (UnimplementedInterpreterServiceServer) Shutdown(context.Context, *ShutdownRequest) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Shutdown not implemented")
}
func (UnimplementedInterpreterServiceServer) mustEmbedUnimplementedInterpreterServiceServer() {}

func RegisterInterpreterServiceServer(s grpc.ServiceRegistrar, srv InterpreterServiceServer) {
	s.RegisterService(&InterpreterService_ServiceDesc, srv)
}

// InterpreterService_ServiceDesc is the grpc.ServiceDesc for the InterpreterService.
var InterpreterService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "notebook.InterpreterService",
	HandlerType: (*InterpreterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateInterpreter", Handler: unaryHandler(InterpreterService_CreateInterpreter_FullMethodName, InterpreterServiceServer.CreateInterpreter)},
		{MethodName: "Open", Handler: unaryHandler(InterpreterService_Open_FullMethodName, InterpreterServiceServer.Open)},
		{MethodName: "Close", Handler: unaryHandler(InterpreterService_Close_FullMethodName, InterpreterServiceServer.Close)},
		{MethodName: "Interpret", Handler: unaryHandler(InterpreterService_Interpret_FullMethodName, InterpreterServiceServer.Interpret)},
		{MethodName: "Cancel", Handler: unaryHandler(InterpreterService_Cancel_FullMethodName, InterpreterServiceServer.Cancel)},
		{MethodName: "GetFormType", Handler: unaryHandler(InterpreterService_GetFormType_FullMethodName, InterpreterServiceServer.GetFormType)},
		{MethodName: "GetProgress", Handler: unaryHandler(InterpreterService_GetProgress_FullMethodName, InterpreterServiceServer.GetProgress)},
		{MethodName: "Completion", Handler: unaryHandler(InterpreterService_Completion_FullMethodName, InterpreterServiceServer.Completion)},
		{MethodName: "GetStatus", Handler: unaryHandler(InterpreterService_GetStatus_FullMethodName, InterpreterServiceServer.GetStatus)},
		{MethodName: "AngularRegistryPush", Handler: unaryHandler(InterpreterService_AngularRegistryPush_FullMethodName, InterpreterServiceServer.AngularRegistryPush)},
		{MethodName: "AngularObjectAdd", Handler: unaryHandler(InterpreterService_AngularObjectAdd_FullMethodName, InterpreterServiceServer.AngularObjectAdd)},
		{MethodName: "AngularObjectUpdate", Handler: unaryHandler(InterpreterService_AngularObjectUpdate_FullMethodName, InterpreterServiceServer.AngularObjectUpdate)},
		{MethodName: "AngularObjectRemove", Handler: unaryHandler(InterpreterService_AngularObjectRemove_FullMethodName, InterpreterServiceServer.AngularObjectRemove)},
		{MethodName: "ResourcePoolGetAll", Handler: unaryHandler(InterpreterService_ResourcePoolGetAll_FullMethodName, InterpreterServiceServer.ResourcePoolGetAll)},
		{MethodName: "ResourceGet", Handler: unaryHandler(InterpreterService_ResourceGet_FullMethodName, InterpreterServiceServer.ResourceGet)},
		{MethodName: "ResourceInvokeMethod", Handler: unaryHandler(InterpreterService_ResourceInvokeMethod_FullMethodName, InterpreterServiceServer.ResourceInvokeMethod)},
		{MethodName: "Shutdown", Handler: unaryHandler(InterpreterService_Shutdown_FullMethodName, InterpreterServiceServer.Shutdown)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "interpreter.proto",
}
