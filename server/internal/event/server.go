package event

import (
	"context"
	"errors"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/resource"
	"github.com/scusemua/notebook-runtime/common/types"
)

// Server implements proto.EventService, through which interpreter processes register themselves,
// report changes of their angular objects, and reach the resource pools of other processes.
type Server struct {
	proto.UnimplementedEventServiceServer

	log logger.Logger

	registrar *Registrar
	router    Router
	metrics   *metrics.PrometheusManager
}

// NewServer creates a Server. metricsManager may be nil.
func NewServer(registrar *Registrar, router Router, metricsManager *metrics.PrometheusManager) *Server {
	srv := &Server{
		registrar: registrar,
		router:    router,
		metrics:   metricsManager,
	}
	config.InitLogger(&srv.log, srv)

	registrar.SetRouter(router)
	return srv
}

func (srv *Server) RegisterInterpreterProcess(ctx context.Context, in *proto.RegisterInfo) (*proto.RegisterReply, error) {
	if in.GroupId == "" {
		return nil, status.Error(codes.InvalidArgument, "registration without group id")
	}

	conn, err := srv.registrar.Register(ctx, in)
	if err != nil {
		return nil, err
	}

	return &proto.RegisterReply{
		Token:         conn.Token(),
		ExecutionMode: srv.router.ExecutionMode(in.GroupId).String(),
	}, nil
}

func (srv *Server) UnregisterInterpreterProcess(_ context.Context, in *proto.UnregisterRequest) (*proto.Void, error) {
	if !srv.registrar.Unregister(in.Token) {
		srv.log.Warn("Process of group %s unregistered unknown token %s.", in.GroupId, in.Token)
	}
	return proto.VOID, nil
}

func (srv *Server) AddAngularObject(_ context.Context, in *proto.AngularObjectRequest) (*proto.Void, error) {
	registry, data, err := srv.decodeAngularObject(in)
	if err != nil {
		return nil, err
	}

	registry.Add(data.Name, data.Object, data.NoteId, data.ParagraphId, in.Origin)
	srv.recordAngularEvent("add")
	return proto.VOID, nil
}

func (srv *Server) UpdateAngularObject(_ context.Context, in *proto.AngularObjectRequest) (*proto.Void, error) {
	registry, data, err := srv.decodeAngularObject(in)
	if err != nil {
		return nil, err
	}

	if _, ok := registry.Update(data.Name, data.Object, data.NoteId, data.ParagraphId, in.Origin); !ok {
		// The update raced with a removal on this side.
		registry.Add(data.Name, data.Object, data.NoteId, data.ParagraphId, in.Origin)
	}
	srv.recordAngularEvent("update")
	return proto.VOID, nil
}

func (srv *Server) RemoveAngularObject(_ context.Context, in *proto.AngularObjectRemoveRequest) (*proto.Void, error) {
	registry, err := srv.router.AngularRegistry(in.GroupId)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	registry.Remove(in.Name, in.NoteId, in.ParagraphId, in.Origin)
	srv.recordAngularEvent("remove")
	return proto.VOID, nil
}

func (srv *Server) decodeAngularObject(in *proto.AngularObjectRequest) (*angular.Registry, angular.Data, error) {
	registry, err := srv.router.AngularRegistry(in.GroupId)
	if err != nil {
		return nil, angular.Data{}, types.ToStatusError(err)
	}

	data, err := angular.DataFromJson(in.Object)
	if err != nil {
		srv.log.Warn("Discarding malformed angular object from group %s: %v", in.GroupId, err)
		return nil, angular.Data{}, types.ToStatusError(err)
	}

	return registry, data, nil
}

func (srv *Server) recordAngularEvent(kind string) {
	if srv.metrics != nil {
		srv.metrics.RecordAngularEvent("received", kind)
	}
}

// GetAllResources collects the resources of every running group except the caller's.
// A group that cannot be reached is skipped.
func (srv *Server) GetAllResources(ctx context.Context, in *proto.ResourcePoolRequest) (*proto.ResourceSetReply, error) {
	reply := &proto.ResourceSetReply{Resources: make([]string, 0)}

	for _, owner := range srv.router.ResourceOwners(in.GroupId) {
		set, err := owner.ResourcePoolGetAll(ctx)
		if err != nil {
			srv.log.Warn("Failed to list the resources of group %s: %v", owner.GroupId(), err)
			continue
		}
		reply.Resources = append(reply.Resources, set.Resources...)
	}

	return reply, nil
}

func (srv *Server) GetResource(ctx context.Context, in *proto.ResourceRequest) (*proto.ResourceReply, error) {
	id, err := resource.IdFromJson(in.ResourceId)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	owner, err := srv.router.ResourceOwner(id.ResourcePoolId)
	if err != nil {
		return &proto.ResourceReply{Found: false}, nil
	}

	reply, err := owner.ResourceGet(ctx, in)
	if err != nil {
		srv.log.Warn("Failed to read resource %s from group %s: %v", id, owner.GroupId(), err)
		return &proto.ResourceReply{Found: false}, nil
	}
	return reply, nil
}

func (srv *Server) InvokeMethod(ctx context.Context, in *proto.InvokeMethodRequest) (*proto.InvokeMethodReply, error) {
	inv, err := resource.InvocationFromJson(in.Invocation)
	if errors.Is(err, resource.ErrUnsupportedMethod) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	} else if err != nil {
		return nil, types.ToStatusError(err)
	}

	owner, err := srv.router.ResourceOwner(inv.ResourceId.ResourcePoolId)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	return owner.ResourceInvokeMethod(ctx, in)
}
