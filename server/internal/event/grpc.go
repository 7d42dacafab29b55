package event

import (
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/grpc-opentracing/go/otgrpc"
	"github.com/opentracing/opentracing-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// PanicHandler is notified of panics recovered from gRPC handlers.
type PanicHandler interface {
	HandlePanic(identity string, fatalErr interface{})
}

// GetGrpcOptions builds the grpc.ServerOption slice of the server that serves proto.EventService.
// tracer and panicHandler may be nil.
func GetGrpcOptions(identity string, tracer opentracing.Tracer, panicHandler PanicHandler) []grpc.ServerOption {
	interceptors := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(
			recovery.WithRecoveryHandler(func(p any) (err error) {
				if panicHandler != nil {
					panicHandler.HandlePanic(identity, p)
				}
				return status.Errorf(codes.Internal, "%v", p)
			}),
		),
	}

	if tracer != nil {
		interceptors = append(interceptors, otgrpc.OpenTracingServerInterceptor(tracer))
	}

	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 120 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

// GetDialOptions builds the grpc.DialOption slice used for calls to interpreter processes.
// tracer and clientInterceptor may be nil.
func GetDialOptions(tracer opentracing.Tracer, clientInterceptor grpc.UnaryClientInterceptor) []grpc.DialOption {
	var interceptors []grpc.UnaryClientInterceptor
	if clientInterceptor != nil {
		interceptors = append(interceptors, clientInterceptor)
	}
	if tracer != nil {
		interceptors = append(interceptors, otgrpc.OpenTracingClientInterceptor(tracer))
	}

	if len(interceptors) == 0 {
		return nil
	}
	return []grpc.DialOption{grpc.WithChainUnaryInterceptor(interceptors...)}
}
