package daemon

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

// GetGrpcOptions builds the grpc.ServerOption slice of the server that serves proto.InterpreterService
// over the uplink. tracer and onPanic may be nil.
func GetGrpcOptions(tracer opentracing.Tracer, onPanic func(p any)) []grpc.ServerOption {
	interceptors := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(
			recovery.WithRecoveryHandler(func(p any) error {
				if onPanic != nil {
					onPanic(p)
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
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

// GetDialOptions builds the grpc.DialOption slice used for calls to the notebook server.
// tracer and clientInterceptor may be nil.
func GetDialOptions(tracer opentracing.Tracer, clientInterceptor grpc.UnaryClientInterceptor) []grpc.DialOption {
	var interceptors []grpc.UnaryClientInterceptor
	if clientInterceptor != nil {
		interceptors = append(interceptors, clientInterceptor)
	}
	if tracer != nil {
		interceptors = append(interceptors, otgrpc.OpenTracingClientInterceptor(tracer))
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             120 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if len(interceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(interceptors...))
	}
	return opts
}
