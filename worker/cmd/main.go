package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/Scusemua/go-utils/config"
	"github.com/opentracing/opentracing-go"

	"github.com/scusemua/notebook-runtime/common/consul"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/tracing"
	"github.com/scusemua/notebook-runtime/worker/builtin"
	"github.com/scusemua/notebook-runtime/worker/daemon"
	"github.com/scusemua/notebook-runtime/worker/domain"
)

const (
	ServiceName = "interpreter-worker"
)

var (
	options      = domain.WorkerOptions{}
	globalLogger = config.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)

	options.ReconnectIntervalSec = domain.DefaultReconnectIntervalSec
	options.RegisterTimeoutSec = domain.DefaultRegisterTimeoutSec
}

// Serves the endpoints registered by net/http/pprof.
// This should be called from its own goroutine.
func createAndStartDebugHttpServer() {
	var address = fmt.Sprintf(":%d", options.DebugPort)
	log.Printf("Serving debug HTTP server: %s\n", address)

	if err := http.ListenAndServe(address, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

// ValidateOptions ensures that the options/configuration is valid.
func ValidateOptions() {
	flags, err := config.ValidateOptions(&options)
	if errors.Is(err, config.ErrPrintUsage) {
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}
}

func CreateConsulAndTracer(options *domain.WorkerOptions) (opentracing.Tracer, *consul.Client) {
	var (
		tracer       opentracing.Tracer
		consulClient *consul.Client
		err          error
	)

	if options.JaegerAddr != "" {
		globalLogger.Info("Initializing jaeger agent [service name: %v | host: %v]...", ServiceName, options.JaegerAddr)

		tracer, err = tracing.Init(ServiceName, options.JaegerAddr)
		if err != nil {
			log.Fatalf("Got error while initializing jaeger agent: %v", err)
		}
		opentracing.SetGlobalTracer(tracer)
		globalLogger.Info("Jaeger agent initialized")
	}

	if options.ConsulAddr != "" {
		globalLogger.Info("Initializing consul agent [host: %v]...", options.ConsulAddr)
		consulClient, err = consul.NewClient(options.ConsulAddr)
		if err != nil {
			log.Fatalf("Got error while initializing consul agent: %v", err)
		}
		globalLogger.Info("Consul agent initialized")
	}

	return tracer, consulClient
}

func main() {
	defer finalize(false, "Main thread")

	ValidateOptions()

	if options.PrettyPrintOptions {
		globalLogger.Info("Starting the interpreter worker of group %s with the following options:\n%s\n", options.GroupId, options.PrettyString(2))
	} else {
		globalLogger.Info("Starting the interpreter worker of group %s.", options.GroupId)
	}

	if options.DebugMode {
		go createAndStartDebugHttpServer()
	}

	tracer, consulClient := CreateConsulAndTracer(&options)

	metricsManager := metrics.NewPrometheusManager(options.PrometheusPort, options.GroupId, metrics.InterpreterWorker)
	if err := metricsManager.Start(); err != nil {
		log.Fatalf("Failed to start the Prometheus manager: %v", err)
	}

	// A nil *consul.Client must not end up in a non-nil interface.
	var resolver daemon.Resolver
	if consulClient != nil {
		resolver = consulClient
	}

	worker := daemon.NewWorker(&options, builtin.NewFactoryRegistry(), tracer, resolver, metricsManager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start detecting stop signals
	go func() {
		select {
		case <-sig:
			globalLogger.Info("Shutting down...")
			cancel()
		case <-worker.Done():
		}
	}()

	err := worker.Run(ctx)
	_ = metricsManager.Stop()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		globalLogger.Info("Interpreter worker of group %s exited.", options.GroupId)
	default:
		globalLogger.Error("Interpreter worker of group %s failed: %v", options.GroupId, err)
		os.Exit(1)
	}
}

func finalize(fix bool, identity string) {
	if !fix {
		return
	}

	if err := recover(); err != nil {
		globalLogger.Error("%s panicked: %v", identity, err)
		debug.PrintStack()
	}

	sig <- syscall.SIGINT
}
