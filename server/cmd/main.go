package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"google.golang.org/grpc"

	"github.com/scusemua/notebook-runtime/common/consul"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/recovery"
	"github.com/scusemua/notebook-runtime/common/tracing"
	"github.com/scusemua/notebook-runtime/server/domain"
	"github.com/scusemua/notebook-runtime/server/internal/api"
	"github.com/scusemua/notebook-runtime/server/internal/event"
	"github.com/scusemua/notebook-runtime/server/internal/interpreter"
)

const (
	ServiceName = "notebook-server"
)

var (
	options      = domain.ServerOptions{}
	globalLogger = config.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)

	options.EventPort = domain.DefaultEventPort
	options.AdminPort = domain.DefaultAdminPort
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

func CreateConsulAndTracer(options *domain.ServerOptions) (opentracing.Tracer, *consul.Client) {
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

	var done sync.WaitGroup

	ValidateOptions()

	if options.PrettyPrintOptions {
		globalLogger.Info("Starting the notebook server with the following options:\n%s\n", options.PrettyString(2))
	} else {
		globalLogger.Info("Starting the notebook server.")
	}

	if options.DebugMode {
		go createAndStartDebugHttpServer()
	}

	serverId := uuid.NewString()
	tracer, consulClient := CreateConsulAndTracer(&options)

	metricsManager := metrics.NewPrometheusManager(options.PrometheusPort, serverId, metrics.NotebookServer)
	if err := metricsManager.Start(); err != nil {
		log.Fatalf("Failed to start the Prometheus manager: %v", err)
	}

	storage, err := recovery.NewStorage(options.RecoveryOptions())
	if err != nil {
		log.Fatalf("Failed to create the recovery storage: %v", err)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	err = storage.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		log.Fatalf("Failed to connect to the %s recovery storage: %v", options.RecoveryKind, err)
	}

	// Interpreter processes register through the registrar.
	registrar := event.NewRegistrar()
	if err = registrar.Listen(fmt.Sprintf(":%d", options.EventPort)); err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	globalLogger.Info("Event service listening at %v, advertised as %s", registrar.Addr(), options.EventAddr)

	settings := interpreter.NewSettingsStore(options.SettingsFile)
	if err = settings.Load(); err != nil {
		log.Fatalf("Failed to load the interpreter settings from \"%s\": %v", options.SettingsFile, err)
	}

	manager := interpreter.NewManager(settings, &interpreter.ManagerOptions{
		CommonOptions: options.CommonOptions,
		EventAddr:     options.EventAddr,
		Registrar:     registrar,
		DialOptions:   event.GetDialOptions(tracer, metricsManager.UnaryClientInterceptor()),
		Storage:       storage,
		Recovery:      options.RecoveryKind != recovery.KindNone,
		Metrics:       metricsManager,
	})
	registrar.SetRouter(manager)

	eventServer := event.NewServer(registrar, manager, metricsManager)
	eventGrpcServer := grpc.NewServer(event.GetGrpcOptions("Event gRPC Server", tracer, nil)...)
	proto.RegisterEventServiceServer(eventGrpcServer, eventServer)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	err = manager.Start(startCtx)
	cancelStart()
	if err != nil {
		log.Fatalf("Failed to start the interpreter manager: %v", err)
	}

	watchCtx, stopWatching := context.WithCancel(context.Background())
	if err = settings.Watch(watchCtx); err != nil {
		globalLogger.Warn("Changes to \"%s\" will not be picked up: %v", options.SettingsFile, err)
	}

	lisAdmin, err := net.Listen("tcp", fmt.Sprintf(":%d", options.AdminPort))
	if err != nil {
		log.Fatalf("Failed to listen on admin port: %v", err)
	}
	adminServer := api.NewServer(manager, metricsManager, tracer)

	if consulClient != nil {
		err = consulClient.Register(ServiceName, serverId, "", options.EventPort)
		if err != nil {
			log.Fatalf("Failed to register in consul: %v", err)
		}
		globalLogger.Info("Successfully registered in consul")
	}

	// Start detecting stop signals
	done.Add(1)
	go func() {
		<-sig
		globalLogger.Info("Shutting down...")
		stopWatching()

		if consulClient != nil {
			_ = consulClient.Deregister(serverId)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), options.ProcessStopTimeout())
		_ = adminServer.Shutdown(shutdownCtx)
		cancel()

		if closeErr := manager.Close(); closeErr != nil {
			globalLogger.Error("Failed to cleanly close the interpreter manager: %v", closeErr)
		}

		eventGrpcServer.Stop()
		_ = registrar.Close()
		_ = storage.Close()
		_ = metricsManager.Stop()

		done.Done()
	}()

	// Start gRPC server
	go func() {
		defer finalize(true, "Event gRPC Server")
		if serveErr := eventGrpcServer.Serve(registrar); serveErr != nil && !errors.Is(serveErr, event.ErrRegistrarClosed) {
			log.Fatalf("Error on serving interpreter processes: %v", serveErr)
		}
	}()

	// Start admin API
	go func() {
		defer finalize(true, "Admin API")
		if serveErr := adminServer.Serve(lisAdmin); serveErr != nil && !errors.Is(serveErr, api.ErrServerClosed) {
			log.Fatalf("Error on serving the admin API: %v", serveErr)
		}
	}()

	done.Wait()
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
