package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/goccy/go-json"
	cmap "github.com/orcaman/concurrent-map/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/resource"
	"github.com/scusemua/notebook-runtime/common/scheduler"
	"github.com/scusemua/notebook-runtime/common/types"
)

// Daemon implements proto.InterpreterService on behalf of one interpreter group. It hosts the interpreters
// created by the notebook server, runs their jobs through local schedulers, and owns the angular registry
// and the resource pool of the group.
type Daemon struct {
	proto.UnimplementedInterpreterServiceServer

	log logger.Logger

	groupId    string
	opts       *configuration.CommonOptions
	factories  *interpreter.FactoryRegistry
	registry   *angular.Registry
	pool       *resource.DistributedPool
	schedulers *scheduler.Factory
	sessions   cmap.ConcurrentMap[string, *Session]
	upstream   *Upstream
	metrics    *metrics.PrometheusManager

	mu            sync.RWMutex
	executionMode configuration.ExecutionMode
	listenerToken string
	onShutdown    func(reason string)
}

// NewDaemon creates a Daemon. upstream and metricsManager may be nil, in which case changes are not
// forwarded anywhere and the resource pool only knows about its own resources.
func NewDaemon(groupId string, opts *configuration.CommonOptions, factories *interpreter.FactoryRegistry,
	upstream *Upstream, metricsManager *metrics.PrometheusManager) *Daemon {
	var connector resource.Connector
	if upstream != nil {
		connector = upstream
	}

	d := &Daemon{
		groupId:       groupId,
		opts:          opts,
		factories:     factories,
		registry:      angular.NewRegistry(groupId, opts.MaxGlobalBroadcastNotes),
		pool:          resource.NewDistributedPool(groupId, connector),
		schedulers:    scheduler.NewFactory(opts.JobHistorySize),
		sessions:      cmap.New[*Session](),
		upstream:      upstream,
		metrics:       metricsManager,
		executionMode: opts.GetExecutionMode(),
	}
	config.InitLogger(&d.log, d)

	return d
}

func (d *Daemon) GroupId() string {
	return d.groupId
}

func (d *Daemon) AngularRegistry() *angular.Registry {
	return d.registry
}

func (d *Daemon) ResourcePool() *resource.DistributedPool {
	return d.pool
}

func (d *Daemon) ExecutionMode() configuration.ExecutionMode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.executionMode
}

// OnShutdown installs the callback invoked when the notebook server asks the process to exit.
func (d *Daemon) OnShutdown(callback func(reason string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onShutdown = callback
}

// Attach records the registration of the process. Changes of the registry are forwarded upstream under
// token from now on, and changes received from the server are applied with token as origin so that they
// are not sent back.
func (d *Daemon) Attach(token string, mode configuration.ExecutionMode) {
	d.mu.Lock()
	prev := d.listenerToken
	d.listenerToken = token
	d.executionMode = mode
	d.mu.Unlock()

	if prev != "" {
		d.registry.RemoveListener(prev)
	}
	if d.upstream != nil && token != "" {
		d.registry.AddListener(token, "", d.upstream)
	}
	d.log.Debug("Attached to the notebook server with token %s in %s mode.", token, mode)
}

// Detach stops forwarding changes of the registry.
func (d *Daemon) Detach() {
	d.mu.Lock()
	prev := d.listenerToken
	d.listenerToken = ""
	d.mu.Unlock()

	if prev != "" {
		d.registry.RemoveListener(prev)
	}
}

func (d *Daemon) origin() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.listenerToken
}

// Sessions returns the ids of the live sessions.
func (d *Daemon) Sessions() []string {
	return d.sessions.Keys()
}

func (d *Daemon) getSession(id string) (*Session, error) {
	session, ok := d.sessions.Get(id)
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return session, nil
}

func (d *Daemon) getInterpreter(sessionId string, className string) (*hostedInterpreter, error) {
	session, err := d.getSession(sessionId)
	if err != nil {
		return nil, err
	}
	return session.get(className)
}

func schedulerName(className string, sessionId string) string {
	return fmt.Sprintf("%s-%s", className, sessionId)
}

// schedulerFor returns the scheduler running the jobs of the given interpreter, creating it on first use.
//
// In paragraph mode the jobs of an interpreter run one at a time. In note mode the server already
// serializes the paragraphs of each note, so an interpreter able to run several paragraphs at once gets a
// parallel scheduler bounded by its own limit and by the configured concurrency.
func (d *Daemon) schedulerFor(sessionId string, hosted *hostedInterpreter) scheduler.Scheduler {
	name := schedulerName(hosted.className, sessionId)
	if d.ExecutionMode() != configuration.ExecutionModeNote {
		return d.schedulers.CreateOrGetFIFOScheduler(name)
	}

	limiter, ok := hosted.intp.(interpreter.ConcurrencyLimiter)
	if !ok || limiter.MaxConcurrency() <= 1 {
		return d.schedulers.CreateOrGetFIFOScheduler(name)
	}
	return d.schedulers.CreateOrGetParallelScheduler(name, min(limiter.MaxConcurrency(), d.opts.SchedulerConcurrency))
}

func schedulerKind(s scheduler.Scheduler) string {
	if _, ok := s.(*scheduler.ParallelScheduler); ok {
		return "worker-parallel"
	}
	return "worker-fifo"
}

// contextFromWire rebuilds the context of a request and attaches the registry and the pool of the group.
func (d *Daemon) contextFromWire(w *proto.RemoteInterpreterContext) (*interpreter.Context, error) {
	ictx, err := interpreter.ContextFromWire(w)
	if err != nil {
		return nil, err
	}
	ictx.AngularObjectRegistry = d.registry
	ictx.ResourcePool = d.pool
	return ictx, nil
}

// CreateInterpreter creates the interpreter of the given class in the session, unless the session
// already has one.
func (d *Daemon) CreateInterpreter(_ context.Context, in *proto.CreateInterpreterRequest) (*proto.Void, error) {
	if in.GroupId != "" && in.GroupId != d.groupId {
		return nil, status.Errorf(codes.InvalidArgument, "process serves group %s, not %s", d.groupId, in.GroupId)
	}

	session := d.sessions.Upsert(in.SessionId, nil, func(exist bool, valueInMap *Session, _ *Session) *Session {
		if exist {
			return valueInMap
		}
		return newSession(in.SessionId, in.UserName)
	})

	if _, err := session.get(in.ClassName); err == nil {
		return proto.VOID, nil
	}

	intp, err := d.factories.New(in.ClassName, interpreter.Properties(in.Properties))
	if err != nil {
		d.log.Error("Failed to create interpreter %s in session %s: %v", in.ClassName, in.SessionId, err)
		return nil, types.ToStatusError(err)
	}

	if _, added := session.add(in.ClassName, intp); !added {
		// Lost a race with a concurrent creation.
		_ = intp.Close()
		return proto.VOID, nil
	}

	d.log.Debug("Created interpreter %s in session %s.", in.ClassName, in.SessionId)
	return proto.VOID, nil
}

func (d *Daemon) Open(ctx context.Context, in *proto.InterpreterRequest) (*proto.Void, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return nil, err
	}

	if err = hosted.open(ctx); err != nil {
		d.log.Error("Failed to open interpreter %s in session %s: %v", in.ClassName, in.SessionId, err)
		return nil, types.ToStatusError(err)
	}
	return proto.VOID, nil
}

// Close stops the scheduler of the interpreter and closes it. The interpreter stays in its session, so a
// later Open or Interpret opens it again.
func (d *Daemon) Close(_ context.Context, in *proto.InterpreterRequest) (*proto.Void, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return proto.VOID, nil
	}

	d.schedulers.RemoveScheduler(schedulerName(in.ClassName, in.SessionId))
	if err = hosted.close(); err != nil {
		d.log.Warn("Error while closing interpreter %s in session %s: %v", in.ClassName, in.SessionId, err)
	}
	return proto.VOID, nil
}

// Interpret runs st as a job of the scheduler of the interpreter and waits for its result. The job is
// aborted if the caller goes away.
func (d *Daemon) Interpret(ctx context.Context, in *proto.InterpretRequest) (*proto.RemoteInterpreterResult, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return nil, err
	}

	ictx, err := d.contextFromWire(in.Context)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	s := d.schedulerFor(in.SessionId, hosted)

	opts := []scheduler.JobOption{
		scheduler.WithAbortHook(func() {
			if err := hosted.intp.Cancel(ictx); err != nil {
				d.log.Warn("Failed to cancel paragraph %s: %v", ictx.ParagraphId, err)
			}
		}),
		scheduler.WithProgress(func() int {
			return hosted.intp.Progress(ictx)
		}),
	}
	if d.metrics != nil {
		opts = append(opts, scheduler.WithListener(d.metrics.JobListener(schedulerKind(s))))
	}

	job := scheduler.NewJob(ictx.ParagraphId, func(ctx context.Context) (*interpreter.Result, error) {
		if err := hosted.open(ctx); err != nil {
			return nil, err
		}
		return hosted.intp.Interpret(ctx, in.St, ictx)
	}, opts...)

	if err = s.Submit(job); err != nil {
		return nil, types.ToStatusError(err)
	}

	if err = job.Wait(ctx); err != nil {
		s.Cancel(job.Id())
		return nil, status.FromContextError(err).Err()
	}

	if jobErr := job.Err(); jobErr != nil {
		d.log.Warn("Paragraph %s failed: %v", ictx.ParagraphId, jobErr)
	}

	result := job.Result()
	if result == nil {
		result = interpreter.NewResult(interpreter.CodeSuccess)
	}
	return interpreter.ResultToWire(result, ictx), nil
}

// Cancel aborts the job of the paragraph if it is still scheduled, and otherwise asks the interpreter
// directly.
func (d *Daemon) Cancel(_ context.Context, in *proto.ContextRequest) (*proto.Void, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return nil, err
	}

	ictx, err := d.contextFromWire(in.Context)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	if s, ok := d.schedulers.Get(schedulerName(in.ClassName, in.SessionId)); ok && s.Cancel(ictx.ParagraphId) {
		return proto.VOID, nil
	}

	if err = hosted.intp.Cancel(ictx); err != nil {
		return nil, types.ToStatusError(err)
	}
	return proto.VOID, nil
}

func (d *Daemon) GetFormType(_ context.Context, in *proto.InterpreterRequest) (*proto.FormTypeReply, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return nil, err
	}
	return &proto.FormTypeReply{FormType: string(hosted.intp.FormType())}, nil
}

func (d *Daemon) GetProgress(_ context.Context, in *proto.ContextRequest) (*proto.ProgressReply, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return nil, err
	}

	ictx, err := d.contextFromWire(in.Context)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	if s, ok := d.schedulers.Get(schedulerName(in.ClassName, in.SessionId)); ok {
		if job, ok := s.Job(ictx.ParagraphId); ok {
			return &proto.ProgressReply{Progress: int32(job.Progress())}, nil
		}
	}
	return &proto.ProgressReply{Progress: int32(hosted.intp.Progress(ictx))}, nil
}

func (d *Daemon) Completion(_ context.Context, in *proto.CompletionRequest) (*proto.CompletionReply, error) {
	hosted, err := d.getInterpreter(in.SessionId, in.ClassName)
	if err != nil {
		return nil, err
	}

	ictx, err := d.contextFromWire(in.Context)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	completions, err := hosted.intp.Completion(in.Buf, int(in.Cursor), ictx)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	reply := &proto.CompletionReply{Candidates: make([]*proto.CompletionCandidate, 0, len(completions))}
	for _, c := range completions {
		reply.Candidates = append(reply.Candidates, &proto.CompletionCandidate{Name: c.Name, Value: c.Value, Meta: c.Meta})
	}
	return reply, nil
}

// GetStatus looks the job up in the schedulers of the session. Jobs this process does not know about are
// reported as UNKNOWN.
func (d *Daemon) GetStatus(_ context.Context, in *proto.StatusRequest) (*proto.StatusReply, error) {
	session, err := d.getSession(in.SessionId)
	if err != nil {
		return &proto.StatusReply{Status: scheduler.StatusUnknown.String()}, nil
	}

	for _, className := range session.ClassNames() {
		s, ok := d.schedulers.Get(schedulerName(className, in.SessionId))
		if !ok {
			continue
		}
		if job, ok := s.Job(in.JobId); ok {
			return &proto.StatusReply{Status: job.Status().String()}, nil
		}
	}
	return &proto.StatusReply{Status: scheduler.StatusUnknown.String()}, nil
}

// AngularRegistryPush replaces the content of the registry with the registry of the server. Nobody is
// notified of the objects restored this way.
func (d *Daemon) AngularRegistryPush(_ context.Context, in *proto.AngularRegistryPushRequest) (*proto.Void, error) {
	if err := d.registry.RestoreJson(in.Registry); err != nil {
		d.log.Error("Failed to restore the angular registry pushed by the server: %v", err)
		return nil, types.ToStatusError(err)
	}

	d.recordAngularEvent("push")
	d.log.Debug("Restored %d angular object(s) pushed by the server.", d.registry.Len())
	return proto.VOID, nil
}

func (d *Daemon) AngularObjectAdd(_ context.Context, in *proto.AngularObjectRequest) (*proto.Void, error) {
	data, err := angular.DataFromJson(in.Object)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	d.registry.Add(data.Name, data.Object, data.NoteId, data.ParagraphId, d.origin())
	d.recordAngularEvent("add")
	return proto.VOID, nil
}

func (d *Daemon) AngularObjectUpdate(_ context.Context, in *proto.AngularObjectRequest) (*proto.Void, error) {
	data, err := angular.DataFromJson(in.Object)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	origin := d.origin()
	if _, ok := d.registry.Update(data.Name, data.Object, data.NoteId, data.ParagraphId, origin); !ok {
		d.registry.Add(data.Name, data.Object, data.NoteId, data.ParagraphId, origin)
	}
	d.recordAngularEvent("update")
	return proto.VOID, nil
}

func (d *Daemon) AngularObjectRemove(_ context.Context, in *proto.AngularObjectRemoveRequest) (*proto.Void, error) {
	d.registry.Remove(in.Name, in.NoteId, in.ParagraphId, d.origin())
	d.recordAngularEvent("remove")
	return proto.VOID, nil
}

func (d *Daemon) recordAngularEvent(kind string) {
	if d.metrics != nil {
		d.metrics.RecordAngularEvent("received", kind)
	}
}

// ResourcePoolGetAll returns the local resources without their values.
func (d *Daemon) ResourcePoolGetAll(_ context.Context, _ *proto.ResourcePoolRequest) (*proto.ResourceSetReply, error) {
	local := d.pool.GetAllLocal()
	reply := &proto.ResourceSetReply{Resources: make([]string, 0, len(local))}

	for _, r := range local {
		data, err := json.Marshal(resource.NewRemoteResource(r.Id(), r.IsSerializable(), r.TypeName(), nil))
		if err != nil {
			d.log.Warn("Skipping resource %s: %v", r.Id(), err)
			continue
		}
		reply.Resources = append(reply.Resources, string(data))
	}
	return reply, nil
}

func (d *Daemon) ResourceGet(_ context.Context, in *proto.ResourceRequest) (*proto.ResourceReply, error) {
	id, err := resource.IdFromJson(in.ResourceId)
	if err != nil {
		return nil, types.ToStatusError(err)
	}

	r, ok := d.pool.GetLocal(id.NoteId, id.ParagraphId, id.Name)
	if !ok || !r.IsSerializable() {
		return &proto.ResourceReply{Found: false}, nil
	}

	value, _ := r.Value()
	data, err := json.Marshal(value)
	if err != nil {
		d.log.Warn("Cannot serialize the value of resource %s: %v", id, err)
		return &proto.ResourceReply{Found: false}, nil
	}
	return &proto.ResourceReply{Found: true, Value: data}, nil
}

// ResourceInvokeMethod runs an invocation on a local resource. If the invocation names a return resource,
// the result is stored in the local pool and a handle on it is returned instead of the value.
func (d *Daemon) ResourceInvokeMethod(ctx context.Context, in *proto.InvokeMethodRequest) (*proto.InvokeMethodReply, error) {
	inv, err := resource.InvocationFromJson(in.Invocation)
	if errors.Is(err, resource.ErrUnsupportedMethod) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	} else if err != nil {
		return nil, types.ToStatusError(err)
	}

	id := inv.ResourceId
	r, ok := d.pool.GetLocal(id.NoteId, id.ParagraphId, id.Name)
	if !ok {
		return nil, types.ErrResourceNotFound
	}

	value, err := r.Invoke(ctx, inv)
	if errors.Is(err, resource.ErrUnsupportedMethod) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	} else if err != nil {
		return nil, types.ToStatusError(err)
	}

	if inv.ReturnResourceName != "" {
		stored := d.pool.Put(id.NoteId, id.ParagraphId, inv.ReturnResourceName, value)
		data, err := json.Marshal(resource.NewRemoteResource(stored.Id(), stored.IsSerializable(), stored.TypeName(), nil))
		if err != nil {
			return nil, types.ToStatusError(err)
		}
		return &proto.InvokeMethodReply{Resource: data}, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "result of %s on %s cannot be serialized: %v", inv.Method, id, err)
	}
	return &proto.InvokeMethodReply{Value: data}, nil
}

// Shutdown acknowledges the request and lets the process exit once the reply has been sent.
func (d *Daemon) Shutdown(_ context.Context, in *proto.ShutdownRequest) (*proto.Void, error) {
	d.log.Info("The notebook server asked the process to shut down: %s", in.Reason)

	d.mu.RLock()
	callback := d.onShutdown
	d.mu.RUnlock()

	if callback != nil {
		go callback(in.Reason)
	}
	return proto.VOID, nil
}

// Destroy stops every scheduler and closes every interpreter, the last created first in each session.
func (d *Daemon) Destroy() error {
	d.schedulers.Destroy()

	var errs []error
	for _, id := range d.sessions.Keys() {
		session, ok := d.sessions.Pop(id)
		if !ok {
			continue
		}
		for _, hosted := range session.drain() {
			if err := hosted.close(); err != nil {
				errs = append(errs, fmt.Errorf("interpreter %s of session %s: %w", hosted.className, id, err))
			}
		}
	}

	d.Detach()
	return errors.Join(errs...)
}

func (d *Daemon) String() string {
	return fmt.Sprintf("Daemon[group=%s, sessions=%d]", d.groupId, d.sessions.Count())
}
