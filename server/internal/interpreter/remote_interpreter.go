package interpreter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"

	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/scheduler"
)

const (
	closeTimeout    = 30 * time.Second
	progressTimeout = 5 * time.Second
)

type resolvedDependency struct {
	kind        DependencyKind
	interpreter *RemoteInterpreter
}

// RemoteInterpreter is the server-side proxy of an interpreter hosted by the worker process of its group.
// It implements interpreter.Interpreter.
type RemoteInterpreter struct {
	log logger.Logger

	session      *Session
	name         string
	className    string
	properties   interpreter.Properties
	dependencies []resolvedDependency

	createMu sync.Mutex
	created  bool

	openMu   sync.Mutex
	opened   bool
	formType interpreter.FormType

	schedulersMu   sync.Mutex
	schedulerNames map[string]struct{}
}

func newRemoteInterpreter(session *Session, info InterpreterInfo, properties interpreter.Properties) *RemoteInterpreter {
	ri := &RemoteInterpreter{
		session:        session,
		name:           info.Name,
		className:      info.ClassName,
		properties:     properties,
		schedulerNames: make(map[string]struct{}),
	}
	config.InitLogger(&ri.log, fmt.Sprintf("RemoteInterpreter[%s/%s/%s] ", session.group.id, session.id, info.ClassName))

	return ri
}

func (ri *RemoteInterpreter) ClassName() string {
	return ri.className
}

func (ri *RemoteInterpreter) Name() string {
	return ri.name
}

func (ri *RemoteInterpreter) SessionId() string {
	return ri.session.id
}

func (ri *RemoteInterpreter) GroupId() string {
	return ri.session.group.id
}

func (ri *RemoteInterpreter) IsOpened() bool {
	ri.openMu.Lock()
	defer ri.openMu.Unlock()

	return ri.opened
}

func (ri *RemoteInterpreter) IsCreated() bool {
	ri.createMu.Lock()
	defer ri.createMu.Unlock()

	return ri.created
}

// process returns the running process of the group, starting it if needed, and sends the angular registry
// to it if that was not done yet.
func (ri *RemoteInterpreter) process(ctx context.Context) (Process, error) {
	group := ri.session.group

	p, err := group.GetOrCreateProcess(ctx, ri.session.user, ri.properties)
	if err != nil {
		return p, err
	}

	if err = group.pushRegistryOnce(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

func (ri *RemoteInterpreter) create(ctx context.Context, p Process) error {
	ri.createMu.Lock()
	defer ri.createMu.Unlock()

	if ri.created {
		return nil
	}

	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.CreateInterpreter(ctx, &proto.CreateInterpreterRequest{
			GroupId:    ri.session.group.id,
			SessionId:  ri.session.id,
			ClassName:  ri.className,
			Properties: ri.properties,
			UserName:   ri.session.user,
		})
		return err
	})
	if err != nil {
		return err
	}

	ri.log.Debug("Created remote interpreter.")
	ri.created = true
	return nil
}

// Open creates the interpreter and the siblings it depends on in the worker process, opens the siblings
// it must wait for, and then opens the interpreter itself. Open does nothing if the interpreter is open.
func (ri *RemoteInterpreter) Open(ctx context.Context) error {
	ri.openMu.Lock()
	defer ri.openMu.Unlock()

	if ri.opened {
		return nil
	}

	p, err := ri.process(ctx)
	if err != nil {
		return err
	}

	for _, dep := range ri.dependencies {
		switch dep.kind {
		case NeedsOpen:
			err = dep.interpreter.Open(ctx)
		default:
			err = dep.interpreter.create(ctx, p)
		}
		if err != nil {
			return fmt.Errorf("dependency %s of %s: %w", dep.interpreter.className, ri.className, err)
		}
	}

	if err = ri.create(ctx, p); err != nil {
		return err
	}

	req := &proto.InterpreterRequest{SessionId: ri.session.id, ClassName: ri.className}
	err = p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		if _, err := c.Open(ctx, req); err != nil {
			return err
		}

		reply, err := c.GetFormType(ctx, req)
		if err != nil {
			return err
		}
		ri.formType = interpreter.ParseFormType(reply.FormType)
		return nil
	})
	if err != nil {
		return err
	}

	ri.log.Debug("Opened remote interpreter. Form type: %s.", ri.formType)
	ri.opened = true
	return nil
}

// Close closes the interpreter in the worker process. Close does nothing if the interpreter was never opened
// or if the process is gone.
func (ri *RemoteInterpreter) Close() error {
	ri.openMu.Lock()
	defer ri.openMu.Unlock()

	if !ri.opened {
		return nil
	}
	ri.opened = false

	p, ok := ri.session.group.Process()
	if !ok || !p.IsRunning() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	return p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.Close(ctx, &proto.InterpreterRequest{SessionId: ri.session.id, ClassName: ri.className})
		return err
	})
}

// Interpret executes st in the worker process and merges the config and forms updated by the execution
// into ictx. If the process is not running, Interpret returns an ERROR result without calling it.
func (ri *RemoteInterpreter) Interpret(ctx context.Context, st string, ictx *interpreter.Context) (*interpreter.Result, error) {
	p, err := ri.process(ctx)
	if p == nil || !p.IsRunning() {
		message := ""
		if p != nil {
			message = p.ErrorMessage()
		} else if err != nil {
			message = err.Error()
		}
		return interpreter.NewResult(interpreter.CodeError, "Interpreter process is not running\n"+message), nil
	} else if err != nil {
		return nil, err
	}

	if err = ri.Open(ctx); err != nil {
		return nil, err
	}

	var reply *proto.RemoteInterpreterResult
	err = p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) (err error) {
		reply, err = c.Interpret(ctx, &proto.InterpretRequest{
			SessionId: ri.session.id,
			ClassName: ri.className,
			St:        st,
			Context:   ictx.ToWire(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if err = ictx.MergeRemoteState(reply, ri.FormType()); err != nil {
		// Malformed form or config state is dropped; the result itself is still valid.
		ri.log.Warn("Failed to merge the state returned for paragraph %s: %v", ictx.ParagraphId, err)
	}
	return interpreter.ResultFromWire(reply), nil
}

// Cancel asks the worker process to interrupt the execution of the paragraph of ictx. Cancel does nothing
// if the interpreter is not open.
func (ri *RemoteInterpreter) Cancel(ictx *interpreter.Context) error {
	if !ri.IsOpened() {
		return nil
	}

	p, ok := ri.session.group.Process()
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	return p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.Cancel(ctx, &proto.ContextRequest{
			SessionId: ri.session.id,
			ClassName: ri.className,
			Context:   ictx.ToWire(),
		})
		return err
	})
}

// FormType returns the form type reported by the interpreter when it was opened.
func (ri *RemoteInterpreter) FormType() interpreter.FormType {
	ri.openMu.Lock()
	defer ri.openMu.Unlock()

	if !ri.opened {
		return interpreter.FormTypeNone
	}
	return ri.formType
}

// Progress returns the progress of the paragraph of ictx, or 0 if the interpreter is not open or the
// process cannot be reached.
func (ri *RemoteInterpreter) Progress(ictx *interpreter.Context) int {
	if !ri.IsOpened() {
		return 0
	}

	p, ok := ri.session.group.Process()
	if !ok {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), progressTimeout)
	defer cancel()

	var progress int
	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		reply, err := c.GetProgress(ctx, &proto.ContextRequest{
			SessionId: ri.session.id,
			ClassName: ri.className,
			Context:   ictx.ToWire(),
		})
		if err != nil {
			return err
		}
		progress = int(reply.Progress)
		return nil
	})
	if err != nil {
		return 0
	}
	return progress
}

// Completion opens the interpreter if needed and returns the completion candidates at cursor.
func (ri *RemoteInterpreter) Completion(buf string, cursor int, ictx *interpreter.Context) ([]interpreter.Completion, error) {
	ctx := context.Background()
	if err := ri.Open(ctx); err != nil {
		return nil, err
	}

	p, _ := ri.session.group.Process()

	var candidates []interpreter.Completion
	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		reply, err := c.Completion(ctx, &proto.CompletionRequest{
			SessionId: ri.session.id,
			ClassName: ri.className,
			Buf:       buf,
			Cursor:    int32(cursor),
			Context:   ictx.ToWire(),
		})
		if err != nil {
			return err
		}

		candidates = make([]interpreter.Completion, 0, len(reply.Candidates))
		for _, candidate := range reply.Candidates {
			candidates = append(candidates, interpreter.Completion{
				Name:  candidate.Name,
				Value: candidate.Value,
				Meta:  candidate.Meta,
			})
		}
		return nil
	})
	return candidates, err
}

// Status queries the worker process for the status of a job of the session.
func (ri *RemoteInterpreter) Status(ctx context.Context, jobId string) scheduler.Status {
	p, ok := ri.session.group.Process()
	if !ok || !p.IsRunning() {
		return scheduler.StatusUnknown
	}

	status := scheduler.StatusUnknown
	err := p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		reply, err := c.GetStatus(ctx, &proto.StatusRequest{SessionId: ri.session.id, JobId: jobId})
		if err != nil {
			return err
		}
		status = scheduler.ParseStatus(reply.Status)
		return nil
	})
	if err != nil {
		ri.log.Debug("Failed to query the status of job %s: %v", jobId, err)
	}
	return status
}

// Scheduler returns the scheduler that runs the paragraphs of the given note. In paragraph mode every note
// of the session shares one sequential scheduler; in note mode each note has its own scheduler and the
// worker process decides how many of its paragraphs run concurrently.
func (ri *RemoteInterpreter) Scheduler(noteId string) scheduler.Scheduler {
	group := ri.session.group
	mode := group.ExecutionMode()

	name := fmt.Sprintf("RemoteInterpreter-%s-%s", group.id, ri.session.id)
	maxInFlight := 1
	if mode == configuration.ExecutionModeNote {
		name = fmt.Sprintf("%s-%s", name, noteId)
		maxInFlight = group.opts.SchedulerConcurrency
	}

	ri.schedulersMu.Lock()
	ri.schedulerNames[name] = struct{}{}
	ri.schedulersMu.Unlock()

	return group.schedulers.CreateOrGetRemoteScheduler(name, maxInFlight, ri.Status, scheduler.DefaultStatusPollInterval)
}

// Submit creates a job that runs st for the paragraph of ictx and submits it to the scheduler of the note.
// Aborting the job cancels the execution in the worker process; the job is marked ABORT once the
// interpret call returns.
func (ri *RemoteInterpreter) Submit(st string, ictx *interpreter.Context, listeners ...scheduler.JobListener) (*scheduler.Job, error) {
	opts := []scheduler.JobOption{
		scheduler.WithAbortHook(func() {
			if err := ri.Cancel(ictx); err != nil {
				ri.log.Warn("Failed to cancel paragraph %s: %v", ictx.ParagraphId, err)
			}
		}),
		scheduler.WithProgress(func() int {
			return ri.Progress(ictx)
		}),
	}
	for _, listener := range listeners {
		opts = append(opts, scheduler.WithListener(listener))
	}
	if m := ri.session.group.opts.Metrics; m != nil {
		opts = append(opts, scheduler.WithListener(m.JobListener("remote")))
	}

	job := scheduler.NewJob(ictx.ParagraphId, func(ctx context.Context) (*interpreter.Result, error) {
		// Cancellation reaches the worker through the abort hook only.
		return ri.Interpret(context.WithoutCancel(ctx), st, ictx)
	}, opts...)

	if err := ri.Scheduler(ictx.NoteId).Submit(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (ri *RemoteInterpreter) removeSchedulers() {
	ri.schedulersMu.Lock()
	names := make([]string, 0, len(ri.schedulerNames))
	for name := range ri.schedulerNames {
		names = append(names, name)
	}
	ri.schedulerNames = make(map[string]struct{})
	ri.schedulersMu.Unlock()

	for _, name := range names {
		ri.session.group.schedulers.RemoveScheduler(name)
	}
}

func (ri *RemoteInterpreter) String() string {
	return strings.Join([]string{"RemoteInterpreter", ri.session.group.id, ri.session.id, ri.className}, "/")
}

var _ interpreter.Interpreter = (*RemoteInterpreter)(nil)
