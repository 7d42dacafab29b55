package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scusemua/notebook-runtime/common/interpreter"
)

// Status is the state of a Job.
type Status string

const (
	// StatusUnknown is only ever reported by status queries about jobs that are not known.
	StatusUnknown  Status = "UNKNOWN"
	StatusReady    Status = "READY"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusError    Status = "ERROR"
	StatusAbort    Status = "ABORT"
)

func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusReady, StatusRunning, StatusFinished, StatusError, StatusAbort:
		return st
	default:
		return StatusUnknown
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusError || s == StatusAbort
}

func (s Status) String() string {
	return string(s)
}

// RunFunc executes the work of a Job. ctx is cancelled when the job is aborted.
type RunFunc func(ctx context.Context) (*interpreter.Result, error)

// JobListener is notified of the status changes and progress of a Job.
type JobListener interface {
	OnStatusChange(job *Job, before Status, after Status)
	OnProgressUpdate(job *Job, progress int)
}

// StatusListenerFunc adapts a function to a JobListener that ignores progress updates.
type StatusListenerFunc func(job *Job, before Status, after Status)

func (f StatusListenerFunc) OnStatusChange(job *Job, before Status, after Status) {
	f(job, before, after)
}

func (f StatusListenerFunc) OnProgressUpdate(*Job, int) {}

type JobOption func(job *Job)

// WithAbortHook registers a function that is called when a running job is aborted.
func WithAbortHook(hook func()) JobOption {
	return func(job *Job) {
		job.onAbort = hook
	}
}

// WithProgress registers the function that reports the progress of the job while it runs.
func WithProgress(progress func() int) JobOption {
	return func(job *Job) {
		job.progress = progress
	}
}

func WithListener(l JobListener) JobOption {
	return func(job *Job) {
		job.listeners = append(job.listeners, l)
	}
}

// Job is a unit of work tracked by a Scheduler.
//
// A Job moves from READY to RUNNING when it is dispatched, and from RUNNING to exactly one of FINISHED,
// ERROR and ABORT when its RunFunc returns. A READY job that is aborted moves to ABORT directly.
// Terminal jobs never change again.
type Job struct {
	id       string
	run      RunFunc
	onAbort  func()
	progress func() int

	mu           sync.Mutex
	status       Status
	aborted      bool
	result       *interpreter.Result
	err          error
	dateCreated  time.Time
	dateStarted  time.Time
	dateFinished time.Time
	cancelRun    context.CancelFunc
	listeners    []JobListener
	lastProgress int
	done         chan struct{}
}

// NewJob creates a READY job. A random id is generated if id is empty.
func NewJob(id string, run RunFunc, opts ...JobOption) *Job {
	if id == "" {
		id = uuid.NewString()
	}

	job := &Job{
		id:          id,
		run:         run,
		status:      StatusReady,
		dateCreated: time.Now(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

func (j *Job) Id() string {
	return j.id
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.status
}

// Result returns the result of a terminal job. It is nil for jobs that were aborted before they ran.
func (j *Job) Result() *interpreter.Result {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.result
}

// Err returns the error returned by the RunFunc, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.err
}

func (j *Job) DateCreated() time.Time {
	return j.dateCreated
}

func (j *Job) DateStarted() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.dateStarted
}

func (j *Job) DateFinished() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.dateFinished
}

// IsAborted returns true if the job has been aborted, even if its RunFunc has not returned yet.
func (j *Job) IsAborted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.aborted
}

// Done returns a channel that is closed once the job reached a terminal state and its listeners were notified.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) AddListener(l JobListener) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.listeners = append(j.listeners, l)
}

// Progress returns the progress of the job between 0 and 100.
func (j *Job) Progress() int {
	j.mu.Lock()
	status := j.status
	progress := j.progress
	j.mu.Unlock()

	switch {
	case status == StatusFinished:
		return 100
	case status != StatusRunning || progress == nil:
		return 0
	default:
		return progress()
	}
}

// Abort aborts the job. Aborting a READY job moves it to ABORT immediately. Aborting a RUNNING job cancels
// the context of its RunFunc and runs the abort hook; the job moves to ABORT once the RunFunc returns.
// Abort returns false if the job is already terminal.
func (j *Job) Abort() bool {
	j.mu.Lock()

	switch {
	case j.status.IsTerminal():
		j.mu.Unlock()
		return false
	case j.status == StatusReady:
		j.aborted = true
		j.status = StatusAbort
		j.dateFinished = time.Now()
		listeners := j.copyListeners()
		j.mu.Unlock()

		notifyStatusChange(listeners, j, StatusReady, StatusAbort)
		close(j.done)
		return true
	}

	if j.aborted {
		j.mu.Unlock()
		return true
	}

	j.aborted = true
	cancel := j.cancelRun
	hook := j.onAbort
	j.mu.Unlock()

	if hook != nil {
		hook()
	}
	if cancel != nil {
		cancel()
	}
	return true
}

// execute runs the job if it is still READY.
func (j *Job) execute(ctx context.Context) {
	j.mu.Lock()
	if j.status != StatusReady {
		j.mu.Unlock()
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancelRun = cancel
	j.status = StatusRunning
	j.dateStarted = time.Now()
	listeners := j.copyListeners()
	j.mu.Unlock()

	notifyStatusChange(listeners, j, StatusReady, StatusRunning)

	result, err := j.safeRun(runCtx)
	cancel()

	j.mu.Lock()
	after := StatusFinished
	switch {
	case j.aborted:
		after = StatusAbort
	case err != nil:
		after = StatusError
	case result != nil && result.Code == interpreter.CodeError:
		after = StatusError
	case result != nil && result.Code == interpreter.CodeAbort:
		after = StatusAbort
	}

	if result == nil && err != nil {
		result = interpreter.ErrorResult("%v", err)
	}
	if result == nil && after == StatusAbort {
		result = interpreter.NewResult(interpreter.CodeAbort)
	}

	j.result = result
	j.err = err
	j.status = after
	j.dateFinished = time.Now()
	j.cancelRun = nil
	listeners = j.copyListeners()
	j.mu.Unlock()

	notifyStatusChange(listeners, j, StatusRunning, after)
	close(j.done)
}

func (j *Job) safeRun(ctx context.Context) (result *interpreter.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job %s panicked: %v", j.id, r)
		}
	}()

	return j.run(ctx)
}

// updateProgress notifies the listeners if the progress changed since the last call.
func (j *Job) updateProgress() {
	progress := j.Progress()

	j.mu.Lock()
	if progress == j.lastProgress || j.status != StatusRunning {
		j.mu.Unlock()
		return
	}
	j.lastProgress = progress
	listeners := j.copyListeners()
	j.mu.Unlock()

	for _, l := range listeners {
		l.OnProgressUpdate(j, progress)
	}
}

func (j *Job) copyListeners() []JobListener {
	listeners := make([]JobListener, len(j.listeners))
	copy(listeners, j.listeners)
	return listeners
}

func notifyStatusChange(listeners []JobListener, job *Job, before Status, after Status) {
	for _, l := range listeners {
		l.OnStatusChange(job, before, after)
	}
}

func (j *Job) String() string {
	return fmt.Sprintf("Job[id=%s, status=%s]", j.id, j.Status())
}
