package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/elliotchance/orderedmap/v2"
	"golang.org/x/sync/semaphore"

	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/queue"
	"github.com/scusemua/notebook-runtime/common/types"
)

// Scheduler queues jobs and dispatches them according to its concurrency policy.
type Scheduler interface {
	Name() string

	// Submit enqueues a READY job.
	Submit(job *Job) error

	// Job returns a waiting, running or finished job by id.
	Job(id string) (*Job, bool)

	JobsWaiting() []*Job
	JobsRunning() []*Job

	// History returns the retained finished jobs, oldest first.
	History() []*Job

	// Cancel aborts the job with the given id. It returns false if there is no such job or if it is
	// already terminal.
	Cancel(id string) bool

	// Stop aborts every waiting and running job and stops dispatching.
	Stop()
}

// baseScheduler implements the bookkeeping shared by all Scheduler variants: the waiting queue, the set of
// running jobs, and the bounded history of finished jobs.
type baseScheduler struct {
	log logger.Logger

	name        string
	historySize int

	mu      sync.Mutex
	queue   *queue.Fifo[*Job]
	running map[string]*Job
	history *orderedmap.OrderedMap[string, *Job]
	stopped bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newBaseScheduler(name string, historySize int) *baseScheduler {
	if historySize <= 0 {
		historySize = configuration.DefaultJobHistorySize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &baseScheduler{
		name:        name,
		historySize: historySize,
		queue:       queue.NewFifo[*Job](8),
		running:     make(map[string]*Job),
		history:     orderedmap.NewOrderedMap[string, *Job](),
		wake:        make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *baseScheduler) Name() string {
	return s.name
}

func (s *baseScheduler) Submit(job *Job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot submit job %s to scheduler %s", types.ErrSchedulerTerminated, job.Id(), s.name)
	}
	s.queue.Enqueue(job)
	s.mu.Unlock()

	s.signal()
	return nil
}

func (s *baseScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next blocks until a READY job can be dispatched and marks it as running.
// Jobs that were aborted while waiting are moved to the history.
// next returns false once the scheduler is stopped.
func (s *baseScheduler) next() (*Job, bool) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return nil, false
		}

		job, ok := s.queue.Dequeue()
		if ok {
			if job.Status() != StatusReady {
				s.addToHistory(job)
				s.mu.Unlock()
				continue
			}

			s.running[job.Id()] = job
			s.mu.Unlock()
			return job, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return nil, false
		}
	}
}

func (s *baseScheduler) finish(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, job.Id())
	s.addToHistory(job)
}

// addToHistory records a terminal job and evicts the oldest entries beyond the history size. s.mu must be held.
func (s *baseScheduler) addToHistory(job *Job) {
	s.history.Delete(job.Id())
	s.history.Set(job.Id(), job)

	for s.history.Len() > s.historySize {
		s.history.Delete(s.history.Front().Key)
	}
}

func (s *baseScheduler) Job(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.running[id]; ok {
		return job, true
	}
	for _, job := range s.queue.Elements() {
		if job.Id() == id {
			return job, true
		}
	}
	return s.history.Get(id)
}

func (s *baseScheduler) JobsWaiting() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.Elements()
}

func (s *baseScheduler) JobsRunning() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*Job, 0, len(s.running))
	for _, job := range s.running {
		jobs = append(jobs, job)
	}
	return jobs
}

func (s *baseScheduler) History() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*Job, 0, s.history.Len())
	for el := s.history.Front(); el != nil; el = el.Next() {
		jobs = append(jobs, el.Value)
	}
	return jobs
}

func (s *baseScheduler) Cancel(id string) bool {
	s.mu.Lock()
	job, waiting := s.queue.Remove(func(job *Job) bool { return job.Id() == id })
	if waiting {
		s.addToHistory(job)
	} else {
		job = s.running[id]
	}
	s.mu.Unlock()

	if job == nil {
		return false
	}

	s.log.Debug("Aborting job %s.", id)
	return job.Abort()
}

func (s *baseScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true

	jobs := s.queue.Elements()
	for {
		job, ok := s.queue.Dequeue()
		if !ok {
			break
		}
		s.addToHistory(job)
	}
	for _, job := range s.running {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		job.Abort()
	}
	s.cancel()

	s.log.Debug("Stopped scheduler %s after aborting %d job(s).", s.name, len(jobs))
}

// FIFOScheduler runs one job at a time, in submission order.
type FIFOScheduler struct {
	*baseScheduler
}

func NewFIFOScheduler(name string, historySize int) *FIFOScheduler {
	s := &FIFOScheduler{baseScheduler: newBaseScheduler(name, historySize)}
	config.InitLogger(&s.log, fmt.Sprintf("FIFOScheduler[%s] ", name))

	go s.dispatch()
	return s
}

func (s *FIFOScheduler) dispatch() {
	for {
		job, ok := s.next()
		if !ok {
			return
		}

		job.execute(s.ctx)
		s.finish(job)
	}
}

// ParallelScheduler runs up to a fixed number of jobs concurrently. Jobs start in submission order but may
// finish in any order.
type ParallelScheduler struct {
	*baseScheduler

	maxConcurrency int
	sem            *semaphore.Weighted
}

func NewParallelScheduler(name string, maxConcurrency int, historySize int) *ParallelScheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = configuration.DefaultSchedulerConcurrency
	}

	s := &ParallelScheduler{
		baseScheduler:  newBaseScheduler(name, historySize),
		maxConcurrency: maxConcurrency,
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
	}
	config.InitLogger(&s.log, fmt.Sprintf("ParallelScheduler[%s] ", name))

	go s.dispatch()
	return s
}

func (s *ParallelScheduler) MaxConcurrency() int {
	return s.maxConcurrency
}

func (s *ParallelScheduler) dispatch() {
	for {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}

		job, ok := s.next()
		if !ok {
			s.sem.Release(1)
			return
		}

		go func() {
			defer s.sem.Release(1)

			job.execute(s.ctx)
			s.finish(job)
		}()
	}
}
