package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Scusemua/go-utils/config"
	"golang.org/x/sync/semaphore"
)

const DefaultStatusPollInterval = 100 * time.Millisecond

// StatusFunc reports the status of a job as seen by the process that actually executes it.
type StatusFunc func(ctx context.Context, jobId string) Status

// RemoteScheduler dispatches jobs whose execution happens in another process.
//
// At most maxInFlight jobs are dispatched at a time. After dispatching a job, the scheduler waits until the
// remote process reports the job as started (or the job ends) before it dispatches the next one, so that
// the remote process receives jobs in submission order. Mutual exclusion between the jobs is left to the
// remote process. While a job runs, its progress is polled and reported to its listeners.
type RemoteScheduler struct {
	*baseScheduler

	maxInFlight  int
	sem          *semaphore.Weighted
	status       StatusFunc
	pollInterval time.Duration
}

func NewRemoteScheduler(name string, maxInFlight int, historySize int, status StatusFunc, pollInterval time.Duration) *RemoteScheduler {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if pollInterval <= 0 {
		pollInterval = DefaultStatusPollInterval
	}

	s := &RemoteScheduler{
		baseScheduler: newBaseScheduler(name, historySize),
		maxInFlight:   maxInFlight,
		sem:           semaphore.NewWeighted(int64(maxInFlight)),
		status:        status,
		pollInterval:  pollInterval,
	}
	config.InitLogger(&s.log, fmt.Sprintf("RemoteScheduler[%s] ", name))

	go s.dispatch()
	return s
}

func (s *RemoteScheduler) MaxInFlight() int {
	return s.maxInFlight
}

func (s *RemoteScheduler) dispatch() {
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

			stopPolling := make(chan struct{})
			go s.pollProgress(job, stopPolling)

			job.execute(s.ctx)
			close(stopPolling)
			s.finish(job)
		}()

		s.waitUntilStartedRemotely(job)
	}
}

func (s *RemoteScheduler) waitUntilStartedRemotely(job *Job) {
	if s.status == nil {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-job.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		remoteStatus := s.status(s.ctx, job.Id())
		if remoteStatus == StatusRunning || remoteStatus.IsTerminal() {
			s.log.Trace("Job %s reported as %s by the remote process.", job.Id(), remoteStatus)
			return
		}
	}
}

func (s *RemoteScheduler) pollProgress(job *Job, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			job.updateProgress()
		}
	}
}
