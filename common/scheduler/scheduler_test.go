package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/scheduler"
	"github.com/scusemua/notebook-runtime/common/types"
)

// transitionLog records every status change of every job it is attached to, in order.
type transitionLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *transitionLog) OnStatusChange(job *scheduler.Job, _ scheduler.Status, after scheduler.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf("%s:%s", job.Id(), after))
}

func (l *transitionLog) OnProgressUpdate(*scheduler.Job, int) {}

func (l *transitionLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.entries...)
}

func succeed(_ context.Context) (*interpreter.Result, error) {
	return interpreter.NewResult(interpreter.CodeSuccess, "ok"), nil
}

func blockUntil(release <-chan struct{}) scheduler.RunFunc {
	return func(ctx context.Context) (*interpreter.Result, error) {
		<-release
		return interpreter.NewResult(interpreter.CodeSuccess), nil
	}
}

var _ = Describe("Job", func() {
	It("should end in ERROR when the run returns an error result", func() {
		s := scheduler.NewFIFOScheduler("error-result", 10)
		defer s.Stop()

		job := scheduler.NewJob("j", func(context.Context) (*interpreter.Result, error) {
			return interpreter.ErrorResult("bad input"), nil
		})
		Expect(s.Submit(job)).To(Succeed())
		Expect(job.Wait(context.Background())).To(Succeed())

		Expect(job.Status()).To(Equal(scheduler.StatusError))
		Expect(job.Result().String()).To(ContainSubstring("bad input"))
	})

	It("should end in ERROR with an error result when the run fails", func() {
		s := scheduler.NewFIFOScheduler("error-return", 10)
		defer s.Stop()

		job := scheduler.NewJob("j", func(context.Context) (*interpreter.Result, error) {
			return nil, types.ErrTransportFailure
		})
		Expect(s.Submit(job)).To(Succeed())
		Expect(job.Wait(context.Background())).To(Succeed())

		Expect(job.Status()).To(Equal(scheduler.StatusError))
		Expect(errors.Is(job.Err(), types.ErrTransportFailure)).To(BeTrue())
		Expect(job.Result().Code).To(Equal(interpreter.CodeError))
	})

	It("should go straight to ABORT when cancelled while READY", func() {
		s := scheduler.NewFIFOScheduler("cancel-ready", 10)
		defer s.Stop()

		log := &transitionLog{}
		release := make(chan struct{})
		first := scheduler.NewJob("first", blockUntil(release), scheduler.WithListener(log))
		second := scheduler.NewJob("second", succeed, scheduler.WithListener(log))

		Expect(s.Submit(first)).To(Succeed())
		Expect(s.Submit(second)).To(Succeed())
		Eventually(first.Status).Should(Equal(scheduler.StatusRunning))

		Expect(s.Cancel("second")).To(BeTrue())
		Expect(second.Status()).To(Equal(scheduler.StatusAbort))

		close(release)
		Expect(first.Wait(context.Background())).To(Succeed())

		Expect(log.Entries()).To(Equal([]string{"first:RUNNING", "second:ABORT", "first:FINISHED"}))
		Expect(second.DateStarted().IsZero()).To(BeTrue())
	})

	It("should move a running job to ABORT only after its run returns", func() {
		s := scheduler.NewFIFOScheduler("cancel-running", 10)
		defer s.Stop()

		var hookCalls atomic.Int32
		started := make(chan struct{})
		returned := make(chan struct{})
		job := scheduler.NewJob("j", func(ctx context.Context) (*interpreter.Result, error) {
			close(started)
			<-ctx.Done()
			<-returned
			return interpreter.NewResult(interpreter.CodeSuccess), nil
		}, scheduler.WithAbortHook(func() { hookCalls.Add(1) }))

		Expect(s.Submit(job)).To(Succeed())
		<-started

		Expect(job.Abort()).To(BeTrue())
		Expect(hookCalls.Load()).To(Equal(int32(1)))
		Consistently(job.Status, 50*time.Millisecond).Should(Equal(scheduler.StatusRunning))

		close(returned)
		Expect(job.Wait(context.Background())).To(Succeed())
		Expect(job.Status()).To(Equal(scheduler.StatusAbort))

		Expect(job.Abort()).To(BeFalse())
		Expect(job.Status()).To(Equal(scheduler.StatusAbort))
	})

	It("should turn a panic into ERROR", func() {
		s := scheduler.NewFIFOScheduler("panic", 10)
		defer s.Stop()

		job := scheduler.NewJob("", func(context.Context) (*interpreter.Result, error) {
			panic("boom")
		})
		Expect(job.Id()).ToNot(BeEmpty())
		Expect(s.Submit(job)).To(Succeed())
		Expect(job.Wait(context.Background())).To(Succeed())
		Expect(job.Status()).To(Equal(scheduler.StatusError))
	})
})

var _ = Describe("FIFOScheduler", func() {
	It("should finish each job before the next one starts", func() {
		s := scheduler.NewFIFOScheduler("fifo", 10)
		defer s.Stop()

		log := &transitionLog{}
		jobs := make([]*scheduler.Job, 0, 5)
		for i := 0; i < 5; i++ {
			job := scheduler.NewJob(fmt.Sprintf("j%d", i), func(context.Context) (*interpreter.Result, error) {
				time.Sleep(5 * time.Millisecond)
				return interpreter.NewResult(interpreter.CodeSuccess), nil
			}, scheduler.WithListener(log))
			jobs = append(jobs, job)
			Expect(s.Submit(job)).To(Succeed())
		}

		Expect(jobs[4].Wait(context.Background())).To(Succeed())

		expected := make([]string, 0, 10)
		for i := 0; i < 5; i++ {
			expected = append(expected, fmt.Sprintf("j%d:RUNNING", i), fmt.Sprintf("j%d:FINISHED", i))
		}
		Expect(log.Entries()).To(Equal(expected))
	})

	It("should retain a bounded history of finished jobs", func() {
		s := scheduler.NewFIFOScheduler("history", 3)
		defer s.Stop()

		var last *scheduler.Job
		for i := 0; i < 5; i++ {
			last = scheduler.NewJob(fmt.Sprintf("j%d", i), succeed)
			Expect(s.Submit(last)).To(Succeed())
		}
		Expect(last.Wait(context.Background())).To(Succeed())

		Eventually(func() []string {
			ids := make([]string, 0)
			for _, job := range s.History() {
				ids = append(ids, job.Id())
			}
			return ids
		}).Should(Equal([]string{"j2", "j3", "j4"}))

		_, ok := s.Job("j0")
		Expect(ok).To(BeFalse())
		job, ok := s.Job("j4")
		Expect(ok).To(BeTrue())
		Expect(job.Status()).To(Equal(scheduler.StatusFinished))
	})

	It("should reject jobs once stopped and abort waiting ones", func() {
		s := scheduler.NewFIFOScheduler("stop", 10)

		release := make(chan struct{})
		defer close(release)

		running := scheduler.NewJob("running", blockUntil(release))
		waiting := scheduler.NewJob("waiting", succeed)
		Expect(s.Submit(running)).To(Succeed())
		Expect(s.Submit(waiting)).To(Succeed())
		Eventually(running.Status).Should(Equal(scheduler.StatusRunning))

		s.Stop()
		Expect(waiting.Status()).To(Equal(scheduler.StatusAbort))
		Expect(running.IsAborted()).To(BeTrue())

		err := s.Submit(scheduler.NewJob("late", succeed))
		Expect(errors.Is(err, types.ErrSchedulerTerminated)).To(BeTrue())
	})
})

var _ = Describe("ParallelScheduler", func() {
	It("should run up to N jobs at the same time", func() {
		s := scheduler.NewParallelScheduler("parallel", 2, 10)
		defer s.Stop()

		var current, peak atomic.Int32
		release := make(chan struct{})
		jobs := make([]*scheduler.Job, 0, 4)
		for i := 0; i < 4; i++ {
			job := scheduler.NewJob("", func(context.Context) (*interpreter.Result, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				current.Add(-1)
				return interpreter.NewResult(interpreter.CodeSuccess), nil
			})
			jobs = append(jobs, job)
			Expect(s.Submit(job)).To(Succeed())
		}

		Eventually(func() int { return len(s.JobsRunning()) }).Should(Equal(2))
		Consistently(func() int { return len(s.JobsRunning()) }, 50*time.Millisecond).Should(Equal(2))
		Expect(s.JobsWaiting()).To(HaveLen(2))

		close(release)
		for _, job := range jobs {
			Expect(job.Wait(context.Background())).To(Succeed())
			Expect(job.Status()).To(Equal(scheduler.StatusFinished))
		}
		Expect(peak.Load()).To(Equal(int32(2)))
	})
})

var _ = Describe("RemoteScheduler", func() {
	It("should wait for the remote process to start a job before dispatching the next", func() {
		var remoteStarted sync.Map
		status := func(_ context.Context, jobId string) scheduler.Status {
			if _, ok := remoteStarted.Load(jobId); ok {
				return scheduler.StatusRunning
			}
			return scheduler.StatusReady
		}

		s := scheduler.NewRemoteScheduler("remote", 2, 10, status, 5*time.Millisecond)
		defer s.Stop()

		release := make(chan struct{})
		first := scheduler.NewJob("first", blockUntil(release))
		second := scheduler.NewJob("second", blockUntil(release))
		Expect(s.Submit(first)).To(Succeed())
		Expect(s.Submit(second)).To(Succeed())

		Eventually(first.Status).Should(Equal(scheduler.StatusRunning))
		Consistently(second.Status, 50*time.Millisecond).Should(Equal(scheduler.StatusReady))

		remoteStarted.Store("first", true)
		Eventually(second.Status).Should(Equal(scheduler.StatusRunning))

		close(release)
		Expect(first.Wait(context.Background())).To(Succeed())
		Expect(second.Wait(context.Background())).To(Succeed())
	})

	It("should report progress while a job runs", func() {
		s := scheduler.NewRemoteScheduler("progress", 1, 10, nil, 5*time.Millisecond)
		defer s.Stop()

		var progress atomic.Int32
		var reported atomic.Int32
		release := make(chan struct{})

		listener := &progressListener{reported: &reported}
		job := scheduler.NewJob("j", blockUntil(release),
			scheduler.WithProgress(func() int { return int(progress.Load()) }),
			scheduler.WithListener(listener))
		Expect(s.Submit(job)).To(Succeed())

		progress.Store(40)
		Eventually(reported.Load).Should(Equal(int32(40)))

		close(release)
		Expect(job.Wait(context.Background())).To(Succeed())
		Expect(job.Progress()).To(Equal(100))
	})
})

type progressListener struct {
	reported *atomic.Int32
}

func (l *progressListener) OnStatusChange(*scheduler.Job, scheduler.Status, scheduler.Status) {}

func (l *progressListener) OnProgressUpdate(_ *scheduler.Job, progress int) {
	l.reported.Store(int32(progress))
}

var _ = Describe("Factory", func() {
	It("should create each named scheduler once", func() {
		factory := scheduler.NewFactory(10)
		defer factory.Destroy()

		a := factory.CreateOrGetFIFOScheduler("session-a")
		Expect(factory.CreateOrGetFIFOScheduler("session-a")).To(BeIdenticalTo(a))
		Expect(factory.CreateOrGetParallelScheduler("session-b", 4)).ToNot(BeIdenticalTo(a))
		Expect(factory.Names()).To(ConsistOf("session-a", "session-b"))

		Expect(factory.RemoveScheduler("session-a")).To(BeTrue())
		Expect(factory.RemoveScheduler("session-a")).To(BeFalse())

		err := a.Submit(scheduler.NewJob("", succeed))
		Expect(errors.Is(err, types.ErrSchedulerTerminated)).To(BeTrue())
	})
})
