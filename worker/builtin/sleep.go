package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scusemua/notebook-runtime/common/interpreter"
)

// SleepInterpreter waits for the number of milliseconds given as the paragraph text and reports its
// progress while doing so. It is used to exercise cancellation, progress and concurrent execution.
type SleepInterpreter struct {
	maxConcurrency int

	mu      sync.Mutex
	running map[string]*sleeper
}

type sleeper struct {
	start    time.Time
	duration time.Duration
	cancel   context.CancelFunc
}

func NewSleepInterpreter(props interpreter.Properties) (interpreter.Interpreter, error) {
	return &SleepInterpreter{
		maxConcurrency: props.GetInt("sleep.concurrency", 1),
		running:        make(map[string]*sleeper),
	}, nil
}

func (s *SleepInterpreter) MaxConcurrency() int {
	return s.maxConcurrency
}

func (s *SleepInterpreter) Open(_ context.Context) error {
	return nil
}

func (s *SleepInterpreter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range s.running {
		sl.cancel()
	}
	return nil
}

func (s *SleepInterpreter) Interpret(ctx context.Context, st string, ictx *interpreter.Context) (*interpreter.Result, error) {
	millis, err := strconv.Atoi(strings.TrimSpace(st))
	if err != nil || millis < 0 {
		return interpreter.ErrorResult("expected a non-negative number of milliseconds, got \"%s\"", strings.TrimSpace(st)), nil
	}

	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sl := &sleeper{start: time.Now(), duration: time.Duration(millis) * time.Millisecond, cancel: cancel}
	s.mu.Lock()
	s.running[ictx.ParagraphId] = sl
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, ictx.ParagraphId)
		s.mu.Unlock()
	}()

	select {
	case <-time.After(sl.duration):
		return interpreter.NewResult(interpreter.CodeSuccess).Add(interpreter.TypeText, fmt.Sprintf("slept %d ms\n", millis)), nil
	case <-sleepCtx.Done():
		return interpreter.NewResult(interpreter.CodeAbort).Add(interpreter.TypeText, "interrupted\n"), nil
	}
}

func (s *SleepInterpreter) Cancel(ictx *interpreter.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.running[ictx.ParagraphId]; ok {
		sl.cancel()
	}
	return nil
}

func (s *SleepInterpreter) FormType() interpreter.FormType {
	return interpreter.FormTypeNone
}

func (s *SleepInterpreter) Progress(ictx *interpreter.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.running[ictx.ParagraphId]
	if !ok || sl.duration <= 0 {
		return 0
	}

	progress := int(time.Since(sl.start) * 100 / sl.duration)
	if progress > 99 {
		progress = 99
	}
	return progress
}

func (s *SleepInterpreter) Completion(_ string, _ int, _ *interpreter.Context) ([]interpreter.Completion, error) {
	return nil, nil
}
