package daemon

import (
	"context"
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/types"
)

// hostedInterpreter is an interpreter created in this process on behalf of the server.
type hostedInterpreter struct {
	className string
	intp      interpreter.Interpreter

	mu     sync.Mutex
	opened bool
}

// open opens the interpreter once. A failed open may be retried.
func (h *hostedInterpreter) open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opened {
		return nil
	}
	if err := h.intp.Open(ctx); err != nil {
		return err
	}
	h.opened = true
	return nil
}

func (h *hostedInterpreter) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opened {
		return nil
	}
	h.opened = false
	return h.intp.Close()
}

func (h *hostedInterpreter) isOpened() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.opened
}

// Session holds the interpreters created for one session of the group, in creation order.
type Session struct {
	id   string
	user string

	mu           sync.Mutex
	interpreters *orderedmap.OrderedMap[string, *hostedInterpreter]
}

func newSession(id string, user string) *Session {
	return &Session{
		id:           id,
		user:         user,
		interpreters: orderedmap.NewOrderedMap[string, *hostedInterpreter](),
	}
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) User() string {
	return s.user
}

// add stores intp under className unless the session already has an interpreter of that class.
// It returns the interpreter kept by the session and whether it was added.
func (s *Session) add(className string, intp interpreter.Interpreter) (*hostedInterpreter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.interpreters.Get(className); ok {
		return existing, false
	}

	hosted := &hostedInterpreter{className: className, intp: intp}
	s.interpreters.Set(className, hosted)
	return hosted, true
}

func (s *Session) get(className string) (*hostedInterpreter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hosted, ok := s.interpreters.Get(className)
	if !ok {
		return nil, types.ErrInterpreterNotFound
	}
	return hosted, nil
}

// ClassNames returns the class names of the interpreters of the session in creation order.
func (s *Session) ClassNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, s.interpreters.Len())
	for el := s.interpreters.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}

// drain removes every interpreter, last created first.
func (s *Session) drain() []*hostedInterpreter {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := make([]*hostedInterpreter, 0, s.interpreters.Len())
	for el := s.interpreters.Back(); el != nil; el = el.Prev() {
		drained = append(drained, el.Value)
	}
	s.interpreters = orderedmap.NewOrderedMap[string, *hostedInterpreter]()
	return drained
}
