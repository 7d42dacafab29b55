package interpreter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/scusemua/notebook-runtime/common/types"
)

// Properties are the string key/value settings an interpreter is created with.
type Properties map[string]string

// Get returns the value of the given property, or def if it is absent or empty.
func (p Properties) Get(key string, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// GetInt returns the integer value of the given property, or def if it is absent or malformed.
func (p Properties) GetInt(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (p Properties) Clone() Properties {
	clone := make(Properties, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// Completion is a single completion candidate.
type Completion struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Meta  string `json:"meta"`
}

// Interpreter executes code on behalf of notebook paragraphs.
//
// The worker hosts the concrete implementations; the server talks to them through a proxy that implements
// the same interface.
type Interpreter interface {
	// Open prepares the interpreter for execution. Open is called once before the first Interpret.
	Open(ctx context.Context) error

	// Close releases every resource held by the interpreter.
	Close() error

	// Interpret executes st. ctx is cancelled when the job running the code is aborted.
	Interpret(ctx context.Context, st string, ictx *Context) (*Result, error)

	// Cancel interrupts the execution currently running for the paragraph identified by ictx.
	Cancel(ictx *Context) error

	FormType() FormType

	// Progress returns the progress of the execution of the paragraph identified by ictx, between 0 and 100.
	Progress(ictx *Context) int

	Completion(buf string, cursor int, ictx *Context) ([]Completion, error)
}

// ConcurrencyLimiter is implemented by interpreters that can execute more than one paragraph at a time.
type ConcurrencyLimiter interface {
	MaxConcurrency() int
}

// Factory creates a new, unopened Interpreter from the given properties.
type Factory func(props Properties) (Interpreter, error)

// FactoryRegistry maps interpreter class names to the Factory that creates them.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{
		factories: make(map[string]Factory),
	}
}

// Register associates className with factory, replacing any previous registration.
func (r *FactoryRegistry) Register(className string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[className] = factory
}

// New creates an interpreter of the given class.
func (r *FactoryRegistry) New(className string, props Properties) (Interpreter, error) {
	r.mu.RLock()
	factory, ok := r.factories[className]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown interpreter class \"%s\"", types.ErrInterpreterNotFound, className)
	}

	intp, err := factory(props)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create interpreter \"%s\"", className)
	}
	return intp, nil
}

// ClassNames returns the sorted names of all registered classes.
func (r *FactoryRegistry) ClassNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
