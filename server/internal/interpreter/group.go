package interpreter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/elliotchance/orderedmap/v2"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/scheduler"
)

const angularNotifyTimeout = 30 * time.Second

// Process is the worker process of a group, as seen by the group and its interpreters.
type Process interface {
	GroupId() string
	Start(ctx context.Context) error
	IsRunning() bool
	ErrorMessage() string
	CallRemoteFunction(ctx context.Context, f func(ctx context.Context, c proto.InterpreterServiceClient) error) error
	Shutdown(timeout time.Duration) error
}

// ProcessFactory creates the process of a group. It must not start it.
type ProcessFactory func(group *ManagedGroup, user string, properties interpreter.Properties) Process

// ManagedGroup is an interpreter group: the sessions of one setting that share one worker process.
type ManagedGroup struct {
	log logger.Logger

	id         string
	setting    *Setting
	registry   *angular.Registry
	schedulers *scheduler.Factory
	factory    ProcessFactory
	opts       *GroupOptions

	mu      sync.Mutex
	process Process

	// startMu is held while the process starts, so that concurrent callers of GetOrCreateProcess wait
	// for the same start.
	startMu  sync.Mutex
	startErr error

	pushMu         sync.Mutex
	registryPushed bool

	sessionsMu     sync.Mutex
	sessions       *orderedmap.OrderedMap[string, *Session]
	notes          map[string]struct{}
	closed         bool
	listenerToken  string
	workerListener *workerListener
}

// GroupOptions are the settings of a group inherited from the server configuration.
type GroupOptions struct {
	ExecutionMode        string
	SchedulerConcurrency int
	ProcessStopTimeout   time.Duration
	Metrics              *metrics.PrometheusManager
}

func NewManagedGroup(id string, setting *Setting, registry *angular.Registry, schedulers *scheduler.Factory, factory ProcessFactory, opts *GroupOptions) *ManagedGroup {
	g := &ManagedGroup{
		id:         id,
		setting:    setting,
		registry:   registry,
		schedulers: schedulers,
		factory:    factory,
		opts:       opts,
		sessions:   orderedmap.NewOrderedMap[string, *Session](),
		notes:      make(map[string]struct{}),
	}
	config.InitLogger(&g.log, fmt.Sprintf("InterpreterGroup[%s] ", id))

	return g
}

func (g *ManagedGroup) Id() string {
	return g.id
}

func (g *ManagedGroup) Setting() *Setting {
	return g.setting
}

func (g *ManagedGroup) AngularRegistry() *angular.Registry {
	return g.registry
}

// Process returns the process of the group, if it was created.
func (g *ManagedGroup) Process() (Process, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.process, g.process != nil
}

// GetOrCreateProcess returns the process of the group, creating and starting it on first use. A failed
// start is returned again on every later call; the process is not replaced until the group is closed.
func (g *ManagedGroup) GetOrCreateProcess(ctx context.Context, user string, properties interpreter.Properties) (Process, error) {
	p := g.getOrNewProcess(user, properties)

	g.startMu.Lock()
	defer g.startMu.Unlock()

	if p.IsRunning() {
		// The process may have registered again after a failure.
		g.startErr = nil
		return p, nil
	}

	if g.startErr == nil {
		g.startErr = p.Start(ctx)
	}
	return p, g.startErr
}

// getOrNewProcess returns the process of the group, creating it without starting it if there is none.
func (g *ManagedGroup) getOrNewProcess(user string, properties interpreter.Properties) Process {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.process == nil {
		g.log.Debug("Creating interpreter process for user %s.", user)
		g.process = g.factory(g, user, properties)
	}
	return g.process
}

// pushRegistryOnce sends the full angular registry to the process, unless it was already sent since the
// process last attached.
func (g *ManagedGroup) pushRegistryOnce(ctx context.Context, p Process) error {
	g.pushMu.Lock()
	defer g.pushMu.Unlock()

	if g.registryPushed {
		return nil
	}

	snapshot, err := g.registry.SnapshotJson()
	if err != nil {
		return err
	}

	err = p.CallRemoteFunction(ctx, func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.AngularRegistryPush(ctx, &proto.AngularRegistryPushRequest{
			GroupId:  g.id,
			Registry: snapshot,
			Origin:   angular.LocalOrigin,
		})
		return err
	})
	if err != nil {
		return err
	}

	g.log.Debug("Pushed %d angular object(s) to the interpreter process.", g.registry.Len())
	g.registryPushed = true
	return nil
}

// IsRegistryPushed reports whether the registry was sent to the current process.
func (g *ManagedGroup) IsRegistryPushed() bool {
	g.pushMu.Lock()
	defer g.pushMu.Unlock()

	return g.registryPushed
}

// onProcessAttached forwards the changes of the registry to a newly attached connection. The registry is
// sent in full again before the next use of the group.
func (g *ManagedGroup) onProcessAttached(p Process, token string) {
	g.pushMu.Lock()
	g.registryPushed = false
	g.pushMu.Unlock()

	g.sessionsMu.Lock()
	if g.listenerToken != "" {
		g.registry.RemoveListener(g.listenerToken)
	}
	g.listenerToken = token
	g.workerListener = &workerListener{group: g, process: p}
	g.sessionsMu.Unlock()

	g.registry.AddListener(token, "", g.workerListener)
}

func (g *ManagedGroup) onProcessDetached(token string) {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()

	if g.listenerToken == token {
		g.registry.RemoveListener(token)
		g.listenerToken = ""
		g.workerListener = nil
	}
}

// GetOrCreateSession returns the session that serves the given user and note.
func (g *ManagedGroup) GetOrCreateSession(user string, noteId string) (*Session, error) {
	sessionId := g.setting.SessionId(user, noteId)

	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()

	if g.closed {
		return nil, fmt.Errorf("interpreter group %s is closed", g.id)
	}

	if noteId != "" {
		g.notes[noteId] = struct{}{}
	}

	if session, ok := g.sessions.Get(sessionId); ok {
		return session, nil
	}

	session, err := newSession(g, sessionId, user)
	if err != nil {
		return nil, err
	}

	g.sessions.Set(sessionId, session)
	return session, nil
}

func (g *ManagedGroup) Session(sessionId string) (*Session, bool) {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()

	return g.sessions.Get(sessionId)
}

func (g *ManagedGroup) Sessions() []*Session {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()

	sessions := make([]*Session, 0, g.sessions.Len())
	for el := g.sessions.Front(); el != nil; el = el.Next() {
		sessions = append(sessions, el.Value)
	}
	return sessions
}

// ServesNote reports whether an interpreter of the group was requested for the given note.
func (g *ManagedGroup) ServesNote(noteId string) bool {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()

	_, ok := g.notes[noteId]
	return ok
}

// Notes returns the notes served by the group, sorted.
func (g *ManagedGroup) Notes() []string {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()

	notes := make([]string, 0, len(g.notes))
	for noteId := range g.notes {
		notes = append(notes, noteId)
	}
	sort.Strings(notes)
	return notes
}

// Close closes every session and shuts the process down.
func (g *ManagedGroup) Close() error {
	return g.close(true)
}

// Release closes every session but leaves the process running, so that it can register with a restarted
// server.
func (g *ManagedGroup) Release() error {
	return g.close(false)
}

func (g *ManagedGroup) close(shutdownProcess bool) error {
	g.sessionsMu.Lock()
	if g.closed {
		g.sessionsMu.Unlock()
		return nil
	}
	g.closed = true
	sessions := make([]*Session, 0, g.sessions.Len())
	for el := g.sessions.Front(); el != nil; el = el.Next() {
		sessions = append(sessions, el.Value)
	}
	g.sessions = orderedmap.NewOrderedMap[string, *Session]()
	if g.listenerToken != "" {
		g.registry.RemoveListener(g.listenerToken)
		g.listenerToken = ""
	}
	g.sessionsMu.Unlock()

	for _, session := range sessions {
		session.close(shutdownProcess)
	}

	g.mu.Lock()
	p := g.process
	g.mu.Unlock()

	if p == nil {
		return nil
	}

	if !shutdownProcess {
		if releaser, ok := p.(interface{ Release() }); ok {
			releaser.Release()
		}
		return nil
	}

	g.log.Debug("Shutting down interpreter process.")
	return p.Shutdown(g.opts.ProcessStopTimeout)
}

// workerListener forwards the changes of the registry to the worker process of the group.
type workerListener struct {
	group   *ManagedGroup
	process Process
}

func (l *workerListener) notify(kind string, f func(ctx context.Context, c proto.InterpreterServiceClient) error) {
	ctx, cancel := context.WithTimeout(context.Background(), angularNotifyTimeout)
	defer cancel()

	if err := l.process.CallRemoteFunction(ctx, f); err != nil {
		l.group.log.Warn("Failed to forward angular %s to the interpreter process: %v", kind, err)
		return
	}

	if l.group.opts.Metrics != nil {
		l.group.opts.Metrics.RecordAngularEvent("sent", kind)
	}
}

func (l *workerListener) objectRequest(kind string, groupId string, o *angular.Object) (*proto.AngularObjectRequest, bool) {
	object, err := o.ToData().ToJson()
	if err != nil {
		l.group.log.Warn("Not forwarding angular %s: %v", kind, err)
		return nil, false
	}
	return &proto.AngularObjectRequest{GroupId: groupId, Object: object, Origin: angular.LocalOrigin}, true
}

func (l *workerListener) OnAdd(groupId string, o *angular.Object) {
	in, ok := l.objectRequest("add", groupId, o)
	if !ok {
		return
	}
	l.notify("add", func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.AngularObjectAdd(ctx, in)
		return err
	})
}

func (l *workerListener) OnUpdate(groupId string, o *angular.Object) {
	in, ok := l.objectRequest("update", groupId, o)
	if !ok {
		return
	}
	l.notify("update", func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.AngularObjectUpdate(ctx, in)
		return err
	})
}

func (l *workerListener) OnRemove(groupId string, name string, noteId string, paragraphId string) {
	in := &proto.AngularObjectRemoveRequest{
		GroupId:     groupId,
		Name:        name,
		NoteId:      noteId,
		ParagraphId: paragraphId,
		Origin:      angular.LocalOrigin,
	}
	l.notify("remove", func(ctx context.Context, c proto.InterpreterServiceClient) error {
		_, err := c.AngularObjectRemove(ctx, in)
		return err
	})
}

// ExecutionMode returns the execution mode of the setting, falling back to the server default.
func (g *ManagedGroup) ExecutionMode() configuration.ExecutionMode {
	def, err := configuration.ParseExecutionMode(g.opts.ExecutionMode)
	if err != nil {
		def = configuration.ExecutionModeParagraph
	}
	return g.setting.GetExecutionMode(def)
}
