package interpreter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/types"
)

// fakeProcess is a Process whose RPCs are served by the given client, usually a gomock mock.
type fakeProcess struct {
	groupId  string
	client   proto.InterpreterServiceClient
	startErr error

	starts    atomic.Int32
	shutdowns atomic.Int32

	mu      sync.Mutex
	running bool
}

func (p *fakeProcess) GroupId() string {
	return p.groupId
}

func (p *fakeProcess) Start(_ context.Context) error {
	p.starts.Add(1)

	// Widen the window in which concurrent callers could start the process twice.
	time.Sleep(20 * time.Millisecond)

	if p.startErr != nil {
		return p.startErr
	}

	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}

func (p *fakeProcess) ErrorMessage() string {
	if p.startErr != nil {
		return p.startErr.Error()
	}
	return ""
}

func (p *fakeProcess) CallRemoteFunction(ctx context.Context, f func(ctx context.Context, c proto.InterpreterServiceClient) error) error {
	if !p.IsRunning() {
		return types.ErrProcessNotRunning
	}
	return f(ctx, p.client)
}

func (p *fakeProcess) Shutdown(_ time.Duration) error {
	p.shutdowns.Add(1)

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// fakeProcessFactory hands out one fakeProcess per group and remembers them.
type fakeProcessFactory struct {
	client   proto.InterpreterServiceClient
	startErr error

	mu        sync.Mutex
	processes map[string]*fakeProcess
	created   atomic.Int32
}

func newFakeProcessFactory(client proto.InterpreterServiceClient, startErr error) *fakeProcessFactory {
	return &fakeProcessFactory{
		client:    client,
		startErr:  startErr,
		processes: make(map[string]*fakeProcess),
	}
}

func (f *fakeProcessFactory) New(group *ManagedGroup, _ string, _ interpreter.Properties) Process {
	f.created.Add(1)

	p := &fakeProcess{groupId: group.Id(), client: f.client, startErr: f.startErr}

	f.mu.Lock()
	f.processes[group.Id()] = p
	f.mu.Unlock()
	return p
}

func (f *fakeProcessFactory) Get(groupId string) *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.processes[groupId]
}

func jdbcSetting() *Setting {
	return &Setting{
		Name: "jdbc",
		Interpreters: []InterpreterInfo{
			{Name: "sql", ClassName: "builtin.sql", DefaultInterpreter: true},
			{Name: "echo", ClassName: "builtin.echo"},
		},
		Properties: interpreter.Properties{"default.url": "file::memory:"},
		Launcher:   LauncherConfig{Kind: "attached"},
	}
}
