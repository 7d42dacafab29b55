package interpreter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/metrics"
	"github.com/scusemua/notebook-runtime/common/recovery"
	"github.com/scusemua/notebook-runtime/common/scheduler"
	"github.com/scusemua/notebook-runtime/common/types"
	"github.com/scusemua/notebook-runtime/server/internal/event"
	"github.com/scusemua/notebook-runtime/server/internal/process"
)

// UIOrigin is the origin of the changes that the notebook frontend makes to angular objects.
const UIOrigin = "notebook-ui"

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	configuration.CommonOptions

	// EventAddr is the address that launched processes dial to register.
	EventAddr string

	Registrar   process.Registrar
	DialOptions []grpc.DialOption

	// Storage persists the registrations of running processes. If Recovery is true, closing the Manager
	// leaves the processes running so that the next server can re-attach to them.
	Storage  recovery.Storage
	Recovery bool

	Metrics *metrics.PrometheusManager

	// AngularListener, if non-nil, receives the changes of the angular objects of every group, except
	// the changes made with UIOrigin.
	AngularListener angular.Listener

	// ProcessFactory overrides the creation of RemoteProcess instances.
	ProcessFactory ProcessFactory
}

// JobInfo describes a job of one of the schedulers of the Manager.
type JobInfo struct {
	Scheduler    string           `json:"scheduler"`
	Id           string           `json:"id"`
	Status       scheduler.Status `json:"status"`
	Progress     int              `json:"progress"`
	DateCreated  time.Time        `json:"dateCreated"`
	DateStarted  time.Time        `json:"dateStarted,omitempty"`
	DateFinished time.Time        `json:"dateFinished,omitempty"`
}

// Manager owns the interpreter groups of every setting. It routes the events of registered processes to
// their groups and implements event.Router.
type Manager struct {
	log logger.Logger

	settings   *SettingsStore
	opts       *ManagerOptions
	schedulers *scheduler.Factory
	groups     cmap.ConcurrentMap[string, *ManagedGroup]

	// groupsMu serializes the creation and removal of groups.
	groupsMu sync.Mutex

	recoveredMu sync.Mutex
	recovered   map[string]recovery.Registration
}

func NewManager(settings *SettingsStore, opts *ManagerOptions) *Manager {
	m := &Manager{
		settings:   settings,
		opts:       opts,
		schedulers: scheduler.NewFactory(opts.JobHistorySize),
		groups:     cmap.New[*ManagedGroup](),
		recovered:  make(map[string]recovery.Registration),
	}
	if m.opts.ProcessFactory == nil {
		m.opts.ProcessFactory = m.newRemoteProcess
	}
	if m.opts.Storage == nil {
		m.opts.Storage = recovery.NewNoopStorage()
	}
	config.InitLogger(&m.log, m)

	settings.OnChange(m.onSettingChanged)
	return m
}

// Start loads the registrations of processes that survived the previous server. Those processes are
// re-attached when they register again instead of being launched.
func (m *Manager) Start(ctx context.Context) error {
	registrations, err := m.opts.Storage.LoadAll(ctx)
	if err != nil {
		return err
	}

	m.recoveredMu.Lock()
	defer m.recoveredMu.Unlock()

	for _, reg := range registrations {
		if _, err := m.settings.Get(reg.SettingName); err != nil {
			m.log.Warn("Dropping recovered registration of group %s: %v", reg.GroupId, err)
			if err = m.opts.Storage.Remove(ctx, reg.GroupId); err != nil {
				m.log.Warn("Failed to remove registration of group %s: %v", reg.GroupId, err)
			}
			continue
		}

		m.log.Debug("Recovered registration of group %s (host=%s, pid=%d).", reg.GroupId, reg.Host, reg.Pid)
		m.recovered[reg.GroupId] = reg
	}
	return nil
}

func (m *Manager) Settings() *SettingsStore {
	return m.settings
}

// ListSettings returns the current settings, sorted by name.
func (m *Manager) ListSettings() []*Setting {
	return m.settings.List()
}

func (m *Manager) Schedulers() *scheduler.Factory {
	return m.schedulers
}

// GetInterpreter returns the interpreter of the given setting that serves user and noteId. An empty name
// selects the default interpreter of the setting.
func (m *Manager) GetInterpreter(settingName string, name string, user string, noteId string) (*RemoteInterpreter, error) {
	setting, err := m.settings.Get(settingName)
	if err != nil {
		return nil, err
	}

	group := m.getOrCreateGroup(setting, setting.GroupId(user, noteId))
	session, err := group.GetOrCreateSession(user, noteId)
	if err != nil {
		return nil, err
	}

	intp, ok := session.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrInterpreterNotFound, settingName, name)
	}
	return intp, nil
}

func (m *Manager) Group(groupId string) (*ManagedGroup, bool) {
	return m.groups.Get(groupId)
}

// Groups returns every group, sorted by id.
func (m *Manager) Groups() []*ManagedGroup {
	groups := make([]*ManagedGroup, 0, m.groups.Count())
	for _, group := range m.groups.Items() {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Id() < groups[j].Id()
	})
	return groups
}

func (m *Manager) getOrCreateGroup(setting *Setting, groupId string) *ManagedGroup {
	m.groupsMu.Lock()
	defer m.groupsMu.Unlock()

	if group, ok := m.groups.Get(groupId); ok {
		return group
	}

	registry := angular.NewRegistry(groupId, m.opts.MaxGlobalBroadcastNotes)
	if m.opts.AngularListener != nil {
		registry.AddListener(UIOrigin, "", m.opts.AngularListener)
	}

	group := NewManagedGroup(groupId, setting, registry, m.schedulers, m.opts.ProcessFactory, &GroupOptions{
		ExecutionMode:        m.opts.ExecutionMode,
		SchedulerConcurrency: m.opts.SchedulerConcurrency,
		ProcessStopTimeout:   m.opts.ProcessStopTimeout(),
		Metrics:              m.opts.Metrics,
	})
	m.groups.Set(groupId, group)

	m.log.Debug("Created interpreter group %s.", groupId)
	return group
}

func (m *Manager) removeGroups(matches func(group *ManagedGroup) bool) []*ManagedGroup {
	m.groupsMu.Lock()
	defer m.groupsMu.Unlock()

	var removed []*ManagedGroup
	for _, group := range m.groups.Items() {
		if matches(group) {
			m.groups.Remove(group.Id())
			removed = append(removed, group)
		}
	}
	return removed
}

func closeGroups(groups []*ManagedGroup, closeFunc func(group *ManagedGroup) error) error {
	var eg errgroup.Group
	for _, group := range groups {
		group := group
		eg.Go(func() error {
			return closeFunc(group)
		})
	}
	return eg.Wait()
}

// Restart closes the groups of the given setting, shutting down their processes. If noteId is non-empty,
// only the groups that served that note are closed. The next request for an interpreter of the setting
// creates a new group.
func (m *Manager) Restart(settingName string, noteId string) error {
	if _, err := m.settings.Get(settingName); err != nil {
		return err
	}

	groups := m.removeGroups(func(group *ManagedGroup) bool {
		return group.Setting().Name == settingName && (noteId == "" || group.ServesNote(noteId))
	})

	m.log.Debug("Restarting %d group(s) of setting %s (note=\"%s\").", len(groups), settingName, noteId)
	return closeGroups(groups, (*ManagedGroup).Close)
}

func (m *Manager) onSettingChanged(old *Setting, _ *Setting) {
	if old == nil {
		return
	}

	groups := m.removeGroups(func(group *ManagedGroup) bool {
		return group.Setting().Name == old.Name
	})
	if len(groups) == 0 {
		return
	}

	m.log.Debug("Setting %s changed. Closing %d group(s).", old.Name, len(groups))
	if err := closeGroups(groups, (*ManagedGroup).Close); err != nil {
		m.log.Error("Failed to close the groups of setting %s: %v", old.Name, err)
	}
}

// Close closes every group. Processes are shut down unless recovery is enabled, in which case they are
// left running for the next server.
func (m *Manager) Close() error {
	groups := m.removeGroups(func(*ManagedGroup) bool { return true })

	closeFunc := (*ManagedGroup).Close
	if m.opts.Recovery {
		closeFunc = (*ManagedGroup).Release
	}

	err := closeGroups(groups, closeFunc)
	m.schedulers.Destroy()
	return err
}

// Jobs lists the jobs of every scheduler: waiting, then running, then the retained finished jobs.
func (m *Manager) Jobs() []JobInfo {
	jobs := make([]JobInfo, 0)
	for _, name := range m.schedulers.Names() {
		s, ok := m.schedulers.Get(name)
		if !ok {
			continue
		}

		for _, list := range [][]*scheduler.Job{s.JobsWaiting(), s.JobsRunning(), s.History()} {
			for _, job := range list {
				jobs = append(jobs, JobInfo{
					Scheduler:    name,
					Id:           job.Id(),
					Status:       job.Status(),
					Progress:     job.Progress(),
					DateCreated:  job.DateCreated(),
					DateStarted:  job.DateStarted(),
					DateFinished: job.DateFinished(),
				})
			}
		}
	}
	return jobs
}

func (m *Manager) isRecovered(groupId string) bool {
	m.recoveredMu.Lock()
	defer m.recoveredMu.Unlock()

	_, ok := m.recovered[groupId]
	return ok
}

func (m *Manager) newRemoteProcess(group *ManagedGroup, user string, _ interpreter.Properties) Process {
	setting := group.Setting()

	var launcher process.Launcher
	switch {
	case setting.Launcher.Kind == process.LauncherAttached || m.isRecovered(group.Id()):
		launcher = process.AttachedLauncher{}
	default:
		launcher = process.NewExecLauncher(setting.Launcher.Argv, setting.Launcher.Env, setting.Launcher.Dir)
	}

	m.log.Debug("Creating %s process of group %s for user %s.", launcher.Kind(), group.Id(), user)

	return process.NewRemoteProcess(group.Id(), setting.Name, launcher, m.opts.Registrar, m.opts.EventAddr,
		process.WithStartTimeout(m.opts.ProcessStartTimeout()),
		process.WithMaxConnections(m.opts.MaxConnections),
		process.WithDialOptions(m.opts.DialOptions...),
		process.WithRecoveryStorage(m.opts.Storage),
		process.WithMetrics(m.opts.Metrics),
		process.WithAttachListener(func(p *process.RemoteProcess, conn *event.Connection) {
			m.forgetRecovered(group.Id())
			group.onProcessAttached(p, conn.Token())
		}))
}

func (m *Manager) forgetRecovered(groupId string) {
	m.recoveredMu.Lock()
	defer m.recoveredMu.Unlock()

	delete(m.recovered, groupId)
}

type attacher interface {
	Attach(conn *event.Connection)
}

type detacher interface {
	Detach(conn *event.Connection) bool
}

// Claim attaches a process that registered without being launched by this server: a process that
// reconnected, an attached process, or a process recovered from the previous server.
func (m *Manager) Claim(conn *event.Connection) bool {
	setting, err := m.settings.Get(SettingNameOfGroup(conn.GroupId()))
	if err != nil {
		m.log.Warn("Rejecting %v: %v", conn, err)
		return false
	}

	group := m.getOrCreateGroup(setting, conn.GroupId())
	p := group.getOrNewProcess("", setting.Properties.Clone())

	a, ok := p.(attacher)
	if !ok {
		return false
	}

	m.log.Debug("Claimed %v for group %s.", conn, group.Id())
	a.Attach(conn)
	return true
}

func (m *Manager) Disconnected(conn *event.Connection) {
	group, ok := m.groups.Get(conn.GroupId())
	if !ok {
		return
	}

	p, ok := group.Process()
	if !ok {
		return
	}

	if d, ok := p.(detacher); ok && d.Detach(conn) {
		group.onProcessDetached(conn.Token())
	}
}

func (m *Manager) ExecutionMode(groupId string) configuration.ExecutionMode {
	if group, ok := m.groups.Get(groupId); ok {
		return group.ExecutionMode()
	}
	if setting, err := m.settings.Get(SettingNameOfGroup(groupId)); err == nil {
		return setting.GetExecutionMode(m.opts.GetExecutionMode())
	}
	return m.opts.GetExecutionMode()
}

func (m *Manager) AngularRegistry(groupId string) (*angular.Registry, error) {
	group, ok := m.groups.Get(groupId)
	if !ok {
		return nil, types.ErrGroupNotFound
	}
	return group.AngularRegistry(), nil
}

func (m *Manager) resourceOwner(group *ManagedGroup) (event.ResourceOwner, bool) {
	p, ok := group.Process()
	if !ok || !p.IsRunning() {
		return nil, false
	}

	owner, ok := p.(event.ResourceOwner)
	return owner, ok
}

func (m *Manager) ResourceOwners(excludeGroupId string) []event.ResourceOwner {
	owners := make([]event.ResourceOwner, 0)
	for _, group := range m.Groups() {
		if group.Id() == excludeGroupId {
			continue
		}
		if owner, ok := m.resourceOwner(group); ok {
			owners = append(owners, owner)
		}
	}
	return owners
}

// ResourceOwner returns the process of the group with the given id. The resource pool of a worker process
// is identified by the id of its group.
func (m *Manager) ResourceOwner(poolId string) (event.ResourceOwner, error) {
	group, ok := m.groups.Get(poolId)
	if !ok {
		return nil, types.ErrGroupNotFound
	}

	owner, ok := m.resourceOwner(group)
	if !ok {
		return nil, fmt.Errorf("%w: group %s", types.ErrProcessNotRunning, poolId)
	}
	return owner, nil
}

func (m *Manager) String() string {
	return "InterpreterManager"
}

var _ event.Router = (*Manager)(nil)
