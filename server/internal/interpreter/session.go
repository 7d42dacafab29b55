package interpreter

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Session is the set of interpreters of one group that serve the same user and note scope.
type Session struct {
	id    string
	user  string
	group *ManagedGroup

	interpreters *orderedmap.OrderedMap[string, *RemoteInterpreter]
}

// newSession creates one interpreter per interpreter of the setting and resolves their dependencies.
func newSession(group *ManagedGroup, id string, user string) (*Session, error) {
	setting := group.setting
	if err := setting.checkOpenCycles(); err != nil {
		return nil, err
	}

	s := &Session{
		id:           id,
		user:         user,
		group:        group,
		interpreters: orderedmap.NewOrderedMap[string, *RemoteInterpreter](),
	}

	for _, info := range setting.Interpreters {
		s.interpreters.Set(info.ClassName, newRemoteInterpreter(s, info, setting.Properties.Clone()))
	}

	for el := s.interpreters.Front(); el != nil; el = el.Next() {
		for _, dep := range setting.DependenciesOf(el.Key) {
			sibling, _ := s.interpreters.Get(dep.ClassName)
			el.Value.dependencies = append(el.Value.dependencies, resolvedDependency{kind: dep.Kind, interpreter: sibling})
		}
	}

	return s, nil
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) Group() *ManagedGroup {
	return s.group
}

// Get returns the interpreter with the given name or class name, or the default interpreter if name is empty.
func (s *Session) Get(name string) (*RemoteInterpreter, bool) {
	info, ok := s.group.setting.FindInterpreter(name)
	if !ok {
		return nil, false
	}
	return s.interpreters.Get(info.ClassName)
}

// Interpreters returns the interpreters of the session in the order of the setting.
func (s *Session) Interpreters() []*RemoteInterpreter {
	interpreters := make([]*RemoteInterpreter, 0, s.interpreters.Len())
	for el := s.interpreters.Front(); el != nil; el = el.Next() {
		interpreters = append(interpreters, el.Value)
	}
	return interpreters
}

func (s *Session) close(closeRemote bool) {
	for _, intp := range s.Interpreters() {
		if closeRemote {
			if err := intp.Close(); err != nil {
				s.group.log.Warn("Failed to close interpreter %s of session %s: %v", intp.ClassName(), s.id, err)
			}
		}
		intp.removeSchedulers()
	}
}
