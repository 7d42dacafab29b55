package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/server/internal/process"
)

const (
	SharedProcess = "shared_process"
	SharedSession = "shared_session"
)

var (
	ErrInvalidSetting   = errors.New("invalid interpreter setting")
	ErrSettingNotFound  = errors.New("interpreter setting not found")
	ErrDependencyCycle  = errors.New("interpreter dependencies form a cycle")
	ErrUnknownIsolation = errors.New("unknown isolation mode")
)

// Isolation controls how the interpreters of a setting are shared between notes or between users.
type Isolation string

const (
	// Shared runs everything in one session of one process.
	Shared Isolation = "shared"
	// Scoped gives each note (or user) its own session within a shared process.
	Scoped Isolation = "scoped"
	// Isolated gives each note (or user) its own process.
	Isolated Isolation = "isolated"
)

func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(strings.ToLower(strings.TrimSpace(s))) {
	case "", Shared:
		return Shared, nil
	case Scoped:
		return Scoped, nil
	case Isolated:
		return Isolated, nil
	default:
		return "", fmt.Errorf("%w: \"%s\"", ErrUnknownIsolation, s)
	}
}

type Option struct {
	PerNote Isolation `json:"perNote"`
	PerUser Isolation `json:"perUser"`
}

// DependencyKind states what an interpreter requires of a sibling before it is opened itself.
type DependencyKind string

const (
	NeedsCreation DependencyKind = "NeedsCreation"
	NeedsOpen     DependencyKind = "NeedsOpen"
)

type Dependency struct {
	ClassName string         `json:"className"`
	Kind      DependencyKind `json:"kind"`
}

type InterpreterInfo struct {
	Name               string `json:"name"`
	ClassName          string `json:"className"`
	DefaultInterpreter bool   `json:"defaultInterpreter"`

	// Dependencies are the siblings that must be created or opened first. When nil, every sibling
	// must be created.
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

type LauncherConfig struct {
	Kind string            `json:"kind"`
	Argv []string          `json:"argv,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
	Dir  string            `json:"dir,omitempty"`
}

// Setting is the named configuration of a set of interpreters that share a process.
type Setting struct {
	Name          string                 `json:"name"`
	Interpreters  []InterpreterInfo      `json:"interpreters"`
	Properties    interpreter.Properties `json:"properties"`
	Option        Option                 `json:"option"`
	Launcher      LauncherConfig         `json:"launcher"`
	ExecutionMode string                 `json:"executionMode,omitempty"`
}

// Validate normalizes the setting and checks the consistency of its interpreters and dependencies.
func (s *Setting) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: setting without a name", ErrInvalidSetting)
	}
	if strings.ContainsAny(s.Name, "-:") {
		return fmt.Errorf("%w: name \"%s\" must not contain '-' or ':'", ErrInvalidSetting, s.Name)
	}
	if len(s.Interpreters) == 0 {
		return fmt.Errorf("%w: setting \"%s\" has no interpreters", ErrInvalidSetting, s.Name)
	}

	var err error
	if s.Option.PerNote, err = ParseIsolation(string(s.Option.PerNote)); err != nil {
		return err
	}
	if s.Option.PerUser, err = ParseIsolation(string(s.Option.PerUser)); err != nil {
		return err
	}

	if s.ExecutionMode != "" {
		if _, err = configuration.ParseExecutionMode(s.ExecutionMode); err != nil {
			return err
		}
	}

	switch s.Launcher.Kind {
	case "":
		s.Launcher.Kind = process.LauncherExec
		fallthrough
	case process.LauncherExec:
		if len(s.Launcher.Argv) == 0 {
			return fmt.Errorf("%w: setting \"%s\" launches processes without a command", ErrInvalidSetting, s.Name)
		}
	case process.LauncherAttached:
	default:
		return fmt.Errorf("%w: unknown launcher \"%s\"", ErrInvalidSetting, s.Launcher.Kind)
	}

	if s.Properties == nil {
		s.Properties = interpreter.Properties{}
	}

	classNames := make(map[string]struct{}, len(s.Interpreters))
	for _, info := range s.Interpreters {
		if info.ClassName == "" {
			return fmt.Errorf("%w: interpreter without class name in setting \"%s\"", ErrInvalidSetting, s.Name)
		}
		if _, loaded := classNames[info.ClassName]; loaded {
			return fmt.Errorf("%w: duplicate interpreter \"%s\" in setting \"%s\"", ErrInvalidSetting, info.ClassName, s.Name)
		}
		classNames[info.ClassName] = struct{}{}
	}

	for _, info := range s.Interpreters {
		for _, dep := range info.Dependencies {
			if _, ok := classNames[dep.ClassName]; !ok || dep.ClassName == info.ClassName {
				return fmt.Errorf("%w: interpreter \"%s\" depends on unknown interpreter \"%s\"",
					ErrInvalidSetting, info.ClassName, dep.ClassName)
			}
			if dep.Kind != NeedsCreation && dep.Kind != NeedsOpen {
				return fmt.Errorf("%w: unknown dependency kind \"%s\"", ErrInvalidSetting, dep.Kind)
			}
		}
	}

	return s.checkOpenCycles()
}

// DependenciesOf returns the dependency list of the given interpreter.
func (s *Setting) DependenciesOf(className string) []Dependency {
	for _, info := range s.Interpreters {
		if info.ClassName != className {
			continue
		}
		if info.Dependencies != nil {
			return info.Dependencies
		}

		deps := make([]Dependency, 0, len(s.Interpreters)-1)
		for _, sibling := range s.Interpreters {
			if sibling.ClassName != className {
				deps = append(deps, Dependency{ClassName: sibling.ClassName, Kind: NeedsCreation})
			}
		}
		return deps
	}
	return nil
}

// checkOpenCycles rejects NeedsOpen edges that form a cycle, since opening would never terminate.
func (s *Setting) checkOpenCycles() error {
	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[string]int, len(s.Interpreters))

	var visit func(className string, path []string) error
	visit = func(className string, path []string) error {
		switch state[className] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(append(path, className), " -> "))
		case visited:
			return nil
		}

		state[className] = visiting
		for _, dep := range s.DependenciesOf(className) {
			if dep.Kind != NeedsOpen {
				continue
			}
			if err := visit(dep.ClassName, append(path, className)); err != nil {
				return err
			}
		}
		state[className] = visited
		return nil
	}

	for _, info := range s.Interpreters {
		if err := visit(info.ClassName, nil); err != nil {
			return err
		}
	}
	return nil
}

// DefaultInterpreter returns the interpreter used when none is named.
func (s *Setting) DefaultInterpreter() InterpreterInfo {
	for _, info := range s.Interpreters {
		if info.DefaultInterpreter {
			return info
		}
	}
	return s.Interpreters[0]
}

// FindInterpreter looks an interpreter up by name or by class name.
func (s *Setting) FindInterpreter(name string) (InterpreterInfo, bool) {
	if name == "" {
		return s.DefaultInterpreter(), true
	}
	for _, info := range s.Interpreters {
		if info.Name == name || info.ClassName == name {
			return info, true
		}
	}
	return InterpreterInfo{}, false
}

// GroupId returns the id of the group that serves the given user and note.
func (s *Setting) GroupId(user string, noteId string) string {
	var key string
	switch {
	case s.Option.PerUser == Isolated && s.Option.PerNote == Isolated:
		key = user + ":" + noteId
	case s.Option.PerUser == Isolated:
		key = user
	case s.Option.PerNote == Isolated:
		key = noteId
	default:
		key = SharedProcess
	}
	return s.Name + "-" + key
}

// SessionId returns the id of the session, within its group, that serves the given user and note.
func (s *Setting) SessionId(user string, noteId string) string {
	switch {
	case s.Option.PerUser == Scoped && s.Option.PerNote == Scoped:
		return user + ":" + noteId
	case s.Option.PerUser == Scoped:
		return user
	case s.Option.PerNote == Scoped:
		return noteId
	default:
		return SharedSession
	}
}

// SettingNameOfGroup extracts the setting name from a group id.
func SettingNameOfGroup(groupId string) string {
	name, _, _ := strings.Cut(groupId, "-")
	return name
}

// GetExecutionMode returns the execution mode of the setting, or def if the setting does not set one.
func (s *Setting) GetExecutionMode(def configuration.ExecutionMode) configuration.ExecutionMode {
	if s.ExecutionMode == "" {
		return def
	}
	mode, err := configuration.ParseExecutionMode(s.ExecutionMode)
	if err != nil {
		return def
	}
	return mode
}

func (s *Setting) Clone() *Setting {
	clone := *s
	clone.Interpreters = append([]InterpreterInfo(nil), s.Interpreters...)
	clone.Properties = s.Properties.Clone()
	return &clone
}
