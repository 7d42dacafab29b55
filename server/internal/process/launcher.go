package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	pkgerrors "github.com/pkg/errors"
)

const (
	// EventAddrPlaceholder is replaced by the address on which the server accepts processes.
	EventAddrPlaceholder = "{event_addr}"

	// GroupIdPlaceholder is replaced by the id of the interpreter group the process serves.
	GroupIdPlaceholder = "{group_id}"

	LauncherExec     = "exec"
	LauncherAttached = "attached"
)

var ErrEmptyCommand = errors.New("launcher has an empty command")

// Launcher starts the process of an interpreter group. The process must then dial the server at eventAddr
// and register itself for groupId.
type Launcher interface {
	// Launch starts the process. The returned Handle is nil if the process is not a child of the server.
	Launch(ctx context.Context, groupId string, eventAddr string) (Handle, error)
	Kind() string
}

// Handle controls a launched process.
type Handle interface {
	Pid() int

	// Exited returns a channel that is closed once the process has exited.
	Exited() <-chan struct{}

	// ExitError returns the error with which the process exited. It is only meaningful after Exited is closed.
	ExitError() error

	// Interrupt asks the process to exit.
	Interrupt() error
	Kill() error
}

// ExecLauncher spawns the interpreter process as a child of the server.
type ExecLauncher struct {
	log logger.Logger

	// Argv is the command line. Occurrences of EventAddrPlaceholder and GroupIdPlaceholder are replaced
	// in every argument.
	Argv []string
	Env  map[string]string
	Dir  string
}

func NewExecLauncher(argv []string, env map[string]string, dir string) *ExecLauncher {
	launcher := &ExecLauncher{
		Argv: argv,
		Env:  env,
		Dir:  dir,
	}
	config.InitLogger(&launcher.log, launcher)

	return launcher
}

func (l *ExecLauncher) Kind() string {
	return LauncherExec
}

// Launch starts the process. ctx only bounds the launch; the process outlives it.
func (l *ExecLauncher) Launch(ctx context.Context, groupId string, eventAddr string) (Handle, error) {
	if len(l.Argv) == 0 {
		return nil, ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	replacer := strings.NewReplacer(EventAddrPlaceholder, eventAddr, GroupIdPlaceholder, groupId)
	argv := make([]string, 0, len(l.Argv))
	for _, arg := range l.Argv {
		argv = append(argv, replacer.Replace(arg))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = l.Dir
	cmd.Env = os.Environ()
	for key, value := range l.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, replacer.Replace(value)))
	}

	l.log.Debug("Launching interpreter process of group %s: \"%s\"", groupId, strings.Join(argv, " "))
	if err := cmd.Start(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to launch \"%s\"", argv[0])
	}

	handle := &execHandle{
		cmd:    cmd,
		exited: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		if err != nil {
			l.log.Debug("Interpreter process %d of group %s exited with error: %v", cmd.Process.Pid, groupId, err)
		} else {
			l.log.Debug("Interpreter process %d of group %s exited.", cmd.Process.Pid, groupId)
		}

		handle.mu.Lock()
		handle.exitErr = err
		handle.exitedAt = time.Now()
		handle.mu.Unlock()
		close(handle.exited)
	}()

	return handle, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	exited chan struct{}

	mu       sync.Mutex
	exitErr  error
	exitedAt time.Time
}

func (h *execHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Exited() <-chan struct{} {
	return h.exited
}

func (h *execHandle) ExitError() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.exitErr
}

func (h *execHandle) Interrupt() error {
	return h.cmd.Process.Signal(syscall.SIGINT)
}

func (h *execHandle) Kill() error {
	err := h.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// AttachedLauncher is used for processes that are managed outside the server, including processes that
// survived a restart of the server. Launch does nothing; the process dials the server on its own.
type AttachedLauncher struct{}

func (AttachedLauncher) Kind() string {
	return LauncherAttached
}

func (AttachedLauncher) Launch(_ context.Context, _ string, _ string) (Handle, error) {
	return nil, nil
}
