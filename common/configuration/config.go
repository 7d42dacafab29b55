package configuration

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/types"
)

const (
	DefaultMaxConnections          = 10
	DefaultSchedulerConcurrency    = 10
	DefaultJobHistorySize          = 100
	DefaultMaxGlobalBroadcastNotes = 1000
	DefaultProcessStartTimeoutSec  = 60
	DefaultProcessStopTimeoutSec   = 10
)

// ExecutionMode controls the granularity at which the remote scheduler of an interpreter serializes jobs.
type ExecutionMode string

const (
	// ExecutionModeParagraph schedules every paragraph of a session through one sequential queue.
	ExecutionModeParagraph ExecutionMode = "paragraph"

	// ExecutionModeNote gives each note its own scheduler and lets the worker decide how many of the
	// note's paragraphs may run concurrently.
	ExecutionModeNote ExecutionMode = "note"
)

// ParseExecutionMode converts the given string into an ExecutionMode.
// The empty string maps to ExecutionModeParagraph.
func ParseExecutionMode(mode string) (ExecutionMode, error) {
	switch ExecutionMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", ExecutionModeParagraph:
		return ExecutionModeParagraph, nil
	case ExecutionModeNote:
		return ExecutionModeNote, nil
	default:
		return "", fmt.Errorf("%w: \"%s\"", types.ErrInvalidExecutionMode, mode)
	}
}

func (m ExecutionMode) String() string {
	return string(m)
}

// CommonOptions includes all configuration parameters that are common to both the notebook server
// and the interpreter worker processes.
type CommonOptions struct {
	MaxConnections          int    `name:"max-connections"            json:"max-connections"            yaml:"max-connections"            description:"Maximum number of pooled RPC connections to a single interpreter process."`
	SchedulerConcurrency    int    `name:"scheduler-concurrency"      json:"scheduler-concurrency"      yaml:"scheduler-concurrency"      description:"Upper bound on concurrently running jobs for parallel and note-scoped schedulers."`
	ExecutionMode           string `name:"execution-mode"             json:"execution-mode"             yaml:"execution-mode"             description:"Default execution mode of interpreters. Options are 'paragraph' and 'note'."`
	ProcessStartTimeoutSec  int    `name:"process-start-timeout"      json:"process-start-timeout"      yaml:"process-start-timeout"      description:"Seconds to wait for an interpreter process to register before the launch is considered failed."`
	ProcessStopTimeoutSec   int    `name:"process-stop-timeout"       json:"process-stop-timeout"       yaml:"process-stop-timeout"       description:"Seconds to wait for an interpreter process to exit gracefully before it is killed."`
	JobHistorySize          int    `name:"job-history-size"           json:"job-history-size"           yaml:"job-history-size"           description:"Number of finished jobs retained per scheduler."`
	MaxGlobalBroadcastNotes int    `name:"max-global-broadcast-notes" json:"max-global-broadcast-notes" yaml:"max-global-broadcast-notes" description:"Maximum number of notes visited when fanning out an update of a global angular object."`
	DebugMode               bool   `name:"debug_mode"                 json:"debug_mode"                 yaml:"debug_mode"                 description:"Enable the debug HTTP server."`
	DebugPort               int    `name:"debug_port"                 json:"debug_port"                 yaml:"debug_port"                 description:"The port for the debug HTTP server."`

	// PrettyPrintOptions, when true, instructs the driver script to pretty-print
	// the options struct when the program first begins running.
	PrettyPrintOptions bool `name:"pretty_print_options" json:"pretty_print_options" yaml:"pretty_print_options"`
}

// ApplyDefaults replaces unset (zero or negative) numeric parameters with their default values.
func (opts *CommonOptions) ApplyDefaults() {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	if opts.SchedulerConcurrency <= 0 {
		opts.SchedulerConcurrency = DefaultSchedulerConcurrency
	}
	if opts.JobHistorySize <= 0 {
		opts.JobHistorySize = DefaultJobHistorySize
	}
	if opts.MaxGlobalBroadcastNotes <= 0 {
		opts.MaxGlobalBroadcastNotes = DefaultMaxGlobalBroadcastNotes
	}
	if opts.ProcessStartTimeoutSec <= 0 {
		opts.ProcessStartTimeoutSec = DefaultProcessStartTimeoutSec
	}
	if opts.ProcessStopTimeoutSec <= 0 {
		opts.ProcessStopTimeoutSec = DefaultProcessStopTimeoutSec
	}
}

// Validate applies defaults and ensures that the execution mode is one of the supported values.
func (opts *CommonOptions) Validate() error {
	opts.ApplyDefaults()

	mode, err := ParseExecutionMode(opts.ExecutionMode)
	if err != nil {
		return err
	}

	opts.ExecutionMode = mode.String()
	return nil
}

// GetExecutionMode returns the parsed ExecutionMode. Validate must have succeeded beforehand.
func (opts *CommonOptions) GetExecutionMode() ExecutionMode {
	mode, err := ParseExecutionMode(opts.ExecutionMode)
	if err != nil {
		return ExecutionModeParagraph
	}
	return mode
}

func (opts *CommonOptions) ProcessStartTimeout() time.Duration {
	return time.Duration(opts.ProcessStartTimeoutSec) * time.Second
}

func (opts *CommonOptions) ProcessStopTimeout() time.Duration {
	return time.Duration(opts.ProcessStopTimeoutSec) * time.Second
}

// PrettyString is the same as String, except that PrettyString calls json.MarshalIndent instead of json.Marshal.
func (opts *CommonOptions) PrettyString(indentSize int) string {
	indentBuilder := strings.Builder{}
	for i := 0; i < indentSize; i++ {
		indentBuilder.WriteString(" ")
	}

	m, err := json.MarshalIndent(opts, "", indentBuilder.String())
	if err != nil {
		panic(err)
	}

	return string(m)
}

func (opts *CommonOptions) Clone() *CommonOptions {
	clone := *opts
	return &clone
}

func (opts *CommonOptions) String() string {
	m, err := json.Marshal(opts)
	if err != nil {
		panic(err)
	}

	return string(m)
}
