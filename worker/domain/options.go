package domain

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Scusemua/go-utils/config"
	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/configuration"
)

const (
	DefaultEventServiceName     = "notebook-server"
	DefaultReconnectIntervalSec = 5
	DefaultReconnectBurst       = 1
	DefaultRegisterTimeoutSec   = 30
)

var (
	ErrMissingGroupId   = errors.New("the \"group\" option is required")
	ErrNoEventEndpoint  = errors.New("either \"event-addr\" or \"consul\" must be set")
	ErrInvalidReconnect = errors.New("\"reconnect-interval\" must not be negative")
)

// WorkerOptions configures an interpreter worker process.
type WorkerOptions struct {
	config.LoggerOptions        `yaml:",inline" json:"logger_options"`
	configuration.CommonOptions `yaml:",inline" json:"common_options"`

	EventAddr            string `name:"event-addr"         json:"event-addr"         yaml:"event-addr"         description:"Address of the notebook server to register with. Resolved through Consul if empty."`
	EventServiceName     string `name:"event-service"      json:"event-service"      yaml:"event-service"      description:"Name under which the notebook server is registered in Consul."`
	GroupId              string `name:"group"              json:"group"              yaml:"group"              description:"Id of the interpreter group served by this process."`
	Host                 string `name:"host"               json:"host"               yaml:"host"               description:"Host name reported to the server. Defaults to the host name of the machine."`
	JaegerAddr           string `name:"jaeger"             json:"jaeger"             yaml:"jaeger"             description:"Jaeger agent address."`
	ConsulAddr           string `name:"consul"             json:"consul"             yaml:"consul"             description:"Consul agent address."`
	PrometheusPort       int    `name:"prometheus-port"    json:"prometheus-port"    yaml:"prometheus-port"    description:"Port on which Prometheus metrics are served. Zero disables the metrics server."`
	ReconnectIntervalSec int    `name:"reconnect-interval" json:"reconnect-interval" yaml:"reconnect-interval" description:"Minimum number of seconds between two attempts to reconnect to the server. Zero disables reconnection."`
	RegisterTimeoutSec   int    `name:"register-timeout"   json:"register-timeout"   yaml:"register-timeout"   description:"Seconds to wait for the server to accept the registration."`
}

// Validate fills in defaults and checks the options for consistency.
// Validate is part of the config.Options interface.
func (o *WorkerOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}

	if o.GroupId == "" {
		return ErrMissingGroupId
	}

	if o.EventAddr == "" && o.ConsulAddr == "" {
		return ErrNoEventEndpoint
	}

	if o.EventServiceName == "" {
		o.EventServiceName = DefaultEventServiceName
	}

	if o.Host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			fmt.Printf("[WARNING] Failed to resolve the host name: %v. Using \"localhost\".\n", err)
			hostname = "localhost"
		}
		o.Host = hostname
	}

	if o.ReconnectIntervalSec < 0 {
		return ErrInvalidReconnect
	}

	if o.RegisterTimeoutSec <= 0 {
		o.RegisterTimeoutSec = DefaultRegisterTimeoutSec
	}

	return nil
}

func (o *WorkerOptions) String() string {
	m, err := json.Marshal(o)
	if err != nil {
		panic(err)
	}

	return string(m)
}

// PrettyString is the same as String, except that PrettyString calls json.MarshalIndent instead of json.Marshal.
func (o *WorkerOptions) PrettyString(indentSize int) string {
	m, err := json.MarshalIndent(o, "", strings.Repeat(" ", indentSize))
	if err != nil {
		panic(err)
	}

	return string(m)
}
