package domain

import (
	"fmt"
	"strings"

	"github.com/Scusemua/go-utils/config"
	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/recovery"
)

const (
	DefaultEventPort     = 9800
	DefaultAdminPort     = 9880
	DefaultSettingsFile  = "interpreter-settings.json"
	DefaultRecoveryDir   = "./recovery"
	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisDatabase = 0
)

// ServerOptions configures the notebook server process.
type ServerOptions struct {
	config.LoggerOptions        `yaml:",inline" json:"logger_options"`
	configuration.CommonOptions `yaml:",inline" json:"common_options"`

	EventAddr      string `name:"event-addr"       json:"event-addr"       yaml:"event-addr"       description:"Address advertised to interpreter processes for registration. Defaults to 127.0.0.1:<event-port>."`
	SettingsFile   string `name:"settings"         json:"settings"         yaml:"settings"         description:"Path of the JSON file that defines the interpreter settings. It is reloaded when it changes."`
	JaegerAddr     string `name:"jaeger"           json:"jaeger"           yaml:"jaeger"           description:"Jaeger agent address."`
	ConsulAddr     string `name:"consul"           json:"consul"           yaml:"consul"           description:"Consul agent address."`
	RecoveryKind   string `name:"recovery"         json:"recovery"         yaml:"recovery"         description:"Where registrations of running interpreter processes are persisted. Options are 'none', 'file' and 'redis'."`
	RecoveryDir    string `name:"recovery-dir"     json:"recovery-dir"     yaml:"recovery-dir"     description:"Directory of the file recovery storage."`
	RedisAddr      string `name:"redis-addr"       json:"redis-addr"       yaml:"redis-addr"       description:"Address of the Redis server used by the redis recovery storage."`
	RedisPassword  string `name:"redis-password"   json:"redis-password"   yaml:"redis-password"   description:"Password of the Redis server used by the redis recovery storage."`
	RedisDatabase  int    `name:"redis-database"   json:"redis-database"   yaml:"redis-database"   description:"Database index used by the redis recovery storage."`
	EventPort      int    `name:"event-port"       json:"event-port"       yaml:"event-port"       description:"Port on which interpreter processes connect to the server."`
	AdminPort      int    `name:"admin-port"       json:"admin-port"       yaml:"admin-port"       description:"Port of the admin REST API, which also serves /metrics."`
	PrometheusPort int    `name:"prometheus-port"  json:"prometheus-port"  yaml:"prometheus-port"  description:"Dedicated port for Prometheus metrics. Zero disables the dedicated server."`
}

// Validate fills in defaults and checks the options for consistency.
// Validate is part of the config.Options interface.
func (o *ServerOptions) Validate() error {
	if err := o.CommonOptions.Validate(); err != nil {
		return err
	}

	if o.EventPort <= 0 {
		o.EventPort = DefaultEventPort
	}

	if o.AdminPort <= 0 {
		o.AdminPort = DefaultAdminPort
	}

	if o.EventAddr == "" {
		o.EventAddr = fmt.Sprintf("127.0.0.1:%d", o.EventPort)
	}

	if o.SettingsFile == "" {
		o.SettingsFile = DefaultSettingsFile
	}

	o.RecoveryKind = strings.ToLower(strings.TrimSpace(o.RecoveryKind))
	switch o.RecoveryKind {
	case "", recovery.KindNone:
		o.RecoveryKind = recovery.KindNone
	case recovery.KindFile:
		if o.RecoveryDir == "" {
			fmt.Printf("[WARNING] \"recovery-dir\" is not set while using recovery=\"file\". Using default value: \"%s\".\n",
				DefaultRecoveryDir)
			o.RecoveryDir = DefaultRecoveryDir
		}
	case recovery.KindRedis:
		if o.RedisAddr == "" {
			fmt.Printf("[WARNING] \"redis-addr\" is not set while using recovery=\"redis\". Using default value: \"%s\".\n",
				DefaultRedisAddr)
			o.RedisAddr = DefaultRedisAddr
		}
		if o.RedisDatabase < 0 {
			o.RedisDatabase = DefaultRedisDatabase
		}
	default:
		return fmt.Errorf("%w: \"%s\"", recovery.ErrUnknownStorageKind, o.RecoveryKind)
	}

	return nil
}

func (o *ServerOptions) RecoveryOptions() recovery.Options {
	return recovery.Options{
		Kind:          o.RecoveryKind,
		Dir:           o.RecoveryDir,
		RedisAddr:     o.RedisAddr,
		RedisPassword: o.RedisPassword,
		RedisDatabase: o.RedisDatabase,
	}
}

func (o *ServerOptions) String() string {
	m, err := json.Marshal(o)
	if err != nil {
		panic(err)
	}

	return string(m)
}

// PrettyString is the same as String, except that PrettyString calls json.MarshalIndent instead of json.Marshal.
func (o *ServerOptions) PrettyString(indentSize int) string {
	m, err := json.MarshalIndent(o, "", strings.Repeat(" ", indentSize))
	if err != nil {
		panic(err)
	}

	return string(m)
}
