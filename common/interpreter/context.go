package interpreter

import (
	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/resource"
)

// Context carries everything an interpreter needs to know about the paragraph it is executing.
//
// The serializable fields travel over the wire with every interpret, cancel, progress and completion call.
// The registry and the resource pool are process-local and are attached by the receiving side.
type Context struct {
	NoteId             string                 `json:"noteId"`
	NoteName           string                 `json:"noteName"`
	ParagraphId        string                 `json:"paragraphId"`
	ReplName           string                 `json:"replName"`
	ParagraphTitle     string                 `json:"paragraphTitle"`
	ParagraphText      string                 `json:"paragraphText"`
	AuthenticationInfo *AuthenticationInfo    `json:"authenticationInfo"`
	Config             map[string]interface{} `json:"config"`
	Gui                *GUI                   `json:"gui"`
	NoteGui            *GUI                   `json:"noteGui"`
	LocalProperties    map[string]string      `json:"localProperties"`

	AngularObjectRegistry *angular.Registry `json:"-"`
	ResourcePool          resource.Pool     `json:"-"`
}

// NewContext creates a Context for the given paragraph with empty config, GUI and local properties.
func NewContext(noteId string, paragraphId string, replName string, auth *AuthenticationInfo) *Context {
	if auth == nil {
		auth = Anonymous()
	}

	return &Context{
		NoteId:             noteId,
		ParagraphId:        paragraphId,
		ReplName:           replName,
		AuthenticationInfo: auth,
		Config:             make(map[string]interface{}),
		Gui:                NewGUI(),
		NoteGui:            NewGUI(),
		LocalProperties:    make(map[string]string),
	}
}

// User returns the name of the principal, or AnonymousUser if there is none.
func (c *Context) User() string {
	if c == nil || c.AuthenticationInfo == nil || c.AuthenticationInfo.User == "" {
		return AnonymousUser
	}
	return c.AuthenticationInfo.User
}

// ConfigJson serializes the config map. A nil map is serialized as an empty object.
func (c *Context) ConfigJson() string {
	if c.Config == nil {
		return "{}"
	}

	m, err := json.Marshal(c.Config)
	if err != nil {
		return "{}"
	}
	return string(m)
}

// ReplaceConfig replaces the config of c with the given serialized config map. An empty or null map
// leaves c with an empty config.
func (c *Context) ReplaceConfig(data string) error {
	var config map[string]interface{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &config); err != nil {
			return err
		}
	}

	if c.Config == nil {
		c.Config = make(map[string]interface{}, len(config))
	}
	for k := range c.Config {
		delete(c.Config, k)
	}
	for k, v := range config {
		c.Config[k] = v
	}
	return nil
}

// LocalProperty returns the value of the given local property.
func (c *Context) LocalProperty(key string) (string, bool) {
	if c == nil || c.LocalProperties == nil {
		return "", false
	}
	v, ok := c.LocalProperties[key]
	return v, ok
}
