package interpreter

import (
	"github.com/goccy/go-json"
)

// FormType describes how an interpreter handles dynamic forms.
type FormType string

const (
	FormTypeNative  FormType = "NATIVE"
	FormTypeSimple  FormType = "SIMPLE"
	FormTypeNone    FormType = "NONE"
	FormTypeUnknown FormType = ""
)

func ParseFormType(s string) FormType {
	switch f := FormType(s); f {
	case FormTypeNative, FormTypeSimple, FormTypeNone:
		return f
	default:
		return FormTypeUnknown
	}
}

// ParamOption is one choice of a select or checkbox form.
type ParamOption struct {
	Value       interface{} `json:"value"`
	DisplayName string      `json:"displayName,omitempty"`
}

// Input is a single dynamic form.
type Input struct {
	Type         string        `json:"type"`
	Name         string        `json:"name"`
	DisplayName  string        `json:"displayName,omitempty"`
	DefaultValue interface{}   `json:"defaultValue,omitempty"`
	Options      []ParamOption `json:"options,omitempty"`
	Hidden       bool          `json:"hidden,omitempty"`
}

// GUI holds the dynamic forms of a paragraph (or note) and the values the user entered into them.
type GUI struct {
	Params map[string]interface{} `json:"params"`
	Forms  map[string]*Input      `json:"forms"`
}

func NewGUI() *GUI {
	return &GUI{
		Params: make(map[string]interface{}),
		Forms:  make(map[string]*Input),
	}
}

// GUIFromJson deserializes a GUI. The empty string yields an empty GUI.
func GUIFromJson(data string) (*GUI, error) {
	gui := NewGUI()
	if data == "" {
		return gui, nil
	}

	if err := json.Unmarshal([]byte(data), gui); err != nil {
		return nil, err
	}

	if gui.Params == nil {
		gui.Params = make(map[string]interface{})
	}
	if gui.Forms == nil {
		gui.Forms = make(map[string]*Input)
	}
	return gui, nil
}

func (g *GUI) ToJson() string {
	if g == nil {
		g = NewGUI()
	}

	m, err := json.Marshal(g)
	if err != nil {
		return "{}"
	}
	return string(m)
}

// Clear removes all forms and params.
func (g *GUI) Clear() {
	g.Params = make(map[string]interface{})
	g.Forms = make(map[string]*Input)
}

// Replace overwrites the forms and params of g with those of other.
func (g *GUI) Replace(other *GUI) {
	g.Clear()
	g.Merge(other)
}

// Merge copies the forms and params of other into g, overwriting entries with the same name.
func (g *GUI) Merge(other *GUI) {
	if other == nil {
		return
	}
	if g.Params == nil {
		g.Params = make(map[string]interface{})
	}
	if g.Forms == nil {
		g.Forms = make(map[string]*Input)
	}

	for k, v := range other.Params {
		g.Params[k] = v
	}
	for k, v := range other.Forms {
		g.Forms[k] = v
	}
}

// Select registers a select form and returns the currently chosen value.
func (g *GUI) Select(name string, options []ParamOption, defaultValue interface{}) interface{} {
	g.Forms[name] = &Input{Type: "select", Name: name, Options: options, DefaultValue: defaultValue}
	if v, ok := g.Params[name]; ok {
		return v
	}
	return defaultValue
}

// Textbox registers a textbox form and returns the current value.
func (g *GUI) Textbox(name string, defaultValue string) interface{} {
	g.Forms[name] = &Input{Type: "textbox", Name: name, DefaultValue: defaultValue}
	if v, ok := g.Params[name]; ok {
		return v
	}
	return defaultValue
}
