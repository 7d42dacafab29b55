package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/interpreter"
)

// AngularInterpreter manipulates the angular objects of its group. Each line of a paragraph is one command:
//
//	bind <name> <json>        binds an object to the note of the paragraph
//	bindGlobal <name> <json>  binds a global object
//	get <name>                prints the note object, or the global one
//	unbind <name>             removes the note object
//	unbindGlobal <name>       removes the global object
//	list                      prints the objects visible from the note
type AngularInterpreter struct{}

func NewAngularInterpreter(_ interpreter.Properties) (interpreter.Interpreter, error) {
	return &AngularInterpreter{}, nil
}

func (a *AngularInterpreter) Open(_ context.Context) error {
	return nil
}

func (a *AngularInterpreter) Close() error {
	return nil
}

func (a *AngularInterpreter) Interpret(_ context.Context, st string, ictx *interpreter.Context) (*interpreter.Result, error) {
	registry := ictx.AngularObjectRegistry
	if registry == nil {
		return interpreter.ErrorResult("no angular object registry is attached to paragraph %s", ictx.ParagraphId), nil
	}

	var out strings.Builder
	for _, line := range commandLines(st) {
		verb, name, rest := splitCommand(line)
		if verb != "list" && name == "" {
			return interpreter.ErrorResult("%s: missing object name", verb), nil
		}

		switch verb {
		case "bind":
			registry.Add(name, parseValue(rest), ictx.NoteId, "", angular.LocalOrigin)
		case "bindGlobal":
			registry.Add(name, parseValue(rest), "", "", angular.LocalOrigin)
		case "unbind":
			registry.Remove(name, ictx.NoteId, "", angular.LocalOrigin)
		case "unbindGlobal":
			registry.Remove(name, "", "", angular.LocalOrigin)
		case "get":
			o := registry.Get(name, ictx.NoteId, "")
			if o == nil {
				o = registry.Get(name, "", "")
			}
			if o == nil {
				return interpreter.ErrorResult("angular object \"%s\" not found", name), nil
			}
			out.WriteString(fmt.Sprintf("%s = %s\n", name, formatValue(o.Get())))
		case "list":
			for _, o := range registry.GetAllWithGlobal(ictx.NoteId) {
				scope := "note"
				if o.IsGlobal() {
					scope = "global"
				}
				out.WriteString(fmt.Sprintf("%s\t%s\t%s\n", o.Name(), scope, formatValue(o.Get())))
			}
		default:
			return interpreter.ErrorResult("unknown command \"%s\"", verb), nil
		}
	}

	return interpreter.NewResult(interpreter.CodeSuccess).Add(interpreter.TypeText, out.String()), nil
}

func (a *AngularInterpreter) Cancel(_ *interpreter.Context) error {
	return nil
}

func (a *AngularInterpreter) FormType() interpreter.FormType {
	return interpreter.FormTypeNone
}

func (a *AngularInterpreter) Progress(_ *interpreter.Context) int {
	return 0
}

func (a *AngularInterpreter) Completion(_ string, _ int, _ *interpreter.Context) ([]interpreter.Completion, error) {
	return nil, nil
}

// parseValue decodes s as JSON, falling back to the raw string.
func parseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func formatValue(v interface{}) string {
	m, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(m)
}
