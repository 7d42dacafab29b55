package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/scusemua/notebook-runtime/common/interpreter"
)

// EchoInterpreter returns the text of the paragraph. Lines of the form "${name=default}" are replaced with
// the value of the corresponding textbox form.
type EchoInterpreter struct {
	prefix string
}

func NewEchoInterpreter(props interpreter.Properties) (interpreter.Interpreter, error) {
	return &EchoInterpreter{prefix: props.Get("echo.prefix", "")}, nil
}

func (e *EchoInterpreter) Open(_ context.Context) error {
	return nil
}

func (e *EchoInterpreter) Close() error {
	return nil
}

func (e *EchoInterpreter) Interpret(_ context.Context, st string, ictx *interpreter.Context) (*interpreter.Result, error) {
	out := e.prefix + e.substituteForms(st, ictx)

	typ := interpreter.TypeText
	if _, ok := ictx.LocalProperty("html"); ok {
		typ = interpreter.TypeHtml
	}
	return interpreter.NewResult(interpreter.CodeSuccess).Add(typ, out), nil
}

func (e *EchoInterpreter) substituteForms(st string, ictx *interpreter.Context) string {
	if ictx.Gui == nil {
		ictx.Gui = interpreter.NewGUI()
	}

	var b strings.Builder
	rest := st
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}

		b.WriteString(rest[:start])
		name, def, _ := strings.Cut(rest[start+2:start+end], "=")
		b.WriteString(formValue(ictx.Gui.Textbox(strings.TrimSpace(name), def)))
		rest = rest[start+end+1:]
	}
	return b.String()
}

func formValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func (e *EchoInterpreter) Cancel(_ *interpreter.Context) error {
	return nil
}

func (e *EchoInterpreter) FormType() interpreter.FormType {
	return interpreter.FormTypeSimple
}

func (e *EchoInterpreter) Progress(_ *interpreter.Context) int {
	return 0
}

func (e *EchoInterpreter) Completion(_ string, _ int, _ *interpreter.Context) ([]interpreter.Completion, error) {
	return nil, nil
}
