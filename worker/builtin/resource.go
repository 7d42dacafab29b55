package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/resource"
)

// ResourceInterpreter manipulates the resource pool of its process. Each line of a paragraph is one command:
//
//	put <name> <json>              stores a value bound to the note of the paragraph
//	get <name>                     prints a value, fetching it from another process if needed
//	invoke <name> <method> [key]   runs a method on the resource where it lives
//	store <name> <as> <method> [key]  runs a method and stores the result next to the resource
//	remove <name>                  removes a local resource
//	list                           prints every resource of every pool
type ResourceInterpreter struct{}

func NewResourceInterpreter(_ interpreter.Properties) (interpreter.Interpreter, error) {
	return &ResourceInterpreter{}, nil
}

func (r *ResourceInterpreter) Open(_ context.Context) error {
	return nil
}

func (r *ResourceInterpreter) Close() error {
	return nil
}

func (r *ResourceInterpreter) Interpret(ctx context.Context, st string, ictx *interpreter.Context) (*interpreter.Result, error) {
	pool := ictx.ResourcePool
	if pool == nil {
		return interpreter.ErrorResult("no resource pool is attached to paragraph %s", ictx.ParagraphId), nil
	}

	var out strings.Builder
	for _, line := range commandLines(st) {
		verb, name, rest := splitCommand(line)
		if verb != "list" && name == "" {
			return interpreter.ErrorResult("%s: missing resource name", verb), nil
		}

		switch verb {
		case "put":
			pool.Put(ictx.NoteId, "", name, parseValue(rest))
		case "remove":
			if _, ok := pool.Remove(ictx.NoteId, "", name); !ok {
				return interpreter.ErrorResult("resource \"%s\" not found", name), nil
			}
		case "get":
			res, ok := pool.Get(ctx, ictx.NoteId, "", name)
			if !ok {
				return interpreter.ErrorResult("resource \"%s\" not found", name), nil
			}
			out.WriteString(fmt.Sprintf("%s = %s\n", name, formatValue(res.Get(ctx))))
		case "invoke":
			res, ok := pool.Get(ctx, ictx.NoteId, "", name)
			if !ok {
				return interpreter.ErrorResult("resource \"%s\" not found", name), nil
			}

			method, key, _ := strings.Cut(rest, " ")
			value, err := res.Invoke(ctx, resource.Invocation{ResourceId: res.Id(), Method: resource.Method(method), Key: strings.TrimSpace(key)})
			if err != nil {
				return interpreter.ErrorResult("invoke %s on %s: %v", method, name, err), nil
			}
			out.WriteString(fmt.Sprintf("%s\n", formatValue(value)))
		case "store":
			res, ok := pool.Get(ctx, ictx.NoteId, "", name)
			if !ok {
				return interpreter.ErrorResult("resource \"%s\" not found", name), nil
			}

			fields := strings.Fields(rest)
			if len(fields) < 2 {
				return interpreter.ErrorResult("store: expected \"store <name> <as> <method> [key]\""), nil
			}
			inv := resource.Invocation{ResourceId: res.Id(), Method: resource.Method(fields[1]), ReturnResourceName: fields[0]}
			if len(fields) > 2 {
				inv.Key = fields[2]
			}

			stored, err := storeInvocation(ctx, pool, res, inv)
			if err != nil {
				return interpreter.ErrorResult("store %s on %s: %v", inv.Method, name, err), nil
			}
			out.WriteString(fmt.Sprintf("%s\n", stored.Id().String()))
		case "list":
			for _, res := range pool.GetAll(ctx, true) {
				out.WriteString(fmt.Sprintf("%s\t%s\n", res.Id().String(), res.TypeName()))
			}
		default:
			return interpreter.ErrorResult("unknown command \"%s\"", verb), nil
		}
	}

	return interpreter.NewResult(interpreter.CodeSuccess).Add(interpreter.TypeText, out.String()), nil
}

// storeInvocation runs inv on res and stores the result in the pool that owns res.
func storeInvocation(ctx context.Context, pool resource.Pool, res *resource.Resource, inv resource.Invocation) (*resource.Resource, error) {
	if res.IsRemote() {
		return res.InvokeAndStore(ctx, inv, inv.ReturnResourceName)
	}

	value, err := res.Invoke(ctx, inv)
	if err != nil {
		return nil, err
	}
	id := res.Id()
	return pool.Put(id.NoteId, id.ParagraphId, inv.ReturnResourceName, value), nil
}

func (r *ResourceInterpreter) Cancel(_ *interpreter.Context) error {
	return nil
}

func (r *ResourceInterpreter) FormType() interpreter.FormType {
	return interpreter.FormTypeNone
}

func (r *ResourceInterpreter) Progress(_ *interpreter.Context) int {
	return 0
}

func (r *ResourceInterpreter) Completion(_ string, _ int, _ *interpreter.Context) ([]interpreter.Completion, error) {
	return nil, nil
}
