package resource

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/scusemua/notebook-runtime/common/types"
)

var (
	// ErrUnsupportedMethod is returned for invocations of methods outside the known set, or of methods the
	// target value does not support.
	ErrUnsupportedMethod = errors.New("unsupported method")
)

// Method names one of the operations that can be invoked on a resource.
type Method string

const (
	// MethodGet returns the value itself.
	MethodGet Method = "get"
	// MethodToString returns the string representation of the value.
	MethodToString Method = "toString"
	// MethodLength returns the number of elements of the value.
	MethodLength Method = "length"
	// MethodKeys returns the sorted keys of the value.
	MethodKeys Method = "keys"
	// MethodLookup returns the element stored under Invocation.Key.
	MethodLookup Method = "lookup"
)

// Lengther is implemented by values supporting MethodLength.
type Lengther interface {
	Len() int
}

// Keyer is implemented by values supporting MethodKeys.
type Keyer interface {
	Keys() []string
}

// Lookuper is implemented by values supporting MethodLookup.
type Lookuper interface {
	Lookup(key string) (interface{}, bool)
}

// Invocation is a request to run a method on a resource.
type Invocation struct {
	ResourceId         Id     `json:"resourceId"`
	Method             Method `json:"method"`
	Key                string `json:"key,omitempty"`
	ReturnResourceName string `json:"returnResourceName,omitempty"`
}

// Validate returns ErrUnsupportedMethod if the method is not one of the known methods.
func (inv Invocation) Validate() error {
	switch inv.Method {
	case MethodGet, MethodToString, MethodLength, MethodKeys:
		return nil
	case MethodLookup:
		if inv.Key == "" {
			return fmt.Errorf("%w: \"%s\" requires a key", ErrUnsupportedMethod, inv.Method)
		}
		return nil
	default:
		return fmt.Errorf("%w: \"%s\"", ErrUnsupportedMethod, inv.Method)
	}
}

func (inv Invocation) ToJson() string {
	m, _ := json.Marshal(inv)
	return string(m)
}

// InvocationFromJson deserializes and validates an Invocation.
func InvocationFromJson(data string) (Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal([]byte(data), &inv); err != nil {
		return inv, fmt.Errorf("%w: invocation: %v", types.ErrSerialization, err)
	}
	return inv, inv.Validate()
}

// Invoke runs inv against value. Values decoded from JSON (strings, slices and maps) support every method;
// other values must implement the corresponding capability interface.
func Invoke(value interface{}, inv Invocation) (interface{}, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	switch inv.Method {
	case MethodGet:
		return value, nil
	case MethodToString:
		return toString(value), nil
	case MethodLength:
		return length(value)
	case MethodKeys:
		return keys(value)
	case MethodLookup:
		return lookup(value, inv.Key)
	}

	return nil, fmt.Errorf("%w: \"%s\"", ErrUnsupportedMethod, inv.Method)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		m, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(m)
	}
}

func length(value interface{}) (int, error) {
	switch v := value.(type) {
	case Lengther:
		return v.Len(), nil
	case string:
		return len(v), nil
	case []interface{}:
		return len(v), nil
	case []string:
		return len(v), nil
	case map[string]interface{}:
		return len(v), nil
	default:
		return 0, fmt.Errorf("%w: \"%s\" on %T", ErrUnsupportedMethod, MethodLength, value)
	}
}

func keys(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case Keyer:
		return v.Keys(), nil
	case map[string]interface{}:
		result := make([]string, 0, len(v))
		for k := range v {
			result = append(result, k)
		}
		sort.Strings(result)
		return result, nil
	default:
		return nil, fmt.Errorf("%w: \"%s\" on %T", ErrUnsupportedMethod, MethodKeys, value)
	}
}

func lookup(value interface{}, key string) (interface{}, error) {
	switch v := value.(type) {
	case Lookuper:
		result, ok := v.Lookup(key)
		if !ok {
			return nil, nil
		}
		return result, nil
	case map[string]interface{}:
		return v[key], nil
	case []interface{}:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, nil
		}
		return v[idx], nil
	default:
		return nil, fmt.Errorf("%w: \"%s\" on %T", ErrUnsupportedMethod, MethodLookup, value)
	}
}
