package bifrost

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var (
	contextType    = reflect.TypeFor[context.Context]()
	errorType      = reflect.TypeFor[error]()
	callOptionType = reflect.TypeFor[[]CallOption]()
	emptyType      = reflect.TypeFor[Empty]()
	rawMessageType = reflect.TypeFor[json.RawMessage]()
)

// coerce converts v into a value of type t.
//
// Values already assignable to t are used as they are. Raw JSON
// (json.RawMessage or []byte) is decoded into t. Anything else takes a JSON
// round trip, which is how a typed caller reads the result of a transport that
// returned generic data.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil || IsNoArgument(v) {
		return reflect.Zero(t), nil
	}

	var raw []byte
	switch x := v.(type) {
	case json.RawMessage:
		if t == rawMessageType {
			return reflect.ValueOf(x), nil
		}
		raw = x
	case []byte:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf(x).Convert(t), nil
		}
		raw = x
	default:
		rv := reflect.ValueOf(v)
		if rv.Type().AssignableTo(t) {
			out := reflect.New(t).Elem()
			out.Set(rv)
			return out, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("encode %T: %w", v, err)
		}
		raw = b
	}

	if len(raw) == 0 || string(raw) == "null" {
		return reflect.Zero(t), nil
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode into %s: %w", t, err)
	}
	return ptr.Elem(), nil
}

// coerceTo is the generic form of coerce.
func coerceTo[T any](v any) (T, error) {
	var zero T
	out, err := coerce(v, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return out.Interface().(T), nil
}

// funcShape describes a func usable as an endpoint: an optional leading
// context.Context, at most one argument, an optional trailing ...CallOption
// (client shapes only) and a result, an error, or both.
type funcShape struct {
	hasCtx  bool
	arg     reflect.Type // nil for zero-argument operations
	hasOpts bool
	res     reflect.Type // nil when the func only returns error
	hasErr  bool
}

func analyzeFunc(t reflect.Type, allowOpts bool) (funcShape, error) {
	var s funcShape
	in := t.NumIn()
	i := 0
	if in > 0 && t.In(0) == contextType {
		s.hasCtx = true
		i++
	}
	if t.IsVariadic() {
		if !allowOpts || t.In(in-1) != callOptionType {
			return s, fmt.Errorf("variadic %s is not a unary operation", t)
		}
		s.hasOpts = true
		in--
	}
	switch n := in - i; n {
	case 0:
	case 1:
		s.arg = t.In(i)
	default:
		return s, fmt.Errorf("%s takes %d arguments; endpoints take exactly one", t, n)
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			s.hasErr = true
		} else {
			s.res = t.Out(0)
		}
	case 2:
		if t.Out(1) != errorType {
			return s, fmt.Errorf("%s: second result must be error", t)
		}
		s.res = t.Out(0)
		s.hasErr = true
	default:
		return s, fmt.Errorf("%s must return a result, an error, or both", t)
	}
	return s, nil
}

// argumentType is the type a zero-argument operation is modeled as taking.
func (s funcShape) argumentType() reflect.Type {
	if s.arg == nil {
		return emptyType
	}
	return s.arg
}
