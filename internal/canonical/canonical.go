// Package canonical produces a deterministic JSON rendering of arbitrary Go
// values for use as cache-key material.
//
// Two values that encode to structurally equal JSON render to the same
// string regardless of map iteration order, struct field order across
// otherwise equal map-shaped inputs, or pointer identity. Reference cycles are
// replaced by the Circular marker instead of recursing forever.
package canonical

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Circular replaces a value that refers back to one of its own ancestors.
const Circular = "[Circular]"

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

	writeOptions = ojg.Options{Sort: true}
)

// Stringify renders v as compact JSON with object keys sorted at every level.
func Stringify(v any) string {
	return oj.JSON(Normalize(v), &writeOptions)
}

// Normalize converts v into a tree of nil, bool, int64, uint64 (only above
// math.MaxInt64), float64, string, []any and map[string]any following encoding/json conventions (struct tags,
// Marshaler implementations, base64 byte slices).
func Normalize(v any) any {
	w := &walker{stack: make(map[visit]struct{})}
	return w.walk(reflect.ValueOf(v))
}

// visit identifies a reference on the current ancestor stack.
type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type walker struct {
	stack map[visit]struct{}
}

// enter pushes a reference onto the ancestor stack. It returns false when the
// reference is already an ancestor.
func (w *walker) enter(k visit) bool {
	if _, seen := w.stack[k]; seen {
		return false
	}
	w.stack[k] = struct{}{}
	return true
}

func (w *walker) leave(k visit) {
	delete(w.stack, k)
}

func (w *walker) walk(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		return w.walk(v.Elem())
	}

	if out, ok := marshaled(v); ok {
		return out
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		k := visit{ptr: v.Pointer(), typ: v.Type()}
		if !w.enter(k) {
			return Circular
		}
		defer w.leave(k)
		return w.walk(v.Elem())

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		k := visit{ptr: v.Pointer(), typ: v.Type()}
		if !w.enter(k) {
			return Circular
		}
		defer w.leave(k)
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = w.walk(iter.Value())
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes())
		}
		k := visit{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
		if !w.enter(k) {
			return Circular
		}
		defer w.leave(k)
		return w.list(v)

	case reflect.Array:
		return w.list(v)

	case reflect.Struct:
		out := make(map[string]any)
		w.structFields(v, out)
		return out

	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		// NaN and infinities have no JSON number form; they render as null.
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		// 2.0 and 2 are the same JSON number.
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case reflect.String:
		return v.String()
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v.Complex())
	default:
		// chan, func and unsafe.Pointer have no JSON form.
		return nil
	}
}

func (w *walker) list(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = w.walk(v.Index(i))
	}
	return out
}

// structFields adds the JSON-visible fields of v to out. Fields of embedded
// structs are promoted unless an outer field already claimed the name.
func (w *walker) structFields(v reflect.Value, out map[string]any) {
	t := v.Type()
	var embedded []reflect.Value
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if fv.Kind() == reflect.Pointer {
					if fv.IsNil() {
						continue
					}
					fv = fv.Elem()
				}
				embedded = append(embedded, fv)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if hasOption(opts, "omitempty") && isEmpty(fv) {
			continue
		}
		if hasOption(opts, "omitzero") && fv.IsZero() {
			continue
		}
		out[name] = w.walk(fv)
	}
	for _, ev := range embedded {
		inner := make(map[string]any)
		w.structFields(ev, inner)
		for k, val := range inner {
			if _, taken := out[k]; !taken {
				out[k] = val
			}
		}
	}
}

// marshaled returns the normalized output of a json.Marshaler or
// encoding.TextMarshaler implementation on v.
func marshaled(v reflect.Value) (any, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	if v.Type().Implements(jsonMarshalerType) {
		data, err := v.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return "!error:" + err.Error(), true
		}
		parsed, err := oj.Parse(data)
		if err != nil {
			return string(data), true
		}
		return Normalize(parsed), true
	}
	if v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "!error:" + err.Error(), true
		}
		return string(text), true
	}
	return nil, false
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() && k.Type().Implements(textMarshalerType) {
		if text, err := k.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			return string(text)
		}
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return fmt.Sprint(k)
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

// isEmpty mirrors encoding/json's omitempty rule.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
