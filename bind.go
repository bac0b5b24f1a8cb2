package bifrost

import (
	"context"
	"fmt"
	"reflect"
)

// Bind fills every func field of the struct shape points to so that calling
// it dispatches through root. Nested structs and pointers to structs are
// walked the same way, each field adding one path segment. A struct type that
// reaches itself through a pointer field is an error.
//
// Segments follow the same rules as FromStruct: the `bifrost:"name"` tag, or
// the field name with its first letter lowered, and `bifrost:"-"` skips a
// field. This makes a server struct and its client shape line up when they
// share field names.
//
// Each func may take a leading context.Context, one argument and a trailing
// ...CallOption, and return (R, error), R or error. A func without an
// argument calls with NoArgument. The dispatch result is converted to R: used
// directly when assignable, decoded when it is raw JSON, or round-tripped
// through JSON otherwise. Funcs returning only R panic when the call fails.
//
//	type AccountsClient struct {
//		Get func(ctx context.Context, req GetAccount) (*Account, error)
//	}
//	var api struct{ Accounts AccountsClient }
//	if err := bifrost.Bind(&api, bifrost.Build(bifrost.Invoke(transport))); err != nil { ... }
//	acct, err := api.Accounts.Get(ctx, GetAccount{ID: 1}) // POST /accounts/get
func Bind(shape any, root Node) error {
	v := reflect.ValueOf(shape)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bifrost: Bind needs a non-nil pointer to a struct, got %T", shape)
	}
	return bindStruct(v.Elem(), root, make(map[reflect.Type]bool))
}

// bindStruct fills v. active holds the struct types being bound on the
// current path; reaching one again through a pointer field is an error.
func bindStruct(v reflect.Value, n Node, active map[reflect.Type]bool) error {
	t := v.Type()
	active[t] = true
	defer delete(active, t)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := segmentName(f)
		if !ok {
			continue
		}
		fv := v.Field(i)
		child := n.Field(name)

		switch f.Type.Kind() {
		case reflect.Func:
			fn, err := bindFunc(f.Type, child)
			if err != nil {
				return fmt.Errorf("bifrost: bind %q: %w", child.path.String(), err)
			}
			fv.Set(fn)
		case reflect.Struct:
			if err := bindStruct(fv, child, active); err != nil {
				return err
			}
		case reflect.Pointer:
			if f.Type.Elem().Kind() != reflect.Struct {
				continue
			}
			if active[f.Type.Elem()] {
				return fmt.Errorf("bifrost: bind %q: %s refers to itself", child.path.String(), f.Type.Elem())
			}
			if fv.IsNil() {
				fv.Set(reflect.New(f.Type.Elem()))
			}
			if err := bindStruct(fv.Elem(), child, active); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindFunc(ft reflect.Type, n Node) (reflect.Value, error) {
	shape, err := analyzeFunc(ft, true)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		ctx := context.Background()
		i := 0
		if shape.hasCtx {
			if c, ok := args[i].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			i++
		}
		arg := NoArgument
		if shape.arg != nil {
			arg = args[i].Interface()
			i++
		}
		var opts []CallOption
		if shape.hasOpts {
			opts = args[i].Interface().([]CallOption)
		}

		res, err := n.Call(ctx, arg, opts...)
		return shape.results(ft, res, err)
	}), nil
}

// results builds the return values of a bound func.
func (s funcShape) results(ft reflect.Type, res any, err error) []reflect.Value {
	out := make([]reflect.Value, ft.NumOut())
	if s.res != nil {
		rv := reflect.Zero(s.res)
		if err == nil {
			cv, cerr := coerce(res, s.res)
			if cerr != nil {
				err = Errorf(CodeInternal, "failed to decode result: %v", cerr)
			} else {
				rv = cv
			}
		}
		out[0] = rv
	}
	if s.hasErr {
		ev := reflect.Zero(errorType)
		if err != nil {
			ev = reflect.ValueOf(&err).Elem()
		}
		out[len(out)-1] = ev
	} else if err != nil {
		panic(err)
	}
	return out
}

// CallAs calls n and converts the result to R the way bound funcs do.
//
//	key, err := bifrost.CallAs[bifrost.Key](ctx, keys.Field("accounts").Field("get"), req)
func CallAs[R any](ctx context.Context, n Node, argument any, opts ...CallOption) (R, error) {
	var zero R
	res, err := n.Call(ctx, argument, opts...)
	if err != nil {
		return zero, err
	}
	out, err := coerceTo[R](res)
	if err != nil {
		return zero, Errorf(CodeInternal, "failed to decode result: %v", err)
	}
	return out, nil
}
