package bifrost

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tree is a concrete endpoint tree: either a *Leaf or a *Branch.
type Tree interface {
	isTree()
}

// Leaf is a single unary operation.
type Leaf struct {
	fn      func(ctx context.Context, arg any) (any, error)
	argType reflect.Type
	resType reflect.Type
}

func (*Leaf) isTree() {}

// Handle creates a leaf from a typed function.
//
// The argument handed to Leaf.Call may be a Req, raw JSON, or any value that
// round-trips through JSON into a Req. Operations without a natural argument
// take Empty.
//
//	bifrost.Handle(func(ctx context.Context, req GetAccount) (*Account, error) { ... })
func Handle[Req any, Res any](fn func(context.Context, Req) (Res, error)) *Leaf {
	return &Leaf{
		fn: func(ctx context.Context, arg any) (any, error) {
			req, err := coerceTo[Req](arg)
			if err != nil {
				return nil, Errorf(CodeInvalidArgument, "failed to decode argument: %v", err)
			}
			return fn(ctx, req)
		},
		argType: reflect.TypeFor[Req](),
		resType: reflect.TypeFor[Res](),
	}
}

// leafFromFunc adapts any func with a supported endpoint signature.
func leafFromFunc(fv reflect.Value) (*Leaf, error) {
	shape, err := analyzeFunc(fv.Type(), false)
	if err != nil {
		return nil, err
	}
	l := &Leaf{argType: shape.argumentType(), resType: shape.res}
	l.fn = func(ctx context.Context, arg any) (any, error) {
		args := make([]reflect.Value, 0, 2)
		if shape.hasCtx {
			args = append(args, reflect.ValueOf(&ctx).Elem())
		}
		if shape.arg != nil {
			v, err := coerce(arg, shape.arg)
			if err != nil {
				return nil, Errorf(CodeInvalidArgument, "failed to decode argument: %v", err)
			}
			args = append(args, v)
		}
		out := fv.Call(args)
		var res any
		if shape.res != nil {
			res = out[0].Interface()
		}
		if shape.hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
		}
		return res, nil
	}
	return l, nil
}

// Call runs the operation with arg.
func (l *Leaf) Call(ctx context.Context, arg any) (any, error) {
	return l.fn(ctx, arg)
}

// ArgumentType is the Go type the argument is decoded into.
func (l *Leaf) ArgumentType() reflect.Type {
	return l.argType
}

// ResultType is the Go type of the result, or nil when the operation only
// reports an error.
func (l *Leaf) ResultType() reflect.Type {
	return l.resType
}

// Branch is an internal node: named children in insertion order.
type Branch struct {
	names    []string
	children map[string]Tree
}

func (*Branch) isTree() {}

// NewBranch returns an empty branch.
func NewBranch() *Branch {
	return &Branch{children: make(map[string]Tree)}
}

// Add sets the child name to t and returns the branch for chaining.
// Re-adding an existing name replaces the child and keeps its position.
func (b *Branch) Add(name string, t Tree) *Branch {
	if b.children == nil {
		b.children = make(map[string]Tree)
	}
	if _, exists := b.children[name]; !exists {
		b.names = append(b.names, name)
	}
	b.children[name] = t
	return b
}

// Get returns the child name.
func (b *Branch) Get(name string) (Tree, bool) {
	t, ok := b.children[name]
	return t, ok
}

// Names returns child names in insertion order.
func (b *Branch) Names() []string {
	return slices.Clone(b.names)
}

// Len returns the number of children.
func (b *Branch) Len() int {
	return len(b.names)
}

// FromStruct builds a Tree from a concrete endpoint value.
//
// Structs (in field order), maps with string keys (in sorted key order) and
// slices or arrays (in index order) become branches. Funcs with an endpoint
// signature become leaves; a func with any other signature is an error.
// Values that already implement Tree are used as they are. Everything else,
// such as version strings or other metadata, is skipped. A value that
// contains itself is an error.
//
// Field segments come from the `bifrost:"name"` tag, or the field name with
// its first letter lowered. `bifrost:"-"` skips a field.
//
//	type AccountsAPI struct {
//		Get func(ctx context.Context, req GetAccount) (*Account, error)
//	}
//	type API struct {
//		Version  string
//		Accounts AccountsAPI
//	}
//	tree, err := bifrost.FromStruct(API{Accounts: AccountsAPI{Get: getAccount}})
func FromStruct(v any) (Tree, error) {
	if t, ok := v.(Tree); ok && t != nil {
		return t, nil
	}
	b := &treeBuilder{active: make(map[treeRef]bool)}
	tree, ok, err := b.fromValue(reflect.ValueOf(v), Path{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bifrost: %T is not an endpoint tree", v)
	}
	return tree, nil
}

// MustFromStruct is like FromStruct but panics on error.
func MustFromStruct(v any) Tree {
	t, err := FromStruct(v)
	if err != nil {
		panic(err)
	}
	return t
}

// treeRef identifies a pointer, map or slice on the current walk.
type treeRef struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type treeBuilder struct {
	active map[treeRef]bool
}

// enter marks v as being walked. It fails when v is already an ancestor.
func (b *treeBuilder) enter(v reflect.Value, path Path) (func(), error) {
	ref := treeRef{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		ref.n = v.Len()
	}
	if b.active[ref] {
		return nil, fmt.Errorf("bifrost: endpoint tree refers to itself at %q", path.String())
	}
	b.active[ref] = true
	return func() { delete(b.active, ref) }, nil
}

func (b *treeBuilder) fromValue(v reflect.Value, path Path) (Tree, bool, error) {
	if !v.IsValid() {
		return nil, false, nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false, nil
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false, nil
	}
	if v.CanInterface() {
		if t, ok := v.Interface().(Tree); ok {
			return t, true, nil
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if !v.IsNil() {
			leave, err := b.enter(v, path)
			if err != nil {
				return nil, false, err
			}
			defer leave()
		}
	}

	switch v.Kind() {
	case reflect.Pointer:
		return b.fromValue(v.Elem(), path)

	case reflect.Struct:
		br := NewBranch()
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, ok := segmentName(f)
			if !ok {
				continue
			}
			if err := b.addChild(br, name, v.Field(i), path); err != nil {
				return nil, false, err
			}
		}
		return br, true, nil

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false, nil
		}
		keys := v.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return strings.Compare(a.String(), b.String())
		})
		br := NewBranch()
		for _, k := range keys {
			if err := b.addChild(br, k.String(), v.MapIndex(k), path); err != nil {
				return nil, false, err
			}
		}
		return br, true, nil

	case reflect.Slice, reflect.Array:
		br := NewBranch()
		for i := 0; i < v.Len(); i++ {
			if err := b.addChild(br, strconv.Itoa(i), v.Index(i), path); err != nil {
				return nil, false, err
			}
		}
		return br, true, nil

	case reflect.Func:
		if v.IsNil() {
			return nil, false, nil
		}
		leaf, err := leafFromFunc(v)
		if err != nil {
			return nil, false, fmt.Errorf("bifrost: endpoint %q: %w", path.String(), err)
		}
		return leaf, true, nil
	}
	return nil, false, nil
}

func (b *treeBuilder) addChild(br *Branch, name string, v reflect.Value, parent Path) error {
	child, ok, err := b.fromValue(v, parent.Append(name))
	if err != nil {
		return err
	}
	if ok {
		br.Add(name, child)
	}
	return nil
}

// segmentName returns the path segment for a struct field.
func segmentName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get("bifrost")
	if tag == "-" {
		return "", false
	}
	if tag != "" {
		return tag, true
	}
	return lowerFirst(f.Name), true
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
