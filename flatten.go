package bifrost

// Endpoint is one flattened leaf: the path it is reachable at and the
// operation behind it.
type Endpoint struct {
	Path Path
	Leaf *Leaf
}

// Flatten walks t depth first and returns every leaf with its path.
// Siblings are visited in the branch's insertion order.
//
// Flatten is the server-side dual of Build: the path a Node accumulates for
// a call equals the Path of the Endpoint serving it.
func Flatten(t Tree) []Endpoint {
	var out []Endpoint
	flatten(t, Path{}, &out)
	return out
}

func flatten(t Tree, path Path, out *[]Endpoint) {
	switch n := t.(type) {
	case *Leaf:
		if n != nil {
			*out = append(*out, Endpoint{Path: path, Leaf: n})
		}
	case *Branch:
		if n == nil {
			return
		}
		for _, name := range n.names {
			flatten(n.children[name], path.Append(name), out)
		}
	}
}
