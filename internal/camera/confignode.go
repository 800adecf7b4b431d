package camera

import "strings"

// WidgetType identifies the kind of a configuration node
type WidgetType string

// Widget types as reported by the device
const (
	WidgetText    WidgetType = "TEXT"
	WidgetRange   WidgetType = "RANGE"
	WidgetToggle  WidgetType = "TOGGLE"
	WidgetRadio   WidgetType = "RADIO"
	WidgetMenu    WidgetType = "MENU"
	WidgetDate    WidgetType = "DATE"
	WidgetSection WidgetType = "SECTION"
)

// IsChoice reports whether the type carries an allowed-values list
func (t WidgetType) IsChoice() bool {
	return t == WidgetRadio || t == WidgetMenu
}

// ConfigNode is one node of the camera's live configuration tree: either a
// leaf setting or a section owning an ordered set of children. The tree is
// rebuilt fresh from the device on every query, never cached.
type ConfigNode struct {
	Name     string
	Label    string
	Type     WidgetType
	ReadOnly bool
	Value    string

	// RANGE only
	Min  float64
	Max  float64
	Step float64

	// RADIO/MENU only, ordered
	Choices []string

	// SECTION only, ordered, names unique among siblings
	Children []*ConfigNode

	dirty bool
}

// IsSection reports whether the node is a grouping section
func (n *ConfigNode) IsSection() bool {
	return n.Type == WidgetSection
}

// Child returns the direct child with the given name, or nil
func (n *ConfigNode) Child(name string) *ConfigNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddChild appends a child, keeping sibling names unique. An existing child
// with the same name is returned instead of being duplicated.
func (n *ConfigNode) AddChild(child *ConfigNode) *ConfigNode {
	if existing := n.Child(child.Name); existing != nil {
		return existing
	}
	n.Children = append(n.Children, child)
	return child
}

// Resolve descends the tree along a slash-separated path. A leading slash
// and a leading segment equal to the root's own name are both accepted.
// Returns nil if the path does not resolve.
func (n *ConfigNode) Resolve(path string) *ConfigNode {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}

	cur := n
	if segments[0] == n.Name {
		segments = segments[1:]
		if len(segments) == 0 {
			return cur
		}
	}

	for _, seg := range segments {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// SetValue updates a leaf's value and marks it dirty for the next push
func (n *ConfigNode) SetValue(value string) {
	n.Value = value
	n.dirty = true
}

// Dirty reports whether the node's value changed since the tree was read
func (n *ConfigNode) Dirty() bool {
	return n.dirty
}

// DirtyLeaves returns all modified leaves in tree order
func (n *ConfigNode) DirtyLeaves() []*ConfigNode {
	var out []*ConfigNode
	n.walk("", func(path string, node *ConfigNode) {
		if !node.IsSection() && node.dirty {
			out = append(out, node)
		}
	})
	return out
}

// Path returns the full slash-separated path of a descendant, or "" if the
// node is not part of this tree.
func (n *ConfigNode) Path(target *ConfigNode) string {
	var found string
	n.walk("", func(path string, node *ConfigNode) {
		if node == target {
			found = path
		}
	})
	return found
}

// walk visits every node depth-first with its full path
func (n *ConfigNode) walk(prefix string, fn func(path string, node *ConfigNode)) {
	path := n.Name
	if prefix != "" {
		path = prefix + "/" + n.Name
	}
	fn(path, n)
	for _, c := range n.Children {
		c.walk(path, fn)
	}
}

// splitPath splits a slash-separated path, dropping empty segments
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
