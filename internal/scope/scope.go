package scope

import (
	"errors"
	"strings"
	"sync"
)

// Sentinel errors for scope creation.
var (
	// ErrEmptyName is returned when a scope is created with an empty name.
	ErrEmptyName = errors.New("scope name cannot be empty")

	// ErrInvalidParent is returned when the parent scope is the zero value
	// or belongs to a different tree.
	ErrInvalidParent = errors.New("invalid parent scope")
)

// ID is a stable index into a Tree's arena.
type ID int

const noParent ID = -1

// record is the arena entry backing a single scope.
type record struct {
	name     string
	parent   ID
	children []ID
}

// Tree owns the arena of scope records. Ancestry links are immutable once
// a scope exists; child sets are append-only and only grow during scope
// creation, which takes the tree lock.
type Tree struct {
	mu      sync.RWMutex
	records []record
}

// Scope is a handle to a single scope record. The zero value is invalid.
// Scopes compare by identity: two handles are equal iff they address the
// same record in the same tree.
type Scope struct {
	tree *Tree
	id   ID
}

// NewTree creates a tree pre-populated with the well-known scopes:
// root, root.core, root.core.runtime and root.core.ui.
func NewTree() *Tree {
	t := &Tree{}
	root := t.add("root", noParent)
	core := t.add("core", root)
	t.add("runtime", core)
	t.add("ui", core)
	return t
}

// add appends a record and links it to its parent. Callers must hold the
// tree lock, except during NewTree before the tree is shared.
func (t *Tree) add(name string, parent ID) ID {
	id := ID(len(t.records))
	t.records = append(t.records, record{name: name, parent: parent})
	if parent != noParent {
		t.records[parent].children = append(t.records[parent].children, id)
	}
	return id
}

// Root returns the root scope.
func (t *Tree) Root() Scope { return Scope{tree: t, id: 0} }

// Core returns the well-known root.core scope.
func (t *Tree) Core() Scope { return Scope{tree: t, id: 1} }

// Runtime returns the well-known root.core.runtime scope.
func (t *Tree) Runtime() Scope { return Scope{tree: t, id: 2} }

// UI returns the well-known root.core.ui scope.
func (t *Tree) UI() Scope { return Scope{tree: t, id: 3} }

// NewScope creates a new scope as a child of parent.
// The name need not be unique; scopes are identified by handle, not name.
func (t *Tree) NewScope(name string, parent Scope) (Scope, error) {
	if name == "" {
		return Scope{}, ErrEmptyName
	}
	if parent.tree != t {
		return Scope{}, ErrInvalidParent
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(parent.id) >= len(t.records) {
		return Scope{}, ErrInvalidParent
	}
	id := t.add(name, parent.id)
	return Scope{tree: t, id: id}, nil
}

// Find resolves a dot-separated path starting at the root, for example
// "root.core.runtime". When several siblings share a name the first
// created one wins.
func (t *Tree) Find(path string) (Scope, bool) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] != t.name(0) {
		return Scope{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	cur := ID(0)
segment:
	for _, seg := range segments[1:] {
		for _, child := range t.records[cur].children {
			if t.records[child].name == seg {
				cur = child
				continue segment
			}
		}
		return Scope{}, false
	}
	return Scope{tree: t, id: cur}, true
}

// Size returns the number of scopes in the tree.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// All returns a snapshot of every scope in the tree, in creation order.
// Parents always precede their children.
func (t *Tree) All() []Scope {
	t.mu.RLock()
	defer t.mu.RUnlock()

	scopes := make([]Scope, len(t.records))
	for i := range t.records {
		scopes[i] = Scope{tree: t, id: ID(i)}
	}
	return scopes
}

func (t *Tree) name(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[id].name
}

// IsZero reports whether s is the invalid zero handle.
func (s Scope) IsZero() bool { return s.tree == nil }

// ID returns the scope's stable arena index.
func (s Scope) ID() ID { return s.id }

// Name returns the scope's name.
func (s Scope) Name() string { return s.tree.name(s.id) }

// Parent returns the parent scope, or false for the root.
func (s Scope) Parent() (Scope, bool) {
	s.tree.mu.RLock()
	defer s.tree.mu.RUnlock()

	p := s.tree.records[s.id].parent
	if p == noParent {
		return Scope{}, false
	}
	return Scope{tree: s.tree, id: p}, true
}

// Children returns a snapshot of the scope's direct children.
func (s Scope) Children() []Scope {
	s.tree.mu.RLock()
	defer s.tree.mu.RUnlock()

	ids := s.tree.records[s.id].children
	children := make([]Scope, len(ids))
	for i, id := range ids {
		children[i] = Scope{tree: s.tree, id: id}
	}
	return children
}

// IsAncestorOf reports whether s is a strict ancestor of other.
func (s Scope) IsAncestorOf(other Scope) bool {
	if s.tree != other.tree {
		return false
	}

	s.tree.mu.RLock()
	defer s.tree.mu.RUnlock()

	for cur := s.tree.records[other.id].parent; cur != noParent; cur = s.tree.records[cur].parent {
		if cur == s.id {
			return true
		}
	}
	return false
}

// IsDescendantOf reports whether s is a strict descendant of other.
func (s Scope) IsDescendantOf(other Scope) bool {
	return other.IsAncestorOf(s)
}

// Path returns the dot-separated path from the root to this scope.
func (s Scope) Path() string {
	s.tree.mu.RLock()
	defer s.tree.mu.RUnlock()

	var segments []string
	for cur := s.id; cur != noParent; cur = s.tree.records[cur].parent {
		segments = append(segments, s.tree.records[cur].name)
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, ".")
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	if s.IsZero() {
		return "<zero scope>"
	}
	return s.Path()
}
