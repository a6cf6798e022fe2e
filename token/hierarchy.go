package token

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrEmptyName is returned when a type is declared without a name.
	ErrEmptyName = errors.New("token: empty name")
	// ErrDuplicate is returned when a name is declared twice with a different
	// set of supertypes.
	ErrDuplicate = errors.New("token: duplicate declaration")
	// ErrUnknown is returned when a referenced supertype has not been declared.
	ErrUnknown = errors.New("token: unknown type")
)

// Hierarchy is a name-indexed set of nodes. It is safe for concurrent use.
type Hierarchy struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewHierarchy creates an empty Hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{nodes: make(map[string]*Node)}
}

// Declare adds a node with the given supertypes, which must already be
// declared. Re-declaring a name with the same supertypes is a no-op that
// returns the existing node.
func (h *Hierarchy) Declare(name string, parents ...string) (*Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ps := make([]*Node, 0, len(parents))
	for _, p := range parents {
		n, ok := h.nodes[strings.TrimSpace(p)]
		if !ok {
			return nil, fmt.Errorf("%w %q (supertype of %q)", ErrUnknown, p, name)
		}
		ps = append(ps, n)
	}

	if old, ok := h.nodes[name]; ok {
		if slices.Equal(old.parents, ps) {
			return old, nil
		}
		return nil, fmt.Errorf("%w of %q", ErrDuplicate, name)
	}

	n := New(name, ps...)
	h.nodes[name] = n
	return n, nil
}

// Ensure returns the node for name, declaring it without supertypes if it
// does not exist yet.
func (h *Hierarchy) Ensure(name string) (*Node, error) {
	if n, ok := h.Lookup(name); ok {
		return n, nil
	}
	return h.Declare(name)
}

// Lookup returns the node registered under name.
func (h *Hierarchy) Lookup(name string) (*Node, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.nodes[strings.TrimSpace(name)]
	return n, ok
}

// Names returns all declared names in lexical order.
func (h *Hierarchy) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.nodes))
	for name := range h.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
