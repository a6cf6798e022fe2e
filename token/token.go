// Copyright (c) 2025-present deep.rent GmbH (https://deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package token provides type tokens: stable, comparable identifiers for
// services, implementations and resource types that support an explicit
// subtype test.
//
// Two flavors are provided. A Node is a nominal type declared at runtime with
// an explicit list of supertypes, which is what manifests and most
// application code use. A Go type token, obtained through Of, derives its
// identity from a reflect.Type and treats a concrete type as a subtype of
// every interface it implements.
//
// Tokens are compared with ==. Every implementation must therefore be a
// comparable value whose identity is stable for the lifetime of the process.
package token

import (
	"errors"
	"reflect"
	"strings"
)

var (
	// ErrNil is returned by Check for a nil token.
	ErrNil = errors.New("token: nil")
	// ErrNotComparable is returned by Check for a token that cannot be
	// compared with ==, such as a struct holding a slice.
	ErrNotComparable = errors.New("token: type is not comparable")
)

// Token identifies a type.
type Token interface {
	// Name returns a human-readable name. Names are not required to be unique.
	Name() string
	// Is reports whether the receiver is other or one of its subtypes.
	Is(other Token) bool
}

// Check returns an error if t cannot be used as a token. Besides nil tokens,
// including a nil *Node, it rejects values that would panic when hashed or
// compared.
func Check(t Token) error {
	if t == nil {
		return ErrNil
	}
	if n, ok := t.(*Node); ok && n == nil {
		return ErrNil
	}
	if !reflect.ValueOf(t).Comparable() {
		return ErrNotComparable
	}
	return nil
}

// Valid reports whether Check accepts t.
func Valid(t Token) bool { return Check(t) == nil }

// Node is a nominal type with zero or more declared supertypes.
// Nodes are immutable once created.
type Node struct {
	name    string
	parents []*Node
}

// New declares a new nominal type. Nil parents are skipped. Since parents
// must exist before their children, the resulting graph is acyclic.
func New(name string, parents ...*Node) *Node {
	n := &Node{name: strings.TrimSpace(name)}
	for _, p := range parents {
		if p != nil {
			n.parents = append(n.parents, p)
		}
	}
	return n
}

// Name implements the Token interface.
func (n *Node) Name() string {
	return n.name
}

// String returns the name of the node.
func (n *Node) String() string {
	return n.name
}

// Parents returns a copy of the direct supertypes.
func (n *Node) Parents() []*Node {
	return append([]*Node(nil), n.parents...)
}

// Is implements the Token interface by walking the supertype graph.
func (n *Node) Is(other Token) bool {
	o, ok := other.(*Node)
	if !ok || o == nil || n == nil {
		return false
	}
	return n.extends(o)
}

func (n *Node) extends(o *Node) bool {
	if n == o {
		return true
	}
	for _, p := range n.parents {
		if p.extends(o) {
			return true
		}
	}
	return false
}

var _ Token = (*Node)(nil)

// goType is a token backed by a Go type.
type goType struct {
	t reflect.Type
}

// Of returns the token for the Go type T. Interface types are supported and
// act as supertypes of the types implementing them.
func Of[T any]() Token {
	return goType{t: reflect.TypeFor[T]()}
}

// TypeOf returns the token for the given reflect.Type, or nil if t is nil.
func TypeOf(t reflect.Type) Token {
	if t == nil {
		return nil
	}
	return goType{t: t}
}

// Name implements the Token interface.
func (g goType) Name() string {
	return g.t.String()
}

// String returns the Go type name.
func (g goType) String() string {
	return g.t.String()
}

// Type returns the underlying reflect.Type.
func (g goType) Type() reflect.Type {
	return g.t
}

// Is implements the Token interface. A type is a subtype of an interface if
// either the type itself or a pointer to it implements the interface.
func (g goType) Is(other Token) bool {
	o, ok := other.(goType)
	if !ok {
		return false
	}
	if g.t == o.t {
		return true
	}
	if o.t.Kind() != reflect.Interface {
		return false
	}
	if g.t.Implements(o.t) {
		return true
	}
	return g.t.Kind() != reflect.Interface &&
		g.t.Kind() != reflect.Pointer &&
		reflect.PointerTo(g.t).Implements(o.t)
}

var _ Token = goType{}
