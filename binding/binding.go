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

// Package binding defines the registered candidate of a service resolution
// and the scoring function that ranks it against a request.
//
// A Binding pairs a service with one implementation and optionally narrows
// its applicability with a resource predicate (the requested resource type
// must be the predicate type or a subtype of it) and a location predicate
// (the requested location must be the predicate path or a descendant of it).
//
// Scores are tiered: the resource tier always dominates the location tier,
// so no amount of location specificity can outweigh a better resource match.
package binding

import (
	"errors"
	"fmt"

	"github.com/deep-rent/locus/location"
	"github.com/deep-rent/locus/token"
)

var (
	// ErrNilService is returned when a binding lacks a service token.
	ErrNilService = errors.New("binding: nil service")
	// ErrNilImplementation is returned when a binding lacks an implementation
	// token.
	ErrNilImplementation = errors.New("binding: nil implementation")
	// ErrMalformedPredicate is returned for predicates that cannot be
	// evaluated.
	ErrMalformedPredicate = errors.New("binding: malformed predicate")
)

// Binding is an immutable (service, implementation, predicates) record.
type Binding struct {
	service        token.Token
	implementation token.Token
	resource       token.Token
	location       location.Path
}

// New validates its inputs and creates a Binding. A nil resource and a zero
// location mean that the respective predicate is unset.
func New(
	service token.Token,
	implementation token.Token,
	resource token.Token,
	loc location.Path,
) (*Binding, error) {
	if err := token.Check(service); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNilService, err)
	}
	if err := token.Check(implementation); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNilImplementation, err)
	}
	if resource != nil {
		if err := token.Check(resource); err != nil {
			return nil, fmt.Errorf("%w: resource: %w", ErrMalformedPredicate, err)
		}
	}
	return &Binding{
		service:        service,
		implementation: implementation,
		resource:       resource,
		location:       loc,
	}, nil
}

// Service returns the service token.
func (b *Binding) Service() token.Token { return b.service }

// Implementation returns the implementation token.
func (b *Binding) Implementation() token.Token { return b.implementation }

// Resource returns the resource predicate, or nil if unset.
func (b *Binding) Resource() token.Token { return b.resource }

// Location returns the location predicate, or the zero Path if unset.
func (b *Binding) Location() location.Path { return b.location }

// Unconditional reports whether neither predicate is set.
func (b *Binding) Unconditional() bool {
	return b.resource == nil && b.location.IsZero()
}

// String renders the binding for diagnostics.
func (b *Binding) String() string {
	s := b.service.Name() + " -> " + b.implementation.Name()
	if b.resource != nil {
		s += " [resource=" + b.resource.Name() + "]"
	}
	if !b.location.IsZero() {
		s += " [location=" + b.location.String() + "]"
	}
	return s
}

// Score ranks the binding against a requested resource type (nil if absent)
// and location (zero if absent).
func (b *Binding) Score(resource token.Token, loc location.Path) Score {
	r, ok := b.resourceTier(resource)
	if !ok {
		return Disqualified
	}
	l, ok := b.locationTier(loc)
	if !ok {
		return Disqualified
	}
	return Score{ok: true, resource: r, location: l}
}

func (b *Binding) resourceTier(resource token.Token) (ResourceTier, bool) {
	switch {
	case b.resource == nil:
		return Wildcard, true
	case resource == nil:
		return 0, false
	case resource == b.resource:
		return Exact, true
	case resource.Is(b.resource):
		return Subtype, true
	default:
		return 0, false
	}
}

func (b *Binding) locationTier(loc location.Path) (int, bool) {
	if b.location.IsZero() {
		return 0, true
	}
	depth, ok := location.Match(b.location, loc)
	if !ok {
		return 0, false
	}
	// Offset by one so that even a root predicate outranks a wildcard.
	return depth + 1, true
}
