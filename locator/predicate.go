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

package locator

import (
	"fmt"

	"github.com/deep-rent/locus/location"
	"github.com/deep-rent/locus/token"
)

type predicates struct {
	resource token.Token
	location location.Path
}

// Predicate narrows the applicability of a binding.
type Predicate func(*predicates) error

// ForResource restricts a binding to requests whose resource type is t or
// one of its subtypes.
func ForResource(t token.Token) Predicate {
	return func(p *predicates) error {
		if err := token.Check(t); err != nil {
			return fmt.Errorf("%w: resource: %w", ErrMalformedPredicate, err)
		}
		if p.resource != nil {
			return fmt.Errorf("%w: resource given twice", ErrMalformedPredicate)
		}
		p.resource = t
		return nil
	}
}

// AtLocation restricts a binding to requests at loc or below it.
func AtLocation(loc location.Path) Predicate {
	return func(p *predicates) error {
		if loc.IsZero() {
			return fmt.Errorf("%w: zero location", ErrMalformedPredicate)
		}
		if !p.location.IsZero() {
			return fmt.Errorf("%w: location given twice", ErrMalformedPredicate)
		}
		p.location = loc
		return nil
	}
}

// AtPath is like AtLocation but parses the path first.
func AtPath(s string) Predicate {
	loc, err := location.Parse(s)
	if err != nil {
		return func(*predicates) error {
			return fmt.Errorf("%w: %w", ErrMalformedPredicate, err)
		}
	}
	return AtLocation(loc)
}

// NotFoundError reports a query that no binding satisfies. It matches
// ErrNotFound with errors.Is.
type NotFoundError struct {
	Query Query
}

func (e *NotFoundError) Error() string {
	s := "locator: no matching binding for " + name(e.Query.Service)
	if e.Query.Resource != nil {
		s += " (resource " + e.Query.Resource.Name() + ")"
	}
	if !e.Query.Location.IsZero() {
		s += " (location " + e.Query.Location.String() + ")"
	}
	return s
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
