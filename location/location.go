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

// Package location implements hierarchical, slash-separated paths and the
// ancestry test used to match location predicates against requested
// locations.
//
// A Path is an immutable value. Its zero value represents the absence of a
// location, which is distinct from the root path "/".
package location

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode"
)

// MaxDepth is the maximum number of segments a Path may have.
const MaxDepth = 256

// Separator delimits path segments.
const Separator = "/"

// ErrMalformedPath is returned by Parse for inputs that are not valid paths.
var ErrMalformedPath = errors.New("location: malformed path")

// Root is the path "/".
var Root = Path{raw: Separator}

// Path is a hierarchical location such as "/admin/users/42".
type Path struct {
	raw  string
	segs []string
}

// Parse converts s into a Path. The input must start with a slash. A single
// trailing slash is tolerated, so "/admin/" and "/admin" are the same path.
// Empty segments, "." and ".." segments, and control characters are rejected.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("%w: empty", ErrMalformedPath)
	}
	if !strings.HasPrefix(s, Separator) {
		return Path{}, fmt.Errorf("%w %q: must start with %q", ErrMalformedPath, s, Separator)
	}
	body := strings.TrimPrefix(s, Separator)
	if body == "" {
		return Root, nil
	}
	if body = strings.TrimSuffix(body, Separator); body == "" {
		return Path{}, fmt.Errorf("%w %q: empty segment", ErrMalformedPath, s)
	}

	segs := strings.Split(body, Separator)
	if len(segs) > MaxDepth {
		return Path{}, fmt.Errorf("%w %q: deeper than %d segments", ErrMalformedPath, s, MaxDepth)
	}
	for _, seg := range segs {
		switch seg {
		case "":
			return Path{}, fmt.Errorf("%w %q: empty segment", ErrMalformedPath, s)
		case ".", "..":
			return Path{}, fmt.Errorf("%w %q: relative segment %q", ErrMalformedPath, s, seg)
		}
		if strings.IndexFunc(seg, unicode.IsControl) >= 0 {
			return Path{}, fmt.Errorf("%w %q: control character", ErrMalformedPath, s)
		}
	}
	return Path{raw: Separator + body, segs: segs}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p is the absent path.
func (p Path) IsZero() bool {
	return p.raw == ""
}

// Depth returns the number of segments. The root has depth zero.
func (p Path) Depth() int {
	return len(p.segs)
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segs...)
}

// String returns the canonical form of p, or "" for the absent path.
func (p Path) String() string {
	return p.raw
}

// Parent returns the path one level up. The parent of the root is the root;
// the parent of the absent path is the absent path.
func (p Path) Parent() Path {
	switch len(p.segs) {
	case 0:
		return p
	case 1:
		return Root
	}
	segs := p.segs[:len(p.segs)-1]
	return Path{raw: Separator + strings.Join(segs, Separator), segs: segs}
}

// Ancestors iterates over p and all of its ancestors, from p itself up to
// and including the root. It yields nothing for the absent path.
func (p Path) Ancestors() iter.Seq[Path] {
	return func(yield func(Path) bool) {
		if p.IsZero() {
			return
		}
		for {
			if !yield(p) || p.Depth() == 0 {
				return
			}
			p = p.Parent()
		}
	}
}

// Contains reports whether other is p or one of its descendants.
func (p Path) Contains(other Path) bool {
	_, ok := Match(p, other)
	return ok
}

// Match reports whether predicate is an ancestor of, or equal to, requested.
// Segments are compared positionally, so "/adm" does not match "/admin". On
// success the tier is the number of predicate segments: deeper predicates are
// more specific. Match fails whenever either path is absent.
func Match(predicate, requested Path) (tier int, ok bool) {
	if predicate.IsZero() || requested.IsZero() {
		return 0, false
	}
	if len(predicate.segs) > len(requested.segs) {
		return 0, false
	}
	for i, seg := range predicate.segs {
		if requested.segs[i] != seg {
			return 0, false
		}
	}
	return len(predicate.segs), true
}
