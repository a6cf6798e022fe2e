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

// Package manifest loads bindings from declarative YAML or JSON documents
// and applies them to a locator.Registry.
//
// A manifest declares nominal types and their supertypes, followed by the
// bindings in registration order:
//
//	version: v1
//	types:
//	  - name: Person
//	  - name: Customer
//	    extends: [Person]
//	bindings:
//	  - service: Greeting
//	    implementation: DefaultGreeting
//	  - service: Greeting
//	    implementation: CustomerGreeting
//	    resource: Customer
//	  - service: Greeting
//	    implementation: AdminGreeting
//	    location: /admin
//
// Services and implementations are declared implicitly on first use.
// Resource types must be declared, since a misspelled resource would
// otherwise produce a binding that never matches.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"github.com/deep-rent/locus/codec"
	"github.com/deep-rent/locus/locator"
	"github.com/deep-rent/locus/token"
)

// SupportedMajor is the only schema major version this package understands.
const SupportedMajor = "v1"

var (
	// ErrVersion is returned for a missing, invalid or unsupported version.
	ErrVersion = errors.New("manifest: unsupported version")
	// ErrUnknownType is returned when a binding names an undeclared resource.
	ErrUnknownType = errors.New("manifest: unknown type")
	// ErrIncomplete is returned for bindings lacking a service or an
	// implementation.
	ErrIncomplete = errors.New("manifest: incomplete binding")
)

// Manifest is a parsed document.
type Manifest struct {
	Version  string    `json:"version" yaml:"version"`
	Types    []Type    `json:"types,omitempty" yaml:"types,omitempty"`
	Bindings []Binding `json:"bindings" yaml:"bindings"`

	// Source names the file the manifest was read from, if any.
	Source string `json:"-" yaml:"-"`
}

// Type declares a nominal type.
type Type struct {
	Name    string   `json:"name" yaml:"name"`
	Extends []string `json:"extends,omitempty" yaml:"extends,omitempty"`
}

// Binding declares a candidate implementation of a service.
type Binding struct {
	Service        string `json:"service" yaml:"service"`
	Implementation string `json:"implementation" yaml:"implementation"`
	Resource       string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Location       string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Parse decodes data with c and validates the schema version.
func Parse(data []byte, c codec.Codec) (*Manifest, error) {
	var m Manifest
	if err := c.Decode(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	v, err := checkVersion(m.Version)
	if err != nil {
		return nil, err
	}
	m.Version = v
	return &m, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data, codec.Infer(path))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Source = path
	return m, nil
}

// LoadAll reads the files at paths concurrently and merges them in argument
// order, so bindings of later files are registered after those of earlier
// ones and win ties against them.
func LoadAll(ctx context.Context, paths ...string) (*Manifest, error) {
	parts := make([]*Manifest, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := Load(path)
			if err != nil {
				return err
			}
			parts[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(parts...), nil
}

// Merge concatenates manifests in order. The result carries the highest
// version among the inputs and a comma-separated list of sources.
func Merge(parts ...*Manifest) *Manifest {
	out := &Manifest{Version: SupportedMajor + ".0.0"}
	var sources []string
	for _, m := range parts {
		if m == nil {
			continue
		}
		if semver.Compare(m.Version, out.Version) > 0 {
			out.Version = m.Version
		}
		out.Types = append(out.Types, m.Types...)
		out.Bindings = append(out.Bindings, m.Bindings...)
		if m.Source != "" {
			sources = append(sources, m.Source)
		}
	}
	out.Source = strings.Join(sources, ",")
	return out
}

// Declare adds the declared types to h in document order.
func (m *Manifest) Declare(h *token.Hierarchy) error {
	for i, t := range m.Types {
		if _, err := h.Declare(t.Name, t.Extends...); err != nil {
			return m.errorf("type %d: %w", i, err)
		}
	}
	return nil
}

// Apply declares the types of m in h and registers every binding on top of
// r, returning the resulting snapshot. On error r is returned unchanged
// alongside the error; types declared so far remain in h.
func (m *Manifest) Apply(r *locator.Registry, h *token.Hierarchy) (*locator.Registry, error) {
	if err := m.Declare(h); err != nil {
		return r, err
	}
	next := r
	for i, b := range m.Bindings {
		svc, impl, preds, err := m.resolve(h, b)
		if err != nil {
			return r, m.errorf("binding %d: %w", i, err)
		}
		if next, err = next.Register(svc, impl, preds...); err != nil {
			return r, m.errorf("binding %d: %w", i, err)
		}
	}
	return next, nil
}

// Build applies m to a new Registry created with opts.
func (m *Manifest) Build(h *token.Hierarchy, opts ...locator.Option) (*locator.Registry, error) {
	return m.Apply(locator.New(opts...), h)
}

func (m *Manifest) resolve(h *token.Hierarchy, b Binding) (
	svc, impl token.Token,
	preds []locator.Predicate,
	err error,
) {
	if strings.TrimSpace(b.Service) == "" || strings.TrimSpace(b.Implementation) == "" {
		return nil, nil, nil, ErrIncomplete
	}
	s, err := h.Ensure(b.Service)
	if err != nil {
		return nil, nil, nil, err
	}
	i, err := h.Ensure(b.Implementation)
	if err != nil {
		return nil, nil, nil, err
	}
	if b.Resource != "" {
		res, ok := h.Lookup(b.Resource)
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w %q", ErrUnknownType, b.Resource)
		}
		preds = append(preds, locator.ForResource(res))
	}
	if b.Location != "" {
		preds = append(preds, locator.AtPath(b.Location))
	}
	return s, i, preds, nil
}

func (m *Manifest) errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if m.Source == "" {
		return fmt.Errorf("manifest: %w", err)
	}
	return fmt.Errorf("manifest %s: %w", m.Source, err)
}

// checkVersion canonicalizes v and verifies its major version.
func checkVersion(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: missing", ErrVersion)
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q is not a semantic version", ErrVersion, v)
	}
	if major := semver.Major(v); major != SupportedMajor {
		return "", fmt.Errorf("%w: %s (want %s)", ErrVersion, major, SupportedMajor)
	}
	return semver.Canonical(v), nil
}
