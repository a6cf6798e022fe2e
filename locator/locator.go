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

// Package locator implements the resolution registry: an immutable snapshot
// of bindings that selects the best implementation of a service for a given
// resource type and location.
//
// # Usage
//
// Every registration returns a new snapshot and leaves the receiver intact:
//
//	reg := locator.New()
//	reg, err := reg.Register(greeting, defaultGreeting)
//	reg, err = reg.Register(greeting, customerGreeting, locator.ForResource(customer))
//	reg, err = reg.Register(greeting, adminGreeting, locator.AtPath("/admin"))
//
//	impl, ok := reg.Resolve(locator.Query{
//		Service:  greeting,
//		Resource: customer,
//		Location: location.MustParse("/admin/users"),
//	})
//
// # Precedence
//
// Candidates are ranked by resource match first (exact beats subtype beats
// no predicate) and by location specificity second (deeper ancestor beats
// shallower ancestor beats no predicate). Ties go to the most recently
// registered binding. A disqualified candidate never wins.
//
// # Concurrency
//
// A Registry is safe for concurrent use. Results are memoized per snapshot;
// the memo starts empty for every snapshot produced by Register.
package locator

import (
	"errors"
	"log/slog"
	"maps"

	"github.com/deep-rent/locus/binding"
	"github.com/deep-rent/locus/location"
	"github.com/deep-rent/locus/log"
	"github.com/deep-rent/locus/token"
)

var (
	// ErrNilService is returned when registering without a service token.
	ErrNilService = binding.ErrNilService
	// ErrNilImplementation is returned when registering without an
	// implementation token.
	ErrNilImplementation = binding.ErrNilImplementation
	// ErrMalformedPredicate is returned for invalid or conflicting predicates.
	ErrMalformedPredicate = binding.ErrMalformedPredicate
	// ErrNotFound is returned by Lookup if no binding matches a query.
	ErrNotFound = errors.New("locator: no matching binding")
)

// Query describes a resolution request. Resource and Location are optional:
// leave Resource nil and Location zero to omit them.
type Query struct {
	Service  token.Token
	Resource token.Token
	Location location.Path
}

// key identifies a query in the memo.
type key struct {
	service  token.Token
	resource token.Token
	location string
}

func (q Query) key() key {
	return key{
		service:  q.Service,
		resource: q.Resource,
		location: q.Location.String(),
	}
}

// Registry is an immutable snapshot of bindings.
type Registry struct {
	// fast holds services with a single unconditional binding.
	fast map[token.Token]*binding.Binding
	// slow holds all other services, newest binding first.
	slow map[token.Token][]*binding.Binding
	// size is the total number of bindings.
	size int
	memo *memo
	cfg  config
}

type config struct {
	log      *slog.Logger
	observer Observer
}

// Option configures a Registry.
type Option func(*config)

// WithLogger sets the logger used to report registrations. Resolution never
// logs. A nil value is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithObserver installs an Observer that is notified of every resolution.
// A nil value is ignored.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	c := config{
		log:      log.Discard(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &Registry{
		fast: make(map[token.Token]*binding.Binding),
		slow: make(map[token.Token][]*binding.Binding),
		memo: newMemo(),
		cfg:  c,
	}
}

// Register returns a new snapshot that additionally contains a binding of
// service to implementation, guarded by the given predicates. The receiver
// is left unchanged. Malformed inputs are rejected eagerly.
func (r *Registry) Register(
	service token.Token,
	implementation token.Token,
	preds ...Predicate,
) (*Registry, error) {
	var p predicates
	var errs []error
	for _, pred := range preds {
		if pred == nil {
			continue
		}
		if err := pred(&p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	b, err := binding.New(service, implementation, p.resource, p.location)
	if err != nil {
		return nil, err
	}

	next := &Registry{
		fast: r.fast,
		slow: r.slow,
		size: r.size + 1,
		memo: newMemo(),
		cfg:  r.cfg,
	}

	prev, inFast := r.fast[service]
	chain, inSlow := r.slow[service]

	switch {
	case !inFast && !inSlow && b.Unconditional():
		next.fast = maps.Clone(r.fast)
		next.fast[service] = b
	case inFast:
		next.fast = maps.Clone(r.fast)
		delete(next.fast, service)
		next.slow = maps.Clone(r.slow)
		next.slow[service] = []*binding.Binding{b, prev}
	default:
		// Never append to a shared chain: older snapshots still read it.
		fresh := make([]*binding.Binding, 0, len(chain)+1)
		fresh = append(fresh, b)
		fresh = append(fresh, chain...)
		next.slow = maps.Clone(r.slow)
		next.slow[service] = fresh
	}

	r.cfg.log.Debug(
		"Binding registered",
		log.KeyService, service.Name(),
		log.KeyImplementation, implementation.Name(),
		log.KeyResource, name(p.resource),
		log.KeyLocation, p.location.String(),
	)
	return next, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(
	service token.Token,
	implementation token.Token,
	preds ...Predicate,
) *Registry {
	next, err := r.Register(service, implementation, preds...)
	if err != nil {
		panic(err)
	}
	return next
}

// Resolve returns the implementation that best matches q. The second result
// is false if no binding qualifies.
func (r *Registry) Resolve(q Query) (token.Token, bool) {
	k := q.key()
	if res, ok := r.memo.load(k); ok {
		r.cfg.observer.Observe(q, OutcomeCached)
		return res.implementation, res.found
	}

	var res result
	var outcome Outcome
	if b, ok := r.fast[q.Service]; ok {
		res = result{implementation: b.Implementation(), found: true}
		outcome = OutcomeFast
	} else if b := best(r.slow[q.Service], q); b != nil {
		res = result{implementation: b.Implementation(), found: true}
		outcome = OutcomeFallback
	} else {
		outcome = OutcomeNotFound
	}

	r.memo.store(k, res)
	r.cfg.observer.Observe(q, outcome)
	return res.implementation, res.found
}

// Lookup is like Resolve but reports a miss as ErrNotFound.
func (r *Registry) Lookup(q Query) (token.Token, error) {
	impl, ok := r.Resolve(q)
	if !ok {
		return nil, &NotFoundError{Query: q}
	}
	return impl, nil
}

// best scans a newest-first chain and returns the highest-scoring binding,
// preferring the earliest (newest) one among equals.
func best(chain []*binding.Binding, q Query) *binding.Binding {
	if len(chain) == 0 {
		return nil
	}
	top := binding.Max(q.Resource != nil, q.Location)

	var winner *binding.Binding
	score := binding.Disqualified
	for _, b := range chain {
		s := b.Score(q.Resource, q.Location)
		if !s.Beats(score) {
			continue
		}
		winner, score = b, s
		if score == top {
			break
		}
	}
	return winner
}

// Len returns the total number of bindings in the snapshot.
func (r *Registry) Len() int {
	return r.size
}

func name(t token.Token) string {
	if t == nil {
		return ""
	}
	return t.Name()
}
