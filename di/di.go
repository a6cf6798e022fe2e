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

// Package di builds service instances on top of the resolution registry.
//
// The locator decides which implementation serves a request; this package
// owns what happens next: it looks up the provider registered for the chosen
// implementation, applies its scope and hands it the request so that nested
// dependencies resolve in the same resource and location context.
//
// # Usage
//
//	in := di.NewInjector()
//	di.Bind(in, Greeting, DefaultGreeting, newDefault, di.Singleton())
//	di.Bind(in, Greeting, AdminGreeting, newAdmin, di.Transient(),
//		locator.AtPath("/admin"))
//
//	g, err := di.Use[Greeter](in, Greeting, di.Request{
//		Location: location.MustParse("/admin/users"),
//	})
package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/deep-rent/locus/location"
	"github.com/deep-rent/locus/locator"
	"github.com/deep-rent/locus/log"
	"github.com/deep-rent/locus/token"
)

var (
	// ErrNotFound is returned if no binding matches the request.
	ErrNotFound = locator.ErrNotFound
	// ErrNoProvider is returned if the chosen implementation has no provider.
	ErrNoProvider = errors.New("di: no provider for implementation")
	// ErrCycle is returned if an implementation depends on itself.
	ErrCycle = errors.New("di: circular dependency")
	// ErrProviderPanic is returned if a provider panics.
	ErrProviderPanic = errors.New("di: provider panicked")
	// ErrNilProvider is returned by Bind if the provider is nil.
	ErrNilProvider = errors.New("di: nil provider")
)

// Request carries the resolution context of a service request.
type Request struct {
	Resource token.Token
	Location location.Path
}

// Provider builds an instance of an implementation. It receives the
// Injector to resolve its own dependencies and the Request that led to it.
type Provider[T any] func(in *Injector, req Request) (T, error)

// Factory is a type-erased Provider as handed to a Resolver. Calling it
// runs the provider, converting a panic into ErrProviderPanic.
type Factory func(in *Injector, req Request) (any, error)

// provision holds a provider and its scope.
type provision struct {
	factory  Factory
	resolver Resolver
}

type config struct {
	ctx   context.Context
	store *locator.Store
	log   *slog.Logger
}

// Option configures an Injector.
type Option func(*config)

// WithContext sets the application context for the Injector.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithStore makes the Injector resolve against an existing store, for
// example one kept up to date by a manifest watcher.
func WithStore(s *locator.Store) Option {
	return func(c *config) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLogger sets the logger. A nil value is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.log = logger
		}
	}
}

// core is the state shared by an Injector and its nested views.
type core struct {
	ctx   context.Context
	store *locator.Store
	log   *slog.Logger

	mu         sync.RWMutex
	provisions map[token.Token]*provision
}

// Injector constructs service instances. It is safe for concurrent use.
type Injector struct {
	*core
	// trail lists the implementations under construction, outermost first.
	trail []token.Token
}

// NewInjector creates an Injector backed by an empty registry unless
// WithStore is given.
func NewInjector(opts ...Option) *Injector {
	c := config{
		ctx: context.Background(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.store == nil {
		c.store = locator.NewStore(locator.New(locator.WithLogger(c.log)))
	}
	return &Injector{
		core: &core{
			ctx:        c.ctx,
			store:      c.store,
			log:        c.log,
			provisions: make(map[token.Token]*provision),
		},
	}
}

// Context returns the application context.
func (in *Injector) Context() context.Context {
	return in.ctx
}

// Store returns the store holding the current registry snapshot.
func (in *Injector) Store() *locator.Store {
	return in.store
}

// Provide registers the provider of an implementation. It panics if the
// implementation already has a provider.
func Provide[T any](
	in *Injector,
	impl token.Token,
	provider Provider[T],
	resolver Resolver,
) {
	if err := token.Check(impl); err != nil {
		panic(fmt.Sprintf("di: implementation: %v", err))
	}
	if provider == nil {
		panic(fmt.Sprintf("di: nil provider for %s", impl.Name()))
	}
	if !offer(in, impl, provider, resolver) {
		panic(fmt.Sprintf("di: implementation %s is already provided", impl.Name()))
	}
}

// offer installs the provider of impl unless it already has one, and reports
// whether it did so.
func offer[T any](
	in *Injector,
	impl token.Token,
	provider Provider[T],
	resolver Resolver,
) bool {
	if resolver == nil {
		resolver = Transient()
	}
	run := func(in *Injector, req Request) (any, error) {
		return provider(in, req)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if _, ok := in.provisions[impl]; ok {
		return false
	}
	in.provisions[impl] = &provision{
		factory: func(in *Injector, req Request) (any, error) {
			return provide(in, run, impl, req)
		},
		resolver: resolver,
	}
	return true
}

// Bind registers a binding of service to impl in the injector's store and,
// unless impl already has one, its provider. Several services or several
// predicated bindings may share one implementation and its provider; the
// first provider bound wins. Nothing is registered if any argument is
// invalid.
func Bind[T any](
	in *Injector,
	service token.Token,
	impl token.Token,
	provider Provider[T],
	resolver Resolver,
	preds ...locator.Predicate,
) error {
	if provider == nil {
		return ErrNilProvider
	}
	if _, err := in.store.Register(service, impl, preds...); err != nil {
		return err
	}
	offer(in, impl, provider, resolver)
	return nil
}

// Provided reports whether impl has a provider.
func (in *Injector) Provided(impl token.Token) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	_, ok := in.provisions[impl]
	return ok
}

// Use resolves service for req and returns the instance.
func Use[T any](in *Injector, service token.Token, req Request) (T, error) {
	var zero T
	v, err := in.Resolve(service, req)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf(
			"di: %s expects %T but provider returned %T",
			service.Name(), zero, v,
		)
	}
	return t, nil
}

// Optional resolves service and returns the zero value if nothing matches.
// It panics on every other error.
func Optional[T any](in *Injector, service token.Token, req Request) T {
	v, err := Use[T](in, service, req)
	if err != nil && !errors.Is(err, ErrNotFound) {
		panic(err)
	}
	return v
}

// Required resolves service and panics if an error occurs or if the result
// is nil.
func Required[T any](in *Injector, service token.Token, req Request) T {
	v, err := Use[T](in, service, req)
	if err != nil {
		panic(err)
	}
	val := reflect.ValueOf(&v).Elem()
	switch val.Kind() {
	case
		reflect.Pointer,
		reflect.Interface,
		reflect.Slice,
		reflect.Map,
		reflect.Chan,
		reflect.Func:
		if val.IsNil() {
			panic(fmt.Errorf("di: required dependency %s is nil", service.Name()))
		}
	}
	return v
}

// Resolve is the non-generic form of Use.
func (in *Injector) Resolve(service token.Token, req Request) (any, error) {
	impl, err := in.store.Load().Lookup(locator.Query{
		Service:  service,
		Resource: req.Resource,
		Location: req.Location,
	})
	if err != nil {
		return nil, err
	}
	return in.build(impl, req)
}

// build constructs impl within the scope of its resolver.
func (in *Injector) build(impl token.Token, req Request) (any, error) {
	if slices.Contains(in.trail, impl) {
		return nil, fmt.Errorf("%w: %s", ErrCycle, in.describe(impl))
	}

	in.mu.RLock()
	p, ok := in.provisions[impl]
	in.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoProvider, impl.Name())
	}

	nested := &Injector{
		core:  in.core,
		trail: append(slices.Clip(in.trail), impl),
	}
	return p.resolver.Resolve(nested, p.factory, impl, req)
}

func (in *Injector) describe(impl token.Token) string {
	names := make([]string, 0, len(in.trail)+1)
	for _, t := range in.trail {
		names = append(names, t.Name())
	}
	return strings.Join(append(names, impl.Name()), " -> ")
}

// Resolver defines the scope of the instances of an implementation.
type Resolver interface {
	// Resolve provides an instance of impl, calling f when a new one is
	// needed.
	Resolve(in *Injector, f Factory, impl token.Token, req Request) (any, error)
}

// singleton caches the first instance of an implementation.
type singleton struct {
	instance any
	err      error
	once     sync.Once
}

// Resolve implements the Resolver interface.
func (s *singleton) Resolve(in *Injector, f Factory, _ token.Token, req Request) (any, error) {
	s.once.Do(func() { s.instance, s.err = f(in, req) })
	return s.instance, s.err
}

// Singleton returns a Resolver that creates one instance per implementation
// on first use, with the request of that first use, and reuses it thereafter.
func Singleton() Resolver {
	return &singleton{}
}

// transient creates a new instance on every call.
type transient struct{}

// Resolve implements the Resolver interface.
func (transient) Resolve(in *Injector, f Factory, _ token.Token, req Request) (any, error) {
	return f(in, req)
}

// Transient returns a Resolver that creates a new instance on every call.
func Transient() Resolver {
	return transient{}
}

// provide runs f, converting a panic into an error.
func provide(in *Injector, f Factory, impl token.Token, req Request) (instance any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			instance = nil
			err = fmt.Errorf("%w: %s: %v", ErrProviderPanic, impl.Name(), rec)
		}
	}()

	instance, err = f(in, req)
	if err != nil {
		return nil, fmt.Errorf("di: provider of %s: %w", impl.Name(), err)
	}
	in.log.Debug(
		"Instance created",
		log.KeyImplementation, impl.Name(),
		log.KeyLocation, req.Location.String(),
	)
	return instance, nil
}
