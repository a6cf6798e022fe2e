package locator_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/deep-rent/locus/binding"
	"github.com/deep-rent/locus/location"
	"github.com/deep-rent/locus/locator"
	"github.com/deep-rent/locus/log"
	"github.com/deep-rent/locus/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	Greeting         = token.New("Greeting")
	DefaultGreeting  = token.New("DefaultGreeting")
	CustomerGreeting = token.New("CustomerGreeting")
	AdminGreeting    = token.New("AdminGreeting")

	Person   = token.New("Person")
	Customer = token.New("Customer", Person)
	Employee = token.New("Employee", Person)
	VIP      = token.New("VIP", Customer)

	Svc   = token.New("Svc")
	ImplA = token.New("ImplA")
	ImplB = token.New("ImplB")
	ImplC = token.New("ImplC")
)

func at(s string) location.Path {
	return location.MustParse(s)
}

func resolve(r *locator.Registry, svc, res token.Token, loc string) token.Token {
	q := locator.Query{Service: svc, Resource: res}
	if loc != "" {
		q.Location = at(loc)
	}
	impl, ok := r.Resolve(q)
	if !ok {
		return nil
	}
	return impl
}

func TestScenarios(t *testing.T) {
	a := locator.New().MustRegister(Greeting, DefaultGreeting)
	b := a.MustRegister(Greeting, CustomerGreeting, locator.ForResource(Customer))
	c := b.MustRegister(Greeting, AdminGreeting, locator.AtPath("/admin"))

	t.Run("A default", func(t *testing.T) {
		assert.Equal(t, DefaultGreeting, resolve(a, Greeting, nil, ""))
	})

	t.Run("B resource", func(t *testing.T) {
		assert.Equal(t, CustomerGreeting, resolve(b, Greeting, Customer, ""))
		assert.Equal(t, CustomerGreeting, resolve(b, Greeting, VIP, ""))
		assert.Equal(t, DefaultGreeting, resolve(b, Greeting, Employee, ""))
		assert.Equal(t, DefaultGreeting, resolve(b, Greeting, nil, ""))
	})

	t.Run("C resource beats location", func(t *testing.T) {
		assert.Equal(t, CustomerGreeting, resolve(c, Greeting, Customer, "/admin/users"))
		assert.Equal(t, AdminGreeting, resolve(c, Greeting, Employee, "/admin/users"))
		assert.Equal(t, AdminGreeting, resolve(c, Greeting, nil, "/admin"))
		assert.Equal(t, DefaultGreeting, resolve(c, Greeting, Employee, "/public"))
	})

	t.Run("D LIFO", func(t *testing.T) {
		r := locator.New().MustRegister(Svc, ImplA).MustRegister(Svc, ImplB)
		assert.Equal(t, ImplB, resolve(r, Svc, nil, ""))
	})

	t.Run("E not found", func(t *testing.T) {
		impl, ok := c.Resolve(locator.Query{Service: Svc})
		assert.False(t, ok)
		assert.Nil(t, impl)
	})
}

// listToken cannot be hashed or compared with ==.
type listToken struct{ names []string }

func (l listToken) Name() string               { return strings.Join(l.names, ",") }
func (l listToken) Is(other token.Token) bool { return false }

func TestRegister_Validation(t *testing.T) {
	r := locator.New()
	var nilNode *token.Node
	list := listToken{names: []string{"Svc"}}

	_, err := r.Register(nil, ImplA)
	assert.ErrorIs(t, err, locator.ErrNilService)

	_, err = r.Register(Svc, nilNode)
	assert.ErrorIs(t, err, locator.ErrNilImplementation)

	assert.NotPanics(t, func() {
		_, err = r.Register(list, ImplA)
	})
	assert.ErrorIs(t, err, locator.ErrNilService)
	assert.ErrorIs(t, err, token.ErrNotComparable)

	assert.NotPanics(t, func() {
		_, err = r.Register(Svc, list)
	})
	assert.ErrorIs(t, err, locator.ErrNilImplementation)
	assert.ErrorIs(t, err, token.ErrNotComparable)

	tests := []struct {
		name  string
		preds []locator.Predicate
	}{
		{"nil resource", []locator.Predicate{locator.ForResource(nil)}},
		{"typed nil resource", []locator.Predicate{locator.ForResource(nilNode)}},
		{"non-comparable resource", []locator.Predicate{locator.ForResource(list)}},
		{"zero location", []locator.Predicate{locator.AtLocation(location.Path{})}},
		{"bad path", []locator.Predicate{locator.AtPath("admin")}},
		{"double resource", []locator.Predicate{locator.ForResource(Customer), locator.ForResource(Person)}},
		{"double location", []locator.Predicate{locator.AtPath("/a"), locator.AtPath("/b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := r.Register(Svc, ImplA, tt.preds...)
			assert.ErrorIs(t, err, locator.ErrMalformedPredicate)
			assert.Nil(t, next)
		})
	}

	_, err = r.Register(Svc, ImplA, locator.AtPath("//"))
	assert.ErrorIs(t, err, location.ErrMalformedPath)

	assert.Panics(t, func() { r.MustRegister(nil, ImplA) })
	assert.Zero(t, r.Len())
}

func TestRegister_NilPredicateIgnored(t *testing.T) {
	r, err := locator.New().Register(Svc, ImplA, nil)
	require.NoError(t, err)
	assert.Equal(t, ImplA, resolve(r, Svc, nil, ""))
}

func TestRegister_FastPathPromotion(t *testing.T) {
	r := locator.New().MustRegister(Svc, ImplA)
	require.Len(t, r.Bindings(Svc), 1)

	r = r.MustRegister(Svc, ImplB, locator.ForResource(Customer))
	chain := r.Bindings(Svc)
	require.Len(t, chain, 2)
	assert.Equal(t, ImplB, chain[0].Implementation())
	assert.Equal(t, ImplA, chain[1].Implementation())

	assert.Equal(t, ImplA, resolve(r, Svc, nil, ""))
	assert.Equal(t, ImplB, resolve(r, Svc, Customer, ""))
	assert.Equal(t, 2, r.Len())
}

func TestRegister_SolePredicatedBinding(t *testing.T) {
	r := locator.New().MustRegister(Svc, ImplA, locator.AtPath("/admin"))
	assert.Nil(t, resolve(r, Svc, nil, ""))
	assert.Nil(t, resolve(r, Svc, nil, "/public"))
	assert.Equal(t, ImplA, resolve(r, Svc, nil, "/admin/users"))
}

func TestResolve_HierarchicalAncestry(t *testing.T) {
	r := locator.New().MustRegister(Svc, ImplA, locator.AtPath("/admin"))
	for _, loc := range []string{"/admin", "/admin/users", "/admin/users/42"} {
		assert.Equal(t, ImplA, resolve(r, Svc, nil, loc), loc)
	}
	for _, loc := range []string{"/public", "/adm", "/"} {
		assert.Nil(t, resolve(r, Svc, nil, loc), loc)
	}
}

func TestResolve_DeeperLocationWins(t *testing.T) {
	r := locator.New().
		MustRegister(Svc, ImplB, locator.AtPath("/admin/users")).
		MustRegister(Svc, ImplA, locator.AtPath("/admin")).
		MustRegister(Svc, ImplC)

	assert.Equal(t, ImplB, resolve(r, Svc, nil, "/admin/users/42"))
	assert.Equal(t, ImplA, resolve(r, Svc, nil, "/admin/groups"))
	assert.Equal(t, ImplC, resolve(r, Svc, nil, "/public"))
	assert.Equal(t, ImplC, resolve(r, Svc, nil, ""))
}

func TestResolve_RootLocationBeatsWildcard(t *testing.T) {
	r := locator.New().
		MustRegister(Svc, ImplA, locator.AtPath("/")).
		MustRegister(Svc, ImplB)

	assert.Equal(t, ImplA, resolve(r, Svc, nil, "/anything"))
	assert.Equal(t, ImplB, resolve(r, Svc, nil, ""))
}

func TestResolve_ExactBeatsSubtype(t *testing.T) {
	r := locator.New().
		MustRegister(Svc, ImplA, locator.ForResource(Customer)).
		MustRegister(Svc, ImplB, locator.ForResource(Person))

	assert.Equal(t, ImplA, resolve(r, Svc, Customer, ""))
	assert.Equal(t, ImplB, resolve(r, Svc, Person, ""))
	// Both are proper supertypes of VIP, so the newer binding wins the tie.
	assert.Equal(t, ImplB, resolve(r, Svc, VIP, ""))
	assert.Equal(t, ImplB, resolve(r, Svc, Employee, ""))
	assert.Nil(t, resolve(r, Svc, nil, ""))
}

func TestResolve_ExactWildcardBeatsSubtypeDeepLocation(t *testing.T) {
	r := locator.New().
		MustRegister(Svc, ImplA, locator.ForResource(Customer)).
		MustRegister(Svc, ImplB, locator.ForResource(Person), locator.AtPath("/a/b/c"))

	assert.Equal(t, ImplA, resolve(r, Svc, Customer, "/a/b/c/d"))
}

func TestResolve_EarlyExitKeepsBestScore(t *testing.T) {
	// The newest binding matches exactly on resource but has no location;
	// an older one matches the location too and must still win.
	r := locator.New().
		MustRegister(Svc, ImplA, locator.ForResource(Customer), locator.AtPath("/admin")).
		MustRegister(Svc, ImplB, locator.ForResource(Customer))

	assert.Equal(t, ImplA, resolve(r, Svc, Customer, "/admin/users"))
	assert.Equal(t, ImplB, resolve(r, Svc, Customer, ""))
}

func TestResolve_GoTypeTokens(t *testing.T) {
	type Store interface{ Get() }
	type Memory struct{ Store }
	type Disk struct{ Store }

	r := locator.New().
		MustRegister(token.Of[Store](), token.Of[Memory]()).
		MustRegister(token.Of[Store](), token.Of[Disk](), locator.AtPath("/persistent"))

	assert.Equal(t, token.Of[Memory](), resolve(r, token.Of[Store](), nil, "/tmp"))
	assert.Equal(t, token.Of[Disk](), resolve(r, token.Of[Store](), nil, "/persistent/x"))
}

func TestLookup(t *testing.T) {
	r := locator.New().MustRegister(Svc, ImplA, locator.ForResource(Customer))

	impl, err := r.Lookup(locator.Query{Service: Svc, Resource: Customer})
	require.NoError(t, err)
	assert.Equal(t, ImplA, impl)

	_, err = r.Lookup(locator.Query{Service: Svc, Resource: Employee, Location: at("/x")})
	require.ErrorIs(t, err, locator.ErrNotFound)
	var nf *locator.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, Employee, nf.Query.Resource)
	assert.Equal(t, "locator: no matching binding for Svc (resource Employee) (location /x)", err.Error())
}

func TestImmutability(t *testing.T) {
	r1 := locator.New().MustRegister(Svc, ImplA)
	before := resolve(r1, Svc, nil, "")

	r2 := r1.MustRegister(Svc, ImplB)
	r3 := r2.MustRegister(Svc, ImplC, locator.ForResource(Customer))

	assert.Equal(t, before, resolve(r1, Svc, nil, ""))
	assert.Equal(t, ImplA, resolve(r1, Svc, Customer, ""))
	assert.Equal(t, ImplB, resolve(r2, Svc, Customer, ""))
	assert.Equal(t, ImplC, resolve(r3, Svc, Customer, ""))
	assert.Equal(t, 1, r1.Len())
	assert.Len(t, r1.Bindings(Svc), 1)
	assert.Len(t, r2.Bindings(Svc), 2)

	// Branching from the same snapshot must not leak bindings across branches.
	x := r2.MustRegister(Svc, ImplC)
	y := r2.MustRegister(Svc, ImplA, locator.AtPath("/y"))
	assert.Equal(t, ImplC, resolve(x, Svc, nil, "/y"))
	assert.Equal(t, ImplA, resolve(y, Svc, nil, "/y"))
	assert.Len(t, x.Bindings(Svc), 3)
	assert.Len(t, y.Bindings(Svc), 3)
}

func TestCache(t *testing.T) {
	r1 := locator.New().MustRegister(Svc, ImplA, locator.ForResource(Customer))

	assert.Nil(t, resolve(r1, Svc, Employee, ""))
	assert.Nil(t, resolve(r1, Svc, Employee, ""))
	assert.Equal(t, 1, locator.MemoLen(r1))

	r2 := r1.MustRegister(Svc, ImplB)
	assert.Zero(t, locator.MemoLen(r2))

	// A cached miss on the old snapshot must not shadow the new binding.
	assert.Equal(t, ImplB, resolve(r2, Svc, Employee, ""))
	assert.Nil(t, resolve(r1, Svc, Employee, ""))
}

func TestObserver(t *testing.T) {
	var outcomes []locator.Outcome
	obs := locator.ObserverFunc(func(_ locator.Query, o locator.Outcome) {
		outcomes = append(outcomes, o)
	})

	r := locator.New(locator.WithObserver(obs), locator.WithObserver(nil)).
		MustRegister(Svc, ImplA).
		MustRegister(Greeting, DefaultGreeting).
		MustRegister(Greeting, CustomerGreeting, locator.ForResource(Customer))

	resolve(r, Svc, nil, "")
	resolve(r, Svc, nil, "")
	resolve(r, Greeting, Customer, "")
	resolve(r, ImplA, nil, "")
	resolve(r, ImplA, nil, "")

	assert.Equal(t, []locator.Outcome{
		locator.OutcomeFast,
		locator.OutcomeCached,
		locator.OutcomeFallback,
		locator.OutcomeNotFound,
		locator.OutcomeCached,
	}, outcomes)
	assert.Equal(t, "not_found", locator.OutcomeNotFound.String())
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.WithWriter(&buf), log.WithLevel("debug"))

	locator.New(locator.WithLogger(logger), locator.WithLogger(nil)).
		MustRegister(Greeting, AdminGreeting, locator.AtPath("/admin"))

	out := buf.String()
	assert.Contains(t, out, "Binding registered")
	assert.Contains(t, out, "service=Greeting")
	assert.Contains(t, out, "implementation=AdminGreeting")
	assert.Contains(t, out, "location=/admin")
}

func TestExplain(t *testing.T) {
	r := locator.New().
		MustRegister(Greeting, DefaultGreeting).
		MustRegister(Greeting, CustomerGreeting, locator.ForResource(Customer)).
		MustRegister(Greeting, AdminGreeting, locator.AtPath("/admin"))

	cands := r.Explain(locator.Query{Service: Greeting, Resource: Employee, Location: at("/admin/users")})
	require.Len(t, cands, 3)

	assert.Equal(t, AdminGreeting, cands[0].Binding.Implementation())
	assert.True(t, cands[0].Winner)
	assert.Equal(t, 2, cands[0].Score.Location())

	assert.Equal(t, CustomerGreeting, cands[1].Binding.Implementation())
	assert.False(t, cands[1].Score.Qualified())
	assert.False(t, cands[1].Winner)

	assert.Equal(t, DefaultGreeting, cands[2].Binding.Implementation())
	assert.Equal(t, binding.Wildcard, cands[2].Score.Resource())
	assert.False(t, cands[2].Winner)

	assert.Empty(t, r.Explain(locator.Query{Service: Svc}))
	assert.Zero(t, locator.MemoLen(r))
}

func TestServices(t *testing.T) {
	r := locator.New().
		MustRegister(Svc, ImplA).
		MustRegister(Greeting, DefaultGreeting).
		MustRegister(Greeting, AdminGreeting, locator.AtPath("/admin"))

	var names []string
	for _, s := range r.Services() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Greeting", "Svc"}, names)
	assert.Empty(t, locator.New().Services())
}

func TestConcurrentResolve(t *testing.T) {
	r := locator.New().
		MustRegister(Greeting, DefaultGreeting).
		MustRegister(Greeting, CustomerGreeting, locator.ForResource(Customer)).
		MustRegister(Greeting, AdminGreeting, locator.AtPath("/admin"))

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := range 64 {
		wg.Go(func() {
			for j := range 200 {
				var got token.Token
				var want token.Token
				switch (i + j) % 3 {
				case 0:
					got, want = resolve(r, Greeting, Customer, "/admin/x"), CustomerGreeting
				case 1:
					got, want = resolve(r, Greeting, Employee, "/admin/x"), AdminGreeting
				default:
					got, want = resolve(r, Greeting, nil, "/public"), DefaultGreeting
				}
				if got != want {
					errs <- fmt.Sprintf("%v != %v", got, want)
					return
				}
			}
		})
	}
	wg.Wait()
	close(errs)

	var failures []string
	for e := range errs {
		failures = append(failures, e)
	}
	assert.Empty(t, failures, strings.Join(failures, "\n"))
	assert.Equal(t, 3, locator.MemoLen(r))
}
