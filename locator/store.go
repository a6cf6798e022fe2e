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
	"sync/atomic"

	"github.com/deep-rent/locus/token"
)

// Store publishes the current snapshot to concurrent readers. Writers never
// mutate a published snapshot; they derive a new one and swap it in.
// The zero value is not usable; create instances with NewStore.
type Store struct {
	cur atomic.Pointer[Registry]
}

// NewStore creates a Store holding r, or an empty Registry if r is nil.
func NewStore(r *Registry) *Store {
	if r == nil {
		r = New()
	}
	s := &Store{}
	s.cur.Store(r)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Registry {
	return s.cur.Load()
}

// Swap publishes r and returns the previous snapshot. Nil is ignored.
func (s *Store) Swap(r *Registry) *Registry {
	if r == nil {
		return s.cur.Load()
	}
	return s.cur.Swap(r)
}

// Register adds a binding to the current snapshot. Concurrent writers are
// serialized optimistically: if another writer published first, the binding
// is applied again on top of the newer snapshot. The published snapshot is
// returned.
func (s *Store) Register(
	service token.Token,
	implementation token.Token,
	preds ...Predicate,
) (*Registry, error) {
	for {
		old := s.cur.Load()
		next, err := old.Register(service, implementation, preds...)
		if err != nil {
			return nil, err
		}
		if s.cur.CompareAndSwap(old, next) {
			return next, nil
		}
	}
}

// Resolve resolves q against the current snapshot.
func (s *Store) Resolve(q Query) (token.Token, bool) {
	return s.cur.Load().Resolve(q)
}
