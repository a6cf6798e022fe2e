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

// Package backoff computes the delays between repeated attempts of an
// operation, such as reloading a manifest that is still being written.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Default configuration values of New.
const (
	DefaultMinDelay     = 100 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultGrowthFactor = 2.0
	DefaultJitterAmount = 0.2
)

// Strategy yields successive delays. Implementations are not safe for
// concurrent use; each retry loop owns its Strategy.
type Strategy interface {
	// Next returns the delay before the next attempt.
	Next() time.Duration
	// Reset starts over after a successful attempt.
	Reset()
}

type constant time.Duration

// Constant returns a Strategy that always waits d.
func Constant(d time.Duration) Strategy { return constant(max(0, d)) }

func (c constant) Next() time.Duration { return time.Duration(c) }
func (constant) Reset()                {}

type exponential struct {
	min, max time.Duration
	factor   float64
	jitter   float64
	rand     func() float64
	n        int
}

func (e *exponential) Next() time.Duration {
	d := float64(e.min) * math.Pow(e.factor, float64(e.n))
	e.n++
	if d > float64(e.max) {
		d = float64(e.max)
	}
	// Jitter only shortens, so the configured maximum holds.
	d *= 1 - e.rand()*e.jitter
	return max(e.min, time.Duration(d))
}

func (e *exponential) Reset() { e.n = 0 }

type config struct {
	minDelay time.Duration
	maxDelay time.Duration
	factor   float64
	jitter   float64
	rand     func() float64
}

// Option configures New.
type Option func(*config)

// WithMinDelay sets the first delay.
func WithMinDelay(d time.Duration) Option {
	return func(c *config) { c.minDelay = max(0, d) }
}

// WithMaxDelay caps the delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) { c.maxDelay = max(0, d) }
}

// WithGrowthFactor sets the multiplier applied after each attempt.
// Factors at or below 1 yield a constant delay.
func WithGrowthFactor(f float64) Option {
	return func(c *config) { c.factor = f }
}

// WithJitterAmount sets the fraction, between 0 and 1, by which a delay may
// be randomly shortened.
func WithJitterAmount(p float64) Option {
	return func(c *config) { c.jitter = min(1, max(0, p)) }
}

// WithRand replaces the source of randomness, which must return values in
// [0, 1). A nil value is ignored.
func WithRand(fn func() float64) Option {
	return func(c *config) {
		if fn != nil {
			c.rand = fn
		}
	}
}

// New returns an exponential Strategy with jitter, or a constant one if the
// configuration cannot grow.
func New(opts ...Option) Strategy {
	c := config{
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		factor:   DefaultGrowthFactor,
		jitter:   DefaultJitterAmount,
		rand:     rand.Float64,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.minDelay >= c.maxDelay || c.factor <= 1 {
		return Constant(c.minDelay)
	}
	return &exponential{
		min:    c.minDelay,
		max:    c.maxDelay,
		factor: c.factor,
		jitter: c.jitter,
		rand:   c.rand,
	}
}
