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

// Package log configures slog.Logger instances for locus components using
// the functional options pattern, and fixes the attribute keys they share.
//
// # Usage
//
// The following example creates a logger at debug level printing
// JSON-formatted records to the standard error stream:
//
//	logger := log.New(
//		log.WithLevel("debug"),
//		log.WithFormat("json"),
//		log.WithWriter(os.Stderr),
//	)
//
// # Conventions
//
// Stick to the following rules to keep log output consistent:
//
//   - Use the Key constants of this package for binding attributes.
//   - Format other attribute keys in lower camelCase.
//   - Capitalize the first letter of every log message.
//   - Do not end log messages with punctuation.
//   - Never log on the resolution path; it must stay allocation-free.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys shared by all components.
const (
	KeyService        = "service"
	KeyImplementation = "implementation"
	KeyResource       = "resource"
	KeyLocation       = "location"
	KeyManifest       = "manifest"
	KeyError          = "error"
)

// Default configuration values for a new logger.
const (
	DefaultLevel     = slog.LevelInfo
	DefaultAddSource = false
	DefaultFormat    = FormatText
)

// Format defines the log output format.
type Format uint8

const (
	FormatText Format = iota // Human-readable key=value pairs.
	FormatJSON               // One JSON object per record.
)

// String returns the lower-case name of the format.
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// New creates a slog.Logger. By default it logs at slog.LevelInfo in plain
// text to os.Stderr, without source information.
func New(opts ...Option) *slog.Logger {
	c := config{
		level:     DefaultLevel,
		addSource: DefaultAddSource,
		format:    DefaultFormat,
		writer:    os.Stderr,
	}
	for _, opt := range opts {
		opt(&c)
	}

	o := &slog.HandlerOptions{
		Level:     c.level,
		AddSource: c.addSource,
	}
	if c.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(c.writer, o))
	}
	return slog.New(slog.NewTextHandler(c.writer, o))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type config struct {
	level     slog.Level
	addSource bool
	format    Format
	writer    io.Writer
}

// Option modifies the logger configuration.
type Option func(*config)

// WithLevel sets the minimum level. It accepts a slog.Level or a string
// understood by ParseLevel; invalid values leave the level unchanged.
func WithLevel(v any) Option {
	return func(c *config) {
		switch t := v.(type) {
		case slog.Level:
			c.level = t
		case string:
			if level, err := ParseLevel(t); err == nil {
				c.level = level
			}
		}
	}
}

// WithFormat sets the output format. It accepts a Format or a string
// understood by ParseFormat; invalid values leave the format unchanged.
func WithFormat(v any) Option {
	return func(c *config) {
		switch t := v.(type) {
		case Format:
			c.format = t
		case string:
			if format, err := ParseFormat(t); err == nil {
				c.format = format
			}
		}
	}
}

// WithAddSource includes the source position in every record.
func WithAddSource(add bool) Option {
	return func(c *config) {
		c.addSource = add
	}
}

// WithWriter sets the output destination. A nil writer is ignored.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.writer = w
		}
	}
}

// ParseLevel converts a case-insensitive level name such as "debug" or
// "warn+2" into a slog.Level.
func ParseLevel(s string) (level slog.Level, err error) {
	if e := level.UnmarshalText([]byte(strings.TrimSpace(s))); e != nil {
		err = fmt.Errorf("invalid log level %q", s)
	}
	return
}

// ParseFormat converts "text" or "json" (any case) into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("invalid log format %q", s)
	}
}
