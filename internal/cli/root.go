// Package cli implements the locus command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deep-rent/locus/location"
	"github.com/deep-rent/locus/locator"
	"github.com/deep-rent/locus/log"
	"github.com/deep-rent/locus/manifest"
	"github.com/deep-rent/locus/token"
)

// EnvPrefix prefixes the environment variables that override flags, e.g.
// LOCUS_MANIFEST or LOCUS_LOG_LEVEL.
const EnvPrefix = "LOCUS"

var errNoManifest = errors.New("no manifest given (use --manifest or LOCUS_MANIFEST)")

// env carries the configuration shared by all commands.
type env struct {
	v   *viper.Viper
	log *slog.Logger
}

// Execute runs the locus command with the process arguments.
func Execute(ctx context.Context, version string) error {
	return NewCommand(version).ExecuteContext(ctx)
}

// NewCommand builds the root command. Every call returns an independent
// command tree with its own configuration.
func NewCommand(version string) *cobra.Command {
	e := &env{v: viper.New(), log: log.Discard()}

	root := &cobra.Command{
		Use:   "locus",
		Short: "Resolve service implementations from binding manifests",
		Long: `Locus loads binding manifests and answers which implementation serves a
service for a given resource type and location.

Manifests are YAML or JSON documents listing type declarations and bindings.
Several manifests may be given; later bindings take precedence on ties.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringArrayP("manifest", "m", nil, "manifest file (repeatable or comma-separated)")
	f.String("config", "", "config file (YAML)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "text", "log format (text, json)")
	_ = e.v.BindPFlags(f)

	e.v.SetEnvPrefix(EnvPrefix)
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	root.AddCommand(
		newResolveCommand(e),
		newExplainCommand(e),
		newListCommand(e),
		newCheckCommand(e),
		newWatchCommand(e),
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	if path := e.v.GetString("config"); path != "" {
		e.v.SetConfigFile(path)
		if err := e.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	level, err := log.ParseLevel(e.v.GetString("log-level"))
	if err != nil {
		return err
	}
	format, err := log.ParseFormat(e.v.GetString("log-format"))
	if err != nil {
		return err
	}
	e.log = log.New(
		log.WithLevel(level),
		log.WithFormat(format),
		log.WithWriter(cmd.ErrOrStderr()),
	)
	return nil
}

// manifests returns the manifest paths. Each entry may hold several paths
// separated by commas, as LOCUS_MANIFEST does.
func (e *env) manifests() ([]string, error) {
	var paths []string
	for _, v := range e.v.GetStringSlice("manifest") {
		for p := range strings.SplitSeq(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
	}
	if len(paths) == 0 {
		return nil, errNoManifest
	}
	return paths, nil
}

// load reads all manifests and builds a registry from them.
func (e *env) load(ctx context.Context, opts ...locator.Option) (
	*manifest.Manifest,
	*locator.Registry,
	*token.Hierarchy,
	error,
) {
	paths, err := e.manifests()
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := manifest.LoadAll(ctx, paths...)
	if err != nil {
		return nil, nil, nil, err
	}
	h := token.NewHierarchy()
	r, err := m.Build(h, append([]locator.Option{locator.WithLogger(e.log)}, opts...)...)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, r, h, nil
}

// query holds the flags describing a resolution request.
type query struct {
	service  string
	resource string
	location string
}

func (q *query) flags(f *pflag.FlagSet, required bool) {
	usage := "service to resolve"
	if !required {
		usage += " after every reload"
	}
	f.StringVarP(&q.service, "service", "s", "", usage)
	f.StringVarP(&q.resource, "resource", "r", "", "resource type of the request")
	f.StringVarP(&q.location, "location", "l", "", "location of the request, e.g. /admin/users")
}

// build turns the flags into a locator query against the types in h. A
// service nobody declared gets a fresh token, which matches no binding.
func (q *query) build(h *token.Hierarchy) (locator.Query, error) {
	var out locator.Query
	if q.service == "" {
		return out, errors.New("--service is required")
	}
	if svc, ok := h.Lookup(q.service); ok {
		out.Service = svc
	} else {
		out.Service = token.New(q.service)
	}
	if q.resource != "" {
		res, ok := h.Lookup(q.resource)
		if !ok {
			return out, fmt.Errorf("%w %q", manifest.ErrUnknownType, q.resource)
		}
		out.Resource = res
	}
	if q.location != "" {
		loc, err := location.Parse(q.location)
		if err != nil {
			return out, err
		}
		out.Location = loc
	}
	return out, nil
}
