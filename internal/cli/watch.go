package cli

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/deep-rent/locus/app"
	"github.com/deep-rent/locus/backoff"
	"github.com/deep-rent/locus/locator"
	"github.com/deep-rent/locus/log"
	"github.com/deep-rent/locus/manifest"
	"github.com/deep-rent/locus/metrics"
	"github.com/deep-rent/locus/token"
)

func newWatchCommand(e *env) *cobra.Command {
	var (
		q        query
		debounce time.Duration
		addr     string
		timeout  time.Duration
		retries  int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload manifests on change and report resolutions",
		Long: `Watch loads the manifests, then reloads them whenever one of them changes.
A manifest that fails to load leaves the previous bindings in effect.

With --service, the request given by --service, --resource and --location is
resolved after every reload. With --metrics-addr, resolution counters are
served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := e.manifests()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			col, err := metrics.NewCollector(reg)
			if err != nil {
				return err
			}

			store := locator.NewStore(nil)
			types := token.NewHierarchy()
			w := manifest.NewWatcher(store, types, paths,
				manifest.WithDebounce(debounce),
				manifest.WithRetry(retries, backoff.New()),
				manifest.WithLogger(e.log),
				manifest.WithRegistryOptions(
					locator.WithLogger(e.log),
					locator.WithObserver(col),
				),
				manifest.OnReload(func(r *locator.Registry) {
					if q.service != "" {
						report(e, &q, types, r)
					}
				}),
			)

			run := w.Run
			if addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				run = app.All(run, app.Serve(&http.Server{
					Addr:              addr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}))
			}
			return app.Run(run,
				app.WithContext(cmd.Context()),
				app.WithLogger(e.log),
				app.WithTimeout(timeout),
			)
		},
	}
	q.flags(cmd.Flags(), false)
	f := cmd.Flags()
	f.DurationVar(&debounce, "debounce", manifest.DefaultDebounce, "quiet period before a reload")
	f.IntVar(&retries, "retries", manifest.DefaultRetries, "retries after a failed reload")
	f.StringVar(&addr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.DurationVar(&timeout, "shutdown-timeout", app.DefaultTimeout, "grace period on shutdown")
	return cmd
}

// report logs how the watched request resolves against r.
func report(e *env, q *query, types *token.Hierarchy, r *locator.Registry) {
	lq, err := q.build(types)
	if err != nil {
		e.log.Warn("Invalid watch query", log.KeyError, err)
		return
	}
	impl, err := r.Lookup(lq)
	if err != nil {
		e.log.Warn("Unresolved", log.KeyService, q.service, log.KeyError, err)
		return
	}
	e.log.Info(
		"Resolved",
		log.KeyService, q.service,
		log.KeyResource, q.resource,
		log.KeyLocation, q.location,
		log.KeyImplementation, impl.Name(),
	)
}
