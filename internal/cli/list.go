package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deep-rent/locus/locator"
)

type entry struct {
	Service        string `json:"service" yaml:"service"`
	Implementation string `json:"implementation" yaml:"implementation"`
	Resource       string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Location       string `json:"location,omitempty" yaml:"location,omitempty"`
}

type listing []entry

func (listing) header() []string {
	return []string{"SERVICE", "IMPLEMENTATION", "RESOURCE", "LOCATION"}
}

func (l listing) rows() [][]string {
	out := make([][]string, len(l))
	for i, e := range l {
		out[i] = []string{e.Service, e.Implementation, orDash(e.Resource), orDash(e.Location)}
	}
	return out
}

// list flattens r, services by name and bindings newest first.
func list(r *locator.Registry) listing {
	out := make(listing, 0, r.Len())
	for _, s := range r.Services() {
		for _, b := range r.Bindings(s) {
			e := entry{
				Service:        s.Name(),
				Implementation: b.Implementation().Name(),
				Location:       b.Location().String(),
			}
			if b.Resource() != nil {
				e.Resource = b.Resource().Name()
			}
			out = append(out, e)
		}
	}
	return out
}

func newListCommand(e *env) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all bindings, newest first within each service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, r, _, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, list(r))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json, yaml)")
	return cmd
}

func newCheckCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate manifests without resolving anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, r, _, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"ok: %d bindings for %d services (version %s)\n",
				r.Len(), len(r.Services()), m.Version,
			)
			return err
		},
	}
}
