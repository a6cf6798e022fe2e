package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deep-rent/locus/locator"
)

func newResolveCommand(e *env) *cobra.Command {
	var q query
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the implementation that serves a request",
		Example: `  locus resolve -m app.yaml -s Greeting
  locus resolve -m app.yaml -s Greeting -r Customer -l /admin/users`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, r, h, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			lq, err := q.build(h)
			if err != nil {
				return err
			}
			impl, err := r.Lookup(lq)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), impl.Name())
			return err
		},
	}
	q.flags(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

// candidate is the printable form of a locator.Candidate.
type candidate struct {
	Rank           int    `json:"rank" yaml:"rank"`
	Implementation string `json:"implementation" yaml:"implementation"`
	Resource       string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Location       string `json:"location,omitempty" yaml:"location,omitempty"`
	Score          string `json:"score" yaml:"score"`
	Value          int    `json:"value" yaml:"value"`
	Winner         bool   `json:"winner" yaml:"winner"`
}

type explanation []candidate

func (explanation) header() []string {
	return []string{"#", "IMPLEMENTATION", "RESOURCE", "LOCATION", "SCORE", "WINNER"}
}

func (x explanation) rows() [][]string {
	out := make([][]string, len(x))
	for i, c := range x {
		winner := ""
		if c.Winner {
			winner = "*"
		}
		out[i] = []string{
			strconv.Itoa(c.Rank),
			c.Implementation,
			orDash(c.Resource),
			orDash(c.Location),
			c.Score,
			winner,
		}
	}
	return out
}

func explain(cs []locator.Candidate) explanation {
	out := make(explanation, len(cs))
	for i, c := range cs {
		b := c.Binding
		out[i] = candidate{
			Rank:           i + 1,
			Implementation: b.Implementation().Name(),
			Location:       b.Location().String(),
			Score:          c.Score.String(),
			Value:          c.Score.Value(),
			Winner:         c.Winner,
		}
		if b.Resource() != nil {
			out[i].Resource = b.Resource().Name()
		}
	}
	return out
}

func newExplainCommand(e *env) *cobra.Command {
	var (
		q      query
		output string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how every binding of a service scores for a request",
		Long: `Explain lists the bindings of a service newest first, each with its score
for the request. The binding marked with * is the one resolve returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, r, h, err := e.load(cmd.Context())
			if err != nil {
				return err
			}
			lq, err := q.build(h)
			if err != nil {
				return err
			}
			cs := r.Explain(lq)
			if err := render(cmd.OutOrStdout(), output, explain(cs)); err != nil {
				return err
			}
			for _, c := range cs {
				if c.Winner {
					return nil
				}
			}
			return &locator.NotFoundError{Query: lq}
		},
	}
	q.flags(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("service")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json, yaml)")
	return cmd
}
