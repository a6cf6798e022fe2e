package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/deep-rent/locus/codec"
)

// tabular is implemented by views that can be printed as a table.
type tabular interface {
	header() []string
	rows() [][]string
}

// render writes v in the requested format: "table" (default), "json" or
// "yaml".
func render(w io.Writer, format string, v tabular) error {
	var c codec.Codec
	switch format {
	case "", "table":
		return table(w, v)
	case "json":
		c = codec.JSON
	case "yaml":
		c = codec.YAML
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	data, err := c.Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

func table(w io.Writer, v tabular) error {
	t := tablewriter.NewWriter(w)
	t.Options(tablewriter.WithRendition(tw.Rendition{
		Borders: tw.BorderNone,
		Symbols: tw.NewSymbols(tw.StyleDefault),
		Settings: tw.Settings{
			Separators: tw.Separators{BetweenColumns: tw.Off, BetweenRows: tw.Off},
			Lines:      tw.Lines{ShowHeaderLine: tw.Off},
		},
	}))
	t.Header(v.header())
	if err := t.Bulk(v.rows()); err != nil {
		return err
	}
	return t.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
