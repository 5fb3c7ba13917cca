package app

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

func printJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// printToolTable writes one row per tool, grouped by peer
func printToolTable(w io.Writer, catalog *multiplexer.Catalog) error {
	headers := []string{"Peer", "Tool", "Description"}

	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)

	for _, entry := range catalog.Entries() {
		for _, tool := range entry.Tools {
			if err := table.Append([]string{entry.Namespace, tool.Name, firstLine(tool.Description)}); err != nil {
				return err
			}
		}
	}
	return table.Render()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
