package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteIndexList outputs the project index, dispatching based on the
// output format configured.
func WriteIndexList(repos []schema.RepositoryDescriptor, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, repos)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIndexCSV(w, repos)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIndexTable(w, repos, cfg)
		}, "Wrote table")
	}
}

// writeIndexTable renders the human-readable project listing.
func writeIndexTable(w io.Writer, repos []schema.RepositoryDescriptor, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Path", "Branch", "Platforms", "Pins", "Sequences", "Actions", "URL"})
	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignLeft
	})

	// Reserve space for the fixed columns so the URL gets the remainder.
	urlWidth := getTerminalWidth(cfg) - 60
	if urlWidth < 20 {
		urlWidth = 20
	}

	var data [][]string
	for _, r := range repos {
		data = append(data, []string{
			r.Path,
			r.Branch,
			strings.Join(r.Platforms, ","),
			strconv.Itoa(len(r.Compatibility)),
			strconv.Itoa(len(r.Incremental)),
			strconv.Itoa(len(r.Actions)),
			truncateMiddle(r.URL, urlWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeIndexCSV writes one row per indexed repository.
func writeIndexCSV(w io.Writer, repos []schema.RepositoryDescriptor) error {
	header := []string{"path", "branch", "platforms", "pins", "sequences", "actions", "url"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range repos {
			row := []string{
				r.Path,
				r.Branch,
				strings.Join(r.Platforms, ","),
				strconv.Itoa(len(r.Compatibility)),
				strconv.Itoa(len(r.Incremental)),
				strconv.Itoa(len(r.Actions)),
				r.URL,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}
