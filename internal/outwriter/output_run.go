package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/schema"
)

// WriteRunResults outputs a verification run's results, dispatching based
// on the output format configured.
func WriteRunResults(list *schema.ResultList, repoCount int, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunJSON(w, list, repoCount, duration)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunCSV(w, list)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunText(w, list, repoCount, duration)
		}, "Wrote summary")
	}
}

// writeRunText renders the itemized summary report plus timing.
func writeRunText(w io.Writer, list *schema.ResultList, repoCount int, duration time.Duration) error {
	if _, err := fmt.Fprintln(w, list.Summary(repoCount)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Elapsed: %s\n", duration.Round(time.Second))
	return err
}

// writeRunJSON marshals the run outcome with per-kind buckets.
func writeRunJSON(w io.Writer, list *schema.ResultList, repoCount int, duration time.Duration) error {
	texts := func(results []schema.Result) []string {
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = r.Text
		}
		return out
	}
	payload := struct {
		Result         string   `json:"result"`
		Passed         int      `json:"passed"`
		Failed         int      `json:"failed"`
		XFailed        int      `json:"xfailed"`
		UPassed        int      `json:"upassed"`
		Total          int      `json:"total"`
		Repositories   int      `json:"repositories"`
		ElapsedSeconds float64  `json:"elapsed_seconds"`
		Failures       []string `json:"failures"`
		XFailures      []string `json:"xfailures"`
		UPasses        []string `json:"upasses"`
	}{
		Result:         list.Kind().String(),
		Passed:         len(list.Passes()),
		Failed:         len(list.Fails()),
		XFailed:        len(list.XFails()),
		UPassed:        len(list.UPasses()),
		Total:          list.Len(),
		Repositories:   repoCount,
		ElapsedSeconds: duration.Seconds(),
		Failures:       texts(list.Fails()),
		XFailures:      texts(list.XFails()),
		UPasses:        texts(list.UPasses()),
	}
	return writeJSON(w, payload)
}

// writeRunCSV writes one row per classified result.
func writeRunCSV(w io.Writer, list *schema.ResultList) error {
	header := []string{"kind", "text"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range list.All() {
			if err := cw.Write([]string{r.Kind.String(), r.Text}); err != nil {
				return err
			}
		}
		return nil
	})
}
