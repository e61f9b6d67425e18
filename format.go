package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	syncpkg "github.com/tonimelisma/photosync-go/internal/sync"
)

// maxExampleFilenames caps how many failing filenames a summary names before
// falling back to a count.
const maxExampleFilenames = 3

// progressPrinter renders transfer progress. On a TTY it redraws a single
// carriage-return line; otherwise it stays silent and leaves reporting to
// the structured logs.
type progressPrinter struct {
	out     io.Writer
	label   string
	enabled bool
	drawn   bool
}

// newProgressPrinter creates a printer for the given verb ("Uploading", ...).
// Disabled under --quiet, --json, or when stderr is not a terminal.
func newProgressPrinter(label string) *progressPrinter {
	enabled := !flagQuiet && !flagJSON && isatty.IsTerminal(os.Stderr.Fd())

	return &progressPrinter{out: os.Stderr, label: label, enabled: enabled}
}

// update implements syncpkg.ProgressFunc. The orchestrator resets to 0 at
// start and end; the end reset finishes the progress line.
func (p *progressPrinter) update(completed, total int) {
	if !p.enabled || total == 0 {
		return
	}

	if completed == 0 {
		if p.drawn {
			fmt.Fprint(p.out, "\n")
			p.drawn = false
		}

		return
	}

	percent := completed * 100 / total
	fmt.Fprintf(p.out, "\r%s: %d/%d (%d%%)", p.label, completed, total, percent)
	p.drawn = true
}

// summarizeReport renders the human-readable outcome of a run.
func summarizeReport(report *syncpkg.Report) string {
	var b strings.Builder

	if report.Uploaded > 0 {
		fmt.Fprintf(&b, "Uploaded: %d\n", report.Uploaded)
	}

	if report.Downloaded > 0 {
		fmt.Fprintf(&b, "Downloaded: %d\n", report.Downloaded)
	}

	if report.Duplicates > 0 {
		fmt.Fprintf(&b, "Skipped as duplicate on server: %d\n", report.Duplicates)
	}

	if report.Deleted > 0 {
		fmt.Fprintf(&b, "Deleted local duplicates: %d\n", report.Deleted)
	}

	if report.DeleteSkippedNoURI > 0 {
		fmt.Fprintf(&b, "Skipped (no file locator): %d\n", report.DeleteSkippedNoURI)
	}

	if report.DeleteErr != nil {
		fmt.Fprintf(&b, "Deletion batch failed: %v\n", report.DeleteErr)
	}

	if n := report.Failed(); n > 0 {
		fmt.Fprintf(&b, "Failed: %d (%s)\n", n, exampleFilenames(report.Failures))
	}

	if b.Len() == 0 {
		return "Nothing to do.\n"
	}

	return b.String()
}

// exampleFilenames lists up to maxExampleFilenames failing files.
func exampleFilenames(failures []syncpkg.ItemFailure) string {
	names := make([]string, 0, maxExampleFilenames)

	for _, f := range failures {
		if len(names) == maxExampleFilenames {
			names = append(names, "...")
			break
		}

		names = append(names, f.Filename)
	}

	return strings.Join(names, ", ")
}

// reportJSON is the machine-readable run outcome for --json.
type reportJSON struct {
	Uploaded           int      `json:"uploaded"`
	Downloaded         int      `json:"downloaded"`
	Duplicates         int      `json:"duplicates"`
	Deleted            int      `json:"deleted"`
	DeleteSkippedNoURI int      `json:"delete_skipped_no_uri"`
	DeleteError        string   `json:"delete_error,omitempty"`
	Failed             []string `json:"failed,omitempty"`
}

// printReport writes the run outcome in the selected output format.
func printReport(w io.Writer, report *syncpkg.Report) error {
	if !flagJSON {
		fmt.Fprint(w, summarizeReport(report))
		return nil
	}

	out := reportJSON{
		Uploaded:           report.Uploaded,
		Downloaded:         report.Downloaded,
		Duplicates:         report.Duplicates,
		Deleted:            report.Deleted,
		DeleteSkippedNoURI: report.DeleteSkippedNoURI,
	}

	if report.DeleteErr != nil {
		out.DeleteError = report.DeleteErr.Error()
	}

	for _, f := range report.Failures {
		out.Failed = append(out.Failed, f.Filename)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// printJSONValue writes any value as indented JSON, for --json output of
// non-report data (plans, status).
func printJSONValue(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// printError renders a top-level command failure.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

// runFailure converts a completed-but-imperfect report into a command error
// so the exit code reflects partial failure.
func runFailure(report *syncpkg.Report) error {
	if report.DeleteErr != nil {
		return report.DeleteErr
	}

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d item(s) failed: %s", n, exampleFilenames(report.Failures))
	}

	return nil
}

// errAborted signals a user-declined confirmation. Not a failure worth a
// stack of context, just a clean stop.
var errAborted = errors.New("aborted")
