// Package report renders journal and backend listings as plain text.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/ecgscope/internal/model"
)

const timeFormat = "2006-01-02 15:04:05"

// EditSummary counts journaled edits.
type EditSummary struct {
	Total   int
	Changed int
	ByOp    map[model.EditOp]int
}

// Summarize counts edits per operation and how many changed the recording.
func Summarize(edits []model.Edit) EditSummary {
	sum := EditSummary{ByOp: map[model.EditOp]int{}}
	for _, e := range edits {
		sum.Total++
		sum.ByOp[e.Op]++
		if e.Changed {
			sum.Changed++
		}
	}
	return sum
}

// Files writes the backend recordings as a table.
func Files(w io.Writer, files []model.FileDescriptor) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(w, "No recordings available.")
		return err
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Label, f.Path})
	}
	return writeLines(w, FormatTable([]string{"Name", "Path"}, rows, nil))
}

// Metadata writes recording metadata as aligned key/value lines.
func Metadata(w io.Writer, md model.Metadata) error {
	rows := [][]string{
		{"File", md.Filename},
		{"Duration", model.FormatClock(md.Duration)},
		{"Sampling rate", strconv.Itoa(md.SamplingRate) + " Hz"},
		{"Peaks", strconv.Itoa(md.TotalPeaks)},
		{"Inverted", strconv.FormatBool(md.Inverted)},
		{"Position", model.FormatClock(md.Position)},
		{"Window", model.WindowLabel(md.WindowLength)},
	}
	return writeLines(w, FormatTable(nil, rows, nil))
}

// Edits writes journaled edits followed by a summary line.
func Edits(w io.Writer, edits []model.Edit) error {
	if len(edits) == 0 {
		_, err := fmt.Fprintln(w, "No edits recorded.")
		return err
	}
	rows := make([][]string, 0, len(edits))
	for _, e := range edits {
		annotation := "-"
		if e.Annotation != nil {
			annotation = e.Annotation.String()
		}
		changed := "no"
		if e.Changed {
			changed = "yes"
		}
		rows = append(rows, []string{
			e.At.Local().Format(timeFormat),
			e.File,
			string(e.Op),
			fmt.Sprintf("%.3f", e.TimePosition),
			annotation,
			changed,
		})
	}
	headers := []string{"When", "File", "Op", "Time (s)", "Class", "Changed"}
	if err := writeLines(w, FormatTable(headers, rows, map[int]bool{3: true})); err != nil {
		return err
	}
	sum := Summarize(edits)
	_, err := fmt.Fprintf(w, "\n%d edits (%d changed): %d classify, %d insert, %d remove\n",
		sum.Total, sum.Changed, sum.ByOp[model.EditClassify], sum.ByOp[model.EditInsert], sum.ByOp[model.EditRemove])
	return err
}

// RecentFiles writes recently opened recordings, newest first.
func RecentFiles(w io.Writer, files []model.OpenedFile) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(w, "No recordings opened yet.")
		return err
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.OpenedAt.Local().Format(timeFormat), f.Filename, f.Path})
	}
	return writeLines(w, FormatTable([]string{"Opened", "Name", "Path"}, rows, nil))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
