package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/coral-mesh/codesize/internal/store"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// ParseOutputFormat validates a format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
}

// Formatter renders reports.
type Formatter interface {
	FormatTop(rep *TopReport) (string, error)
	FormatDiff(rep *DiffReport) (string, error)
	FormatSnapshots(snaps []*store.Snapshot) (string, error)
	FormatKinds(snap *store.Snapshot, kinds []*store.KindSummary) (string, error)
}

// NewFormatter creates an output formatter for the given format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// TextFormatter formats output as aligned, human-readable tables.
type TextFormatter struct{}

// FormatTop formats a top report.
// nolint: errcheck
func (f *TextFormatter) FormatTop(rep *TopReport) (string, error) {
	var buf strings.Builder
	if rep.Binary != "" {
		fmt.Fprintf(&buf, "Binary:   %s\n", rep.Binary)
	}
	if rep.Frontend != "" {
		fmt.Fprintf(&buf, "Frontend: %s\n", rep.Frontend)
	}
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}

	if len(rep.Rows) == 0 {
		buf.WriteString("No items found.\n")
		return buf.String(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SIZE\tSHARE\t \tNAME\t")
	for _, r := range rep.Rows {
		fmt.Fprintf(w, "%d\t%.2f%%\t \t%s\t\n", r.Size, r.Percent, r.Name)
	}
	if rep.RemainingCount > 0 {
		fmt.Fprintf(w, "%d\t%.2f%%\t \t... and %d more\t\n",
			rep.RemainingSize, percent(rep.RemainingSize, rep.TotalSize), rep.RemainingCount)
	}
	fmt.Fprintf(w, "%d\t%.2f%%\t \tTotal (%d items)\t\n", rep.TotalSize, 100.0, rep.ItemCount)
	w.Flush()

	return buf.String(), nil
}

// FormatDiff formats a diff report.
// nolint: errcheck
func (f *TextFormatter) FormatDiff(rep *DiffReport) (string, error) {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Old: %s (%d bytes)\n", rep.OldBinary, rep.OldTotal)
	fmt.Fprintf(&buf, "New: %s (%d bytes)\n\n", rep.NewBinary, rep.NewTotal)

	if len(rep.Rows) == 0 {
		buf.WriteString("No size changes.\n")
		return buf.String(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DELTA\tOLD\tNEW\t \tNAME\t")
	for _, r := range rep.Rows {
		fmt.Fprintf(w, "%+d\t%d\t%d\t \t%s\t\n", r.Delta, r.Old, r.New, r.Name)
	}
	if rep.RemainingCount > 0 {
		fmt.Fprintf(w, "%+d\t\t\t \t... and %d more\t\n", rep.RemainingDelta, rep.RemainingCount)
	}
	fmt.Fprintf(w, "%+d\t%d\t%d\t \tTotal\t\n", rep.Delta, rep.OldTotal, rep.NewTotal)
	w.Flush()

	return buf.String(), nil
}

// FormatSnapshots formats stored snapshots.
// nolint: errcheck
func (f *TextFormatter) FormatSnapshots(snaps []*store.Snapshot) (string, error) {
	if len(snaps) == 0 {
		return "No snapshots found.\n", nil
	}

	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tBUILD ID\tFRONTEND\tITEMS\tTOTAL SIZE\tCREATED\tPATH")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID,
			s.BuildID,
			s.Frontend,
			s.ItemCount,
			s.TotalSize,
			s.CreatedAt.Format(time.RFC3339),
			s.Path,
		)
	}
	w.Flush()
	return buf.String(), nil
}

// FormatKinds formats the per-kind totals of one snapshot.
// nolint: errcheck
func (f *TextFormatter) FormatKinds(snap *store.Snapshot, kinds []*store.KindSummary) (string, error) {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Snapshot: %s\n", snap.ID)
	fmt.Fprintf(&buf, "Binary:   %s\n", snap.Path)
	if snap.BuildID != "" {
		fmt.Fprintf(&buf, "Build ID: %s\n", snap.BuildID)
	}
	fmt.Fprintf(&buf, "Frontend: %s\n", snap.Frontend)
	fmt.Fprintf(&buf, "Created:  %s\n\n", snap.CreatedAt.Format(time.RFC3339))

	if len(kinds) == 0 {
		buf.WriteString("No items found.\n")
		return buf.String(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SIZE\tSHARE\tITEMS\t \tKIND\t")
	for _, k := range kinds {
		fmt.Fprintf(w, "%d\t%.2f%%\t%d\t \t%s\t\n",
			k.TotalSize, percent(k.TotalSize, snap.TotalSize), k.ItemCount, k.Kind)
	}
	fmt.Fprintf(w, "%d\t%.2f%%\t%d\t \tTotal\t\n", snap.TotalSize, 100.0, snap.ItemCount)
	w.Flush()

	return buf.String(), nil
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatTop(rep *TopReport) (string, error) {
	return marshalJSON(rep)
}

func (f *JSONFormatter) FormatDiff(rep *DiffReport) (string, error) {
	return marshalJSON(rep)
}

func (f *JSONFormatter) FormatSnapshots(snaps []*store.Snapshot) (string, error) {
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}
	return marshalJSON(snaps)
}

func (f *JSONFormatter) FormatKinds(snap *store.Snapshot, kinds []*store.KindSummary) (string, error) {
	if kinds == nil {
		kinds = []*store.KindSummary{}
	}
	return marshalJSON(struct {
		*store.Snapshot
		Kinds []*store.KindSummary `json:"kinds"`
	}{snap, kinds})
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// CSVFormatter formats output as CSV.
type CSVFormatter struct{}

func (f *CSVFormatter) FormatTop(rep *TopReport) (string, error) {
	records := [][]string{{"rank", "id", "name", "kind", "size", "percent"}}
	for _, r := range rep.Rows {
		records = append(records, []string{
			strconv.Itoa(r.Rank),
			r.ID,
			r.Name,
			r.Kind.String(),
			strconv.FormatUint(r.Size, 10),
			strconv.FormatFloat(r.Percent, 'f', 4, 64),
		})
	}
	return writeCSV(records)
}

func (f *CSVFormatter) FormatDiff(rep *DiffReport) (string, error) {
	records := [][]string{{"name", "old", "new", "delta"}}
	for _, r := range rep.Rows {
		records = append(records, []string{
			r.Name,
			strconv.FormatUint(r.Old, 10),
			strconv.FormatUint(r.New, 10),
			strconv.FormatInt(r.Delta, 10),
		})
	}
	return writeCSV(records)
}

func (f *CSVFormatter) FormatSnapshots(snaps []*store.Snapshot) (string, error) {
	records := [][]string{{"id", "build_id", "path", "format", "frontend", "item_count", "total_size", "created_at"}}
	for _, s := range snaps {
		records = append(records, []string{
			s.ID,
			s.BuildID,
			s.Path,
			s.Format,
			s.Frontend,
			strconv.Itoa(s.ItemCount),
			strconv.FormatUint(s.TotalSize, 10),
			s.CreatedAt.Format(time.RFC3339),
		})
	}
	return writeCSV(records)
}

func (f *CSVFormatter) FormatKinds(snap *store.Snapshot, kinds []*store.KindSummary) (string, error) {
	records := [][]string{{"snapshot_id", "kind", "item_count", "total_size", "percent"}}
	for _, k := range kinds {
		records = append(records, []string{
			snap.ID,
			k.Kind,
			strconv.Itoa(k.ItemCount),
			strconv.FormatUint(k.TotalSize, 10),
			strconv.FormatFloat(percent(k.TotalSize, snap.TotalSize), 'f', 4, 64),
		})
	}
	return writeCSV(records)
}

func writeCSV(records [][]string) (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.String(), nil
}
