// Package report turns analyzed items into tables: the largest items of one
// binary, or the per-name size changes between two binaries.
package report

import (
	"sort"

	"github.com/coral-mesh/codesize/internal/safe"
	"github.com/coral-mesh/codesize/pkg/ir"
)

// TopRow is one line of a top report.
type TopRow struct {
	Rank    int     `json:"rank"`
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    ir.Kind `json:"kind"`
	Size    uint64  `json:"size"`
	Percent float64 `json:"percent"`
}

// TopReport lists the largest items of a binary.
type TopReport struct {
	Binary    string   `json:"binary"`
	Frontend  string   `json:"frontend"`
	TotalSize uint64   `json:"total_size"`
	ItemCount int      `json:"item_count"`
	Rows      []TopRow `json:"rows"`
	// Remaining aggregates the items cut off by the limit.
	RemainingCount int    `json:"remaining_count"`
	RemainingSize  uint64 `json:"remaining_size"`
}

// Top returns the limit largest items. A limit of zero or less keeps all.
func Top(items *ir.Items, limit int) *TopReport {
	sorted := items.BySize()
	total := items.TotalSize()

	rep := &TopReport{TotalSize: total, ItemCount: len(sorted)}
	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}

	for i, it := range sorted[:limit] {
		rep.Rows = append(rep.Rows, TopRow{
			Rank:    i + 1,
			ID:      it.ID.String(),
			Name:    it.Name,
			Kind:    it.Kind,
			Size:    it.Size,
			Percent: percent(it.Size, total),
		})
	}
	for _, it := range sorted[limit:] {
		rep.RemainingCount++
		rep.RemainingSize += it.Size
	}
	return rep
}

// DiffRow is the size change of every item sharing one name.
type DiffRow struct {
	Name  string `json:"name"`
	Old   uint64 `json:"old"`
	New   uint64 `json:"new"`
	Delta int64  `json:"delta"`
}

// DiffReport compares two binaries by item name.
type DiffReport struct {
	OldBinary string    `json:"old_binary"`
	NewBinary string    `json:"new_binary"`
	OldTotal  uint64    `json:"old_total"`
	NewTotal  uint64    `json:"new_total"`
	Delta     int64     `json:"delta"`
	Rows      []DiffRow `json:"rows"`
	// Remaining aggregates the changed names cut off by the limit.
	RemainingCount int   `json:"remaining_count"`
	RemainingDelta int64 `json:"remaining_delta"`
}

// Diff matches items by name, summing the sizes of items that share a name,
// and reports every name whose size changed, largest change first. A limit
// of zero or less keeps all rows.
func Diff(oldItems, newItems *ir.Items, limit int) *DiffReport {
	byName := make(map[string]*DiffRow)
	row := func(name string) *DiffRow {
		r, ok := byName[name]
		if !ok {
			r = &DiffRow{Name: name}
			byName[name] = r
		}
		return r
	}
	for _, it := range oldItems.All() {
		row(it.Name).Old += it.Size
	}
	for _, it := range newItems.All() {
		row(it.Name).New += it.Size
	}

	rows := make([]DiffRow, 0, len(byName))
	for _, r := range byName {
		r.Delta = signedDelta(r.Old, r.New)
		if r.Delta != 0 {
			rows = append(rows, *r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		ai, aj := abs(rows[i].Delta), abs(rows[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return rows[i].Name < rows[j].Name
	})

	rep := &DiffReport{
		OldTotal: oldItems.TotalSize(),
		NewTotal: newItems.TotalSize(),
		Delta:    signedDelta(oldItems.TotalSize(), newItems.TotalSize()),
	}
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	rep.Rows = rows[:limit]
	for _, r := range rows[limit:] {
		rep.RemainingCount++
		rep.RemainingDelta += r.Delta
	}
	return rep
}

func percent(size, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(size) / float64(total) * 100
}

func signedDelta(oldSize, newSize uint64) int64 {
	if newSize >= oldSize {
		return clampInt64(newSize - oldSize)
	}
	return -clampInt64(oldSize - newSize)
}

func clampInt64(v uint64) int64 {
	n, _ := safe.Uint64ToInt64(v)
	return n
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
