package duckdb

import (
	"fmt"
	"strings"
)

// Builder constructs SELECT queries with a fluent API.
type Builder struct {
	table   string
	columns []string
	where   []whereClause
	groupBy []string
	orderBy []orderClause
	limit   int
	offset  int
}

type whereClause struct {
	expr string
	args []any
}

type orderClause struct {
	column string
	desc   bool
}

// NewQueryBuilder creates a new query builder for the specified table.
func NewQueryBuilder(table string) *Builder {
	return &Builder{table: table}
}

// Select specifies the columns to retrieve. Aggregates and aliases are
// passed through verbatim, e.g. Select("name", "SUM(size) AS total").
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds a WHERE condition. Multiple conditions are combined with AND.
func (b *Builder) Where(expr string, args ...any) *Builder {
	b.where = append(b.where, whereClause{expr: expr, args: args})
	return b
}

// Eq adds "column = ?". An empty string value skips the filter.
func (b *Builder) Eq(column string, value any) *Builder {
	if str, ok := value.(string); ok && str == "" {
		return b
	}
	return b.Where(column+" = ?", value)
}

// In adds "column IN (...)". An empty value list skips the filter.
func (b *Builder) In(column string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return b.Where(fmt.Sprintf("%s IN (%s)", column, placeholders), values...)
}

// Gte adds "column >= ?".
func (b *Builder) Gte(column string, value any) *Builder {
	return b.Where(column+" >= ?", value)
}

// Like adds a case-insensitive substring match. An empty pattern skips the
// filter.
func (b *Builder) Like(column, substr string) *Builder {
	if substr == "" {
		return b
	}
	return b.Where(column+" ILIKE ?", "%"+substr+"%")
}

// GroupBy adds GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBy = append(b.groupBy, columns...)
	return b
}

// OrderBy adds ORDER BY columns. A "-" prefix sorts descending:
//
//	OrderBy("name", "-size") // name ASC, size DESC
func (b *Builder) OrderBy(columns ...string) *Builder {
	for _, col := range columns {
		desc := strings.HasPrefix(col, "-")
		b.orderBy = append(b.orderBy, orderClause{
			column: strings.TrimPrefix(col, "-"),
			desc:   desc,
		})
	}
	return b
}

// Limit sets the maximum number of rows to return. Zero means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Build returns the query string and its positional arguments. Build does
// not modify the builder and may be called repeatedly.
func (b *Builder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}

	var (
		query strings.Builder
		args  []any
	)

	query.WriteString("SELECT ")
	if len(b.columns) == 0 {
		query.WriteString("*")
	} else {
		query.WriteString(strings.Join(b.columns, ", "))
	}
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	if len(b.where) > 0 {
		exprs := make([]string, len(b.where))
		for i, w := range b.where {
			exprs[i] = w.expr
			args = append(args, w.args...)
		}
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(exprs, " AND "))
	}

	if len(b.groupBy) > 0 {
		query.WriteString(" GROUP BY ")
		query.WriteString(strings.Join(b.groupBy, ", "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			parts[i] = o.column
			if o.desc {
				parts[i] += " DESC"
			}
		}
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset > 0 {
		query.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}

	return query.String(), args, nil
}
