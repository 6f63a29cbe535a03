package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coral-mesh/codesize/internal/retry"
)

// ErrNoPrimaryKey is returned by operations that address rows by key on a
// table type without `pk` columns.
var ErrNoPrimaryKey = errors.New("no primary key defined for table")

// conflictRetry retries statements that lost a write-write race.
var conflictRetry = retry.Config{
	MaxRetries:     10,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Jitter:         0.1,
}

// Execer is an interface that matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table maps struct type T onto a database table.
type Table[T any] struct {
	db        Execer
	tableName string
	columns   []string
	pkColumns []string
	immutable map[string]bool
	fieldMap  map[string]int
}

// NewTable creates a new Table[T]. T must be a struct with `duckdb` tags of
// the form "column[,pk][,immutable]".
func NewTable[T any](db Execer, tableName string) *Table[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		panic("Table generic type T must be a struct")
	}

	tbl := &Table[T]{
		db:        db,
		tableName: tableName,
		immutable: make(map[string]bool),
		fieldMap:  make(map[string]int),
	}

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}

		parts := strings.Split(tag, ",")
		col := strings.TrimSpace(parts[0])
		tbl.columns = append(tbl.columns, col)
		tbl.fieldMap[col] = i

		for _, p := range parts[1:] {
			switch strings.TrimSpace(p) {
			case "pk":
				tbl.pkColumns = append(tbl.pkColumns, col)
			case "immutable":
				tbl.immutable[col] = true
			}
		}
	}
	return tbl
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.tableName
}

// WithExecer returns a copy of the table bound to db, typically a *sql.Tx.
func (t *Table[T]) WithExecer(db Execer) *Table[T] {
	c := *t
	c.db = db
	return &c
}

func (t *Table[T]) isPK(col string) bool {
	for _, pk := range t.pkColumns {
		if pk == col {
			return true
		}
	}
	return false
}

// upsertQuery builds INSERT with an ON CONFLICT clause over the primary key.
// Tables without a primary key get a plain INSERT.
func (t *Table[T]) upsertQuery() string {
	placeholders := make([]string, len(t.columns))
	updates := make([]string, 0, len(t.columns))
	for i, col := range t.columns {
		placeholders[i] = "?"
		if !t.isPK(col) && !t.immutable[col] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	// #nosec G201 - table and column names come from struct tags
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.tableName,
		strings.Join(t.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if len(t.pkColumns) > 0 {
		action := "DO NOTHING"
		if len(updates) > 0 {
			action = "DO UPDATE SET " + strings.Join(updates, ", ")
		}
		query += fmt.Sprintf(" ON CONFLICT (%s) %s", strings.Join(t.pkColumns, ", "), action)
	}
	return query
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	values := make([]any, len(t.columns))
	for i, col := range t.columns {
		values[i] = val.Field(t.fieldMap[col]).Interface()
	}
	return values
}

// Upsert inserts item or updates the row with the same primary key.
func (t *Table[T]) Upsert(ctx context.Context, item *T) error {
	query := t.upsertQuery()
	values := t.values(item)
	return retry.Do(ctx, conflictRetry, func() error {
		_, err := t.db.ExecContext(ctx, query, values...)
		return err
	}, isTransactionConflict)
}

// BatchUpsert upserts items through one prepared statement. When the table
// is bound to a *sql.DB the batch runs in its own transaction; when bound
// to a *sql.Tx the caller owns commit and rollback.
func (t *Table[T]) BatchUpsert(ctx context.Context, items []*T) (err error) {
	if len(items) == 0 {
		return nil
	}

	var tx *sql.Tx
	switch d := t.db.(type) {
	case *sql.Tx:
		tx = d
	case *sql.DB:
		tx, err = d.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
	default:
		return fmt.Errorf("unsupported Execer type for BatchUpsert: %T", t.db)
	}

	stmt, err := tx.PrepareContext(ctx, t.upsertQuery())
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err = stmt.ExecContext(ctx, t.values(item)...); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}

	if _, owned := t.db.(*sql.DB); owned {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// keyClause returns "a = ? AND b = ?" over the primary key columns.
func (t *Table[T]) keyClause(keys []any) (string, error) {
	if len(t.pkColumns) == 0 {
		return "", ErrNoPrimaryKey
	}
	if len(keys) != len(t.pkColumns) {
		return "", fmt.Errorf("table %s has %d key columns, got %d values",
			t.tableName, len(t.pkColumns), len(keys))
	}
	clauses := make([]string, len(t.pkColumns))
	for i, pk := range t.pkColumns {
		clauses[i] = pk + " = ?"
	}
	return strings.Join(clauses, " AND "), nil
}

// Get retrieves one row by its primary key values, in key column order.
// A missing row returns sql.ErrNoRows.
func (t *Table[T]) Get(ctx context.Context, keys ...any) (*T, error) {
	where, err := t.keyClause(keys)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(t.columns, ", "), t.tableName, where)

	var item T
	if err := t.db.QueryRowContext(ctx, query, keys...).Scan(t.dest(&item)...); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes the row with the given primary key values and reports
// how many rows were removed.
func (t *Table[T]) Delete(ctx context.Context, keys ...any) (int64, error) {
	where, err := t.keyClause(keys)
	if err != nil {
		return 0, err
	}
	// #nosec G201 - table and column names come from struct tags
	res, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", t.tableName, where), keys...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Select starts a query builder over every mapped column of the table.
func (t *Table[T]) Select() *Builder {
	return NewQueryBuilder(t.tableName).Select(t.columns...)
}

// Query runs a query built by Select and scans every row into T.
func (t *Table[T]) Query(ctx context.Context, b *Builder) ([]*T, error) {
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*T
	for rows.Next() {
		var item T
		if err := rows.Scan(t.dest(&item)...); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// List retrieves every row whose columns equal the given filters.
func (t *Table[T]) List(ctx context.Context, filters map[string]any) ([]*T, error) {
	b := t.Select()
	for col, val := range filters {
		b.Where(col+" = ?", val)
	}
	b.OrderBy(t.pkColumns...)
	return t.Query(ctx, b)
}

func (t *Table[T]) dest(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	dest := make([]any, len(t.columns))
	for i, col := range t.columns {
		dest[i] = val.Field(t.fieldMap[col]).Addr().Interface()
	}
	return dest
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
