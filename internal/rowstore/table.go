package rowstore

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync/atomic"
)

// Cond is one equality condition. Conditions passed together are ANDed in
// the order given.
type Cond struct {
	Column string
	Value  any
}

// Eq builds an equality condition.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Value: value}
}

// Rows is a lazy, single-use sequence of records. The query runs when
// iteration starts; ranging a second time yields ErrConsumed.
type Rows = iter.Seq2[Record, error]

// Table binds a schema to one SQLite table.
type Table struct {
	db     *DB
	name   string
	schema Schema
}

// NewTable validates the table name. It does not touch the database; call
// Init to create the table.
func NewTable(db *DB, name string, schema Schema) (*Table, error) {
	if !validIdent(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if len(schema.columns) == 0 {
		return nil, fmt.Errorf("table %s: empty schema", name)
	}
	return &Table{db: db, name: name, schema: schema}, nil
}

// Init creates the table if it does not exist yet.
func (t *Table) Init(ctx context.Context) error {
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", t.name, t.schema.ddl())
	if _, err := t.db.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("creating table %s: %w", t.name, err)
	}
	return nil
}

// Save inserts rec and returns the identity assigned by the store. The
// record's keys must be exactly the declared columns.
func (t *Table) Save(ctx context.Context, rec Record) (int64, error) {
	if err := t.checkShape(rec); err != nil {
		return 0, err
	}

	cols := make([]string, 0, rec.Len())
	marks := make([]string, 0, rec.Len())
	args := make([]any, 0, rec.Len())
	for _, f := range rec.fields {
		cols = append(cols, quote(f.Name))
		marks = append(marks, "?")
		args = append(args, f.Value)
	}

	q := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := t.db.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", t.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading identity from %s: %w", t.name, err)
	}
	return id, nil
}

// Edit replaces every declared column of the row identified by rec's
// identity. The identity itself is kept.
func (t *Table) Edit(ctx context.Context, rec Record) error {
	id, ok := rec.ID()
	if !ok {
		return ErrNoIdentity
	}

	var body Record
	for _, f := range rec.fields {
		if f.Name != IdentityColumn {
			body.Set(f.Name, f.Value)
		}
	}
	if err := t.checkShape(body); err != nil {
		return err
	}

	sets := make([]string, 0, body.Len())
	args := make([]any, 0, body.Len()+1)
	for _, f := range body.fields {
		sets = append(sets, quote(f.Name)+" = ?")
		args = append(args, f.Value)
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %q SET %s WHERE %s = ?", t.name, strings.Join(sets, ", "), quote(IdentityColumn))
	res, err := t.db.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("updating %s id %d: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s id %d: %w", t.name, id, ErrNotFound)
	}
	return nil
}

// Delete removes every row matching all conditions and returns how many
// rows went away.
func (t *Table) Delete(ctx context.Context, conds ...Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, ErrNoConditions
	}
	where, args, err := t.where(conds)
	if err != nil {
		return 0, err
	}
	res, err := t.db.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q%s", t.name, where), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", t.name, err)
	}
	return res.RowsAffected()
}

// Filter yields the rows matching all conditions in insertion order.
func (t *Table) Filter(ctx context.Context, conds ...Cond) Rows {
	return t.query(ctx, conds, 0)
}

// FetchAll yields every row in insertion order.
func (t *Table) FetchAll(ctx context.Context) Rows {
	return t.query(ctx, nil, 0)
}

// Get returns the first row matching all conditions, or ErrNotFound.
func (t *Table) Get(ctx context.Context, conds ...Cond) (Record, error) {
	for rec, err := range t.query(ctx, conds, 1) {
		return rec, err
	}
	return Record{}, ErrNotFound
}

// Collect drains rows into a slice, stopping at the first error.
func Collect(rows Rows) ([]Record, error) {
	var out []Record
	for rec, err := range rows {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *Table) query(ctx context.Context, conds []Cond, limit int) Rows {
	var used atomic.Bool
	return func(yield func(Record, error) bool) {
		if used.Swap(true) {
			yield(Record{}, ErrConsumed)
			return
		}

		where, args, err := t.where(conds)
		if err != nil {
			yield(Record{}, err)
			return
		}

		cols := make([]string, len(t.schema.columns))
		for i, c := range t.schema.columns {
			cols[i] = quote(c.Name)
		}
		q := fmt.Sprintf("SELECT %s FROM %q%s ORDER BY %s ASC",
			strings.Join(cols, ", "), t.name, where, quote(IdentityColumn))
		if limit > 0 {
			q += fmt.Sprintf(" LIMIT %d", limit)
		}

		rows, err := t.db.db.QueryContext(ctx, q, args...)
		if err != nil {
			yield(Record{}, fmt.Errorf("querying %s: %w", t.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			vals := make([]any, len(t.schema.columns))
			ptrs := make([]any, len(vals))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(Record{}, fmt.Errorf("scanning %s: %w", t.name, err))
				return
			}
			var rec Record
			for i, c := range t.schema.columns {
				rec.Set(c.Name, vals[i])
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("iterating %s: %w", t.name, err))
		}
	}
}

func (t *Table) where(conds []Cond) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, len(conds))
	args := make([]any, len(conds))
	for i, c := range conds {
		if !t.schema.Has(c.Column) {
			return "", nil, fmt.Errorf("%s.%s: %w", t.name, c.Column, ErrUnknownColumn)
		}
		parts[i] = quote(c.Column) + " = ?"
		args[i] = c.Value
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// checkShape enforces that rec carries exactly the declared columns with
// values of a compatible type.
func (t *Table) checkShape(rec Record) error {
	want := t.schema.Declared()
	got := rec.Keys()
	if len(got) != len(want) || !sameSet(got, want) {
		return fmt.Errorf("%w: table %s wants %v, got %v", ErrSchemaMismatch, t.name, want, got)
	}
	for _, f := range rec.fields {
		col, _ := t.schema.column(f.Name)
		if !checkValue(col.Type, f.Value) {
			return fmt.Errorf("%w: column %s.%s is %s, got %T", ErrSchemaMismatch, t.name, f.Name, col.Type, f.Value)
		}
	}
	return nil
}

func sameSet(a, b []string) bool {
	for _, k := range a {
		if !slices.Contains(b, k) {
			return false
		}
	}
	return true
}

func quote(ident string) string {
	return `"` + ident + `"`
}
