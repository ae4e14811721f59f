// Package pgxtest provides a scripted pgx.Tx double for exercising
// transactional repo logic without a live server. Each Step scripts one
// statement in order: the executed SQL must contain the step's fragment and
// the scripted rows (or error) are returned. Executed SQL and arguments are
// recorded for assertions.
package pgxtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Step struct {
	Contains string  // fragment the SQL must contain
	Rows     [][]any // scan values per row; empty means no rows
	Err      error
	Tag      string // command tag for Exec, defaults to "UPDATE 1"
}

type Tx struct {
	t     testing.TB
	steps []Step
	n     int

	SQL  []string
	Args [][]any
}

var _ pgx.Tx = (*Tx)(nil)

func New(t testing.TB, steps ...Step) *Tx {
	return &Tx{t: t, steps: steps}
}

// Done asserts the script was fully consumed.
func (f *Tx) Done() {
	f.t.Helper()
	if f.n != len(f.steps) {
		f.t.Fatalf("consumed %d of %d scripted statements", f.n, len(f.steps))
	}
}

func (f *Tx) next(sql string, args []any) Step {
	f.t.Helper()
	f.SQL = append(f.SQL, sql)
	f.Args = append(f.Args, args)
	if f.n >= len(f.steps) {
		f.t.Fatalf("unscripted statement %d: %s", f.n+1, sql)
	}
	st := f.steps[f.n]
	f.n++
	if st.Contains != "" && !strings.Contains(sql, st.Contains) {
		f.t.Fatalf("statement %d = %q, want fragment %q", f.n, sql, st.Contains)
	}
	return st
}

func (f *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	st := f.next(sql, args)
	tag := st.Tag
	if tag == "" {
		tag = "UPDATE 1"
	}
	return pgconn.NewCommandTag(tag), st.Err
}

func (f *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	st := f.next(sql, args)
	if st.Err != nil {
		return row{err: st.Err}
	}
	if len(st.Rows) == 0 {
		return row{err: pgx.ErrNoRows}
	}
	return row{vals: st.Rows[0]}
}

func (f *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	st := f.next(sql, args)
	if st.Err != nil {
		return nil, st.Err
	}
	return &rows{data: st.Rows}, nil
}

func (f *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return f, nil }
func (f *Tx) Commit(ctx context.Context) error          { return nil }
func (f *Tx) Rollback(ctx context.Context) error        { return nil }
func (f *Tx) Conn() *pgx.Conn                           { return nil }
func (f *Tx) LargeObjects() pgx.LargeObjects            { return pgx.LargeObjects{} }

func (f *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (f *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.t.Fatalf("SendBatch is not scripted")
	return nil
}

func (f *Tx) CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	return 0, fmt.Errorf("CopyFrom is not scripted")
}

type row struct {
	vals []any
	err  error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

type rows struct {
	data [][]any
	i    int
	err  error
}

func (r *rows) Close()                                       {}
func (r *rows) Err() error                                   { return r.err }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	r.i++
	return r.i <= len(r.data)
}

func (r *rows) Scan(dest ...any) error {
	return assign(dest, r.data[r.i-1])
}

func (r *rows) Values() ([]any, error) {
	return r.data[r.i-1], nil
}

func assign(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan targets %d values, script has %d", len(dest), len(vals))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(vals[i])
		if !sv.Type().AssignableTo(dv.Type()) {
			if !sv.Type().ConvertibleTo(dv.Type()) {
				return fmt.Errorf("cannot scan %T into %T", vals[i], d)
			}
			sv = sv.Convert(dv.Type())
		}
		dv.Set(sv)
	}
	return nil
}
