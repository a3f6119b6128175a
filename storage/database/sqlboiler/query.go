// Package boiledrepos implements the domain repositories on PostgreSQL with sqlboiler's query builder.
package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/slopeside/core"
)

const pqUniqueViolation = "23505"

var dialect = drivers.Dialect{
	LQ: '"',
	RQ: '"',

	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

// newQuery builds a postgres query out of mods.
func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

func quote(name string) string { return `"` + name + `"` }

// selectFrom selects the given columns of table.
func selectFrom(table string, columns []string) []qm.QueryMod {
	qualified := make([]string, 0, len(columns))
	for _, col := range columns {
		qualified = append(qualified, quote(table)+"."+quote(col))
	}
	return []qm.QueryMod{qm.Select(qualified...), qm.From(quote(table))}
}

// tableMapping binds a table to its row struct the way generated models do.
// Columns are the struct's boil tags in field order; "id" comes first.
type tableMapping struct {
	table   string
	columns []string
	index   []uint64
}

func mapTable(table string, row interface{}) tableMapping {
	typ := reflect.TypeOf(row)
	columns := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		if col := strings.Split(typ.Field(i).Tag.Get("boil"), ",")[0]; col != "" && col != "-" {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 || columns[0] != "id" {
		panic(fmt.Sprintf("boiledrepos: %s rows must start with an id column", table))
	}
	index, err := queries.BindMapping(typ, queries.MakeStructMapping(typ), columns)
	if err != nil {
		panic(fmt.Sprintf("boiledrepos: mapping %s rows: %v", table, err))
	}
	return tableMapping{table: table, columns: columns, index: index}
}

// values returns the row's column values, in column order.
func (m tableMapping) values(row interface{}) []interface{} {
	return queries.ValuesFromMapping(reflect.Indirect(reflect.ValueOf(row)), m.index)
}

func (m tableMapping) selectAll() []qm.QueryMod {
	return selectFrom(m.table, m.columns)
}

func bind(ctx context.Context, exec core.DBExecutor, obj interface{}, mods ...qm.QueryMod) error {
	return newQuery(mods...).Bind(ctx, exec, obj)
}

func count(ctx context.Context, exec core.DBExecutor, mods ...qm.QueryMod) (int, error) {
	q := newQuery(mods...)
	queries.SetSelect(q, nil)
	queries.SetCount(q)

	var n int64
	if err := q.QueryRowContext(ctx, exec).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func exists(ctx context.Context, exec core.DBExecutor, mods ...qm.QueryMod) (bool, error) {
	q := newQuery(mods...)
	queries.SetSelect(q, nil)
	queries.SetCount(q)
	queries.SetLimit(q, 1)

	var n int64
	if err := q.QueryRowContext(ctx, exec).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// paginate returns the page mods; they must not be used for counting.
func paginate(page core.PageRequest) []qm.QueryMod {
	return []qm.QueryMod{qm.Limit(page.Limit()), qm.Offset(page.Offset())}
}

// orderBy keeps the orderings whose field is a known column, falling back to defaults.
func orderBy(table string, ordering []core.DBOrdering, columns map[string]string, defaults ...core.DBOrdering) qm.QueryMod {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: quote(table) + "." + quote(col), Ascending: ord.Ascending}.String())
		}
	}
	if len(clauses) == 0 {
		for _, ord := range defaults {
			clauses = append(clauses, core.DBOrdering{Field: quote(table) + "." + quote(ord.Field), Ascending: ord.Ascending}.String())
		}
	}
	clauses = append(clauses, quote(table)+`."id" ASC`) // stable pages
	return qm.OrderBy(strings.Join(clauses, ", "))
}

func placeholders(n, start int) string {
	phs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		phs = append(phs, fmt.Sprintf("$%d", start+i))
	}
	return strings.Join(phs, ", ")
}

func insert(ctx context.Context, exec core.DBExecutor, m tableMapping, row interface{}) error {
	quoted := make([]string, 0, len(m.columns))
	for _, col := range m.columns {
		quoted = append(quoted, quote(col))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(m.table), strings.Join(quoted, ", "), placeholders(len(m.columns), 1))
	_, err := queries.Raw(query, m.values(row)...).ExecContext(ctx, exec)
	return err
}

// condition is an extra WHERE clause of update; its ? placeholders bind args in order.
type condition struct {
	clause string
	args   []interface{}
}

func cond(clause string, args ...interface{}) condition {
	return condition{clause: clause, args: args}
}

// update writes every column but id of the row identified by id and returns the number of affected rows.
func update(ctx context.Context, exec core.DBExecutor, m tableMapping, id string, row interface{}, where ...condition) (int, error) {
	columns := m.columns[1:]
	sets := make([]string, 0, len(columns))
	for i, col := range columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", quote(col), i+1))
	}
	args := append(m.values(row)[1:], id)

	var query strings.Builder
	fmt.Fprintf(&query, `UPDATE %s SET %s WHERE "id" = $%d`, quote(m.table), strings.Join(sets, ", "), len(args))
	for _, c := range where {
		query.WriteString(" AND ")
		bound := 0
		for _, r := range c.clause {
			if r != '?' {
				query.WriteRune(r)
				continue
			}
			args = append(args, c.args[bound])
			bound++
			fmt.Fprintf(&query, "$%d", len(args))
		}
	}
	res, err := queries.Raw(query.String(), args...).ExecContext(ctx, exec)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

// missed tells a vanished row from one that no longer matched the conditions of a guarded update.
func missed(ctx context.Context, exec core.DBExecutor, table, id string, notFound, changed error) error {
	found, err := exists(ctx, exec, qm.From(quote(table)), qm.Where(`"id" = ?`, id))
	switch {
	case err != nil:
		return errors.Wrap(err, "checking row")
	case !found:
		return notFound
	}
	return changed
}

func execRaw(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	res, err := queries.Raw(query, args...).ExecContext(ctx, exec)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading affected rows")
	}
	return int(n), nil
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation reports whether err violates a unique constraint, one of constraints when given.
func isUniqueViolation(err error, constraints ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	return core.ContainsString(constraints, pqErr.Constraint)
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time.UTC()
	return &tt
}

func nullStringPtr(s *string) null.String {
	if s == nil || *s == "" {
		return null.String{}
	}
	return null.StringFrom(*s)
}

func stringPtr(s null.String) *string {
	if !s.Valid {
		return nil
	}
	str := s.String
	return &str
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
