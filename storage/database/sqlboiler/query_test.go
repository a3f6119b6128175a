package boiledrepos

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
)

type sampleRow struct {
	ID      string      `boil:"id"`
	Name    string      `boil:"name"`
	Skipped string      `boil:"-"`
	Note    null.String `boil:"note"`
}

func Test_mapTable(t *testing.T) {
	m := mapTable("samples", sampleRow{})
	assert.Equal(t, []string{"id", "name", "note"}, m.columns)

	row := sampleRow{ID: "s1", Name: "Slope", Skipped: "x", Note: null.StringFrom("icy")}
	assert.Equal(t, []interface{}{"s1", "Slope", null.StringFrom("icy")}, m.values(row))
	assert.Equal(t, m.values(row), m.values(&row))

	assert.Equal(t, []string{
		"id", "name", "slug", "country", "region", "active", "created_at",
	}, resortMapping.columns)
}

func Test_mapTable_idFirst(t *testing.T) {
	type noID struct {
		Name string `boil:"name"`
	}
	assert.Panics(t, func() { mapTable("broken", noID{}) })
}

func Test_insertAndUpdate(t *testing.T) {
	m := mapTable("samples", sampleRow{})
	row := sampleRow{ID: "s1", Name: "Slope", Note: null.StringFrom("icy")}

	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO "samples" \("id", "name", "note"\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("s1", "Slope", "icy").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "samples" SET "name" = \$1, "note" = \$2 WHERE "id" = \$3 AND "deleted_at" IS NULL`).
		WithArgs("Slope", "icy", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "samples" SET "name" = \$1, "note" = \$2 WHERE "id" = \$3 AND "name" = \$4 AND "note" IN \(\$5, \$6\)$`).
		WithArgs("Slope", "icy", "s1", "Piste", "a", "b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, insert(ctx, db, m, row))
	n, err := update(ctx, db, m, row.ID, row, cond(`"deleted_at" IS NULL`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = update(ctx, db, m, row.ID, row, cond(`"name" = ?`, "Piste"), cond(`"note" IN (?, ?)`, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func Test_exists(t *testing.T) {
	for _, tt := range []struct {
		count int64
		want  bool
	}{{0, false}, {1, true}, {2, true}} {
		db, mock := newMock(t)
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "samples" LIMIT 1`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.count))

		found, err := exists(context.Background(), db, qm.From(quote("samples")))
		require.NoError(t, err)
		assert.Equal(t, tt.want, found, "count %d", tt.count)
	}
}
