package boiledrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var testTime = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

func userRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows(userMapping.columns)
	for _, id := range ids {
		rows.AddRow(id, "Jane Doe", "jane@example.com", nil, user.RoleClient, []byte("{}"), true, "en",
			[]byte("hash"), testTime, testTime, nil, nil)
	}
	return rows
}

func TestUserRepository_GetUser(t *testing.T) {
	id := "6f1c7a0e-8f52-4db3-9d0b-0a7f6c0e9b11"

	t.Run("by email", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM "users" WHERE .*lower\("users"\."email"\) = lower\(\$1\)`).
			WithArgs("jane@example.com").
			WillReturnRows(userRows(id))

		usr, err := NewUserRepository(db).GetUser(context.Background(), user.GetFilter{Email: "jane@example.com"})
		require.NoError(t, err)
		assert.Equal(t, id, usr.ID)
		assert.Equal(t, "Jane Doe", usr.Name)
		assert.True(t, usr.Active())
		assert.Equal(t, []string{}, usr.StaffRoles)
		assert.True(t, usr.LastLogin.IsZero())
		assert.Nil(t, usr.DeletedAt)
	})

	t.Run("no rows", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM "users"`).WithArgs(id).WillReturnRows(userRows())

		_, err := NewUserRepository(db).GetUser(context.Background(), user.GetFilter{ID: id})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("invalid ID does not hit the DB", func(t *testing.T) {
		db, _ := newMock(t)
		_, err := NewUserRepository(db).GetUser(context.Background(), user.GetFilter{ID: "42"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("empty filter", func(t *testing.T) {
		db, _ := newMock(t)
		_, err := NewUserRepository(db).GetUser(context.Background(), user.GetFilter{})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestUserRepository_CreateUser(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "inserted"},
		{name: "duplicate email", execErr: &pq.Error{Code: pqUniqueViolation, Constraint: "users_email_key"}, wantErr: user.ErrEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			args := make([]driver.Value, len(userMapping.columns))
			for i := range args {
				args[i] = sqlmock.AnyArg()
			}
			exp := mock.ExpectExec(`INSERT INTO "users" \("id", "name", "email", .*\) VALUES \(\$1, .*\$13\)`).WithArgs(args...)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			usr, err := NewUserRepository(db).CreateUser(context.Background(), user.User{
				Name:      "Jane Doe",
				Email:     "jane@example.com",
				Role:      user.RoleClient,
				Locale:    "en",
				CreatedAt: testTime,
				UpdatedAt: testTime,
			})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, validUUID(usr.ID))
			assert.True(t, usr.Active())
		})
	}
}

func TestUserRepository_UpdateUser_notFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE "users" SET "name" = \$1, .* WHERE "id" = \$13 AND "deleted_at" IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewUserRepository(db).UpdateUser(context.Background(), user.User{ID: "6f1c7a0e-8f52-4db3-9d0b-0a7f6c0e9b11"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db, mock := newMock(t)
	active := true
	filter := &user.QueryFilter{Search: "jane", IsActive: &active}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "users" WHERE .*"deleted_at" IS NULL.*ILIKE`).
		WithArgs("%jane%", "%jane%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(25)))
	mock.ExpectQuery(`SELECT "users"\."id", .* FROM "users" WHERE .* ORDER BY "users"\."name" ASC, "users"\."id" ASC LIMIT 10 OFFSET 20`).
		WithArgs("%jane%", "%jane%", true).
		WillReturnRows(userRows("6f1c7a0e-8f52-4db3-9d0b-0a7f6c0e9b11", "0c5e2d1a-2b7e-4f5b-9a51-3f7d2a1c4e22"))

	users, total, err := NewUserRepository(db).QueryUsers(context.Background(), filter,
		[]core.DBOrdering{{Field: "name", Ascending: true}, {Field: "password_hash"}},
		core.PageRequest{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, users, 2)
}

func TestUserRepository_DeleteUsersByID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE "users" SET "deleted_at" = \$1 WHERE "id" = ANY\(\$2\) AND "deleted_at" IS NULL`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewUserRepository(db)
	n, err := repo.DeleteUsersByID(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.DeleteUsersByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func Test_isUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: pqUniqueViolation, Constraint: "instructors_slug_key"}
	tests := []struct {
		name        string
		err         error
		constraints []string
		want        bool
	}{
		{name: "any constraint", err: dup, want: true},
		{name: "wrapped", err: errors.Wrap(dup, "inserting"), want: true},
		{name: "matching constraint", err: dup, constraints: []string{"instructors_slug_key"}, want: true},
		{name: "other constraint", err: dup, constraints: []string{"instructors_user_id_key"}},
		{name: "other pq error", err: &pq.Error{Code: "23503"}},
		{name: "not a pq error", err: sql.ErrNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err, tt.constraints...))
		})
	}
}
