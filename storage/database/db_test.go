package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
)

func TestTxRunner_WithTx(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name    string
		fnErr   error
		wantErr error
	}{
		{name: "commits"},
		{name: "rolls back", fnErr: errBoom, wantErr: errBoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "bookings"`).WillReturnResult(sqlmock.NewResult(0, 1))
			if tt.fnErr != nil {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			err = NewTxRunner(db).WithTx(context.Background(), func(exec core.DBExecutor) error {
				if _, err := exec.ExecContext(context.Background(), `UPDATE "bookings" SET "status" = 'expired'`); err != nil {
					return err
				}
				return tt.fnErr
			})
			assert.Equal(t, tt.wantErr, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
