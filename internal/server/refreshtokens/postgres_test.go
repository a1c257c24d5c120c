package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ = `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	selectQ = `(?s)^SELECT\s+user_id,\s*expires_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	deleteQ = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresCreate(t *testing.T) {
	t.Run("stores token with expiry", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(insertQ).
			WithArgs("u1", "tok", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), "u1", "tok", 30*time.Minute))
	})

	t.Run("wraps driver error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(insertQ).
			WithArgs("u1", "tok", sqlmock.AnyArg()).
			WillReturnError(errors.New("db down"))

		err := repo.Create(context.Background(), "u1", "tok", time.Hour)
		assert.ErrorContains(t, err, "error performing sql request: db down")
	})
}

func TestPostgresFind(t *testing.T) {
	expires := time.Now().Add(10 * time.Minute)

	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		wantErr error
		errText string
	}{
		{
			name: "found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(selectQ).WithArgs("tok").
					WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow("u1", expires))
			},
		},
		{
			name: "unknown token",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(selectQ).WithArgs("tok").WillReturnError(sql.ErrNoRows)
			},
			wantErr: common.ErrorNotFound,
		},
		{
			name: "driver error",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(selectQ).WithArgs("tok").WillReturnError(errors.New("db err"))
			},
			errText: "db error: db err",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setup(mock)

			got, err := repo.Find(context.Background(), "tok")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.ErrorContains(t, err, tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, "u1", got.UserID)
				assert.Equal(t, "tok", got.Token)
				assert.True(t, got.Expires.Equal(expires))
			}
		})
	}
}

func TestPostgresDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(deleteQ).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteQ).WithArgs("tok").WillReturnError(errors.New("db err"))

	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, "tok"))
	require.NoError(t, repo.Delete(ctx, "gone"), "deleting a missing token is not an error")
	assert.ErrorContains(t, repo.Delete(ctx, "tok"), "db error: db err")
}

func TestPostgresRotate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		wantErr error
		errText string
	}{
		{
			name: "swaps tokens in one transaction",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(deleteQ).WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectExec(insertQ).WithArgs("u1", "new", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
		},
		{
			name: "already consumed",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(deleteQ).WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectRollback()
			},
			wantErr: common.ErrorNotFound,
		},
		{
			name: "insert failure rolls back",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(deleteQ).WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectExec(insertQ).WithArgs("u1", "new", sqlmock.AnyArg()).WillReturnError(errors.New("db down"))
				m.ExpectRollback()
			},
			errText: "db down",
		},
		{
			name: "begin failure",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin().WillReturnError(errors.New("no conn"))
			},
			errText: "no conn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setup(mock)

			err := repo.Rotate(context.Background(), "old", "u1", "new", time.Hour)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.ErrorContains(t, err, tt.errText)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
