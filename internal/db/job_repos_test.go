package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wacrm/internal/types"
)

func TestJobLockRepository_Acquire(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tag  string
		want bool
	}{
		{"acquired", "INSERT 0 1", true},
		{"held elsewhere", "INSERT 0 0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			repo := NewJobLockRepository(db)
			repo.now = func() time.Time { return fixed }

			db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
				return args[0] == "reconcile_campaigns:2026-03-01T10:00" &&
					args[1] == "worker-1" &&
					args[2].(time.Time).Equal(fixed) &&
					args[3].(time.Time).Equal(fixed.Add(5*time.Minute))
			})).Return(pgconn.NewCommandTag(tt.tag), nil)

			ok, err := repo.Acquire(context.Background(), "reconcile_campaigns:2026-03-01T10:00", "worker-1", 5*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			db.AssertExpectations(t)
		})
	}
}

func TestJobLockRepository_Acquire_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobLockRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.Acquire(context.Background(), "x", "w", time.Minute)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestJobHistoryRepository_StartFinish(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), argAt(0, "check_expiring_batches")).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 42
			return nil
		}})
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == int64(42) && args[1] == "failed" && args[2] == 3 && *(args[3].(*string)) == "boom"
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	id, err := repo.Start(context.Background(), "check_expiring_batches")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	require.NoError(t, repo.Finish(context.Background(), id, "failed", 3, errors.New("boom")))
	db.AssertExpectations(t)
}

func TestJobHistoryRepository_Finish_Missing(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Finish(context.Background(), 7, "success", 0, nil)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}
