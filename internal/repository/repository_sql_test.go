package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestTaskRepository_ApproveIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tasks" SET "approved"=.*"status"=.* WHERE id = .* AND approved = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tasks" SET "approved"=.*"status"=.* WHERE id = .* AND approved = .*`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	approved, err := repo.Approve(7)
	require.NoError(t, err)
	assert.True(t, approved)

	approved, err = repo.Approve(7)
	require.NoError(t, err)
	assert.False(t, approved)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepository_UpdateScoreWritesHistory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "kpi_evaluations" SET .*"version"=version \+ 1.* WHERE id = .* AND version = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "evaluation_histories"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	updated, err := repo.UpdateScore(models.EvaluationKindKPI, 3, 1, ScoreChange{EditorID: 2, PreviousScore: 70, NewScore: 75})
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepository_UpdateScoreLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "user_evaluations" SET .* WHERE id = .* AND version = .*`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	updated, err := repo.UpdateScore(models.EvaluationKindUser, 3, 1, ScoreChange{EditorID: 2, PreviousScore: 70, NewScore: 75})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepository_UpdateScoreUnknownKind(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewEvaluationRepository(db)

	_, err := repo.UpdateScore(models.EvaluationKind("peer"), 1, 1, ScoreChange{})
	assert.Error(t, err)
}
