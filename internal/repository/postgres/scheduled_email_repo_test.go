package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"certflow/internal/domain"
)

func scheduledEmailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "template_id", "recipients", "schedule_date", "status",
		"created_by", "sent_at", "error_message", "created_at",
	})
}

func TestScheduledEmailRepository_Create(t *testing.T) {
	ctx := context.Background()
	scheduleDate := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO scheduled_emails \(template_id, recipients, schedule_date, status, created_by, created_at\)`).
			WithArgs("tpl-1", pq.Array([]string{"pt-1", "pt-2"}), scheduleDate, "pending", "user-1", created).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("se-uuid-1"))

		repo := NewScheduledEmailRepository(db)
		scheduled := &domain.ScheduledEmail{
			TemplateID:   "tpl-1",
			Recipients:   []string{"pt-1", "pt-2"},
			ScheduleDate: scheduleDate,
			Status:       domain.ScheduleStatusPending,
			CreatedBy:    "user-1",
			CreatedAt:    created,
		}
		require.NoError(t, repo.Create(ctx, scheduled))
		require.Equal(t, "se-uuid-1", scheduled.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO scheduled_emails`).
			WillReturnError(sql.ErrConnDone)

		repo := NewScheduledEmailRepository(db)
		require.Error(t, repo.Create(ctx, &domain.ScheduledEmail{TemplateID: "tpl-1"}))
	})
}

func TestScheduledEmailRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	scheduleDate := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	sentAt := time.Date(2025, 6, 20, 10, 0, 5, 0, time.UTC)

	t.Run("success pending", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, template_id, recipients, schedule_date, status, created_by, sent_at, error_message, created_at`).
			WithArgs("se-1").
			WillReturnRows(scheduledEmailRows().
				AddRow("se-1", "tpl-1", `{"pt-1","pt-2"}`, scheduleDate, "pending", "user-1", nil, nil, created))

		repo := NewScheduledEmailRepository(db)
		got, err := repo.GetByID(ctx, "se-1")
		require.NoError(t, err)
		require.Equal(t, []string{"pt-1", "pt-2"}, got.Recipients)
		require.Equal(t, domain.ScheduleStatusPending, got.Status)
		require.Nil(t, got.SentAt)
		require.Empty(t, got.ErrorMessage)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success sent with timestamps", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, template_id, recipients, schedule_date, status, created_by, sent_at, error_message, created_at`).
			WithArgs("se-2").
			WillReturnRows(scheduledEmailRows().
				AddRow("se-2", "tpl-1", `{"pt-1"}`, scheduleDate, "sent", "user-1", sentAt, nil, created))

		repo := NewScheduledEmailRepository(db)
		got, err := repo.GetByID(ctx, "se-2")
		require.NoError(t, err)
		require.Equal(t, domain.ScheduleStatusSent, got.Status)
		require.NotNil(t, got.SentAt)
		require.True(t, got.SentAt.Equal(sentAt))
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, template_id, recipients, schedule_date, status, created_by, sent_at, error_message, created_at`).
			WithArgs("se-missing").
			WillReturnError(sql.ErrNoRows)

		repo := NewScheduledEmailRepository(db)
		got, err := repo.GetByID(ctx, "se-missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.Nil(t, got)
	})
}

func TestScheduledEmailRepository_ListPending(t *testing.T) {
	ctx := context.Background()
	scheduleDate := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE status = \$1`).
		WithArgs("pending").
		WillReturnRows(scheduledEmailRows().
			AddRow("se-1", "tpl-1", `{"pt-1"}`, scheduleDate, "pending", "user-1", nil, nil, created).
			AddRow("se-2", "tpl-2", `{"pt-2","pt-3"}`, scheduleDate.Add(time.Hour), "pending", "user-1", nil, nil, created))

	repo := NewScheduledEmailRepository(db)
	got, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "se-1", got[0].ID)
	require.Equal(t, []string{"pt-2", "pt-3"}, got[1].Recipients)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledEmailRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	sentAt := time.Date(2025, 6, 20, 10, 0, 5, 0, time.UTC)

	t.Run("mark sent", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE scheduled_emails`).
			WithArgs("sent", sql.NullTime{Time: sentAt, Valid: true}, "", "se-1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewScheduledEmailRepository(db)
		require.NoError(t, repo.UpdateStatus(ctx, "se-1", domain.ScheduleStatusSent, &sentAt, ""))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark failed with message", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE scheduled_emails`).
			WithArgs("failed", sql.NullTime{}, "smtp timeout", "se-1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewScheduledEmailRepository(db)
		require.NoError(t, repo.UpdateStatus(ctx, "se-1", domain.ScheduleStatusFailed, nil, "smtp timeout"))
	})

	t.Run("no longer pending", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE scheduled_emails`).
			WithArgs("cancelled", sql.NullTime{}, "", "se-1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewScheduledEmailRepository(db)
		require.ErrorIs(t, repo.UpdateStatus(ctx, "se-1", domain.ScheduleStatusCancelled, nil, ""), domain.ErrNotFound)
	})
}
