package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/pashagolub/pgxmock/v4"
)

func TestConversationRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ConversationRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	conv := models.NewGroupConversation("cv_1", "Weekend plans", "usr_1")

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(conv.ID, conv.Type, nullString(conv.Name), nullString(""),
			conv.CreatedBy, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Create(ctx, conv); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestConversationRepository_FindDirect_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ConversationRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(pairLockKey("usr_1", "usr_2")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT (.+) FROM conversations").
		WithArgs("usr_1", "usr_2").
		WillReturnError(pgx.ErrNoRows)

	ctx := setupMockContext(mock)
	conv, err := repo.FindDirect(ctx, "usr_1", "usr_2")
	if err != nil {
		t.Fatalf("FindDirect failed: %v", err)
	}
	if conv != nil {
		t.Errorf("expected nil conversation, got %+v", conv)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestConversationRepository_FindDirect_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ConversationRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "type", "name", "avatar_url", "created_by", "created_at", "updated_at",
	}).AddRow("cv_1", models.ConversationDirect, sql.NullString{}, sql.NullString{}, "usr_1", now, now)

	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(pairLockKey("usr_2", "usr_1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT (.+) FROM conversations").
		WithArgs("usr_2", "usr_1").
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	conv, err := repo.FindDirect(ctx, "usr_2", "usr_1")
	if err != nil {
		t.Fatalf("FindDirect failed: %v", err)
	}
	if conv == nil || conv.ID != "cv_1" {
		t.Fatalf("expected cv_1, got %+v", conv)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPairLockKey_OrderIndependent(t *testing.T) {
	if pairLockKey("usr_a", "usr_b") != pairLockKey("usr_b", "usr_a") {
		t.Errorf("lock key must not depend on argument order")
	}
	if pairLockKey("usr_a", "usr_b") == pairLockKey("usr_a", "usr_c") {
		t.Errorf("distinct pairs should not collide")
	}
}
